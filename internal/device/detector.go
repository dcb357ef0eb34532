// Package device classifies the runtime platform and picks the capture
// device to prefer. All of it is heuristic: label matching against known
// substrings, never authoritative, and never fatal to capture.
package device

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DeviceInfo describes one audio input device.
type DeviceInfo struct {
	ID    string
	Label string
}

// Enumerator lists the currently attached audio input devices.
type Enumerator interface {
	InputDevices() ([]DeviceInfo, error)
}

// PlatformInfo is the capability descriptor call sites branch on. They
// never see raw device labels or user-agent strings.
type PlatformInfo struct {
	IsMobile             bool
	IsBluetoothHFPActive bool
	PreferredDeviceID    string
}

var mobileMarkers = []string{"android", "iphone", "ipad", "ipod", "mobile"}

// Disqualifying label fragments: a device matching any of these is not
// the built-in microphone.
var externalMarkers = []string{"bluetooth", "headset", "airpods", "headphone"}

// ClassifyPlatform reports whether the given runtime identifier looks
// like a mobile platform. Purely additive: callers must treat a false
// answer as "unknown", not "desktop guaranteed".
func ClassifyPlatform(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, m := range mobileMarkers {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}

// Detector tracks which input device to prefer. While a Bluetooth
// hands-free (HFP/HSP) device is connected, the previously identified
// built-in microphone is preferred, because hands-free profiles degrade
// capture quality. The preference is advisory and silently dropped when
// no built-in device is known.
type Detector struct {
	enum   Enumerator
	logger zerolog.Logger

	mu        sync.Mutex
	builtinID string
	hfpActive bool

	changes chan struct{}
}

// NewDetector creates a detector and performs an initial scan.
func NewDetector(enum Enumerator, logger zerolog.Logger) *Detector {
	d := &Detector{
		enum:    enum,
		logger:  logger.With().Str("component", "device").Logger(),
		changes: make(chan struct{}, 1),
	}
	d.Refresh()
	return d
}

// Refresh re-enumerates devices and re-evaluates the built-in candidate
// and the hands-free connection state. Enumeration failures are logged
// and leave the previous state in place.
func (d *Detector) Refresh() {
	devices, err := d.enum.InputDevices()
	if err != nil {
		d.logger.Warn().Err(err).Msg("device enumeration failed, keeping previous state")
		return
	}

	builtin := ""
	for _, dev := range devices {
		if !isExternal(dev.Label) {
			builtin = dev.ID
			break
		}
	}
	if builtin == "" && len(devices) > 0 {
		builtin = devices[0].ID
	}

	hfp := false
	for _, dev := range devices {
		if isHandsFree(dev.Label) {
			hfp = true
			d.logger.Debug().Str("label", dev.Label).Msg("bluetooth hands-free device connected")
			break
		}
	}

	d.mu.Lock()
	changed := d.hfpActive != hfp || d.builtinID != builtin
	d.builtinID = builtin
	d.hfpActive = hfp
	d.mu.Unlock()

	if changed {
		d.logger.Info().
			Bool("hfp_active", hfp).
			Str("builtin_id", builtin).
			Msg("input device preference updated")
	}
}

// Detect returns the current capability descriptor. userAgent is the
// opaque runtime identifier to classify; empty is fine.
func (d *Detector) Detect(userAgent string) PlatformInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return PlatformInfo{
		IsMobile:             ClassifyPlatform(userAgent),
		IsBluetoothHFPActive: d.hfpActive,
		PreferredDeviceID:    d.preferredLocked(),
	}
}

// PreferredDeviceID returns the device id capture should pin, or empty
// when the system default should be used.
func (d *Detector) PreferredDeviceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.preferredLocked()
}

func (d *Detector) preferredLocked() string {
	if d.hfpActive && d.builtinID != "" {
		return d.builtinID
	}
	return ""
}

// NotifyDeviceChange wakes the watcher to re-evaluate immediately.
// Safe to call from any goroutine; redundant notifications coalesce.
func (d *Detector) NotifyDeviceChange() {
	select {
	case d.changes <- struct{}{}:
	default:
	}
}

// Watch re-evaluates device state on every change notification and on a
// periodic tick, until ctx is cancelled. An active capture session is
// never disturbed: the updated preference takes effect on the next start.
func (d *Detector) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.changes:
			d.Refresh()
		case <-ticker.C:
			d.Refresh()
		}
	}
}

func isExternal(label string) bool {
	l := strings.ToLower(label)
	for _, m := range externalMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// isHandsFree distinguishes low-fidelity HFP/HSP profiles from stereo
// A2DP sinks, which never show up as capture devices anyway but do leak
// into some OS device labels.
func isHandsFree(label string) bool {
	l := strings.ToLower(label)
	if !strings.Contains(l, "bluetooth") {
		return false
	}
	if strings.Contains(l, "hands-free") || strings.Contains(l, "headset") ||
		strings.Contains(l, "hfp") || strings.Contains(l, "hsp") {
		return true
	}
	return !strings.Contains(l, "a2dp") && !strings.Contains(l, "stereo")
}
