package capture

import (
	"errors"
	"strings"
)

var (
	// ErrPermissionDenied means the OS refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceNotFound means no usable capture device exists.
	ErrDeviceNotFound = errors.New("capture device not found")
	// ErrDeviceBusy means another process holds the capture device.
	ErrDeviceBusy = errors.New("capture device busy")
	// ErrDeviceLost means the stream died mid-capture, such as the
	// device being unplugged.
	ErrDeviceLost = errors.New("capture device lost")
	// ErrEncodingUnsupported means no encoder accepts the configured format.
	ErrEncodingUnsupported = errors.New("no supported audio encoding")
	// ErrSessionActive means Start was called while a session is running.
	ErrSessionActive = errors.New("capture session already active")
)

// classifyStartError maps backend failures onto the stable sentinel set
// so callers can branch without inspecting backend-specific messages.
// Unrecognized errors pass through unchanged.
func classifyStartError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "access denied"):
		return errors.Join(ErrPermissionDenied, err)
	case strings.Contains(msg, "no device") || strings.Contains(msg, "not found") ||
		strings.Contains(msg, "no backend"):
		return errors.Join(ErrDeviceNotFound, err)
	case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
		return errors.Join(ErrDeviceBusy, err)
	}
	return err
}
