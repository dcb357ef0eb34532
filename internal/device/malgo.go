package device

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoEnumerator lists capture devices through a shared miniaudio
// context. It also keeps the string-id to native-id mapping so that a
// preference produced by the Detector can later be resolved back to a
// device the capture layer can open.
type MalgoEnumerator struct {
	ctx *malgo.AllocatedContext

	mu   sync.Mutex
	byID map[string]malgo.DeviceID
}

// NewMalgoEnumerator creates an enumerator. Call Close() when done.
func NewMalgoEnumerator() (*MalgoEnumerator, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &MalgoEnumerator{
		ctx:  ctx,
		byID: make(map[string]malgo.DeviceID),
	}, nil
}

// InputDevices returns the currently attached capture devices.
func (e *MalgoEnumerator) InputDevices() ([]DeviceInfo, error) {
	infos, err := e.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerating capture devices: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	devices := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		id := EncodeID(info.ID)
		e.byID[id] = info.ID
		devices = append(devices, DeviceInfo{ID: id, Label: info.Name()})
	}
	return devices, nil
}

// NativeID resolves a string device id back to the native handle. The
// second return is false when the id has never been enumerated.
func (e *MalgoEnumerator) NativeID(id string) (malgo.DeviceID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	native, ok := e.byID[id]
	return native, ok
}

// Close releases the audio context.
func (e *MalgoEnumerator) Close() error {
	if e.ctx != nil {
		if err := e.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		e.ctx.Free()
		e.ctx = nil
	}
	return nil
}

// EncodeID renders a native device id as an opaque stable string.
func EncodeID(id malgo.DeviceID) string {
	raw := id[:]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return hex.EncodeToString(raw[:end])
}
