package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// DeviceResolver maps an opaque device id back to a native handle. The
// device package's enumerator satisfies this.
type DeviceResolver interface {
	NativeID(id string) (malgo.DeviceID, bool)
}

// MalgoOpener opens capture streams through miniaudio. Call Close when
// no more streams will be opened.
type MalgoOpener struct {
	ctx     *malgo.AllocatedContext
	resolve DeviceResolver
}

// NewMalgoOpener creates an opener. resolve may be nil, in which case
// device pinning is unavailable and the system default is always used.
func NewMalgoOpener(resolve DeviceResolver) (*MalgoOpener, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &MalgoOpener{ctx: ctx, resolve: resolve}, nil
}

// Open starts a capture device delivering float32 samples to onData.
// An unresolvable deviceID falls back to the system default rather than
// failing the start. onLoss fires when miniaudio stops the device
// behind our back, typically because it was unplugged.
func (o *MalgoOpener) Open(cons Constraints, deviceID string, onData func(samples []float32), onLoss func(err error)) (Stream, error) {
	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = cons.Channels
	deviceCfg.SampleRate = cons.SampleRate

	if deviceID != "" && o.resolve != nil {
		if native, ok := o.resolve.NativeID(deviceID); ok {
			id := native
			deviceCfg.Capture.DeviceID = id.Pointer()
		}
	}

	stream := &malgoStream{}
	channels := cons.Channels
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, frameCount uint32) {
			onData(bytesToFloat32(pSample, frameCount*channels))
		},
		// miniaudio also invokes Stop during Uninit; the closed flag
		// keeps a deliberate Close from being reported as a loss.
		Stop: func() {
			if stream.closed.Load() || onLoss == nil {
				return
			}
			go onLoss(ErrDeviceLost)
		},
	}

	device, err := malgo.InitDevice(o.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		stream.closed.Store(true)
		device.Uninit()
		return nil, fmt.Errorf("starting capture device: %w", err)
	}
	stream.device = device
	return stream, nil
}

// Close releases the audio context.
func (o *MalgoOpener) Close() error {
	if o.ctx != nil {
		if err := o.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		o.ctx.Free()
		o.ctx = nil
	}
	return nil
}

type malgoStream struct {
	device *malgo.Device
	closed atomic.Bool
}

func (s *malgoStream) Close() error {
	s.closed.Store(true)
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	return nil
}

// bytesToFloat32 converts raw little-endian float32 bytes to samples.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
