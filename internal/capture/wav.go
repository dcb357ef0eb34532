package capture

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// MimeWAV is the mime type produced by the WAV fallback encoder.
const MimeWAV = "audio/wav"

// wavEncoder writes 16-bit PCM WAV. It accepts any sample rate and
// channel count, making it the negotiation fallback.
type wavEncoder struct{}

func (wavEncoder) MimeType() string { return MimeWAV }

func (wavEncoder) Supported(sampleRate, channels uint32) bool {
	return sampleRate > 0 && channels > 0
}

func (wavEncoder) Encode(samples []float32, sampleRate, channels uint32) ([]byte, error) {
	ints := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		ints[i] = int(s * 32767)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(channels),
			SampleRate:  int(sampleRate),
		},
		Data:           ints,
		SourceBitDepth: 16,
	}

	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, int(sampleRate), 16, int(channels), 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav: %w", err)
	}
	return ws.buf, nil
}

// memWriteSeeker is the minimal io.WriteSeeker the wav encoder needs,
// backed by a byte slice. The encoder seeks back to patch chunk sizes.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		if need > cap(m.buf) {
			grown := make([]byte, need, need*2)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:need]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(m.pos) + offset
	case io.SeekEnd:
		pos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position %d", pos)
	}
	m.pos = int(pos)
	return pos, nil
}
