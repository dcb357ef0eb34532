package capture

import (
	"bytes"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

// MimeOggOpus is the mime type produced by the preferred encoder.
const MimeOggOpus = "audio/ogg;codecs=opus"

// Opus timestamps always run at 48 kHz regardless of the input rate, so
// each 20 ms frame advances the RTP clock by 960 ticks.
const (
	opusFrameMs       = 20
	opusTicksPerFrame = 960
)

// oggOpusEncoder packs 20 ms Opus frames into an Ogg container. Opus
// only accepts a fixed set of sample rates; anything else falls through
// to the WAV encoder during negotiation.
type oggOpusEncoder struct{}

func (oggOpusEncoder) MimeType() string { return MimeOggOpus }

func (oggOpusEncoder) Supported(sampleRate, channels uint32) bool {
	if channels != 1 && channels != 2 {
		return false
	}
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

func (oggOpusEncoder) Encode(samples []float32, sampleRate, channels uint32) ([]byte, error) {
	enc, err := opus.NewEncoder(int(sampleRate), int(channels), opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("creating opus encoder: %w", err)
	}

	buf := &bytes.Buffer{}
	ogg, err := oggwriter.NewWith(buf, 48000, uint16(channels))
	if err != nil {
		return nil, fmt.Errorf("creating ogg writer: %w", err)
	}

	frameSize := int(sampleRate) / 1000 * opusFrameMs * int(channels)
	packet := make([]byte, 4000)
	var seq uint16
	var ts uint32

	for off := 0; off < len(samples); off += frameSize {
		frame := samples[off:min(off+frameSize, len(samples))]
		if len(frame) < frameSize {
			padded := make([]float32, frameSize)
			copy(padded, frame)
			frame = padded
		}

		n, err := enc.EncodeFloat32(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("encoding opus frame: %w", err)
		}

		ts += opusTicksPerFrame
		seq++
		err = ogg.WriteRTP(&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    111,
				SequenceNumber: seq,
				Timestamp:      ts,
				SSRC:           1,
			},
			Payload: append([]byte(nil), packet[:n]...),
		})
		if err != nil {
			return nil, fmt.Errorf("writing ogg page: %w", err)
		}
	}

	if err := ogg.Close(); err != nil {
		return nil, fmt.Errorf("finalizing ogg: %w", err)
	}
	return buf.Bytes(), nil
}
