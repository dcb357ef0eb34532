package transcribe

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-audio/wav"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"gopkg.in/hraban/opus.v2"

	"github.com/voicememo/voicememo/internal/store"
)

// decodeToMono decodes a stored recording into mono float32 PCM at the
// requested sample rate.
func decodeToMono(rec *store.AudioRecording, targetRate int) ([]float32, error) {
	var (
		samples  []float32
		rate     int
		channels int
		err      error
	)
	switch {
	case strings.HasPrefix(rec.MimeType, "audio/wav"):
		samples, rate, channels, err = decodeWAV(rec.AudioBytes)
	case strings.HasPrefix(rec.MimeType, "audio/ogg"):
		samples, rate, channels, err = decodeOggOpus(rec.AudioBytes)
	default:
		return nil, fmt.Errorf("unsupported mime type %q", rec.MimeType)
	}
	if err != nil {
		return nil, err
	}

	mono := downmixMono(samples, channels)
	return Resample(mono, rate, targetRate), nil
}

func decodeWAV(data []byte) ([]float32, int, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate == 0 {
		return nil, 0, 0, fmt.Errorf("wav stream has no format")
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / 32768
	}
	return samples, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

func decodeOggOpus(data []byte) ([]float32, int, int, error) {
	_, header, err := oggreader.NewWith(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading ogg container: %w", err)
	}
	channels := int(header.Channels)
	if channels == 0 {
		channels = 1
	}

	packets, err := oggPackets(data)
	if err != nil {
		return nil, 0, 0, err
	}

	// Opus decodes at 48 kHz regardless of the encoder's input rate.
	dec, err := opus.NewDecoder(48000, channels)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("creating opus decoder: %w", err)
	}

	var samples []float32
	// 120 ms at 48 kHz, the largest frame opus allows.
	pcm := make([]float32, 5760*channels)
	for _, packet := range packets {
		if len(packet) == 0 ||
			bytes.HasPrefix(packet, []byte("OpusHead")) ||
			bytes.HasPrefix(packet, []byte("OpusTags")) {
			continue
		}
		n, err := dec.DecodeFloat32(packet, pcm)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decoding opus packet: %w", err)
		}
		samples = append(samples, pcm[:n*channels]...)
	}
	return samples, 48000, channels, nil
}

// oggPackets splits an Ogg stream into logical packets using the page
// segment lacing tables. A page may carry several packets, and a packet
// whose final lacing value is 255 continues on the next page.
func oggPackets(data []byte) ([][]byte, error) {
	var (
		packets [][]byte
		packet  []byte
	)
	off := 0
	for off < len(data) {
		if off+27 > len(data) || !bytes.Equal(data[off:off+4], []byte("OggS")) {
			return nil, fmt.Errorf("malformed ogg page at offset %d", off)
		}
		segments := int(data[off+26])
		body := off + 27 + segments
		if body > len(data) {
			return nil, fmt.Errorf("truncated ogg segment table at offset %d", off)
		}
		for i := 0; i < segments; i++ {
			lace := int(data[off+27+i])
			if body+lace > len(data) {
				return nil, fmt.Errorf("truncated ogg page body at offset %d", off)
			}
			packet = append(packet, data[body:body+lace]...)
			body += lace
			if lace < 255 {
				packets = append(packets, packet)
				packet = nil
			}
		}
		off = body
	}
	if len(packet) > 0 {
		packets = append(packets, packet)
	}
	return packets, nil
}

// downmixMono averages interleaved channels into one.
func downmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	mono := make([]float32, 0, len(samples)/channels)
	for i := 0; i+channels <= len(samples); i += channels {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i+c]
		}
		mono = append(mono, sum/float32(channels))
	}
	return mono
}
