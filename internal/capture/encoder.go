package capture

// Encoder turns raw float32 PCM into a container format suitable for
// persistence and playback.
type Encoder interface {
	// MimeType identifies the produced container, e.g. "audio/wav".
	MimeType() string
	// Supported reports whether the encoder accepts this PCM format.
	Supported(sampleRate, channels uint32) bool
	// Encode produces the encoded bytes for the given samples.
	Encode(samples []float32, sampleRate, channels uint32) ([]byte, error)
}

// encoderPriority is the negotiation order: Ogg Opus when the sample
// rate allows it, WAV otherwise. WAV accepts any PCM format, so
// negotiation only fails on a nonsensical configuration.
var encoderPriority = []Encoder{
	oggOpusEncoder{},
	wavEncoder{},
}

// negotiateEncoder picks the first encoder that supports the format.
func negotiateEncoder(sampleRate, channels uint32) (Encoder, error) {
	for _, enc := range encoderPriority {
		if enc.Supported(sampleRate, channels) {
			return enc, nil
		}
	}
	return nil, ErrEncodingUnsupported
}
