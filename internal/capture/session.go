// Package capture records microphone audio through a single session
// state machine and encodes the result for persistence.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voicememo/voicememo/internal/store"
)

// Constraints describes the capture format and processing requested
// from the audio backend. DSP toggles are passed through as hints; the
// backend may ignore the ones it cannot honor.
type Constraints struct {
	SampleRate       uint32
	Channels         uint32
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Stream is a live capture handle. Closing it stops sample delivery.
type Stream interface {
	Close() error
}

// Opener opens capture streams. onData receives interleaved float32
// samples from the audio thread and must not block. onLoss is invoked
// at most once if the stream dies without Close being called, for
// example when the device is unplugged; it must not be invoked for a
// deliberate Close.
type Opener interface {
	Open(cons Constraints, deviceID string, onData func(samples []float32), onLoss func(err error)) (Stream, error)
}

// Session owns the recording lifecycle. At most one stream is open at a
// time; Start while active fails rather than opening a second stream.
// Events are delivered on a channel fixed at construction.
type Session struct {
	opener        Opener
	cons          Constraints
	chunkInterval time.Duration
	logger        zerolog.Logger
	events        chan Event

	mu          sync.Mutex
	state       State
	stream      Stream
	chunks      [][]float32
	pending     []float32
	sampleCount int
	lastSeal    time.Time
}

// NewSession creates an idle session. chunkInterval bounds how much
// audio a single buffered chunk can hold; values under 10ms are raised
// to 100ms.
func NewSession(opener Opener, cons Constraints, chunkInterval time.Duration, logger zerolog.Logger) *Session {
	if chunkInterval < 10*time.Millisecond {
		chunkInterval = 100 * time.Millisecond
	}
	return &Session{
		opener:        opener,
		cons:          cons,
		chunkInterval: chunkInterval,
		logger:        logger.With().Str("component", "capture").Logger(),
		events:        make(chan Event, 32),
		state:         StateIdle,
	}
}

// Events returns the session event channel. The same channel is
// returned for the lifetime of the session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the capture stream and begins buffering audio. deviceID
// pins a specific input device; empty selects the system default.
// Encoding support is verified up front so an uncapturable format fails
// before any audio is recorded.
func (s *Session) Start(deviceID string) error {
	s.mu.Lock()
	if s.state == StateActive || s.state == StateRequesting {
		s.mu.Unlock()
		return ErrSessionActive
	}
	if _, err := negotiateEncoder(s.cons.SampleRate, s.cons.Channels); err != nil {
		s.setStateLocked(StateError)
		s.setStateLocked(StateIdle)
		s.mu.Unlock()
		s.emitError(err)
		return err
	}
	s.chunks = nil
	s.pending = nil
	s.sampleCount = 0
	s.lastSeal = time.Now()
	s.setStateLocked(StateRequesting)
	s.mu.Unlock()

	stream, err := s.opener.Open(s.cons, deviceID, s.onData, s.onLoss)
	if err != nil {
		err = classifyStartError(err)
		s.mu.Lock()
		s.setStateLocked(StateError)
		s.setStateLocked(StateIdle)
		s.mu.Unlock()
		s.emitError(err)
		return fmt.Errorf("opening capture stream: %w", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.setStateLocked(StateActive)
	s.mu.Unlock()

	s.logger.Info().
		Uint32("sample_rate", s.cons.SampleRate).
		Uint32("channels", s.cons.Channels).
		Str("device_id", deviceID).
		Msg("capture started")
	return nil
}

// Stop closes the stream and returns the encoded recording. Stopping an
// inactive session is a no-op returning (nil, nil), as is stopping a
// session that captured no audio.
func (s *Session) Stop() (*store.AudioRecording, error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, nil
	}
	s.setStateLocked(StateStopping)
	s.mu.Unlock()

	samples, sampleCount := s.cleanup()

	if sampleCount == 0 {
		s.logger.Debug().Msg("capture stopped with no audio")
		return nil, nil
	}

	enc, err := negotiateEncoder(s.cons.SampleRate, s.cons.Channels)
	if err != nil {
		s.emitError(err)
		return nil, err
	}
	encoded, err := enc.Encode(samples, s.cons.SampleRate, s.cons.Channels)
	if err != nil {
		err = fmt.Errorf("encoding recording: %w", err)
		s.emitError(err)
		return nil, err
	}

	durationMs := int64(sampleCount) * 1000 / int64(s.cons.SampleRate) / int64(s.cons.Channels)
	rec := &store.AudioRecording{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		AudioBytes: encoded,
		MimeType:   enc.MimeType(),
		DurationMs: durationMs,
	}

	s.logger.Info().
		Str("id", rec.ID).
		Str("mime", rec.MimeType).
		Int64("duration_ms", rec.DurationMs).
		Int("bytes", len(encoded)).
		Msg("capture stopped")
	return rec, nil
}

// Close abandons any active stream and discards buffered audio.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state != StateActive && s.state != StateRequesting {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateStopping)
	s.mu.Unlock()

	s.cleanup()
	return nil
}

// onLoss handles the stream dying underneath an active session, such as
// the capture device being unplugged. The session passes through the
// error state, emits the failure, and funnels through cleanup back to
// idle; buffered audio is discarded.
func (s *Session) onLoss(err error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateError)
	s.mu.Unlock()

	s.logger.Warn().Err(err).Msg("capture stream lost")
	s.emitError(fmt.Errorf("capture interrupted: %w", err))
	s.cleanup()
}

// cleanup is the single teardown path: it closes the stream, drains the
// buffered chunks, and returns the session to idle. Every exit from the
// active state funnels through here.
func (s *Session) cleanup() ([]float32, int) {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing capture stream")
		}
	}

	s.mu.Lock()
	if len(s.pending) > 0 {
		s.sealLocked()
	}
	samples := make([]float32, 0, s.sampleCount)
	for _, c := range s.chunks {
		samples = append(samples, c...)
	}
	count := s.sampleCount
	s.chunks = nil
	s.pending = nil
	s.sampleCount = 0
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	return samples, count
}

// onData runs on the audio thread. It buffers samples and seals a chunk
// once the chunk interval has elapsed, emitting a level reading per
// sealed chunk.
func (s *Session) onData(samples []float32) {
	var level float64
	sealed := false

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, samples...)
	if time.Since(s.lastSeal) >= s.chunkInterval {
		level = rmsLevel(s.pending)
		s.sealLocked()
		sealed = true
	}
	s.mu.Unlock()

	if sealed {
		s.emit(Event{Kind: EventLevel, Level: level})
	}
}

func (s *Session) sealLocked() {
	chunk := make([]float32, len(s.pending))
	copy(chunk, s.pending)
	s.chunks = append(s.chunks, chunk)
	s.sampleCount += len(chunk)
	s.pending = s.pending[:0]
	s.lastSeal = time.Now()
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.emit(Event{Kind: EventStateChanged, State: state})
}

func (s *Session) emitError(err error) {
	s.emit(Event{Kind: EventError, Err: err})
}

// emit never blocks: a full channel drops the event so the audio
// callback cannot stall on a slow consumer.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
