// Package transcribe provides speech-to-text backends.
//
// Supported backends:
//   - local: whisper.cpp inference via Go bindings (default)
//   - remote: HTTP submit-and-poll against a transcription service
package transcribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/voicememo/voicememo/internal/config"
	"github.com/voicememo/voicememo/internal/store"
)

var (
	// ErrSubmitFailed means the remote service rejected the audio upload.
	ErrSubmitFailed = errors.New("transcription submit failed")
	// ErrTimeout means polling exhausted its attempts without a result.
	ErrTimeout = errors.New("transcription timed out")
	// ErrRuntime means the local inference runtime failed to initialize.
	ErrRuntime = errors.New("transcription runtime unavailable")
)

// Stage labels a phase of a transcription run.
type Stage string

const (
	StagePreparing    Stage = "preparing"
	StageLoading      Stage = "loading"
	StageConverting   Stage = "converting"
	StageTranscribing Stage = "transcribing"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Progress reports how far a transcription run has advanced. Percent is
// a coarse stage marker, not a smooth estimate.
type Progress struct {
	Stage   Stage
	Percent int
}

// ProgressFunc receives progress updates. It is called synchronously
// and must be cheap.
type ProgressFunc func(Progress)

// Backend converts a stored recording to text.
type Backend interface {
	Transcribe(ctx context.Context, rec *store.AudioRecording) (string, error)
	// Close releases backend resources.
	Close() error
}

// New creates a Backend based on the config backend setting. onProgress
// may be nil.
func New(cfg *config.TranscribeConfig, logger zerolog.Logger, onProgress ProgressFunc) (Backend, error) {
	switch cfg.Backend {
	case "remote":
		return NewRemoteClient(cfg, logger), nil
	case "local", "":
		return NewLocalEngine(cfg, logger, onProgress), nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: local, remote)", cfg.Backend)
	}
}
