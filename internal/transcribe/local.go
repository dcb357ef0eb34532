package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"github.com/voicememo/voicememo/internal/config"
	"github.com/voicememo/voicememo/internal/store"
)

// whisperSampleRate is the only input rate whisper.cpp accepts; every
// recording is decoded and resampled to mono at this rate first.
const whisperSampleRate = 16000

// runtimeState tracks the lazily loaded inference model.
type runtimeState int

const (
	runtimeUninitialized runtimeState = iota
	runtimeLoading
	runtimeReady
	runtimeFailed
)

// modelRuntime is the loaded-model surface LocalEngine drives. The
// indirection keeps model loading out of tests.
type modelRuntime interface {
	Process(samples []float32) (string, error)
	Close() error
}

// LocalEngine runs whisper.cpp inference in-process. The model loads on
// first use and stays resident; a failed load is sticky so repeated
// transcription attempts do not retry an unusable model path.
type LocalEngine struct {
	modelPath  string
	language   string
	threads    int
	logger     zerolog.Logger
	onProgress ProgressFunc
	newRuntime func(modelPath, language string, threads int) (modelRuntime, error)

	mu      sync.Mutex
	state   runtimeState
	runtime modelRuntime
	loadErr error
}

// NewLocalEngine creates an engine. The model is not loaded until the
// first Transcribe call.
func NewLocalEngine(cfg *config.TranscribeConfig, logger zerolog.Logger, onProgress ProgressFunc) *LocalEngine {
	return &LocalEngine{
		modelPath:  cfg.ModelPath,
		language:   cfg.Language,
		threads:    cfg.Threads,
		logger:     logger.With().Str("component", "transcribe").Str("backend", "local").Logger(),
		onProgress: onProgress,
		newRuntime: newWhisperRuntime,
	}
}

// Transcribe decodes the recording, resamples it to the model's input
// format, and runs inference. Progress is reported at each stage
// boundary.
func (e *LocalEngine) Transcribe(ctx context.Context, rec *store.AudioRecording) (string, error) {
	e.progress(StagePreparing, 0)

	e.progress(StageLoading, 10)
	if err := e.ensureLoaded(); err != nil {
		e.progress(StageError, 0)
		return "", err
	}
	if err := ctx.Err(); err != nil {
		e.progress(StageError, 0)
		return "", err
	}

	e.progress(StageConverting, 30)
	samples, err := decodeToMono(rec, whisperSampleRate)
	if err != nil {
		e.progress(StageError, 0)
		return "", fmt.Errorf("decoding recording %s: %w", rec.ID, err)
	}
	if err := ctx.Err(); err != nil {
		e.progress(StageError, 0)
		return "", err
	}

	e.progress(StageTranscribing, 60)
	text, err := e.runtime.Process(samples)
	if err != nil {
		e.progress(StageError, 0)
		return "", fmt.Errorf("running inference: %w", err)
	}

	e.progress(StageComplete, 100)
	return text, nil
}

// Close releases the loaded model, if any.
func (e *LocalEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runtime != nil {
		err := e.runtime.Close()
		e.runtime = nil
		e.state = runtimeUninitialized
		return err
	}
	return nil
}

// ensureLoaded loads the model exactly once. Concurrent callers wait on
// the mutex; later callers observe the ready or failed outcome.
func (e *LocalEngine) ensureLoaded() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case runtimeReady:
		return nil
	case runtimeFailed:
		return e.loadErr
	}

	e.state = runtimeLoading
	e.logger.Info().Str("model", e.modelPath).Msg("loading model")
	rt, err := e.newRuntime(e.modelPath, e.language, e.threads)
	if err != nil {
		e.state = runtimeFailed
		e.loadErr = fmt.Errorf("%w: loading model %q: %v", ErrRuntime, e.modelPath, err)
		return e.loadErr
	}
	e.runtime = rt
	e.state = runtimeReady
	e.logger.Info().Str("model", e.modelPath).Msg("model ready")
	return nil
}

func (e *LocalEngine) progress(stage Stage, percent int) {
	if e.onProgress != nil {
		e.onProgress(Progress{Stage: stage, Percent: percent})
	}
}

// whisperRuntime wraps a whisper.cpp model. Each Process call gets a
// fresh inference context so runs do not share decoder state.
type whisperRuntime struct {
	model    whisper.Model
	language string
	threads  int
}

func newWhisperRuntime(modelPath, language string, threads int) (modelRuntime, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, err
	}
	return &whisperRuntime{model: model, language: language, threads: threads}, nil
}

func (r *whisperRuntime) Process(samples []float32) (string, error) {
	ctx, err := r.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("creating inference context: %w", err)
	}
	if r.language != "" {
		if err := ctx.SetLanguage(r.language); err != nil {
			return "", fmt.Errorf("setting language %q: %w", r.language, err)
		}
	}
	if r.threads > 0 {
		ctx.SetThreads(uint(r.threads))
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("processing samples: %w", err)
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}
	return strings.TrimSpace(strings.Join(segments, " ")), nil
}

func (r *whisperRuntime) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}
