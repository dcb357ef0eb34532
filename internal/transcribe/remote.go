package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/voicememo/voicememo/internal/config"
	"github.com/voicememo/voicememo/internal/store"
)

// RemoteClient submits recordings to an HTTP transcription service and
// polls for the result. The service processes asynchronously: a 404 on
// the result endpoint means "not ready yet", not "unknown recording".
type RemoteClient struct {
	client      *resty.Client
	endpoint    string
	maxAttempts int
	interval    time.Duration
	logger      zerolog.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

type transcriptResponse struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// NewRemoteClient creates a client for the configured endpoint.
func NewRemoteClient(cfg *config.TranscribeConfig, logger zerolog.Logger) *RemoteClient {
	attempts := cfg.PollAttempts
	if attempts <= 0 {
		attempts = 30
	}
	interval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &RemoteClient{
		client:      resty.New(),
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		maxAttempts: attempts,
		interval:    interval,
		logger:      logger.With().Str("component", "transcribe").Str("backend", "remote").Logger(),
		sleep:       sleepCtx,
	}
}

// Transcribe uploads the recording and polls until a transcript is
// available, the attempt budget is spent, or ctx is cancelled.
func (c *RemoteClient) Transcribe(ctx context.Context, rec *store.AudioRecording) (string, error) {
	if err := c.submit(ctx, rec); err != nil {
		return "", err
	}
	return c.poll(ctx, rec.ID)
}

// Close is a no-op; the client holds no persistent connections worth
// tearing down.
func (c *RemoteClient) Close() error { return nil }

func (c *RemoteClient) submit(ctx context.Context, rec *store.AudioRecording) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("audio", submitFilename(rec.MimeType), bytes.NewReader(rec.AudioBytes)).
		SetFormData(map[string]string{
			"audioId":   rec.ID,
			"timestamp": rec.Timestamp.Format(time.RFC3339),
			"duration":  strconv.FormatInt(rec.DurationMs, 10),
		}).
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: service returned %s", ErrSubmitFailed, resp.Status())
	}
	c.logger.Debug().Str("id", rec.ID).Msg("recording submitted")
	return nil
}

func (c *RemoteClient) poll(ctx context.Context, id string) (string, error) {
	url := c.endpoint + "/" + id
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.interval); err != nil {
				return "", err
			}
		}

		var result transcriptResponse
		resp, err := c.client.R().
			SetContext(ctx).
			SetResult(&result).
			Get(url)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn().Err(err).Str("id", id).Int("attempt", attempt).Msg("poll request failed")
		case resp.IsSuccess():
			c.logger.Debug().
				Str("id", id).
				Int("attempt", attempt).
				Float64("confidence", result.Confidence).
				Msg("transcript ready")
			return result.Transcript, nil
		case resp.StatusCode() == 404:
			// Not ready yet.
		default:
			c.logger.Warn().Str("id", id).Str("status", resp.Status()).Msg("unexpected poll response")
		}
	}
	return "", fmt.Errorf("%w: no transcript for %s after %d attempts", ErrTimeout, id, c.maxAttempts)
}

func submitFilename(mimeType string) string {
	if strings.HasPrefix(mimeType, "audio/ogg") {
		return "audio.ogg"
	}
	return "audio.wav"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
