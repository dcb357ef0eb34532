package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicememo/voicememo/internal/config"
	"github.com/voicememo/voicememo/internal/store"
)

func testRemoteClient(endpoint string, attempts int) (*RemoteClient, *int32) {
	c := NewRemoteClient(&config.TranscribeConfig{
		Endpoint:       endpoint,
		PollAttempts:   attempts,
		PollIntervalMs: 1,
	}, zerolog.Nop())

	var sleeps int32
	c.sleep = func(ctx context.Context, d time.Duration) error {
		atomic.AddInt32(&sleeps, 1)
		return ctx.Err()
	}
	return c, &sleeps
}

func remoteRecording() *store.AudioRecording {
	return &store.AudioRecording{
		ID:         "rec-1",
		Timestamp:  time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		AudioBytes: []byte{1, 2, 3, 4},
		MimeType:   "audio/wav",
		DurationMs: 1500,
	}
}

func TestTranscribePollsUntilReady(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("submit is not multipart: %v", err)
			}
			if got := r.FormValue("audioId"); got != "rec-1" {
				t.Errorf("audioId = %q, want %q", got, "rec-1")
			}
			if got := r.FormValue("duration"); got != "1500" {
				t.Errorf("duration = %q, want %q", got, "1500")
			}
			if _, _, err := r.FormFile("audio"); err != nil {
				t.Errorf("audio file part missing: %v", err)
			}
			w.WriteHeader(http.StatusAccepted)
			return
		}
		n := atomic.AddInt32(&gets, 1)
		if n <= 3 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transcript":"hello","confidence":0.92}`))
	}))
	defer srv.Close()

	c, sleeps := testRemoteClient(srv.URL, 30)
	got, err := c.Transcribe(context.Background(), remoteRecording())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Transcribe() = %q, want %q", got, "hello")
	}
	if gets != 4 {
		t.Errorf("poll requests = %d, want exactly 4", gets)
	}
	if *sleeps != 3 {
		t.Errorf("sleeps between polls = %d, want 3", *sleeps)
	}
}

func TestPollExhaustsAttempts(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		atomic.AddInt32(&gets, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, sleeps := testRemoteClient(srv.URL, 5)
	_, err := c.Transcribe(context.Background(), remoteRecording())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Transcribe() error = %v, want ErrTimeout", err)
	}
	if gets != 5 {
		t.Errorf("poll requests = %d, want exactly 5", gets)
	}
	if *sleeps != 4 {
		t.Errorf("sleeps between polls = %d, want 4", *sleeps)
	}
}

func TestServerErrorsRetried(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		if atomic.AddInt32(&gets, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transcript":"done"}`))
	}))
	defer srv.Close()

	c, _ := testRemoteClient(srv.URL, 10)
	got, err := c.Transcribe(context.Background(), remoteRecording())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "done" {
		t.Errorf("Transcribe() = %q, want %q", got, "done")
	}
}

func TestSubmitRejected(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		atomic.AddInt32(&gets, 1)
	}))
	defer srv.Close()

	c, _ := testRemoteClient(srv.URL, 5)
	_, err := c.Transcribe(context.Background(), remoteRecording())
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("Transcribe() error = %v, want ErrSubmitFailed", err)
	}
	if gets != 0 {
		t.Errorf("poll requests after failed submit = %d, want 0", gets)
	}
}

func TestSubmitTransportError(t *testing.T) {
	c, _ := testRemoteClient("http://127.0.0.1:1", 5)
	_, err := c.Transcribe(context.Background(), remoteRecording())
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("Transcribe() error = %v, want ErrSubmitFailed", err)
	}
}

func TestPollCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, _ := testRemoteClient(srv.URL, 30)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Transcribe(ctx, remoteRecording())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Transcribe() error = %v, want context.Canceled", err)
	}
}
