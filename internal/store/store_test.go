package store

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenInMemory(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testRecording(id string) *AudioRecording {
	return &AudioRecording{
		ID:         id,
		Timestamp:  time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		AudioBytes: []byte{0x52, 0x49, 0x46, 0x46, 1, 2, 3, 4},
		MimeType:   "audio/wav",
		DurationMs: 1500,
	}
}

func TestPutGetRecording(t *testing.T) {
	st := testStore(t)

	rec := testRecording("rec-1")
	if err := st.PutRecording(rec); err != nil {
		t.Fatalf("PutRecording() error = %v", err)
	}

	got, err := st.GetRecording("rec-1")
	if err != nil {
		t.Fatalf("GetRecording() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetRecording() = nil, want recording")
	}
	if got.ID != rec.ID || got.DurationMs != rec.DurationMs || got.MimeType != rec.MimeType {
		t.Errorf("GetRecording() = %+v, want %+v", got, rec)
	}
	if !bytes.Equal(got.AudioBytes, rec.AudioBytes) {
		t.Errorf("AudioBytes = %v, want %v", got.AudioBytes, rec.AudioBytes)
	}
}

func TestGetRecordingMissing(t *testing.T) {
	st := testStore(t)

	got, err := st.GetRecording("nope")
	if err != nil {
		t.Fatalf("GetRecording() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetRecording() = %+v, want nil for missing id", got)
	}
}

func TestSetTranscript(t *testing.T) {
	st := testStore(t)

	rec := testRecording("rec-1")
	if err := st.PutRecording(rec); err != nil {
		t.Fatalf("PutRecording() error = %v", err)
	}

	if err := st.SetTranscript("rec-1", "hello world"); err != nil {
		t.Fatalf("SetTranscript() error = %v", err)
	}

	got, err := st.GetRecording("rec-1")
	if err != nil {
		t.Fatalf("GetRecording() error = %v", err)
	}
	if got.Transcript != "hello world" {
		t.Errorf("Transcript = %q, want %q", got.Transcript, "hello world")
	}
	if !got.IsTranscribed {
		t.Error("IsTranscribed = false, want true")
	}
	// The blob must survive the metadata rewrite.
	if !bytes.Equal(got.AudioBytes, rec.AudioBytes) {
		t.Errorf("AudioBytes changed after transcript update: %v", got.AudioBytes)
	}
}

func TestSetTranscriptMissing(t *testing.T) {
	st := testStore(t)
	if err := st.SetTranscript("nope", "text"); err == nil {
		t.Fatal("SetTranscript() should fail for a missing recording")
	}
}

func TestDeleteRecording(t *testing.T) {
	st := testStore(t)

	if err := st.PutRecording(testRecording("rec-1")); err != nil {
		t.Fatalf("PutRecording() error = %v", err)
	}
	if err := st.DeleteRecording("rec-1"); err != nil {
		t.Fatalf("DeleteRecording() error = %v", err)
	}

	got, err := st.GetRecording("rec-1")
	if err != nil {
		t.Fatalf("GetRecording() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetRecording() after delete = %+v, want nil", got)
	}
}

func TestPutGetDeleteMemo(t *testing.T) {
	st := testStore(t)

	m := &Memo{
		ID:        "memo-1",
		Text:      "buy milk",
		CreatedAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		Type:      MemoText,
	}
	if err := st.PutMemo(m); err != nil {
		t.Fatalf("PutMemo() error = %v", err)
	}

	got, err := st.GetMemo("memo-1")
	if err != nil {
		t.Fatalf("GetMemo() error = %v", err)
	}
	if got == nil || got.Text != "buy milk" || got.Type != MemoText {
		t.Errorf("GetMemo() = %+v, want %+v", got, m)
	}

	if err := st.DeleteMemo("memo-1"); err != nil {
		t.Fatalf("DeleteMemo() error = %v", err)
	}
	got, err = st.GetMemo("memo-1")
	if err != nil {
		t.Fatalf("GetMemo() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetMemo() after delete = %+v, want nil", got)
	}
}

func TestMemos(t *testing.T) {
	st := testStore(t)

	for _, id := range []string{"a", "b", "c"} {
		m := &Memo{ID: id, Text: id, Type: MemoText, CreatedAt: time.Now()}
		if err := st.PutMemo(m); err != nil {
			t.Fatalf("PutMemo(%q) error = %v", id, err)
		}
	}

	memos, err := st.Memos()
	if err != nil {
		t.Fatalf("Memos() error = %v", err)
	}
	if len(memos) != 3 {
		t.Errorf("len(Memos()) = %d, want 3", len(memos))
	}
}

func TestClear(t *testing.T) {
	st := testStore(t)

	if err := st.PutRecording(testRecording("rec-1")); err != nil {
		t.Fatalf("PutRecording() error = %v", err)
	}
	if err := st.PutMemo(&Memo{ID: "memo-1", Text: "x", Type: MemoText}); err != nil {
		t.Fatalf("PutMemo() error = %v", err)
	}
	if _, err := st.ResolveURL("rec-1"); err != nil {
		t.Fatalf("ResolveURL() error = %v", err)
	}

	if err := st.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	memos, err := st.Memos()
	if err != nil {
		t.Fatalf("Memos() error = %v", err)
	}
	if len(memos) != 0 {
		t.Errorf("len(Memos()) after Clear = %d, want 0", len(memos))
	}
	recs, err := st.Recordings()
	if err != nil {
		t.Fatalf("Recordings() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("len(Recordings()) after Clear = %d, want 0", len(recs))
	}
	if st.refs.Len() != 0 {
		t.Errorf("live references after Clear = %d, want 0", st.refs.Len())
	}
}
