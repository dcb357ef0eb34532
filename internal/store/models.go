package store

import "time"

// AudioRecording is one finished capture. The struct is immutable after
// creation except for the transcript fields, which are written exactly once
// per transcription attempt via SetTranscript.
type AudioRecording struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	AudioBytes    []byte    `json:"-"`
	MimeType      string    `json:"mime_type"`
	DurationMs    int64     `json:"duration_ms"`
	Transcript    string    `json:"transcript,omitempty"`
	IsTranscribed bool      `json:"is_transcribed"`
}

// MemoType discriminates how a memo was created.
type MemoType string

const (
	MemoText  MemoType = "text"
	MemoAudio MemoType = "audio"
	MemoMixed MemoType = "mixed"
)

// Memo is a persisted user note. AudioID is the foreign key into the
// recording keyspace; empty for text-only memos. CurrentSize is derived
// from age and is rewritten on each size refresh, never authoritative.
type Memo struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	CurrentSize float64   `json:"current_size"`
	Type        MemoType  `json:"type"`
	AudioID     string    `json:"audio_id,omitempty"`
}

// SortOrder selects how memo listings are ordered.
type SortOrder string

const (
	SortNewestFirst  SortOrder = "newest-first"
	SortOldestFirst  SortOrder = "oldest-first"
	SortAlphabetical SortOrder = "alphabetical"
	SortByType       SortOrder = "type"
	SortBySize       SortOrder = "size"
)
