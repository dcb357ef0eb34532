// Package memo combines recordings and transcripts into persisted
// memos and maintains the live in-memory list the UI renders from.
package memo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voicememo/voicememo/internal/store"
	"github.com/voicememo/voicememo/internal/transcribe"
)

// ErrLimitReached means the active-memo cap is hit; the caller must
// delete a memo before adding another.
var ErrLimitReached = errors.New("memo limit reached")

// ErrNotFound means no memo has the given id.
var ErrNotFound = errors.New("memo not found")

// failedPlaceholder is the memo text used when transcription fails
// after a successful submit. The audio itself is already persisted, so
// the memo still carries a playable recording.
const failedPlaceholder = "transcription failed"

// Stats summarizes the live memo list. AudioDurationMs is the summed
// duration of every owned recording still present in the store.
type Stats struct {
	Total           int
	Text            int
	Audio           int
	Mixed           int
	AudioDurationMs int64
}

// Aggregator owns the memo lifecycle. All mutations go through it; the
// persisted state and the in-memory list are kept in step. Multiple
// transcriptions may be in flight at once, keyed by recording id, and
// each can be cancelled independently.
type Aggregator struct {
	store    *store.Store
	backend  transcribe.Backend
	logger   zerolog.Logger
	clock    func() time.Time
	maxMemos int

	mu      sync.Mutex
	memos   []*store.Memo
	cancels map[string]context.CancelFunc
}

// NewAggregator creates an aggregator and loads persisted memos. A load
// failure degrades to an empty list rather than failing construction.
func NewAggregator(st *store.Store, backend transcribe.Backend, maxMemos int, logger zerolog.Logger) *Aggregator {
	if maxMemos <= 0 {
		maxMemos = 15
	}
	a := &Aggregator{
		store:    st,
		backend:  backend,
		logger:   logger.With().Str("component", "memo").Logger(),
		clock:    time.Now,
		maxMemos: maxMemos,
		cancels:  make(map[string]context.CancelFunc),
	}

	memos, err := st.Memos()
	if err != nil {
		a.logger.Warn().Err(err).Msg("loading memos failed, starting empty")
		return a
	}
	a.memos = memos
	a.UpdateSizes()
	a.logger.Info().Int("count", len(memos)).Msg("memos loaded")
	return a
}

// AddTextMemo creates a memo holding only text.
func (a *Aggregator) AddTextMemo(text string) (*store.Memo, error) {
	if err := a.checkCap(); err != nil {
		return nil, err
	}
	return a.insert(text, store.MemoText, "")
}

// AddAudioMemo transcribes the recording and creates a memo from the
// result. The cap is enforced before any work begins and the recording
// is persisted before transcription starts, so a failed transcription
// never loses audio. A submit failure creates no memo; other failures
// create one with placeholder text.
func (a *Aggregator) AddAudioMemo(ctx context.Context, rec *store.AudioRecording) (*store.Memo, error) {
	return a.addWithAudio(ctx, "", store.MemoAudio, rec)
}

// AddMixedMemo is AddAudioMemo with user text prepended to the
// transcript.
func (a *Aggregator) AddMixedMemo(ctx context.Context, text string, rec *store.AudioRecording) (*store.Memo, error) {
	return a.addWithAudio(ctx, text, store.MemoMixed, rec)
}

func (a *Aggregator) addWithAudio(ctx context.Context, text string, typ store.MemoType, rec *store.AudioRecording) (*store.Memo, error) {
	if err := a.checkCap(); err != nil {
		return nil, err
	}
	if err := a.store.PutRecording(rec); err != nil {
		return nil, fmt.Errorf("persisting recording %s: %w", rec.ID, err)
	}

	tctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancels[rec.ID] = cancel
	a.mu.Unlock()
	defer func() {
		cancel()
		a.mu.Lock()
		delete(a.cancels, rec.ID)
		a.mu.Unlock()
	}()

	transcript, err := a.backend.Transcribe(tctx, rec)
	switch {
	case err == nil:
		if err := a.store.SetTranscript(rec.ID, transcript); err != nil {
			a.logger.Warn().Err(err).Str("id", rec.ID).Msg("saving transcript failed")
		}
	case errors.Is(err, transcribe.ErrSubmitFailed):
		// The recording stays persisted for manual retry, but no memo
		// is created on the caller's behalf.
		a.logger.Error().Err(err).Str("id", rec.ID).Msg("transcription submit failed")
		return nil, err
	case errors.Is(err, context.Canceled):
		a.logger.Debug().Str("id", rec.ID).Msg("transcription cancelled")
		return nil, err
	default:
		a.logger.Error().Err(err).Str("id", rec.ID).Msg("transcription failed")
		transcript = failedPlaceholder
	}

	body := transcript
	if text != "" {
		body = strings.TrimSpace(text + "\n" + transcript)
	}
	return a.insert(body, typ, rec.ID)
}

// Cancel aborts the in-flight transcription for a recording. It
// reports whether a transcription was pending for that id.
func (a *Aggregator) Cancel(recordingID string) bool {
	a.mu.Lock()
	cancel := a.cancels[recordingID]
	a.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Edit replaces a memo's text.
func (a *Aggregator) Edit(id, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.findLocked(id)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.Text = text
	if err := a.store.PutMemo(m); err != nil {
		return fmt.Errorf("persisting memo %s: %w", id, err)
	}
	return nil
}

// Delete removes a memo, its owned recording's persisted bytes, and
// any cached playback reference. An in-flight transcription for the
// owned recording is cancelled.
func (a *Aggregator) Delete(id string) error {
	a.mu.Lock()
	m := a.findLocked(id)
	if m == nil {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	audioID := m.AudioID
	cancel := a.cancels[audioID]
	for i, cur := range a.memos {
		if cur.ID == id {
			a.memos = append(a.memos[:i], a.memos[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := a.store.DeleteMemo(id); err != nil {
		return fmt.Errorf("deleting memo %s: %w", id, err)
	}
	if audioID != "" {
		if err := a.store.DeleteRecording(audioID); err != nil {
			a.logger.Warn().Err(err).Str("id", audioID).Msg("deleting recording failed")
		}
	}
	a.logger.Info().Str("id", id).Msg("memo deleted")
	return nil
}

// ClearAll removes every memo and recording.
func (a *Aggregator) ClearAll() error {
	a.mu.Lock()
	for _, cancel := range a.cancels {
		cancel()
	}
	a.cancels = make(map[string]context.CancelFunc)
	a.memos = nil
	a.mu.Unlock()

	if err := a.store.Clear(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	return nil
}

// UpdateSizes recomputes every memo's display size from its age. Sizes
// are derived, never authoritative, so this can run at any time.
func (a *Aggregator) UpdateSizes() {
	now := a.clock()
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.memos {
		m.CurrentSize = CalcSize(now.Sub(m.CreatedAt))
	}
}

// Get returns the memo with the given id, or nil.
func (a *Aggregator) Get(id string) *store.Memo {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m := a.findLocked(id); m != nil {
		c := *m
		return &c
	}
	return nil
}

// Sorted returns a copy of the memo list in the given order.
func (a *Aggregator) Sorted(order store.SortOrder) []*store.Memo {
	memos := a.snapshot()
	switch order {
	case store.SortOldestFirst:
		sort.SliceStable(memos, func(i, j int) bool {
			return memos[i].CreatedAt.Before(memos[j].CreatedAt)
		})
	case store.SortAlphabetical:
		sort.SliceStable(memos, func(i, j int) bool {
			return strings.ToLower(memos[i].Text) < strings.ToLower(memos[j].Text)
		})
	case store.SortByType:
		sort.SliceStable(memos, func(i, j int) bool {
			ri, rj := typeRank(memos[i].Type), typeRank(memos[j].Type)
			if ri != rj {
				return ri < rj
			}
			return memos[i].CreatedAt.After(memos[j].CreatedAt)
		})
	case store.SortBySize:
		sort.SliceStable(memos, func(i, j int) bool {
			return memos[i].CurrentSize > memos[j].CurrentSize
		})
	default: // SortNewestFirst
		sort.SliceStable(memos, func(i, j int) bool {
			return memos[i].CreatedAt.After(memos[j].CreatedAt)
		})
	}
	return memos
}

// Search returns memos whose text contains the query,
// case-insensitively, newest first.
func (a *Aggregator) Search(query string) []*store.Memo {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return a.Sorted(store.SortNewestFirst)
	}
	var out []*store.Memo
	for _, m := range a.Sorted(store.SortNewestFirst) {
		if strings.Contains(strings.ToLower(m.Text), q) {
			out = append(out, m)
		}
	}
	return out
}

// ByType returns memos of one type, newest first.
func (a *Aggregator) ByType(typ store.MemoType) []*store.Memo {
	var out []*store.Memo
	for _, m := range a.Sorted(store.SortNewestFirst) {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

// Stats counts the live memos by type.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	s := Stats{Total: len(a.memos)}
	var audioIDs []string
	for _, m := range a.memos {
		switch m.Type {
		case store.MemoText:
			s.Text++
		case store.MemoAudio:
			s.Audio++
		case store.MemoMixed:
			s.Mixed++
		}
		if m.AudioID != "" {
			audioIDs = append(audioIDs, m.AudioID)
		}
	}
	a.mu.Unlock()

	for _, id := range audioIDs {
		rec, err := a.store.GetRecording(id)
		if err != nil || rec == nil {
			continue
		}
		s.AudioDurationMs += rec.DurationMs
	}
	return s
}

// Count returns the number of live memos.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.memos)
}

func (a *Aggregator) checkCap() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.memos) >= a.maxMemos {
		return fmt.Errorf("%w: %d memos active", ErrLimitReached, len(a.memos))
	}
	return nil
}

func (a *Aggregator) insert(text string, typ store.MemoType, audioID string) (*store.Memo, error) {
	now := a.clock()
	m := &store.Memo{
		ID:          uuid.NewString(),
		Text:        text,
		CreatedAt:   now,
		CurrentSize: CalcSize(0),
		Type:        typ,
		AudioID:     audioID,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.memos) >= a.maxMemos {
		return nil, fmt.Errorf("%w: %d memos active", ErrLimitReached, len(a.memos))
	}
	if err := a.store.PutMemo(m); err != nil {
		return nil, fmt.Errorf("persisting memo: %w", err)
	}
	a.memos = append(a.memos, m)
	a.logger.Info().Str("id", m.ID).Str("type", string(typ)).Msg("memo created")
	return m, nil
}

func (a *Aggregator) findLocked(id string) *store.Memo {
	for _, m := range a.memos {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (a *Aggregator) snapshot() []*store.Memo {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*store.Memo, len(a.memos))
	for i, m := range a.memos {
		c := *m
		out[i] = &c
	}
	return out
}

func typeRank(t store.MemoType) int {
	switch t {
	case store.MemoAudio:
		return 0
	case store.MemoMixed:
		return 1
	default:
		return 2
	}
}
