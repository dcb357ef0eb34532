// Package store persists audio recordings and memos in a local badger
// database. Recording metadata and raw audio bytes live in separate
// keyspaces joined by the recording id, so rewriting metadata (e.g. on a
// transcript update) never duplicates the blob. The store also owns the
// stable playable-reference cache for recorded audio.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when the backing database cannot be opened.
// Callers are expected to degrade to an empty in-memory state rather than
// fail the whole application.
var ErrUnavailable = errors.New("store: storage unavailable")

const (
	audioMetaPrefix = "audio:meta:"
	audioBlobPrefix = "audio:blob:"
	memoPrefix      = "memo:"
)

// Store is a durable key-value store for recordings and memos.
type Store struct {
	db     *badger.DB
	refs   *RefCache
	logger zerolog.Logger
}

// Open opens (or creates) the store under dir. Blob reference files are
// materialized under dir/blobs.
func Open(dir string, logger zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Join(dir, "db"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Store{
		db:     db,
		refs:   NewRefCache(filepath.Join(dir, "blobs")),
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// OpenInMemory opens a non-durable store. Used by tests and as the
// degraded mode when the on-disk database cannot be opened.
func OpenInMemory(dir string, logger zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Store{
		db:     db,
		refs:   NewRefCache(filepath.Join(dir, "blobs")),
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Close releases the database and revokes every live playable reference.
func (s *Store) Close() error {
	s.refs.Clear()
	return s.db.Close()
}

// PutRecording writes a recording. Metadata and audio bytes are stored
// under separate keys.
func (s *Store) PutRecording(rec *AudioRecording) error {
	meta, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding recording %s: %w", rec.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(audioMetaPrefix+rec.ID), meta); err != nil {
			return err
		}
		return txn.Set([]byte(audioBlobPrefix+rec.ID), rec.AudioBytes)
	})
}

// GetRecording returns the recording with the given id, or nil when absent.
func (s *Store) GetRecording(id string) (*AudioRecording, error) {
	var rec *AudioRecording
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(audioMetaPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rec = &AudioRecording{}
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, rec) }); err != nil {
			return err
		}
		blob, err := txn.Get([]byte(audioBlobPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return blob.Value(func(v []byte) error {
			rec.AudioBytes = bytes.Clone(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading recording %s: %w", id, err)
	}
	return rec, nil
}

// Recordings returns every stored recording. Order is unspecified.
func (s *Store) Recordings() ([]*AudioRecording, error) {
	ids, err := s.keysWithPrefix(audioMetaPrefix)
	if err != nil {
		return nil, err
	}
	recs := make([]*AudioRecording, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetRecording(id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// SetTranscript marks a recording transcribed. Only the metadata key is
// rewritten; the blob stays untouched.
func (s *Store) SetTranscript(id, transcript string) error {
	rec, err := s.GetRecording(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("recording %s not found", id)
	}
	rec.Transcript = transcript
	rec.IsTranscribed = true
	meta, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding recording %s: %w", id, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(audioMetaPrefix+id), meta)
	})
}

// DeleteRecording removes a recording's metadata, bytes, and playable
// reference.
func (s *Store) DeleteRecording(id string) error {
	s.refs.Invalidate(id)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(audioMetaPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(audioBlobPrefix + id))
	})
}

// PutMemo writes a memo record.
func (s *Store) PutMemo(m *Memo) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding memo %s: %w", m.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(memoPrefix+m.ID), data)
	})
}

// GetMemo returns the memo with the given id, or nil when absent.
func (s *Store) GetMemo(id string) (*Memo, error) {
	var m *Memo
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(memoPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		m = &Memo{}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, m) })
	})
	if err != nil {
		return nil, fmt.Errorf("loading memo %s: %w", id, err)
	}
	return m, nil
}

// Memos returns every stored memo. Order is unspecified; callers sort.
func (s *Store) Memos() ([]*Memo, error) {
	var memos []*Memo
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(memoPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			m := &Memo{}
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, m) }); err != nil {
				return err
			}
			memos = append(memos, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing memos: %w", err)
	}
	return memos, nil
}

// DeleteMemo removes a memo record only. The owned recording, if any, is
// the caller's responsibility.
func (s *Store) DeleteMemo(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(memoPrefix + id))
	})
}

// Clear drops every recording and memo and revokes all references.
func (s *Store) Clear() error {
	s.refs.Clear()
	return s.db.DropAll()
}

// ResolveURL returns a stable playable URL for a recording's audio bytes.
// Repeated calls for the same id return the identical URL until the
// recording is deleted or the store is cleared.
func (s *Store) ResolveURL(id string) (string, error) {
	rec, err := s.GetRecording(id)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("recording %s not found", id)
	}
	return s.refs.Resolve(id, rec.AudioBytes, rec.MimeType)
}

func (s *Store) keysWithPrefix(prefix string) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(p):]))
		}
		return nil
	})
	return ids, err
}
