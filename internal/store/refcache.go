package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RefCache maps a recording id to a stable playable reference: a file://
// URL pointing at a blob materialized on disk exactly once. Handing out a
// fresh reference on every read would invalidate anything still holding
// the previous one (a paused player, a pending download), so the cache
// returns the same URL for a given id until the id is invalidated.
type RefCache struct {
	dir string

	mu   sync.Mutex
	refs map[string]string // recording id -> file:// URL
}

// NewRefCache creates a cache that materializes blobs under dir.
func NewRefCache(dir string) *RefCache {
	return &RefCache{
		dir:  dir,
		refs: make(map[string]string),
	}
}

// Resolve returns the cached URL for id, creating one on first use. The
// file name carries a per-resolution nonce, so a reference created after
// delete-and-reinsert is distinct from the revoked one.
func (c *RefCache) Resolve(id string, audio []byte, mimeType string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if url, ok := c.refs[id]; ok {
		return url, nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating blob dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s%s", id, uuid.NewString()[:8], extForMime(mimeType))
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("materializing blob %s: %w", id, err)
	}

	url := "file://" + filepath.ToSlash(path)
	c.refs[id] = url
	return url, nil
}

// Invalidate revokes the reference for id, removing the backing file.
// A no-op when no reference exists.
func (c *RefCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revokeLocked(id)
}

// Clear revokes every live reference.
func (c *RefCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.refs {
		c.revokeLocked(id)
	}
}

// Len reports the number of live references.
func (c *RefCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.refs)
}

func (c *RefCache) revokeLocked(id string) {
	url, ok := c.refs[id]
	if !ok {
		return
	}
	os.Remove(strings.TrimPrefix(url, "file://"))
	delete(c.refs, id)
}

func extForMime(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"):
		return ".ogg"
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	default:
		return ".bin"
	}
}
