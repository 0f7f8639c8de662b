// Package documents manages the temp-document cache: when access to a
// document is granted, the PDF is fetched from the configured source plugin
// and materialized under an opaque temp id; the viewer later streams it by
// that id only. Cached files expire on the cache duration, independently of
// the access token's lifetime.
package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openmark/openmark/internal/plugin"
	"github.com/openmark/openmark/pkg/logger"
	"github.com/openmark/openmark/pkg/metrics"
)

var (
	// ErrNotFound means the temp id is unknown (never materialized, or
	// already cleaned up).
	ErrNotFound = errors.New("document not found")

	// ErrExpired means the cache entry outlived its duration.
	ErrExpired = errors.New("document expired")

	// ErrForbidden means the temp id belongs to a different user.
	ErrForbidden = errors.New("document access forbidden")
)

type entry struct {
	documentID string
	user       string
	path       string
	expiresAt  time.Time
}

// Service materializes source documents into the cache directory and hands
// out file paths keyed by temp id. Safe for concurrent use; the source
// plugin is never called while the lock is held.
type Service struct {
	source   plugin.Source
	cacheDir string
	duration time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	now func() time.Time
}

func NewService(source plugin.Source, cacheDir string, duration time.Duration) (*Service, error) {
	abs, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Service{
		source:   source,
		cacheDir: abs,
		duration: duration,
		entries:  make(map[string]*entry),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Exists asks the source plugin whether a document can be served at all.
func (s *Service) Exists(ctx context.Context, documentID string) (bool, error) {
	return s.source.Exists(ctx, documentID)
}

// Materialize fetches the document from the source and writes it to the
// cache under the given temp id, owned by the given user. The cache entry
// expires after the configured duration.
func (s *Service) Materialize(ctx context.Context, tempID, documentID, user string) error {
	data, err := s.source.Fetch(ctx, documentID)
	if err != nil {
		if errors.Is(err, plugin.ErrAbsent) {
			return ErrNotFound
		}
		return fmt.Errorf("fetching document %q: %w", documentID, err)
	}

	path := filepath.Join(s.cacheDir, tempID+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("caching document: %w", err)
	}

	s.mu.Lock()
	s.entries[tempID] = &entry{
		documentID: documentID,
		user:       user,
		path:       path,
		expiresAt:  s.now().Add(s.duration),
	}
	s.mu.Unlock()

	metrics.DocumentsServed.Inc()
	logger.Debugf("materialized %q as %s for %q", documentID, tempID, user)
	return nil
}

// Open resolves a temp id to its cached file path after checking ownership
// and expiry. The expiry check is strict: an entry reaching its expiry
// instant is already gone.
func (s *Service) Open(user, tempID string) (string, error) {
	s.mu.Lock()
	e, ok := s.entries[tempID]
	s.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}
	if e.user != user {
		return "", ErrForbidden
	}
	if !s.now().Before(e.expiresAt) {
		return "", ErrExpired
	}
	return e.path, nil
}

// DocumentID reports which source document a temp id maps to, for
// annotation persistence keyed by the real document id.
func (s *Service) DocumentID(user, tempID string) (string, error) {
	s.mu.Lock()
	e, ok := s.entries[tempID]
	s.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}
	if e.user != user {
		return "", ErrForbidden
	}
	return e.documentID, nil
}

// RemoveExpired drops expired entries and deletes their cached files, plus
// any orphaned temp files in the cache directory that no entry claims
// (leftovers from a previous process).
func (s *Service) RemoveExpired() int {
	now := s.now()

	s.mu.Lock()
	var victims []*entry
	live := make(map[string]bool, len(s.entries))
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			victims = append(victims, e)
			delete(s.entries, id)
			continue
		}
		live[filepath.Base(e.path)] = true
	}
	s.mu.Unlock()

	for _, e := range victims {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			logger.Warnf("removing cached document %s: %v", e.path, err)
		}
	}

	removed := len(victims)
	removed += s.removeOrphans(live)
	if removed > 0 {
		logger.Infof("cache cleanup removed %d document(s)", removed)
	}
	return removed
}

// removeOrphans deletes temp_*.pdf files in the cache directory that belong
// to no live entry (leftovers from a previous process).
func (s *Service) removeOrphans(live map[string]bool) int {
	matches, err := filepath.Glob(filepath.Join(s.cacheDir, "temp_*.pdf"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		if live[filepath.Base(path)] || s.claimed(path) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed
}

// claimed re-checks under the lock whether any entry owns the file, so a
// document materialized mid-sweep is never removed.
func (s *Service) claimed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.path == path {
			return true
		}
	}
	return false
}
