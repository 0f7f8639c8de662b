// Package annotationstore holds the built-in annotation-store plugins.
// Loading annotations that were never saved yields an empty set, not an
// error; a save replaces the whole set for that (user, document) pair.
package annotationstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openmark/openmark/internal/annotations"
	"github.com/openmark/openmark/internal/plugin"
)

// LocalAnnotationsPlugin persists annotation sets in one JSON file keyed by
// "user:documentID". Registers as "local".
type LocalAnnotationsPlugin struct {
	path string

	mu      sync.Mutex
	entries map[string]*envelope
}

type envelope struct {
	Annotations *annotations.Set `json:"annotations"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

var LocalDescriptor = plugin.Descriptor{
	Family: plugin.FamilyAnnotations,
	Name:   plugin.NameFromType("LocalAnnotationsPlugin"),
	Factory: func(cfg plugin.Config) (any, error) {
		return NewLocalAnnotationsPlugin(cfg.String("storage_path", "./data/annotations.json"))
	},
}

func NewLocalAnnotationsPlugin(path string) (*LocalAnnotationsPlugin, error) {
	p := &LocalAnnotationsPlugin{path: path, entries: make(map[string]*envelope)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading annotations file: %w", err)
	}
	if err := json.Unmarshal(data, &p.entries); err != nil {
		return nil, fmt.Errorf("parsing annotations file %s: %w", path, err)
	}
	return p, nil
}

func key(user, documentID string) string { return user + ":" + documentID }

func (p *LocalAnnotationsPlugin) Save(ctx context.Context, user, documentID string, set *annotations.Set) error {
	if err := set.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	k := key(user, documentID)
	if prev, ok := p.entries[k]; ok {
		p.entries[k] = &envelope{Annotations: set, CreatedAt: prev.CreatedAt, UpdatedAt: now}
	} else {
		p.entries[k] = &envelope{Annotations: set, CreatedAt: now, UpdatedAt: now}
	}
	return p.flushLocked()
}

func (p *LocalAnnotationsPlugin) Load(ctx context.Context, user, documentID string) (*annotations.Set, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key(user, documentID)]
	if !ok || e.Annotations == nil {
		return annotations.NewSet(), nil
	}
	return e.Annotations, nil
}

func (p *LocalAnnotationsPlugin) flushLocked() error {
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(p.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".annotations-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}
