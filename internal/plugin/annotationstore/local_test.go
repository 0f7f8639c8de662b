package annotationstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openmark/openmark/internal/annotations"
	"github.com/openmark/openmark/internal/plugin"
)

func sampleSet() *annotations.Set {
	return &annotations.Set{
		Notes: []annotations.Note{
			{ID: "n1", Page: 1, X: 10, Y: 20, Content: "check this", Color: "#ffcc00"},
		},
		Highlights: []annotations.Highlight{
			{ID: "h1", Page: 2, Rects: []annotations.Rect{{X: 1, Y: 2, Width: 3, Height: 4}}, Color: "#00ff00"},
		},
	}
}

func newLocalStore(t *testing.T) (*LocalAnnotationsPlugin, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "annotations.json")
	p, err := NewLocalAnnotationsPlugin(path)
	require.NoError(t, err)
	return p, path
}

func TestLocalAnnotations_SaveLoad(t *testing.T) {
	p, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, "alice", "doc1", sampleSet()))

	got, err := p.Load(ctx, "alice", "doc1")
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	require.Equal(t, "check this", got.Notes[0].Content)
	require.Len(t, got.Highlights, 1)
}

func TestLocalAnnotations_LoadAbsentIsEmptySet(t *testing.T) {
	p, _ := newLocalStore(t)

	got, err := p.Load(context.Background(), "alice", "never-saved")
	require.NoError(t, err)
	require.True(t, got.Empty())
	require.NotNil(t, got.Notes, "empty set must serialize as arrays, not null")
	require.NotNil(t, got.Highlights)
}

func TestLocalAnnotations_SaveReplacesWholeSet(t *testing.T) {
	p, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, "alice", "doc1", sampleSet()))
	require.NoError(t, p.Save(ctx, "alice", "doc1", annotations.NewSet()))

	got, err := p.Load(ctx, "alice", "doc1")
	require.NoError(t, err)
	require.True(t, got.Empty(), "a later save overwrites, never merges")
}

func TestLocalAnnotations_IsolatedPerUserAndDocument(t *testing.T) {
	p, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, "alice", "doc1", sampleSet()))

	got, err := p.Load(ctx, "bob", "doc1")
	require.NoError(t, err)
	require.True(t, got.Empty())

	got, err = p.Load(ctx, "alice", "doc2")
	require.NoError(t, err)
	require.True(t, got.Empty())
}

func TestLocalAnnotations_PersistsAcrossRestarts(t *testing.T) {
	p, path := newLocalStore(t)
	ctx := context.Background()
	require.NoError(t, p.Save(ctx, "alice", "doc1", sampleSet()))

	reopened, err := NewLocalAnnotationsPlugin(path)
	require.NoError(t, err)
	got, err := reopened.Load(ctx, "alice", "doc1")
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
}

func TestLocalAnnotations_RejectsInvalidSet(t *testing.T) {
	p, _ := newLocalStore(t)

	bad := &annotations.Set{
		Highlights: []annotations.Highlight{{ID: "h1", Page: 1}}, // no rects
	}
	err := p.Save(context.Background(), "alice", "doc1", bad)
	require.Error(t, err)
}

func TestAnnotationDescriptors(t *testing.T) {
	require.Equal(t, "local", LocalDescriptor.Name)
	require.Equal(t, "mongodb", MongoDescriptor.Name)
	require.Equal(t, "postgresql", PostgresDescriptor.Name)
	for _, d := range []plugin.Descriptor{LocalDescriptor, MongoDescriptor, PostgresDescriptor} {
		require.Equal(t, plugin.FamilyAnnotations, d.Family)
		require.NotNil(t, d.Factory)
	}
}
