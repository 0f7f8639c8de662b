package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openmark/openmark/internal/plugin"
)

var samplePDF = []byte("%PDF-1.4 test document body")

func newLocalSource(t *testing.T) (*LocalSourcePlugin, string) {
	t.Helper()
	dir := t.TempDir()
	p, err := NewLocalSourcePlugin(dir)
	require.NoError(t, err)
	return p, dir
}

func TestLocalSource_FetchAndExists(t *testing.T) {
	p, dir := newLocalSource(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), samplePDF, 0o644))
	ctx := context.Background()

	// with and without the .pdf extension
	for _, id := range []string{"report", "report.pdf"} {
		data, err := p.Fetch(ctx, id)
		require.NoError(t, err, "id %q", id)
		require.Equal(t, samplePDF, data)

		ok, err := p.Exists(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestLocalSource_SubdirectoryIDs(t *testing.T) {
	p, dir := newLocalSource(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2024"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024", "invoice.pdf"), samplePDF, 0o644))

	data, err := p.Fetch(context.Background(), "2024/invoice")
	require.NoError(t, err)
	require.Equal(t, samplePDF, data)
}

func TestLocalSource_MissingIsAbsent(t *testing.T) {
	p, _ := newLocalSource(t)
	ctx := context.Background()

	_, err := p.Fetch(ctx, "nope")
	require.ErrorIs(t, err, plugin.ErrAbsent)

	ok, err := p.Exists(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalSource_RejectsPathTraversal(t *testing.T) {
	p, dir := newLocalSource(t)
	outside := filepath.Join(filepath.Dir(dir), "outside.pdf")
	require.NoError(t, os.WriteFile(outside, samplePDF, 0o644))
	t.Cleanup(func() { os.Remove(outside) })
	ctx := context.Background()

	_, err := p.Fetch(ctx, "../outside")
	require.ErrorIs(t, err, plugin.ErrAbsent, "traversal must look like a missing document")

	_, err = p.Fetch(ctx, "a/../../outside")
	require.ErrorIs(t, err, plugin.ErrAbsent)
}

func TestDocumentFileName(t *testing.T) {
	require.Equal(t, "a.pdf", DocumentFileName("a"))
	require.Equal(t, "a.pdf", DocumentFileName("a.pdf"))
	require.Equal(t, "a.PDF", DocumentFileName("a.PDF"))
	require.Equal(t, "2024/b.pdf", DocumentFileName("2024/b"))
}

func TestHTTPSource_FetchAndExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "k1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/docs/report.pdf":
			if r.Method == http.MethodGet {
				w.Write(samplePDF)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := NewHTTPSourcePlugin(srv.URL+"/docs/", map[string]string{"X-Api-Key": "k1"}, 5*time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	data, err := p.Fetch(ctx, "report")
	require.NoError(t, err)
	require.Equal(t, samplePDF, data)

	ok, err := p.Exists(ctx, "report")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = p.Fetch(ctx, "missing")
	require.ErrorIs(t, err, plugin.ErrAbsent)

	ok, err = p.Exists(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHTTPSource_UpstreamErrorIsNotAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewHTTPSourcePlugin(srv.URL, nil, 5*time.Second)
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), "doc")
	require.Error(t, err)
	require.NotErrorIs(t, err, plugin.ErrAbsent)
}

func TestHTTPSource_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPSourcePlugin("", nil, 0)
	require.Error(t, err)
}

func TestSourceDescriptors(t *testing.T) {
	require.Equal(t, "local", LocalDescriptor.Name)
	require.Equal(t, "http", HTTPDescriptor.Name)
	require.Equal(t, "s3", S3Descriptor.Name)
	for _, d := range []plugin.Descriptor{LocalDescriptor, HTTPDescriptor, S3Descriptor} {
		require.Equal(t, plugin.FamilySource, d.Family)
		require.NotNil(t, d.Factory)
	}
}
