// Package source holds the built-in document-source plugins. A missing
// document is plugin.ErrAbsent from Fetch and (false, nil) from Exists;
// everything else is a backend error.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmark/openmark/internal/plugin"
	"github.com/openmark/openmark/pkg/logger"
)

// LocalSourcePlugin serves PDFs from a directory on the local filesystem.
// Registers as "local". Document ids may contain subdirectory components
// ("2024/invoice_001") but must not escape the base path.
type LocalSourcePlugin struct {
	basePath string
}

var LocalDescriptor = plugin.Descriptor{
	Family: plugin.FamilySource,
	Name:   plugin.NameFromType("LocalSourcePlugin"),
	Factory: func(cfg plugin.Config) (any, error) {
		return NewLocalSourcePlugin(cfg.String("base_path", "./data/pdfs"))
	},
}

func NewLocalSourcePlugin(basePath string) (*LocalSourcePlugin, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolving base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating base path: %w", err)
	}
	return &LocalSourcePlugin{basePath: abs}, nil
}

func (p *LocalSourcePlugin) Fetch(ctx context.Context, documentID string) ([]byte, error) {
	path, err := p.resolve(documentID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, plugin.ErrAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return data, nil
}

func (p *LocalSourcePlugin) Exists(ctx context.Context, documentID string) (bool, error) {
	path, err := p.resolve(documentID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// resolve maps a document id to an absolute file path and rejects ids that
// would escape the base directory.
func (p *LocalSourcePlugin) resolve(documentID string) (string, error) {
	path := filepath.Join(p.basePath, DocumentFileName(documentID))
	if path != p.basePath && !strings.HasPrefix(path, p.basePath+string(filepath.Separator)) {
		logger.Warnf("rejected document id escaping base path: %q", documentID)
		return "", plugin.ErrAbsent
	}
	return path, nil
}

// DocumentFileName appends the .pdf extension unless already present.
func DocumentFileName(documentID string) string {
	if strings.HasSuffix(strings.ToLower(documentID), ".pdf") {
		return documentID
	}
	return documentID + ".pdf"
}
