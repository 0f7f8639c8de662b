package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/openmark/openmark/internal/plugin"
)

// HTTPSourcePlugin fetches PDFs from an upstream HTTP server. Registers as
// "http". A 404 from the upstream maps to plugin.ErrAbsent; any other
// non-200 status is a backend error.
type HTTPSourcePlugin struct {
	baseURL *url.URL
	headers map[string]string
	client  *http.Client
}

var HTTPDescriptor = plugin.Descriptor{
	Family: plugin.FamilySource,
	Name:   plugin.NameFromType("HTTPSourcePlugin"),
	Factory: func(cfg plugin.Config) (any, error) {
		headers := make(map[string]string)
		if raw, ok := cfg["headers"].(map[string]any); ok {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
		}
		timeout := time.Duration(cfg.Int("timeout_seconds", 30)) * time.Second
		return NewHTTPSourcePlugin(cfg.String("base_url", ""), headers, timeout)
	},
}

func NewHTTPSourcePlugin(baseURL string, headers map[string]string, timeout time.Duration) (*HTTPSourcePlugin, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("http source: base_url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("http source: parsing base_url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSourcePlugin{
		baseURL: u,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *HTTPSourcePlugin) Fetch(ctx context.Context, documentID string) ([]byte, error) {
	resp, err := p.do(ctx, http.MethodGet, documentID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading upstream body: %w", err)
		}
		return data, nil
	case http.StatusNotFound:
		return nil, plugin.ErrAbsent
	default:
		return nil, fmt.Errorf("upstream returned %s", resp.Status)
	}
}

func (p *HTTPSourcePlugin) Exists(ctx context.Context, documentID string) (bool, error) {
	resp, err := p.do(ctx, http.MethodHead, documentID)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("upstream returned %s", resp.Status)
	}
}

func (p *HTTPSourcePlugin) do(ctx context.Context, method, documentID string) (*http.Response, error) {
	ref, err := url.Parse(DocumentFileName(documentID))
	if err != nil {
		return nil, fmt.Errorf("bad document id %q: %w", documentID, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting upstream: %w", err)
	}
	return resp, nil
}
