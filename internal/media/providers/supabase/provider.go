// Package supabase implements the media storage provider over the Supabase
// storage REST API.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const uploadTimeout = 30 * time.Second

// Provider uploads objects to a Supabase storage bucket.
type Provider struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
}

// New creates a Supabase storage provider.
func New(baseURL, apiKey, bucket string) (*Provider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase base url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("supabase api key is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("supabase bucket is required")
	}
	return &Provider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: uploadTimeout},
	}, nil
}

// Upload stores the object and returns its public URL.
func (p *Provider) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	path = strings.TrimLeft(path, "/")
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", p.baseURL, p.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return p.PublicURL(path), nil
}

// PublicURL returns the public object URL for a bucket path.
func (p *Provider) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", p.baseURL, p.bucket, strings.TrimLeft(path, "/"))
}
