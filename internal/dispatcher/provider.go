package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
)

// HTTPConfig is shared by the JSON collaborators.
type HTTPConfig struct {
	Name          string
	BaseURL       string
	APIKey        string
	APIKeyHeader  string // default "X-Api-Key"
	TimeoutMs     int
	FailThreshold int
	OpenForMs     int
	MaxRetries    int // 0 disables retries
}

// HTTPProvider posts JSON behind a circuit breaker. Retries, when enabled,
// only cover transient statuses and transport errors.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	header  string
	client  HTTPDoer
	br      *MicroBreaker
}

func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 3000
	}

	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 3
	}

	if cfg.OpenForMs <= 0 {
		cfg.OpenForMs = 15000
	}

	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-Api-Key"
	}

	var client HTTPDoer = &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond}
	if cfg.MaxRetries > 0 {
		client = NewRetryClient(client, cfg.MaxRetries)
	}

	return &HTTPProvider{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		header:  cfg.APIKeyHeader,
		client:  client,
		br:      NewMicroBreaker(cfg.FailThreshold, time.Duration(cfg.OpenForMs)*time.Millisecond),
	}
}

func (p *HTTPProvider) Name() string { return p.name }
func (p *HTTPProvider) Ready() bool  { return p.br.Ready() }

// post sends in as JSON and decodes the response into out when out is non-nil.
// Errors come back as *apperr.ProviderError.
func (p *HTTPProvider) post(ctx context.Context, op, path string, in, out any) error {
	err := p.br.Do(func() error { return p.do(ctx, path, in, out) })
	return apperr.Provider(p.name, op, err)
}

func (p *HTTPProvider) do(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set(p.header, p.apiKey)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("path=%s status=%d body=%s", path, res.StatusCode, bytes.TrimSpace(snippet))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
