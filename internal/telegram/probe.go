package telegram

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const defaultProbeTimeout = time.Second

// Probe checks whether a sibling dispatch worker is reachable. It exists so
// two processes never long-poll the same bot token concurrently: when the
// sibling answers its health endpoint, this process suppresses local polling.
type Probe struct {
	healthURL string
	client    *http.Client
}

// NewProbe builds a probe against serviceURL's /health endpoint. An empty
// serviceURL yields a probe that always reports unavailable.
func NewProbe(serviceURL string, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	p := &Probe{client: &http.Client{Timeout: timeout}}
	if trimmed := strings.TrimRight(strings.TrimSpace(serviceURL), "/"); trimmed != "" {
		p.healthURL = trimmed + "/health"
	}
	return p
}

// Available reports whether the sibling service answered 200 within the
// timeout. Any error, timeout or non-200 resolves to false; it never returns
// an error.
func (p *Probe) Available(ctx context.Context) bool {
	if p == nil || p.healthURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
