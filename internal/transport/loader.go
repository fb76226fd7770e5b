package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"ad-orchestrator/internal/orchestrator"
)

// maxCreativeSize caps the creative document read from a locator.
const maxCreativeSize = 1 << 20

// CreativeLoader fetches creative documents over HTTP.
type CreativeLoader struct {
	client *http.Client
}

// NewCreativeLoader returns a CreativeLoader. A nil client means http.DefaultClient.
func NewCreativeLoader(client *http.Client) *CreativeLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &CreativeLoader{client: client}
}

// Fetch implements orchestrator.Loader.
func (l *CreativeLoader) Fetch(ctx context.Context, locator string) (orchestrator.ResolvedAd, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return orchestrator.ResolvedAd{}, fmt.Errorf("build creative request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return orchestrator.ResolvedAd{}, fmt.Errorf("fetch creative %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return orchestrator.ResolvedAd{}, fmt.Errorf("fetch creative %s: unexpected status %d", locator, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCreativeSize))
	if err != nil {
		return orchestrator.ResolvedAd{}, fmt.Errorf("read creative %s: %w", locator, err)
	}
	return orchestrator.DecodeCreative(body)
}
