package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/makeanavatar/api/internal/model"
)

// MockProvider implements VideoProvider for backends without a real
// integration (fal.ai, kie.ai). It uses a trivial synchronous contract:
// Submit waits a fixed delay, the first Poll is already done, and the
// result is a deterministic sample asset. Backoff never triggers.
type MockProvider struct {
	httpClient *http.Client
	provider   model.Provider
	delay      time.Duration
	sampleURL  string
}

// NewMockProvider creates a deterministic provider stand-in
func NewMockProvider(provider model.Provider, delay time.Duration, sampleURL string) *MockProvider {
	return &MockProvider{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		provider:  provider,
		delay:     delay,
		sampleURL: sampleURL,
	}
}

// Name identifies the provider backend
func (p *MockProvider) Name() model.Provider {
	return p.provider
}

// Submit waits the fixed delay and hands back a synthetic handle
func (p *MockProvider) Submit(ctx context.Context, req *SubmitVideoRequest) (*VideoOperation, error) {
	select {
	case <-ctx.Done():
		return nil, providerErrorf(ErrKindTransient, 0, "submission canceled: %v", ctx.Err())
	case <-time.After(p.delay):
	}

	return &VideoOperation{
		Name: fmt.Sprintf("mock/%s/%s", p.provider, uuid.New().String()),
	}, nil
}

// Poll always reports the operation as done
func (p *MockProvider) Poll(ctx context.Context, op *VideoOperation) (*VideoPollResult, error) {
	return &VideoPollResult{
		Done:      true,
		ResultRef: p.sampleURL,
	}, nil
}

// Fetch downloads the sample asset
func (p *MockProvider) Fetch(ctx context.Context, resultRef string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultRef, nil)
	if err != nil {
		return nil, providerErrorf(ErrKindFetchFailed, 0, "failed to create fetch request: %v", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, providerErrorf(ErrKindFetchFailed, 0, "failed to fetch video: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, providerErrorf(ErrKindFetchFailed, resp.StatusCode, "failed to fetch video: status %d", resp.StatusCode)
	}

	return resp.Body, nil
}
