package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/makeanavatar/api/internal/config"
	"github.com/makeanavatar/api/internal/model"
)

// VeoClient implements VideoProvider for the official structured
// long-running video generation API.
type VeoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// veoSubmitRequest is the wire format of a generation request
type veoSubmitRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt          string        `json:"prompt"`
	ReferenceImages []veoRefImage `json:"referenceImages,omitempty"`
}

type veoRefImage struct {
	Image         ReferenceImage `json:"image"`
	ReferenceType string         `json:"referenceType"`
}

type veoParameters struct {
	SampleCount int    `json:"sampleCount"`
	Resolution  string `json:"resolution,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// veoOperation is the wire format of the long-running operation resource
type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		GeneratedVideos []struct {
			Video struct {
				URI string `json:"uri"`
			} `json:"video"`
		} `json:"generatedVideos"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewVeoClient creates a client for the official provider. An empty
// apiKey falls back to the configured key.
func NewVeoClient(cfg *config.VeoConfig, apiKey string) *VeoClient {
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	return &VeoClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  apiKey,
		model:   cfg.Model,
	}
}

// Name identifies the provider backend
func (c *VeoClient) Name() model.Provider {
	return model.ProviderOfficial
}

// Submit starts a long-running video generation for one scene
func (c *VeoClient) Submit(ctx context.Context, req *SubmitVideoRequest) (*VideoOperation, error) {
	refs := make([]veoRefImage, 0, len(req.ReferenceImages))
	for _, img := range req.ReferenceImages {
		refs = append(refs, veoRefImage{Image: img, ReferenceType: "asset"})
	}

	body := veoSubmitRequest{
		Instances: []veoInstance{{
			Prompt:          req.Prompt,
			ReferenceImages: refs,
		}},
		Parameters: veoParameters{
			SampleCount: 1,
			Resolution:  req.Resolution,
			AspectRatio: req.AspectRatio,
		},
	}

	endpoint := fmt.Sprintf("/models/%s:predictLongRunning", c.model)
	var op veoOperation
	if err := c.post(ctx, endpoint, body, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, providerErrorf(ErrKindFatal, 0, "provider returned no operation name")
	}

	return &VideoOperation{Name: op.Name}, nil
}

// Poll checks a long-running operation once. A done operation without a
// result reference is a fatal provider failure.
func (c *VeoClient) Poll(ctx context.Context, op *VideoOperation) (*VideoPollResult, error) {
	var res veoOperation
	if err := c.get(ctx, "/"+op.Name, &res); err != nil {
		return nil, err
	}

	if !res.Done {
		return &VideoPollResult{Done: false}, nil
	}

	if res.Error != nil {
		return nil, providerErrorf(ErrKindFatal, res.Error.Code, "video generation failed: %s", res.Error.Message)
	}
	if res.Response == nil || len(res.Response.GeneratedVideos) == 0 || res.Response.GeneratedVideos[0].Video.URI == "" {
		return nil, providerErrorf(ErrKindFatal, 0, "provider returned no asset")
	}

	return &VideoPollResult{
		Done:      true,
		ResultRef: res.Response.GeneratedVideos[0].Video.URI,
	}, nil
}

// Fetch downloads the rendered asset. The caller owns the stream.
func (c *VeoClient) Fetch(ctx context.Context, resultRef string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultRef, nil)
	if err != nil {
		return nil, providerErrorf(ErrKindFetchFailed, 0, "failed to create fetch request: %v", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	log.Printf("[Veo API] → GET %s", resultRef)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providerErrorf(ErrKindFetchFailed, 0, "failed to fetch video: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, providerErrorf(ErrKindFetchFailed, resp.StatusCode, "failed to fetch video: status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// post sends a POST request with JSON body
func (c *VeoClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return providerErrorf(ErrKindFatal, 0, "failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return providerErrorf(ErrKindFatal, 0, "failed to create request: %v", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *VeoClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return providerErrorf(ErrKindFatal, 0, "failed to create request: %v", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and classifies failures
func (c *VeoClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	log.Printf("[Veo API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Veo API] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return providerErrorf(ErrKindTransient, 0, "failed to send request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Veo API] ✗ %s %s — failed to read response: %v", req.Method, req.URL.String(), err)
		return providerErrorf(ErrKindTransient, 0, "failed to read response: %v", err)
	}

	log.Printf("[Veo API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := classifyStatus(resp.StatusCode, string(respBody))
		return providerErrorf(kind, resp.StatusCode, "veo API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return providerErrorf(ErrKindTransient, resp.StatusCode, "failed to unmarshal response: %v", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *VeoClient) IsConfigured() bool {
	return c.apiKey != ""
}
