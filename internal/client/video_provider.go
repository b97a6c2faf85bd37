package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/makeanavatar/api/internal/model"
)

// VideoProvider defines the contract every render backend implements.
// Submit starts a long-running generation and returns an opaque
// operation handle; Poll reports whether the operation finished and, if
// so, the result reference; Fetch retrieves the rendered asset bytes.
type VideoProvider interface {
	Submit(ctx context.Context, req *SubmitVideoRequest) (*VideoOperation, error)
	Poll(ctx context.Context, op *VideoOperation) (*VideoPollResult, error)
	Fetch(ctx context.Context, resultRef string) (io.ReadCloser, error)
	Name() model.Provider
}

// ReferenceImage is one identity-locking reference asset sent with a submission
type ReferenceImage struct {
	Base64Data string `json:"bytesBase64Encoded"`
	MimeType   string `json:"mimeType"`
}

// SubmitVideoRequest carries one scene's render inputs
type SubmitVideoRequest struct {
	Prompt          string
	ReferenceImages []ReferenceImage
	Resolution      string
	AspectRatio     string
}

// VideoOperation is the opaque handle to an in-flight render task
type VideoOperation struct {
	Name string
}

// VideoPollResult reports the state of a polled operation.
// ResultRef is set only when Done is true.
type VideoPollResult struct {
	Done      bool
	ResultRef string
}

// Provider error kinds
type ErrorKind int

const (
	ErrKindRateLimited ErrorKind = iota // quota hit, retryable after cool-down
	ErrKindTransient                    // network hiccup, retryable immediately
	ErrKindFatal                        // validation or provider failure, not retryable
	ErrKindFetchFailed                  // asset download failed
)

// ProviderError classifies a provider failure so the orchestrator can
// decide between backoff, fallback and job failure.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// IsRateLimited reports whether err is a quota/rate-limit rejection
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == ErrKindRateLimited
}

// IsTransient reports whether err is a retryable network failure
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == ErrKindTransient
}

// IsFetchFailed reports whether err came from asset retrieval
func IsFetchFailed(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == ErrKindFetchFailed
}

// classifyStatus maps an HTTP response to a provider error kind.
// 429 and quota-exhaustion bodies count as rate limits regardless of
// status code; 5xx is transient; everything else is fatal.
func classifyStatus(statusCode int, body string) ErrorKind {
	if statusCode == 429 ||
		strings.Contains(body, "RESOURCE_EXHAUSTED") ||
		strings.Contains(body, "quota") {
		return ErrKindRateLimited
	}
	if statusCode >= 500 {
		return ErrKindTransient
	}
	return ErrKindFatal
}

func providerErrorf(kind ErrorKind, statusCode int, format string, args ...interface{}) *ProviderError {
	return &ProviderError{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    fmt.Sprintf(format, args...),
	}
}
