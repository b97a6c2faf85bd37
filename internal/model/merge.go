package model

import "time"

// MergeStartResponse is returned when a merge job is queued
type MergeStartResponse struct {
	JobID       string    `json:"jobId"`
	RenderJobID string    `json:"renderJobId"`
	Status      JobStatus `json:"status"`
	ClipCount   int       `json:"clipCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MergeStatusResponse reports merge job progress
type MergeStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// MergeResultResponse is the final concatenated output asset
type MergeResultResponse struct {
	ID        string    `json:"id"`
	VideoURL  string    `json:"videoUrl"`
	Duration  float64   `json:"duration"`
	ClipCount int       `json:"clipCount"`
	CreatedAt time.Time `json:"createdAt"`
}
