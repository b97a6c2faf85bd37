package model

// Render provider backends
type Provider string

const (
	ProviderOfficial Provider = "official"
	ProviderFal      Provider = "fal.ai"
	ProviderKie      Provider = "kie.ai"
)

var ValidProviders = []Provider{
	ProviderOfficial, ProviderFal, ProviderKie,
}

// Render modes govern failure propagation across scenes
type RenderMode string

const (
	// RenderModeBatch halts all not-yet-started scenes when one fails
	RenderModeBatch RenderMode = "batch"
	// RenderModeSceneByScene continues with the next scene after a failure
	RenderModeSceneByScene RenderMode = "scene-by-scene"
)

// Target video models
type TargetModel string

const (
	TargetModelVeo  TargetModel = "veo-3.1"
	TargetModelSora TargetModel = "sora-2"
)

// RenderStatus tracks one scene clip through its lifecycle.
// Transitions are forward-only except failed → pending (manual retry).
type RenderStatus string

const (
	RenderStatusPending   RenderStatus = "pending"
	RenderStatusRendering RenderStatus = "rendering"
	RenderStatusCompleted RenderStatus = "completed"
	RenderStatusFailed    RenderStatus = "failed"
)

// Job status (session-level background job)
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Aspect ratios supported by the official provider
type AspectRatio string

const (
	AspectRatioWide AspectRatio = "16:9"
	AspectRatioTall AspectRatio = "9:16"
)
