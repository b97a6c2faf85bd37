package model

import "time"

// Scene is one timed segment of the source script
type Scene struct {
	SceneID   int    `json:"sceneId" validate:"required,min=1"`
	SceneText string `json:"sceneText" validate:"required"`
}

// GeneratedPrompt is the precomputed prompt payload for one scene.
// Prompts are joined to scenes by sceneId, never by position.
type GeneratedPrompt struct {
	SceneID       int    `json:"sceneId" validate:"required,min=1"`
	PromptContent string `json:"promptContent" validate:"required"`
}

// AvatarIdentity is the locked, immutable avatar descriptor consumed by
// every render. The orchestrator never mutates or re-derives it.
type AvatarIdentity struct {
	AvatarID          string `json:"avatarId" validate:"required"`
	Origin            string `json:"origin"`
	FaceShape         string `json:"faceShape"`
	SkinTone          string `json:"skinTone"`
	Hair              string `json:"hair"`
	GenderExpression  string `json:"genderExpression"`
	AgeRange          string `json:"ageRange"`
	FacialProportions string `json:"facialProportions"`
	EyeShape          string `json:"eyeShape"`
	CameraFraming     string `json:"cameraFraming"`
	LightingReference string `json:"lightingReference"`
	IdentityLock      bool   `json:"identityLock"`
}

// APIKey is a provider credential supplied by the caller.
// The first enabled key matching the selected provider is used.
type APIKey struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Key      string   `json:"key"`
	Provider Provider `json:"provider"`
	Enabled  bool     `json:"enabled"`
}

// RenderSettings select the provider backend and failure policy
type RenderSettings struct {
	Provider  Provider   `json:"provider" validate:"required,oneof=official fal.ai kie.ai"`
	Mode      RenderMode `json:"mode" validate:"required,oneof=batch scene-by-scene"`
	AutoMerge bool       `json:"autoMerge"`
}

// RenderClip is the registry record for one scene's render lifecycle
type RenderClip struct {
	SceneID int          `json:"sceneId"`
	Status  RenderStatus `json:"status"`
	URL     string       `json:"url,omitempty"`
	// Diagnostic carries the last human-readable status or error string.
	// It is transient and may be overwritten while rendering.
	Diagnostic string      `json:"diagnostic,omitempty"`
	Duration   float64     `json:"duration,omitempty"`
	Model      TargetModel `json:"model,omitempty"`
	Provider   Provider    `json:"provider,omitempty"`
	Fallback   bool        `json:"fallback,omitempty"`
}

// RenderJobPayload contains the full input set for a render session
type RenderJobPayload struct {
	ProjectID       string            `json:"projectId"`
	Identity        *AvatarIdentity   `json:"identity"`
	Scenes          []Scene           `json:"scenes"`
	Prompts         []GeneratedPrompt `json:"prompts"`
	Settings        RenderSettings    `json:"settings"`
	TargetModel     TargetModel       `json:"targetModel"`
	APIKeys         []APIKey          `json:"apiKeys,omitempty"`
	ReferenceImages []string          `json:"referenceImages,omitempty"`
}

// RenderStartRequest starts a new render session
type RenderStartRequest struct {
	ProjectID       string            `json:"projectId" validate:"required,uuid4"`
	Identity        *AvatarIdentity   `json:"identity" validate:"required"`
	Scenes          []Scene           `json:"scenes" validate:"required,min=1,dive"`
	Prompts         []GeneratedPrompt `json:"prompts" validate:"required,min=1,dive"`
	Settings        RenderSettings    `json:"settings" validate:"required"`
	TargetModel     TargetModel       `json:"targetModel" validate:"required,oneof=veo-3.1 sora-2"`
	APIKeys         []APIKey          `json:"apiKeys,omitempty"`
	ReferenceImages []string          `json:"referenceImages,omitempty" validate:"omitempty,dive,url"`
}

// RenderStartResponse is returned when a render session is queued
type RenderStartResponse struct {
	JobID       string    `json:"jobId"`
	Status      JobStatus `json:"status"`
	TotalScenes int       `json:"totalScenes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RenderStatusResponse reports session progress and the full clip list
type RenderStatusResponse struct {
	JobID       string       `json:"jobId"`
	Status      JobStatus    `json:"status"`
	Completed   int          `json:"completed"`
	Total       int          `json:"total"`
	Clips       []RenderClip `json:"clips"`
	Error       *string      `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// RenderCancelResponse acknowledges a cancellation request
type RenderCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

// RetrySceneRequest resets one failed scene back to pending
type RetrySceneRequest struct {
	SceneID int `json:"sceneId" validate:"required,min=1"`
}

// RetrySceneResponse reports the reset clip
type RetrySceneResponse struct {
	JobID string     `json:"jobId"`
	Clip  RenderClip `json:"clip"`
}
