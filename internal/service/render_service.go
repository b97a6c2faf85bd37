package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/makeanavatar/api/internal/model"
)

const (
	TaskTypeRender = "render:process"
	TaskTypeMerge  = "merge:process"
)

// RenderService handles render session management
type RenderService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewRenderService(redisClient *redis.Client, asynqClient *asynq.Client) *RenderService {
	return &RenderService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// StartRender queues a new render session
func (s *RenderService) StartRender(ctx context.Context, req *model.RenderStartRequest) (*model.RenderStartResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeRender,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
	}

	payload := &model.RenderJobPayload{
		ProjectID:       req.ProjectID,
		Identity:        req.Identity,
		Scenes:          req.Scenes,
		Prompts:         req.Prompts,
		Settings:        req.Settings,
		TargetModel:     req.TargetModel,
		APIKeys:         req.APIKeys,
		ReferenceImages: req.ReferenceImages,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job.Payload = payloadBytes

	// Save job to Redis
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	// Seed one pending clip per scene so status reads work before the
	// worker picks the job up
	clips := make([]model.RenderClip, 0, len(req.Scenes))
	for _, scene := range req.Scenes {
		clips = append(clips, model.RenderClip{
			SceneID: scene.SceneID,
			Status:  model.RenderStatusPending,
		})
	}
	if err := s.SaveClips(ctx, jobID, clips); err != nil {
		return nil, fmt.Errorf("failed to save clip records: %w", err)
	}

	if err := s.enqueueRenderTask(jobID, payloadBytes); err != nil {
		return nil, err
	}

	return &model.RenderStartResponse{
		JobID:       jobID,
		Status:      model.JobStatusQueued,
		TotalScenes: len(req.Scenes),
		CreatedAt:   now,
	}, nil
}

// GetStatus returns the current session status with the full clip list
func (s *RenderService) GetStatus(ctx context.Context, jobID string) (*model.RenderStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	clips, err := s.GetClips(ctx, jobID)
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, c := range clips {
		if c.Status == model.RenderStatusCompleted {
			completed++
		}
	}

	return &model.RenderStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Completed:   completed,
		Total:       len(clips),
		Clips:       clips,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// CancelRender raises the cooperative cancel flag for a running session.
// The worker checks it before every wait, so the request takes effect
// within one polling or back-off interval.
func (s *RenderService) CancelRender(ctx context.Context, jobID string) (*model.RenderCancelResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == model.JobStatusSucceeded || job.Status == model.JobStatusFailed {
		return nil, fmt.Errorf("job already completed")
	}

	if err := s.redis.Set(ctx, cancelKey(jobID), "1", 24*time.Hour).Err(); err != nil {
		return nil, fmt.Errorf("failed to set cancel flag: %w", err)
	}

	job.Status = model.JobStatusCanceled
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	return &model.RenderCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

// Resume re-queues a canceled or partially-failed session. Completed
// clips keep their results; the worker picks up at the first
// non-completed scene.
func (s *RenderService) Resume(ctx context.Context, jobID string) (*model.RenderStartResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == model.JobStatusSucceeded {
		return nil, fmt.Errorf("job already completed")
	}
	if job.Status == model.JobStatusQueued || job.Status == model.JobStatusRunning {
		return nil, fmt.Errorf("job still in progress")
	}

	if err := s.redis.Del(ctx, cancelKey(jobID)).Err(); err != nil {
		return nil, fmt.Errorf("failed to clear cancel flag: %w", err)
	}

	job.Status = model.JobStatusQueued
	job.Error = nil
	job.CompletedAt = nil
	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.enqueueRenderTask(jobID, job.Payload); err != nil {
		return nil, err
	}

	clips, err := s.GetClips(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.RenderStartResponse{
		JobID:       jobID,
		Status:      model.JobStatusQueued,
		TotalScenes: len(clips),
		CreatedAt:   job.CreatedAt,
	}, nil
}

// RetryScene resets a single failed scene back to pending and re-queues
// the session so the worker re-drives it.
func (s *RenderService) RetryScene(ctx context.Context, jobID string, sceneID int) (*model.RetrySceneResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusQueued || job.Status == model.JobStatusRunning {
		return nil, fmt.Errorf("job still in progress")
	}

	clips, err := s.GetClips(ctx, jobID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, c := range clips {
		if c.SceneID == sceneID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("scene not found")
	}
	if clips[idx].Status != model.RenderStatusFailed {
		return nil, fmt.Errorf("only failed scenes can be retried")
	}

	clips[idx] = model.RenderClip{
		SceneID: sceneID,
		Status:  model.RenderStatusPending,
	}

	if err := s.SaveClips(ctx, jobID, clips); err != nil {
		return nil, err
	}

	if err := s.redis.Del(ctx, cancelKey(jobID)).Err(); err != nil {
		return nil, fmt.Errorf("failed to clear cancel flag: %w", err)
	}

	job.Status = model.JobStatusQueued
	job.Error = nil
	job.CompletedAt = nil
	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.enqueueRenderTask(jobID, job.Payload); err != nil {
		return nil, err
	}

	return &model.RetrySceneResponse{
		JobID: jobID,
		Clip:  clips[idx],
	}, nil
}

// Worker-facing methods

// MarkJobRunning transitions the job to running (called by worker)
func (s *RenderService) MarkJobRunning(ctx context.Context, jobID string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// CompleteJob marks the job as succeeded (called by worker)
func (s *RenderService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// FailJob marks the job as failed (called by worker)
func (s *RenderService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// SaveClips persists the latest clip snapshot for a session
func (s *RenderService) SaveClips(ctx context.Context, jobID string, clips []model.RenderClip) error {
	data, err := json.Marshal(clips)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, clipsKey(jobID), data, 24*time.Hour).Err()
}

// GetClips loads the latest clip snapshot for a session
func (s *RenderService) GetClips(ctx context.Context, jobID string) ([]model.RenderClip, error) {
	data, err := s.redis.Get(ctx, clipsKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job not found")
		}
		return nil, err
	}

	var clips []model.RenderClip
	if err := json.Unmarshal(data, &clips); err != nil {
		return nil, err
	}

	return clips, nil
}

// IsCanceled reports whether the cancel flag is raised for a session
func (s *RenderService) IsCanceled(ctx context.Context, jobID string) bool {
	n, err := s.redis.Exists(ctx, cancelKey(jobID)).Result()
	return err == nil && n > 0
}

// GetJob loads the raw job record
func (s *RenderService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return s.getJob(ctx, jobID)
}

// Helper methods

func (s *RenderService) enqueueRenderTask(jobID string, payload []byte) error {
	task, err := newJobTask(TaskTypeRender, jobID, payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	// Retries are safe: completed clips are skipped on re-run
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("render"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func (s *RenderService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(struct {
		*model.Job
		Payload []byte `json:"payload,omitempty"`
		Result  []byte `json:"result,omitempty"`
	}{Job: job, Payload: job.Payload, Result: job.Result})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, 24*time.Hour).Err()
}

func (s *RenderService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job not found")
		}
		return nil, err
	}

	var stored struct {
		model.Job
		Payload []byte `json:"payload,omitempty"`
		Result  []byte `json:"result,omitempty"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	job := stored.Job
	job.Payload = stored.Payload
	job.Result = stored.Result
	return &job, nil
}

func clipsKey(jobID string) string {
	return fmt.Sprintf("render:clips:%s", jobID)
}

func cancelKey(jobID string) string {
	return fmt.Sprintf("render:cancel:%s", jobID)
}

func newJobTask(taskType, jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": payload,
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}
