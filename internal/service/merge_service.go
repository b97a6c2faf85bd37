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

// MergeService handles concatenation job management
type MergeService struct {
	redis         *redis.Client
	asynqClient   *asynq.Client
	renderService *RenderService
}

func NewMergeService(redisClient *redis.Client, asynqClient *asynq.Client, renderService *RenderService) *MergeService {
	return &MergeService{
		redis:         redisClient,
		asynqClient:   asynqClient,
		renderService: renderService,
	}
}

// StartMerge queues a merge job for a finished render session. Every
// clip must already be completed; fallback completions qualify.
func (s *MergeService) StartMerge(ctx context.Context, renderJobID string) (*model.MergeStartResponse, error) {
	renderJob, err := s.renderService.GetJob(ctx, renderJobID)
	if err != nil {
		return nil, err
	}

	clips, err := s.renderService.GetClips(ctx, renderJobID)
	if err != nil {
		return nil, err
	}
	for _, c := range clips {
		if c.Status != model.RenderStatusCompleted {
			return nil, fmt.Errorf("scene %d is %s; all clips must be completed before merging", c.SceneID, c.Status)
		}
	}

	var renderPayload model.RenderJobPayload
	if err := json.Unmarshal(renderJob.Payload, &renderPayload); err != nil {
		return nil, fmt.Errorf("failed to read render payload: %w", err)
	}

	jobID := uuid.New().String()
	now := time.Now()

	payload := &model.MergeJobPayload{
		ProjectID:   renderPayload.ProjectID,
		RenderJobID: renderJobID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeMerge,
		Status:    model.JobStatusQueued,
		Payload:   payloadBytes,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newJobTask(TaskTypeMerge, jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("merge"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.MergeStartResponse{
		JobID:       jobID,
		RenderJobID: renderJobID,
		Status:      model.JobStatusQueued,
		ClipCount:   len(clips),
		CreatedAt:   now,
	}, nil
}

// GetStatus returns the current status of a merge job
func (s *MergeService) GetStatus(ctx context.Context, jobID string) (*model.MergeStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.MergeStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetResult returns the result of a completed merge job
func (s *MergeService) GetResult(ctx context.Context, jobID string) (*model.MergeResultResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, fmt.Errorf("job not completed")
	}

	var result model.MergeResultResponse
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// Worker-facing methods

// UpdateJobProgress updates merge progress (called by worker)
func (s *MergeService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// CompleteJob marks the merge as succeeded (called by worker)
func (s *MergeService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
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

// FailJob marks the merge as failed (called by worker)
func (s *MergeService) FailJob(ctx context.Context, jobID string, errMsg string) error {
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

// Helper methods

func (s *MergeService) saveJob(ctx context.Context, job *model.Job) error {
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

func (s *MergeService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
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
