package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/makeanavatar/api/internal/client"
	"github.com/makeanavatar/api/internal/config"
	"github.com/makeanavatar/api/internal/model"
	"github.com/makeanavatar/api/internal/render"
	"github.com/makeanavatar/api/internal/service"
	"github.com/makeanavatar/api/internal/websocket"
)

// RenderWorker processes render sessions
type RenderWorker struct {
	renderService *service.RenderService
	mergeService  *service.MergeService
	r2Client      client.StorageClient
	hub           *websocket.Hub
	cfg           *config.Config
	httpClient    *http.Client
}

// NewRenderWorker creates a new render worker
func NewRenderWorker(renderService *service.RenderService, mergeService *service.MergeService, r2Client client.StorageClient, hub *websocket.Hub, cfg *config.Config) *RenderWorker {
	return &RenderWorker{
		renderService: renderService,
		mergeService:  mergeService,
		r2Client:      r2Client,
		hub:           hub,
		cfg:           cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ProcessTask handles render task processing
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting render job: %s", jobID)

	var payload model.RenderJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal render payload: %w", err)
	}

	if w.renderService.IsCanceled(ctx, jobID) {
		log.Printf("Render job %s already canceled, skipping", jobID)
		return nil
	}

	if err := w.renderService.MarkJobRunning(ctx, jobID); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	provider, err := w.resolveProvider(&payload)
	if err != nil {
		w.failJob(ctx, jobID, err.Error())
		return nil
	}

	registry, err := w.buildRegistry(ctx, jobID, &payload)
	if err != nil {
		w.failJob(ctx, jobID, err.Error())
		return nil
	}

	// Every registry mutation is persisted and pushed to subscribers
	registry.SetObserver(func(clips []model.RenderClip) {
		if err := w.renderService.SaveClips(ctx, jobID, clips); err != nil {
			log.Printf("Failed to persist clip snapshot for job %s: %v", jobID, err)
		}
		w.hub.BroadcastSnapshot(jobID, clips)
	})

	// Identity reference images are fetched once and reused for every scene
	refs := w.fetchReferenceImages(ctx, payload.ReferenceImages)

	orch := render.NewOrchestrator(render.Params{
		Registry:        registry,
		Provider:        provider,
		Identity:        payload.Identity,
		Prompts:         payload.Prompts,
		Settings:        payload.Settings,
		TargetModel:     payload.TargetModel,
		ReferenceImages: refs,
		Resolution:      w.cfg.Veo.Resolution,
		AspectRatio:     w.cfg.Veo.AspectRatio,
		Fallback: render.FallbackSubstituter{
			VideoURL: w.cfg.Render.FallbackVideoURL,
			Duration: w.cfg.Render.FallbackDuration,
		},
		Store:  &clipStore{r2Client: w.r2Client, projectID: payload.ProjectID},
		Cancel: &redisCancel{svc: w.renderService, jobID: jobID},
		Config: render.Config{
			SubmitAttempts:  w.cfg.Render.SubmitAttempts,
			BackoffCooldown: time.Duration(w.cfg.Render.BackoffCooldownSec) * time.Second,
			PollInterval:    time.Duration(w.cfg.Render.PollIntervalSec) * time.Second,
			InterClipDelay:  time.Duration(w.cfg.Render.InterClipDelaySec) * time.Second,
			MaxClipWait:     time.Duration(w.cfg.Render.MaxClipWaitSec) * time.Second,
		},
	})

	if err := orch.Run(ctx); err != nil {
		w.failJob(ctx, jobID, err.Error())
		return nil
	}

	return w.finishJob(ctx, jobID, registry, &payload)
}

// finishJob maps the terminal registry state onto the job record
func (w *RenderWorker) finishJob(ctx context.Context, jobID string, registry *render.Registry, payload *model.RenderJobPayload) error {
	if w.renderService.IsCanceled(ctx, jobID) {
		log.Printf("Render job %s canceled after %d/%d clips", jobID, registry.CompletedCount(), registry.Len())
		return nil
	}

	clips := registry.Snapshot()

	if !registry.AllCompleted() {
		failed := 0
		for _, c := range clips {
			if c.Status == model.RenderStatusFailed {
				failed++
			}
		}
		errMsg := fmt.Sprintf("%d of %d scenes failed to render", failed, len(clips))
		w.failJob(ctx, jobID, errMsg)
		log.Printf("Render job %s finished with failures: %s", jobID, errMsg)
		return nil
	}

	result := map[string]interface{}{
		"projectId": payload.ProjectID,
		"clips":     clips,
	}
	if err := w.renderService.CompleteJob(ctx, jobID, result); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}
	w.hub.BroadcastComplete(jobID, result)
	log.Printf("Render job %s completed (%d clips)", jobID, len(clips))

	if payload.Settings.AutoMerge {
		if _, err := w.mergeService.StartMerge(ctx, jobID); err != nil {
			log.Printf("Auto-merge enqueue failed for job %s: %v", jobID, err)
		}
	}

	return nil
}

// resolveProvider picks the backend client for the session. The first
// enabled caller-supplied key matching the selected provider wins; the
// official backend additionally falls back to the server-side key, or
// to the mock when neither is configured. Other backends require a
// caller-supplied key.
func (w *RenderWorker) resolveProvider(payload *model.RenderJobPayload) (client.VideoProvider, error) {
	selected := payload.Settings.Provider

	key := ""
	for _, k := range payload.APIKeys {
		if k.Enabled && k.Provider == selected && k.Key != "" {
			key = k.Key
			break
		}
	}

	switch selected {
	case model.ProviderOfficial:
		if key == "" {
			key = w.cfg.Veo.APIKey
		}
		if key == "" {
			return w.mockProvider(selected), nil
		}
		return client.NewVeoClient(&w.cfg.Veo, key), nil

	case model.ProviderFal, model.ProviderKie:
		if key == "" {
			return nil, fmt.Errorf("no enabled API key for provider %q", selected)
		}
		// No direct integration for these backends yet
		return w.mockProvider(selected), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", selected)
	}
}

func (w *RenderWorker) mockProvider(p model.Provider) client.VideoProvider {
	return client.NewMockProvider(
		p,
		time.Duration(w.cfg.Render.MockDelaySec)*time.Second,
		w.cfg.Render.FallbackVideoURL,
	)
}

// buildRegistry restores the persisted clip snapshot when one exists so
// re-runs resume past completed scenes, and seeds a fresh registry
// otherwise.
func (w *RenderWorker) buildRegistry(ctx context.Context, jobID string, payload *model.RenderJobPayload) (*render.Registry, error) {
	clips, err := w.renderService.GetClips(ctx, jobID)
	if err == nil && len(clips) > 0 {
		return render.RestoreRegistry(clips)
	}
	return render.NewRegistry(payload.Scenes)
}

// fetchReferenceImages downloads and encodes the identity reference
// assets. A failed download is logged and skipped rather than failing
// the whole session.
func (w *RenderWorker) fetchReferenceImages(ctx context.Context, urls []string) []client.ReferenceImage {
	var refs []client.ReferenceImage

	for _, url := range urls {
		data, contentType, err := w.downloadImage(ctx, url)
		if err != nil {
			log.Printf("Failed to fetch reference image %s: %v", url, err)
			continue
		}
		refs = append(refs, client.ReferenceImage{
			Base64Data: base64.StdEncoding.EncodeToString(data),
			MimeType:   contentType,
		})
	}

	return refs
}

func (w *RenderWorker) downloadImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}

func (w *RenderWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.renderService.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}
	w.hub.BroadcastError(jobID, "RENDER_FAILED", errMsg)
}

// redisCancel adapts the Redis cancel flag to the orchestrator's signal
type redisCancel struct {
	svc   *service.RenderService
	jobID string
}

func (c *redisCancel) Canceled(ctx context.Context) bool {
	return c.svc.IsCanceled(ctx, c.jobID)
}

// clipStore persists rendered clips to object storage
type clipStore struct {
	r2Client  client.StorageClient
	projectID string
}

func (s *clipStore) SaveClip(ctx context.Context, sceneID int, body io.Reader) (string, error) {
	if s.r2Client == nil {
		return "", fmt.Errorf("storage not configured")
	}
	key := fmt.Sprintf("clips/%s/scene_%d.mp4", s.projectID, sceneID)
	return s.r2Client.Upload(ctx, key, body, "video/mp4")
}
