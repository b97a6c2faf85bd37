package e2e

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/makeanavatar/api/internal/auth"
	"github.com/makeanavatar/api/internal/client"
	"github.com/makeanavatar/api/internal/config"
	"github.com/makeanavatar/api/internal/handler"
	"github.com/makeanavatar/api/internal/middleware"
	"github.com/makeanavatar/api/internal/model"
	"github.com/makeanavatar/api/internal/service"
	"github.com/makeanavatar/api/internal/websocket"
	"github.com/makeanavatar/api/internal/worker"

	"github.com/golang-jwt/jwt/v5"
)

// loadEnvFile reads a .env file and sets environment variables.
func loadEnvFile(t *testing.T) {
	t.Helper()
	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "..", ".env")

	f, err := os.Open(envPath)
	if err != nil {
		t.Skipf("skipping: .env file not found at %s", envPath)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			os.Setenv(parts[0], parts[1])
		}
	}
}

// setupRealApp creates a full app with real external clients + Asynq worker.
// Returns the app and a cleanup function.
func setupRealApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()
	loadEnvFile(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Veo.APIKey == "" {
		t.Skip("skipping: VEO_API_KEY not configured")
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       15, // test DB
	})

	// Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       15,
	})

	validate := validator.New()

	// Real external clients
	groqClient := client.NewGroqClient(&cfg.Groq)
	ffmpegClient := client.NewFFmpegClient(cfg.FFmpeg.Binary)

	// R2 client (optional)
	var r2Client client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		if c, err := client.NewR2Client(&cfg.R2); err == nil {
			r2Client = c
		}
	}

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Services
	scriptService := service.NewScriptService(groqClient)
	renderService := service.NewRenderService(redisClient, asynqClient)
	mergeService := service.NewMergeService(redisClient, asynqClient, renderService)
	uploadService := service.NewUploadService(r2Client)

	// Handlers
	scriptHandler := handler.NewScriptHandler(scriptService, validate)
	renderHandler := handler.NewRenderHandler(renderService, validate)
	mergeHandler := handler.NewMergeHandler(mergeService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, validate)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	// Middleware
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{BodyLimit: 20 * 1024 * 1024})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())

	script := api.Group("/script", rateLimiter.ScriptLimit(10000))
	script.Post("/segment", scriptHandler.Segment)

	render := api.Group("/render")
	render.Post("/start", rateLimiter.RenderLimit(10000), renderHandler.Start)
	render.Get("/status/:jobId", renderHandler.Status)
	render.Post("/cancel/:jobId", renderHandler.Cancel)
	render.Post("/resume/:jobId", renderHandler.Resume)
	render.Post("/retry/:jobId", renderHandler.RetryScene)

	merge := api.Group("/merge", rateLimiter.MergeLimit(10000))
	merge.Post("/start/:renderJobId", mergeHandler.Start)
	merge.Get("/status/:jobId", mergeHandler.Status)
	merge.Get("/result/:jobId", mergeHandler.Result)

	upload := api.Group("/upload", rateLimiter.UploadLimit(10000))
	upload.Post("/reference", uploadHandler.Reference)
	upload.Delete("/reference/:projectId/:referenceId", uploadHandler.DeleteReference)

	// Start Asynq worker server (non-blocking)
	asynqSrv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       15,
		},
		asynq.Config{
			Concurrency: 2,
			Queues:      map[string]int{"render": 1, "merge": 1},
			LogLevel:    asynq.WarnLevel,
		},
	)

	renderWorker := worker.NewRenderWorker(renderService, mergeService, r2Client, hub, cfg)
	mergeWorker := worker.NewMergeWorker(mergeService, renderService, ffmpegClient, r2Client, hub, cfg)
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeRender, renderWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeMerge, mergeWorker.ProcessTask)

	if err := asynqSrv.Start(mux); err != nil {
		t.Fatalf("failed to start asynq worker: %v", err)
	}

	cleanup := func() {
		asynqSrv.Shutdown()
		asynqClient.Close()
	}

	return app, cleanup
}

func generateRealToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "e2e-test-user",
		Email:  "e2e@makeanavatar.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "makeanavatar-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return signed
}

// TestRenderFullPipeline_RealVeo drives the full render + merge pipeline
// against the real Veo API. This test takes many minutes as each clip is
// submitted sequentially and rate-limit pauses apply between scenes.
func TestRenderFullPipeline_RealVeo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real Veo API test in short mode")
	}

	app, cleanup := setupRealApp(t)
	defer cleanup()

	token := generateRealToken(t)
	headers := map[string]string{"Authorization": "Bearer " + token}

	// Step 1: Start a render job with two short scenes
	projectID := uuid.New().String()
	body := fmt.Sprintf(`{
		"projectId": "%s",
		"identity": {
			"avatarId": "e2e-avatar",
			"origin": "mediterranean",
			"faceShape": "oval",
			"hair": "short black",
			"genderExpression": "feminine",
			"ageRange": "25-35",
			"identityLock": true
		},
		"scenes": [
			{"sceneId": 1, "sceneText": "Hello and welcome."},
			{"sceneId": 2, "sceneText": "Let me show you around."}
		],
		"prompts": [
			{"sceneId": 1, "promptContent": "Presenter smiles and greets the viewer in a sunlit room."},
			{"sceneId": 2, "promptContent": "Presenter walks through a doorway, gesturing ahead."}
		],
		"settings": {
			"provider": "official",
			"mode": "batch",
			"autoMerge": false
		},
		"targetModel": "veo-3.1"
	}`, projectID)

	t.Log("Starting render job...")
	resp, err := doRequest(app, http.MethodPost, "/api/render/start", body, headers)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	startResult := parseJSON(t, resp)
	jobID, ok := startResult["jobId"].(string)
	if !ok || jobID == "" {
		t.Fatal("expected jobId in start response")
	}
	t.Logf("Job started: %s (status: %s)", jobID, startResult["status"])

	// Step 2: Poll for completion (max 30 minutes)
	deadline := time.Now().Add(30 * time.Minute)
	pollInterval := 10 * time.Second
	var lastCompleted float64 = -1

	for time.Now().Before(deadline) {
		time.Sleep(pollInterval)

		resp, err = doRequest(app, http.MethodGet, "/api/render/status/"+jobID, "", headers)
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusOK)

		statusResult := parseJSON(t, resp)
		status := statusResult["status"].(string)
		completed := statusResult["completed"].(float64)
		total := statusResult["total"].(float64)

		if completed != lastCompleted {
			t.Logf("Job %s: status=%s clips=%.0f/%.0f", jobID, status, completed, total)
			lastCompleted = completed
		}

		switch model.JobStatus(status) {
		case model.JobStatusSucceeded:
			t.Log("Render completed successfully!")
			goto checkClips

		case model.JobStatusFailed:
			errMsg := "unknown"
			if e, ok := statusResult["error"].(string); ok {
				errMsg = e
			}
			t.Fatalf("Job failed: %s", errMsg)

		case model.JobStatusCanceled:
			t.Fatal("Job was canceled unexpectedly")
		}
	}
	t.Fatal("Job timed out after 30 minutes")

checkClips:
	// Step 3: Verify every clip
	resp, err = doRequest(app, http.MethodGet, "/api/render/status/"+jobID, "", headers)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	finalStatus := parseJSON(t, resp)
	clips, ok := finalStatus["clips"].([]interface{})
	if !ok || len(clips) == 0 {
		t.Fatal("expected clips in final status")
	}
	for i, c := range clips {
		clip := c.(map[string]interface{})
		t.Logf("Clip[%d]: scene=%v status=%v fallback=%v url=%v",
			i, clip["sceneId"], clip["status"], clip["fallback"], clip["url"])
		if clip["status"] != "completed" {
			t.Errorf("clip[%d]: expected completed, got %v", i, clip["status"])
		}
		if clip["url"] == nil || clip["url"] == "" {
			t.Errorf("clip[%d]: expected url", i)
		}
	}

	// Step 4: Merge the clips
	t.Log("Starting merge job...")
	resp, err = doRequest(app, http.MethodPost, "/api/merge/start/"+jobID, "", headers)
	if err != nil {
		t.Fatalf("merge request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	mergeStart := parseJSON(t, resp)
	mergeJobID, ok := mergeStart["jobId"].(string)
	if !ok || mergeJobID == "" {
		t.Fatal("expected jobId in merge start response")
	}

	mergeDeadline := time.Now().Add(5 * time.Minute)
	for time.Now().Before(mergeDeadline) {
		time.Sleep(5 * time.Second)

		resp, err = doRequest(app, http.MethodGet, "/api/merge/status/"+mergeJobID, "", headers)
		if err != nil {
			t.Fatalf("merge status request failed: %v", err)
		}
		statusResult := parseJSON(t, resp)
		status := statusResult["status"].(string)

		if model.JobStatus(status) == model.JobStatusSucceeded {
			goto checkMergeResult
		}
		if model.JobStatus(status) == model.JobStatusFailed {
			t.Fatalf("Merge failed: %v", statusResult["error"])
		}
	}
	t.Fatal("Merge timed out after 5 minutes")

checkMergeResult:
	// Step 5: Verify the merged video
	resp, err = doRequest(app, http.MethodGet, "/api/merge/result/"+mergeJobID, "", headers)
	if err != nil {
		t.Fatalf("merge result request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["videoUrl"] == nil || result["videoUrl"] == "" {
		t.Error("expected 'videoUrl' in merge result")
	}
	if result["duration"] == nil {
		t.Error("expected 'duration' in merge result")
	}
	if result["clipCount"] != float64(len(clips)) {
		t.Errorf("expected clipCount %d, got %v", len(clips), result["clipCount"])
	}
	t.Logf("Merged video: url=%s duration=%vs clips=%v",
		result["videoUrl"], result["duration"], result["clipCount"])
}
