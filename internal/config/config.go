package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Veo       VeoConfig
	Render    RenderConfig
	FFmpeg    FFmpegConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	ScriptPerMin  int
	RenderPerHour int
	MergePerHour  int
	UploadPerHour int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

// VeoConfig configures the official structured video provider
type VeoConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Resolution  string
	AspectRatio string
}

// RenderConfig holds the orchestrator's fixed timing constants.
// Durations are in seconds; none are computed adaptively.
type RenderConfig struct {
	SubmitAttempts     int     // rate-limit retry budget per scene
	BackoffCooldownSec int     // wait before resubmitting after a rate limit
	PollIntervalSec    int     // spacing between operation polls
	InterClipDelaySec  int     // delay after each successful scene
	MaxClipWaitSec     int     // wall-clock ceiling per scene render
	MockDelaySec       int     // fixed delay of the mock providers
	FallbackVideoURL   string  // placeholder asset used on quota exhaustion
	FallbackDuration   float64 // nominal duration of the placeholder clip
}

type FFmpegConfig struct {
	Binary  string
	WorkDir string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GROQ_API_KEY")
	readSecret("VEO_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("veo.api_key", "VEO_API_KEY")
	_ = viper.BindEnv("veo.base_url", "VEO_BASE_URL")
	_ = viper.BindEnv("veo.model", "VEO_MODEL")
	_ = viper.BindEnv("render.submit_attempts", "RENDER_SUBMIT_ATTEMPTS")
	_ = viper.BindEnv("render.backoff_cooldown_sec", "RENDER_BACKOFF_COOLDOWN_SEC")
	_ = viper.BindEnv("render.poll_interval_sec", "RENDER_POLL_INTERVAL_SEC")
	_ = viper.BindEnv("render.inter_clip_delay_sec", "RENDER_INTER_CLIP_DELAY_SEC")
	_ = viper.BindEnv("render.max_clip_wait_sec", "RENDER_MAX_CLIP_WAIT_SEC")
	_ = viper.BindEnv("render.fallback_video_url", "RENDER_FALLBACK_VIDEO_URL")
	_ = viper.BindEnv("ffmpeg.binary", "FFMPEG_BINARY")
	_ = viper.BindEnv("ffmpeg.work_dir", "FFMPEG_WORK_DIR")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.script_per_min", 20)
	viper.SetDefault("ratelimit.render_per_hour", 5)
	viper.SetDefault("ratelimit.merge_per_hour", 10)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")

	// Veo defaults
	viper.SetDefault("veo.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("veo.model", "veo-3.1-generate-preview")
	viper.SetDefault("veo.resolution", "720p")
	viper.SetDefault("veo.aspect_ratio", "16:9")

	// Render pipeline defaults. The backoff cool-down matches the
	// provider's fixed quota window; the inter-clip delay keeps
	// sequential submissions under the requests-per-minute ceiling.
	viper.SetDefault("render.submit_attempts", 3)
	viper.SetDefault("render.backoff_cooldown_sec", 60)
	viper.SetDefault("render.poll_interval_sec", 10)
	viper.SetDefault("render.inter_clip_delay_sec", 30)
	viper.SetDefault("render.max_clip_wait_sec", 600)
	viper.SetDefault("render.mock_delay_sec", 3)
	viper.SetDefault("render.fallback_video_url", "https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerBlazes.mp4")
	viper.SetDefault("render.fallback_duration", 6.0)

	// FFmpeg defaults
	viper.SetDefault("ffmpeg.binary", "ffmpeg")
	viper.SetDefault("ffmpeg.work_dir", os.TempDir())

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			ScriptPerMin:  viper.GetInt("ratelimit.script_per_min"),
			RenderPerHour: viper.GetInt("ratelimit.render_per_hour"),
			MergePerHour:  viper.GetInt("ratelimit.merge_per_hour"),
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
			Model:   viper.GetString("groq.model"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Veo: VeoConfig{
			APIKey:      viper.GetString("veo.api_key"),
			BaseURL:     viper.GetString("veo.base_url"),
			Model:       viper.GetString("veo.model"),
			Resolution:  viper.GetString("veo.resolution"),
			AspectRatio: viper.GetString("veo.aspect_ratio"),
		},
		Render: RenderConfig{
			SubmitAttempts:     viper.GetInt("render.submit_attempts"),
			BackoffCooldownSec: viper.GetInt("render.backoff_cooldown_sec"),
			PollIntervalSec:    viper.GetInt("render.poll_interval_sec"),
			InterClipDelaySec:  viper.GetInt("render.inter_clip_delay_sec"),
			MaxClipWaitSec:     viper.GetInt("render.max_clip_wait_sec"),
			MockDelaySec:       viper.GetInt("render.mock_delay_sec"),
			FallbackVideoURL:   viper.GetString("render.fallback_video_url"),
			FallbackDuration:   viper.GetFloat64("render.fallback_duration"),
		},
		FFmpeg: FFmpegConfig{
			Binary:  viper.GetString("ffmpeg.binary"),
			WorkDir: viper.GetString("ffmpeg.work_dir"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
