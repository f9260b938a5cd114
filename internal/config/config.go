package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Env               string `env:"ENV" envDefault:"development"`
	Port              string `env:"PORT" envDefault:"8080"`
	AppMode           string `env:"APP_MODE" envDefault:"embedded"`
	DatabaseURL       string `env:"DATABASE_URL"`
	RedisURL          string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile           string `env:"LOG_FILE"`
	InternalAPISecret string `env:"INTERNAL_API_SECRET"`
	EncryptionKey     string `env:"ENCRYPTION_KEY"`
	PublicBaseURL     string `env:"PUBLIC_BASE_URL"`

	TickSchedule        string `env:"PIPELINE_TICK_SCHEDULE" envDefault:"@every 1m"`
	ReconcileSchedule   string `env:"PIPELINE_RECONCILE_SCHEDULE" envDefault:"@every 5m"`
	TriggerWindowMin    int    `env:"PIPELINE_TRIGGER_WINDOW_MINUTES" envDefault:"15"`
	PipelineConcurrency int    `env:"PIPELINE_CONCURRENCY" envDefault:"4"`
	WorkerConcurrency   int    `env:"WORKER_CONCURRENCY" envDefault:"5"`

	Video     VideoConfig
	Providers ProviderConfig
}

// VideoConfig tunes the video generation orchestrator.
type VideoConfig struct {
	PollIntervalSeconds int    `env:"VIDEO_POLL_INTERVAL_SECONDS" envDefault:"10"`
	PollMaxAttempts     int    `env:"VIDEO_POLL_MAX_ATTEMPTS" envDefault:"120"`
	StaleAfterSeconds   int    `env:"VIDEO_STALE_AFTER_SECONDS" envDefault:"180"`
	AttemptsPerModel    int    `env:"VIDEO_ATTEMPTS_PER_MODEL" envDefault:"2"`
	StableProvider      string `env:"VIDEO_STABLE_PROVIDER" envDefault:"kie"`
	StableModel         string `env:"VIDEO_STABLE_MODEL" envDefault:"sora-2-text-to-video"`
	DefaultMode         string `env:"VIDEO_DEFAULT_MODE" envDefault:"sora-2"`
	ModesDir            string `env:"VIDEO_MODES_DIR"`
}

// ProviderConfig carries credentials and endpoints for third-party APIs.
type ProviderConfig struct {
	Stub bool `env:"STUB_PROVIDERS" envDefault:"false"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	KIEAPIKey  string `env:"KIE_API_KEY"`
	KIEBaseURL string `env:"KIE_BASE_URL" envDefault:"https://api.kie.ai"`

	PoyoAPIKey  string `env:"POYO_API_KEY"`
	PoyoBaseURL string `env:"POYO_BASE_URL" envDefault:"https://api.poyo.ai"`

	HeyGenAPIKey  string `env:"HEYGEN_API_KEY"`
	HeyGenBaseURL string `env:"HEYGEN_BASE_URL" envDefault:"https://api.heygen.com"`
	HeyGenVoiceID string `env:"HEYGEN_VOICE_ID"`

	UploadPostAPIKey  string `env:"UPLOAD_POST_API_KEY"`
	UploadPostBaseURL string `env:"UPLOAD_POST_BASE_URL" envDefault:"https://api.upload-post.com"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: failed to load .env file: %v", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.InternalAPISecret == "" && cfg.Env != "production" {
		cfg.InternalAPISecret = "dev-internal-secret-change-in-production"
		log.Println("WARNING: Using default INTERNAL_API_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	if cfg.TriggerWindowMin <= 0 {
		cfg.TriggerWindowMin = 15
	}
	if cfg.PipelineConcurrency <= 0 {
		cfg.PipelineConcurrency = 1
	}

	return cfg, nil
}

// PollInterval returns the provider poll interval as a duration.
func (v VideoConfig) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalSeconds) * time.Second
}

// StaleAfter is how long a generating video may go without a poll heartbeat
// before it counts as abandoned. It never drops below three poll intervals.
func (v VideoConfig) StaleAfter() time.Duration {
	stale := time.Duration(v.StaleAfterSeconds) * time.Second
	if floor := 3 * v.PollInterval(); stale < floor {
		stale = floor
	}
	return stale
}

// CallbackURL returns the provider callback endpoint for the given provider,
// or an empty string when no public base URL is configured.
func (c *Config) CallbackURL(provider string) string {
	if c.PublicBaseURL == "" {
		return ""
	}
	return c.PublicBaseURL + "/callbacks/" + provider
}
