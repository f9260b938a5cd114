package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelcast/autopilot/internal/auth"
	"github.com/reelcast/autopilot/internal/config"
	"github.com/reelcast/autopilot/internal/database"
	"github.com/reelcast/autopilot/internal/health"
	"github.com/reelcast/autopilot/internal/items"
	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/modes"
	"github.com/reelcast/autopilot/internal/pipeline"
	"github.com/reelcast/autopilot/internal/providers"
	"github.com/reelcast/autopilot/internal/providers/heygen"
	"github.com/reelcast/autopilot/internal/providers/kie"
	"github.com/reelcast/autopilot/internal/providers/openai"
	"github.com/reelcast/autopilot/internal/providers/poyo"
	"github.com/reelcast/autopilot/internal/providers/stub"
	"github.com/reelcast/autopilot/internal/providers/uploadpost"
	"github.com/reelcast/autopilot/internal/schedule"
	"github.com/reelcast/autopilot/internal/scriptgen"
	"github.com/reelcast/autopilot/internal/store"
	"github.com/reelcast/autopilot/internal/streams"
	"github.com/reelcast/autopilot/internal/videogen"
	"github.com/reelcast/autopilot/internal/worker"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	slog.SetDefault(logger)

	if cfg.EncryptionKey != "" {
		if err := models.InitEncryption(cfg.EncryptionKey); err != nil {
			log.Fatalf("Failed to initialize encryption: %v", err)
		}
	} else if cfg.Env == "production" {
		log.Fatal("ENCRYPTION_KEY is required in production")
	} else {
		log.Println("WARNING: ENCRYPTION_KEY not set, profile keys are stored in plaintext")
	}

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if cfg.Env == "development" {
		if err := database.SeedDevData(db); err != nil {
			log.Printf("WARNING: failed to seed dev data: %v", err)
		}
	}

	st := store.New(db)

	modeRegistry, err := modes.Load(cfg.Video.ModesDir, cfg.Video.DefaultMode, logger)
	if err != nil {
		log.Fatalf("Failed to load generation modes: %v", err)
	}

	vendors := newVendors(cfg)
	orchestrator := videogen.New(vendors.video, modeRegistry, st, videogen.Config{
		AttemptsPerModel: cfg.Video.AttemptsPerModel,
		Stable:           modes.Target{Provider: cfg.Video.StableProvider, Model: cfg.Video.StableModel},
		PollInterval:     cfg.Video.PollIntervalSeconds,
		PollMaxAttempts:  cfg.Video.PollMaxAttempts,
		CallbackURL:      cfg.CallbackURL,
		LiveWindow:       cfg.Video.StaleAfter(),
	}, logger.With("component", "videogen"))

	lease, err := worker.NewRedisLease(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create lease client: %v", err)
	}
	defer lease.Close()

	enqueuer, err := worker.NewEnqueuer(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create task client: %v", err)
	}
	defer enqueuer.Close()

	p := pipeline.New(pipeline.Deps{
		Store:     st,
		Evaluator: schedule.NewEvaluator(time.Duration(cfg.TriggerWindowMin)*time.Minute, logger),
		Scripts:   scriptgen.New(vendors.text),
		Videos:    orchestrator,
		Modes:     modeRegistry,
		Publisher: vendors.publisher,
		Lease:     lease,
		Dispatch:  enqueuer.EnqueueGenerateVideo,
		Logger:    logger.With("component", "pipeline"),
	}, pipeline.Config{
		Concurrency: cfg.PipelineConcurrency,
		StaleAfter:  cfg.Video.StaleAfter(),
	})

	log.Printf("Starting in %s mode (modes: %d, stub providers: %v)", cfg.AppMode, modeRegistry.Count(), cfg.Providers.Stub)

	switch cfg.AppMode {
	case "worker":
		runWorker(cfg, p, logger)
	case "server":
		runServer(cfg, db, st, p, enqueuer, logger)
	case "embedded":
		stopWorker, err := worker.Start(cfg, p, logger)
		if err != nil {
			log.Fatalf("Failed to start worker: %v", err)
		}
		defer stopWorker()

		stopBackground := startBackground(cfg, p, logger)
		defer stopBackground()

		runServer(cfg, db, st, p, enqueuer, logger)
	default:
		log.Fatalf("Unknown APP_MODE %q (expected server, worker or embedded)", cfg.AppMode)
	}
}

type vendorSet struct {
	video     providers.Registry
	text      scriptgen.TextGenerator
	publisher pipeline.Publisher
}

// newVendors builds the external API clients, or offline stand-ins when
// STUB_PROVIDERS is set.
func newVendors(cfg *config.Config) vendorSet {
	pc := cfg.Providers
	if pc.Stub {
		return vendorSet{
			video: providers.NewRegistry(
				stub.NewVideoProvider(kie.Name, 3, time.Second),
				stub.NewVideoProvider(poyo.Name, 3, time.Second),
				stub.NewVideoProvider(heygen.Name, 3, time.Second),
			),
			text:      stub.TextGenerator{Delay: 500 * time.Millisecond},
			publisher: stub.Publisher{},
		}
	}

	return vendorSet{
		video: providers.NewRegistry(
			kie.NewClient(kie.Settings{APIKey: pc.KIEAPIKey, BaseURL: pc.KIEBaseURL}),
			poyo.NewClient(poyo.Settings{APIKey: pc.PoyoAPIKey, BaseURL: pc.PoyoBaseURL}),
			heygen.NewClient(heygen.Settings{APIKey: pc.HeyGenAPIKey, BaseURL: pc.HeyGenBaseURL, VoiceID: pc.HeyGenVoiceID}),
		),
		text: openai.NewClient(openai.Settings{
			APIKey:  pc.OpenAIAPIKey,
			BaseURL: pc.OpenAIBaseURL,
			Model:   pc.OpenAIModel,
		}),
		publisher: uploadpost.NewClient(uploadpost.Settings{APIKey: pc.UploadPostAPIKey, BaseURL: pc.UploadPostBaseURL}),
	}
}

// startBackground starts the periodic scheduler and the callback consumer.
func startBackground(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) (stop func()) {
	stopScheduler, err := worker.StartScheduler(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	hostname, _ := os.Hostname()
	consumerName := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	stopConsumer, err := streams.StartCallbackConsumer(cfg.RedisURL, consumerName, p, logger)
	if err != nil {
		stopScheduler()
		log.Fatalf("Failed to start callback consumer: %v", err)
	}

	return func() {
		stopConsumer()
		stopScheduler()
	}
}

func runWorker(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) {
	stop := startBackground(cfg, p, logger)
	defer stop()

	// Run blocks until SIGTERM/SIGINT
	if err := worker.Run(cfg, p, logger); err != nil {
		log.Printf("Worker stopped with error: %v", err)
	}
}

func runServer(cfg *config.Config, db *gorm.DB, st *store.Store, p *pipeline.Pipeline, enqueuer *worker.Enqueuer, logger *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql.DB: %v", err)
	}

	callbacks, err := streams.NewPublisher(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create callback publisher: %v", err)
	}
	defer callbacks.Close()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/ready", gin.WrapF(health.ReadyHandler(sqlDB)))

	handlers := &items.Handlers{
		Actions:   p,
		Items:     st,
		Dispatch:  enqueuer.EnqueueGenerateVideo,
		Callbacks: callbacks,
		Logger:    logger.With("component", "http"),
	}
	handlers.Register(r.Group("/api", auth.RequireSecret(cfg.InternalAPISecret)), r.Group("/callbacks"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
