// Package app wires the service together: storage, queue, vault, the
// analysis pipeline, and the HTTP layer.
package app

import (
	"context"
	"net/http"
	"strconv"

	"trade-coach/internal/cache"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/config"
	"trade-coach/internal/crypto"
	"trade-coach/internal/dispatch"
	"trade-coach/internal/genai"
	"trade-coach/internal/handlers"
	"trade-coach/internal/journal"
	"trade-coach/internal/queue"
	"trade-coach/internal/schedule"
	"trade-coach/internal/store"
	"trade-coach/internal/vault"
	"trade-coach/internal/workflow"

	// Storage and queue adapters register themselves with their factories.
	_ "trade-coach/internal/queue/aws"
	_ "trade-coach/internal/queue/gcp"
	_ "trade-coach/internal/queue/kafka"
	_ "trade-coach/internal/queue/local"
	_ "trade-coach/internal/queue/rabbitmq"
	_ "trade-coach/internal/store/postgres"
	_ "trade-coach/internal/store/sqlite"
)

// App holds every long-lived component.
type App struct {
	Config    *config.Config
	Storage   store.Storage
	Queue     queue.Queue
	Cache     *cache.StatusCache
	Vault     *vault.Vault
	Engine    *workflow.Engine
	Scheduler *schedule.Scheduler
	Handler   http.Handler
	Logger    logging.Logger

	consumerCancel context.CancelFunc
}

// New builds the application. Components come up in dependency order; an
// error on any required one aborts startup.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	storage, err := store.NewStorage(cfg)
	if err != nil {
		return nil, err
	}
	app.Storage = storage

	jobQueue, err := queue.NewQueue(cfg)
	if err != nil {
		return nil, err
	}
	app.Queue = jobQueue

	// The status cache is optional; the API falls back to the database.
	if cfg.RedisAddress != "" {
		statusCache, err := cache.NewStatusCache(&cache.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       redisDB(cfg.RedisDB),
		})
		if err != nil {
			app.Logger.Warn("Redis unavailable, continuing without status cache",
				logging.Err(err))
		} else {
			app.Cache = statusCache
		}
	}

	cipher, err := crypto.NewTokenCipher(cfg.EncryptionSecret())
	if err != nil {
		return nil, err
	}
	exchanger := vault.NewGoogleExchanger(vault.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, nil)
	app.Vault = vault.New(storage, cipher, exchanger, nil)

	signer, err := vault.NewStateSigner(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	// One model client serves transcription, vision, synthesis, and trade
	// extraction.
	model, err := genai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, nil)
	if err != nil {
		return nil, err
	}

	engine, err := app.buildEngine(context.Background(), model)
	if err != nil {
		return nil, err
	}
	app.Engine = engine

	journalClient := journal.NewClient()
	extractor := journal.NewExtractor(model, nil)
	enqueuer := dispatch.NewEnqueuer(storage, jobQueue, nil)

	if cfg.ScheduleSpec != "" {
		scheduler, err := schedule.NewScheduler(storage, enqueuer, cfg.ScheduleSpec, nil)
		if err != nil {
			return nil, err
		}
		app.Scheduler = scheduler
	}

	app.Handler = handlers.New(handlers.Options{
		Storage:   storage,
		Cache:     app.Cache,
		Vault:     app.Vault,
		Signer:    signer,
		AuthURL:   exchanger.AuthCodeURL,
		Enqueuer:  enqueuer,
		Journal:   journalClient,
		Extractor: extractor,
	}).Routes()

	return app, nil
}

func redisDB(raw string) int {
	db, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return db
}

// Start begins consuming jobs and, when configured, the scheduler.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.consumerCancel = cancel

	if err := a.Queue.Subscribe(ctx, a.Engine.Process); err != nil {
		cancel()
		return err
	}
	a.Logger.Info("Job consumer started", logging.Field{Key: "queue", Value: a.Queue.Name()})

	if a.Scheduler != nil {
		a.Scheduler.Start()
	}
	return nil
}

// Shutdown stops intake first, then closes the components that hold
// connections.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.consumerCancel != nil {
		a.consumerCancel()
	}

	var firstErr error
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
