package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vocdoni/bonsai-local/api"
	"github.com/vocdoni/bonsai-local/db"
	"github.com/vocdoni/bonsai-local/db/metadb"
	"github.com/vocdoni/bonsai-local/engine"
	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/metrics"
	"github.com/vocdoni/bonsai-local/prover"
	"github.com/vocdoni/bonsai-local/service"
	"github.com/vocdoni/bonsai-local/snark"
	"github.com/vocdoni/bonsai-local/storage"
)

// Services holds all the running services
type Services struct {
	Storage *storage.Storage
	Engine  *service.EngineService
	API     *service.APIService
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting bonsai-local", "version", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	// state lives for the process lifetime only
	log.Infow("initializing storage", "backend", cfg.Storage.Backend, "maxBytes", cfg.Storage.MaxBytes)
	database, err := metadb.New(cfg.Storage.Backend, db.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(database, cfg.Storage.MaxBytes)

	m := metrics.New()
	m.WatchArtifacts(services.Storage.Stats)

	sessions := jobs.NewRegistry(jobs.KindSession, services.Storage, cfg.Engine.Queue)
	snarks := jobs.NewRegistry(jobs.KindSnark, services.Storage, cfg.Engine.Queue)

	p, err := prover.NewGroth16Prover(cfg.Prover.KeyCache, cfg.Prover.DevMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create prover: %w", err)
	}
	if cfg.Prover.DevMode {
		log.Warnw("dev mode enabled, receipts carry no proof")
	}

	log.Infow("starting engine", "sessions", cfg.Engine.Sessions, "snarks", cfg.Engine.Snarks, "queue", cfg.Engine.Queue)
	e := engine.New(services.Storage, sessions, snarks, p, snark.Groth16Converter{}, m, engine.Config{
		Sessions: cfg.Engine.Sessions,
		Snarks:   cfg.Engine.Snarks,
	})
	services.Engine = service.NewEngine(e, sessions, snarks)
	if err := services.Engine.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	services.API, err = service.NewAPI(&api.Config{
		Storage:     services.Storage,
		Sessions:    sessions,
		Snarks:      snarks,
		Metrics:     m,
		MaxBodySize: cfg.API.MaxBody,
		BaseURL:     cfg.API.URL,
		Version:     Version,
	}, cfg.API.Host, cfg.API.Port, false)
	if err != nil {
		services.Engine.Stop()
		return nil, err
	}
	if err := services.API.Start(ctx); err != nil {
		services.Engine.Stop()
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}
	return services, nil
}

// shutdownServices stops the API first so no new jobs arrive, then waits
// for running jobs.
func shutdownServices(services *Services) {
	if services == nil {
		return
	}
	if services.API != nil {
		services.API.Stop()
	}
	if services.Engine != nil {
		services.Engine.Stop()
	}
	if services.Storage != nil {
		if err := services.Storage.Close(); err != nil {
			log.Warnw("failed to close storage", "error", err.Error())
		}
	}
	log.Infow("shutdown complete")
}
