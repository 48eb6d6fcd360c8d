package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travelogue/internal/api"
	"travelogue/pkg/config"
	"travelogue/pkg/db"
	"travelogue/pkg/db/maintenance"
	"travelogue/pkg/embedding"
	"travelogue/pkg/evaluation"
	"travelogue/pkg/llm/failover"
	"travelogue/pkg/llm/prompts"
	"travelogue/pkg/logging"
	"travelogue/pkg/narrator"
	"travelogue/pkg/overpass"
	"travelogue/pkg/probe"
	"travelogue/pkg/request"
	"travelogue/pkg/sentiment"
	"travelogue/pkg/similarity"
	"travelogue/pkg/store"
	"travelogue/pkg/tracker"
	"travelogue/pkg/verdict"
	"travelogue/pkg/version"
)

// app holds the wired services shared by every sub-command.
type app struct {
	cfg       *config.Config
	store     *store.SQLiteStore
	tracker   *tracker.Tracker
	generator *narrator.Generator
	evaluator *evaluation.Service
	probes    []probe.Probe
}

// newApp loads the configuration and wires storage, outbound clients and the
// generation and evaluation pipelines. The returned cleanup releases them in
// reverse order.
func newApp(ctx context.Context, configPath string) (*app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	slog.Info("Travelogue starting", "version", version.Version, "config", configPath)

	d, err := db.Init(cfg.DB.Path)
	if err != nil {
		cleanupLogs()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	maintenance.Run(ctx, d, cfg.DB.CacheTTL.Std())
	st := store.NewSQLiteStore(d)

	tr := tracker.New()
	rc := request.New(request.ConfigFrom(&cfg.Request), st, tr)

	cleanup := func() {
		rc.Close()
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
		cleanupLogs()
	}

	a, err := wire(ctx, cfg, st, rc, tr)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

func wire(ctx context.Context, cfg *config.Config, st *store.SQLiteStore, rc *request.Client, tr *tracker.Tracker) (*app, error) {
	chain, err := failover.FromConfig(ctx, &cfg.LLM, rc, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to configure LLM providers: %w", err)
	}
	pm, err := prompts.Load(cfg.LLM.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	assembler := narrator.NewAssembler(st, overpass.NewClient(rc, &cfg.Overpass), &cfg.Context)
	gen := narrator.NewGenerator(assembler, chain, pm, st, narrator.GeneratorConfig{
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout.Std(),
	})

	scorer, err := similarity.New(embedding.New(&cfg.Embedding, rc, st), &cfg.Similarity)
	if err != nil {
		return nil, fmt.Errorf("failed to configure similarity scorer: %w", err)
	}

	eval := evaluation.NewService(gen, scorer, sentiment.New(), verdict.New(cfg.Verdict.Alpha), st, evaluation.Options{
		ReuseTravelogue:  cfg.Evaluation.ReuseTravelogue,
		VerdictThreshold: cfg.Verdict.Threshold,
	})

	return &app{
		cfg:       cfg,
		store:     st,
		tracker:   tr,
		generator: gen,
		evaluator: eval,
		probes: []probe.Probe{
			probe.Database(st),
			probe.LLM(chain, cfg.LLM.Timeout.Std()),
		},
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	if err := probe.AnalyzeResults(probe.Run(ctx, a.probes)); err != nil {
		return fmt.Errorf("start-up checks failed: %w", err)
	}

	fallback := make([]string, len(a.cfg.LLM.Providers))
	for i, p := range a.cfg.LLM.Providers {
		fallback[i] = p.Type
	}

	srv := api.NewServer(&a.cfg.Server, api.Handlers{
		Routes:    api.NewRouteHandler(a.store),
		Narrative: api.NewNarrativeHandler(a.generator, a.evaluator, a.store),
		Health:    api.NewHealthHandler(a.probes...),
		Stats:     api.NewStatsHandler(a.tracker, fallback),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit <-chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
