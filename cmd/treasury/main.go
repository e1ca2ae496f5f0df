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

	"github.com/use-agent/treasury/api"
	"github.com/use-agent/treasury/cache"
	"github.com/use-agent/treasury/config"
	"github.com/use-agent/treasury/llm"
	"github.com/use-agent/treasury/render"
	"github.com/use-agent/treasury/retry"
	"github.com/use-agent/treasury/treasury"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("treasury starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"renderMode", cfg.Render.Mode,
		"disabledFunds", cfg.Funds.Disabled,
	)

	// ── 3. Initialise renderer ──────────────────────────────────────
	var renderer render.Renderer
	switch cfg.Render.Mode {
	case "browser":
		b, err := render.NewBrowser(cfg.Browser)
		if err != nil {
			slog.Error("failed to launch browser renderer", "error", err)
			os.Exit(1)
		}
		defer b.Close()
		renderer = b
	default:
		renderer = render.NewFirecrawl(cfg.Render, nil)
	}

	// ── 4. Initialise extraction client and pipeline ────────────────
	llmClient := llm.NewClient(cfg.LLM, nil)
	pipeline := treasury.NewPipeline(renderer, llmClient)

	// ── 5. Initialise orchestrator ──────────────────────────────────
	roster := treasury.Roster(cfg.Funds.Disabled)
	svc, err := treasury.NewService(pipeline, roster, retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		MinWait:     cfg.Retry.MinWait,
		MaxWait:     cfg.Retry.MaxWait,
	})
	if err != nil {
		slog.Error("failed to initialise holdings service", "error", err)
		os.Exit(1)
	}
	slog.Info("roster loaded", "funds", svc.RosterSize())

	// ── 6. Setup snapshot cache and router ──────────────────────────
	snap := cache.New()
	startTime := time.Now()
	router := api.NewRouter(svc, cfg, snap, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete. A live holdings run
	// takes longer than that; clients are expected to re-request from cache.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("treasury stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
