// Command voxfolio is the voice portfolio client: it captures microphone
// audio, streams it to the analysis backend over a WebSocket, plays the
// spoken responses back and exposes the backend's REST API through an
// interactive command prompt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KabeerThockchom/voxfolio/internal/app"
	"github.com/KabeerThockchom/voxfolio/internal/config"
	"github.com/KabeerThockchom/voxfolio/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxfolio: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxfolio: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := &slog.LevelVar{}
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("voxfolio starting",
		"config", *configPath,
		"ws_url", cfg.Server.WSURL,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxfolio",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, app.WithLogLevelVar(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Shutdown()

	// ── Config file watcher ───────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		application.ApplyConfig(ctx, old, new)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════════╗")
	fmt.Println("║         voxfolio — startup summary        ║")
	fmt.Println("╠═══════════════════════════════════════════╣")
	printRow("Backend WS", cfg.Server.WSURL)
	printRow("Backend API", orDefault(cfg.Server.APIBaseURL, "(not configured)"))
	printRow("Voice", cfg.Session.Voice)
	printRow("Pipeline", pipelineMode(cfg.Session.Realtime))
	printRow("Audio", fmt.Sprintf("%s %dHz/%dch", cfg.Audio.Backend, cfg.Audio.SampleRate, cfg.Audio.Channels))
	if cfg.Logs.Enabled {
		printRow("Session logs", "enabled")
	} else {
		printRow("Session logs", "disabled")
	}
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if len(value) > 25 {
		value = value[:22] + "…"
	}
	fmt.Printf("║  %-12s : %-25s ║\n", kind, value)
}

func pipelineMode(realtime bool) string {
	if realtime {
		return "realtime"
	}
	return "cascaded"
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
