// Command voicewire is the real-time voice dialog client. It streams
// microphone audio (raw PCM16 on stdin by default) to a speech service over
// WebSocket and plays the service's replies gaplessly on the system output
// device, cancelling playback when the service reports a barge-in.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voicewire/internal/app"
	"github.com/MrWong99/voicewire/internal/config"
	"github.com/MrWong99/voicewire/internal/health"
	"github.com/MrWong99/voicewire/internal/observe"
	"github.com/MrWong99/voicewire/pkg/audio/capture"
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
			fmt.Fprintf(os.Stderr, "voicewire: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicewire: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicewire starting",
		"config", *configPath,
		"service", cfg.Service.URL,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voicewire",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Capture source ────────────────────────────────────────────────────────
	source := capture.NewReaderSource(os.Stdin, cfg.Capture.SampleRate, cfg.Capture.Channels)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, source)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr, application.HealthCheckers()...)
	}

	slog.Info("client ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, app.ErrSessionClosed) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// serveMetrics exposes the Prometheus /metrics endpoint together with the
// /healthz and /readyz probes.
func serveMetrics(addr string, checkers ...health.Checker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint error", "err", err)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voicewire — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Service", trimValue(cfg.Service.URL))
	printRow("Outbound", fmt.Sprintf("pcm16@%d", cfg.Service.OutboundRate))
	printRow("Inbound", fmt.Sprintf("pcm16@%d", cfg.Service.InboundRate))
	printRow("Capture", fmt.Sprintf("%d Hz / %d ch", cfg.Capture.SampleRate, cfg.Capture.Channels))
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics", cfg.Server.MetricsAddr)
	} else {
		printRow("Metrics", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	fmt.Printf("║  %-10s : %-23s ║\n", kind, trimValue(value))
}

func trimValue(v string) string {
	if len(v) > 23 {
		return v[:20] + "…"
	}
	return v
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
