package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cronwatch/internal/alert"
	"cronwatch/internal/api"
	"cronwatch/internal/config"
	"cronwatch/internal/db"
	"cronwatch/internal/ingest"
	"cronwatch/internal/schedule"
	"cronwatch/internal/stats"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	if err := cfg.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("[Main] Failed to prepare data directory")
	}

	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] Failed to open database")
	}

	store := db.NewStore(gdb)
	sched := schedule.NewService(store)
	alerts := alert.NewService(store, sched, alert.NewFactory(alert.FactoryOptions{SMSGatewayURL: cfg.SMSGatewayURL}))
	statsSvc := stats.NewService(store)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "import":
		runImport(ctx, cfg, store, alerts, fullImportRequested())
	case "check-overdue":
		runSweep(ctx, alerts)
	case "serve":
		runServe(ctx, cfg, store, sched, alerts, statsSvc)
	default:
		fmt.Fprintf(os.Stderr, "usage: cronwatch [import [--full] | check-overdue | serve]\n")
		os.Exit(2)
	}
}

func fullImportRequested() bool {
	for _, arg := range os.Args[2:] {
		if arg == "--full" {
			return true
		}
	}
	return false
}

// runImport parses the history log and, independently, the API request log.
// One source failing does not abort the other.
func runImport(ctx context.Context, cfg *config.Config, store *db.Store, alerts *alert.Service, full bool) {
	incremental := !full

	history := ingest.NewHistoryParser(store, cfg.HistoryLogPath,
		ingest.NewWatermark(filepath.Join(cfg.DataDir, "history.watermark")), alerts)
	n, err := history.Parse(ctx, incremental)
	if err != nil {
		if errors.Is(err, ingest.ErrLogNotFound) {
			log.Warn().Str("path", cfg.HistoryLogPath).Msg("[Import] History log not found, skipping")
		} else {
			log.Error().Err(err).Msg("[Import] History import failed")
		}
	} else {
		log.Info().Int("imported", n).Msg("[Import] History log processed")
	}

	apiLog := ingest.NewAPILogParser(store, cfg.APILogPath,
		ingest.NewWatermark(filepath.Join(cfg.DataDir, "apilog.watermark")), alerts)
	n, err = apiLog.Parse(ctx, incremental)
	if err != nil {
		if errors.Is(err, ingest.ErrLogNotFound) {
			log.Warn().Str("path", cfg.APILogPath).Msg("[Import] API log not found, skipping")
		} else {
			log.Error().Err(err).Msg("[Import] API log import failed")
		}
	} else {
		log.Info().Int("imported", n).Msg("[Import] API log processed")
	}
}

func runSweep(ctx context.Context, alerts *alert.Service) {
	count, err := alerts.CheckOverdueMonitors(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("[Sweep] Overdue check failed")
	}
	log.Info().Int("notifications", count).Msg("[Sweep] Overdue check complete")
}

// runServe runs the HTTP server alongside a cron-driven pipeline that
// imports fresh log lines and then sweeps for overdue monitors.
func runServe(ctx context.Context, cfg *config.Config, store *db.Store, sched *schedule.Service, alerts *alert.Service, statsSvc *stats.Service) {
	server, err := api.NewServer(cfg, store, sched, statsSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] Failed to create server")
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.SweepSchedule, func() {
		runImport(ctx, cfg, store, alerts, false)
		if _, err := alerts.CheckOverdueMonitors(ctx); err != nil {
			log.Error().Err(err).Msg("[Sweep] Overdue check failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("[Main] Invalid sweep schedule")
	}
	c.Start()
	defer c.Stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr()).Msg("[Main] HTTP server listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("[Main] Server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("[Main] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[Main] Forced shutdown")
	}
}
