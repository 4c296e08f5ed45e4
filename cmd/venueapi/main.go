package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/church-studio/venue-api/internal/collector"
	"github.com/church-studio/venue-api/internal/core/config"
	"github.com/church-studio/venue-api/internal/events"
	"github.com/church-studio/venue-api/internal/notify"
	"github.com/church-studio/venue-api/internal/plans"
	"github.com/church-studio/venue-api/internal/server"
	"github.com/church-studio/venue-api/internal/store"
	"github.com/church-studio/venue-api/internal/tunes"
	"github.com/church-studio/venue-api/internal/universe"
	"github.com/church-studio/venue-api/internal/webhooks"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"organizer_slug", cfg.Universe.OrganizerSlug,
		"graphql_enabled", cfg.Universe.OrganizerID != "",
		"notify_enabled", cfg.Notify.Enabled,
	)

	// 2. Initialize the fallback cache
	cache := store.NewMemory()

	// 3. Initialize the event sources, in precedence order
	uniClient := universe.NewClient(cfg.Universe)

	var sources []collector.Source
	if cfg.Universe.OrganizerID != "" {
		sources = append(sources, universe.NewHostEventsSource(uniClient, cfg.Universe.OrganizerID))
	} else {
		slog.Info("GraphQL adapter disabled, no organizer_id configured")
	}
	sources = append(sources,
		universe.NewPublicJSONSource(cfg.Universe),
		universe.NewCrawlSource(cfg.Universe),
	)

	sheet, err := tunes.NewSheetSource(cfg.Tunes)
	if err != nil {
		slog.Error("Failed to initialize spreadsheet source", "error", err)
		os.Exit(1)
	}
	sources = append(sources, sheet)

	// 4. Initialize the collector and the query service
	coll := collector.New(cache, sources...)
	eventsSvc := events.NewService(coll)

	// 5. Initialize webhooks, plans and the daily reminder
	webhookHandler := webhooks.NewHandler(
		cfg.Universe.WebhookSecret,
		cache,
		int64(cfg.Server.MaxBodySizeMB)*1024*1024,
	)
	plansHandler := plans.NewHandler(plans.NewClient(cfg.Plans))

	var reminder *notify.Scheduler
	if cfg.Notify.Enabled {
		reminder, err = notify.NewScheduler(cfg.Notify, sheet, notify.LogNotifier{})
		if err != nil {
			slog.Error("Failed to initialize reminder scheduler", "error", err)
			os.Exit(1)
		}
	}

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cache, cfg.Server.Mode)
	eventsSvc.RegisterRoutes(srv.Engine)
	webhookHandler.RegisterRoutes(srv.Engine)
	plansHandler.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if reminder != nil {
		reminder.Start()
		defer reminder.Stop()
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
