package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eatsdeals/eats-deals-bot/internal/ai"
	"github.com/eatsdeals/eats-deals-bot/internal/chat"
	"github.com/eatsdeals/eats-deals-bot/internal/config"
	"github.com/eatsdeals/eats-deals-bot/internal/janitor"
	"github.com/eatsdeals/eats-deals-bot/internal/notifier"
	"github.com/eatsdeals/eats-deals-bot/internal/processor"
	"github.com/eatsdeals/eats-deals-bot/internal/scraper"
	"github.com/eatsdeals/eats-deals-bot/internal/server"
	"github.com/eatsdeals/eats-deals-bot/internal/storage"
)

func main() {
	slog.Info("Starting Uber Eats deals server...")

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		slog.Error("Critical error opening deal store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		slog.Error("Critical error migrating deal store", "error", err)
		os.Exit(1)
	}

	extractor, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("Critical error initializing extraction client", "error", err)
		os.Exit(1)
	}

	browser := scraper.NewBrowser(cfg.ChromePath)
	defer browser.Close()

	hub := notifier.NewHub()
	loader := scraper.NewLoader(browser, cfg.ScrollInterval)
	fetcher := scraper.NewDetailFetcher()
	finder := processor.New(loader, fetcher, extractor, store, hub, cfg)
	chatSvc := chat.New(store, extractor)

	go janitor.New(store, cfg.JanitorInterval, cfg.StaleAfter).Run(ctx)

	srv := server.New(finder, store, chatSvc, hub)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // discovery runs answer synchronously
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}
