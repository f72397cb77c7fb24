// Package main provides the packlens analysis server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/packlens/packlens/internal/analyzer"
	"github.com/packlens/packlens/internal/blob"
	"github.com/packlens/packlens/internal/config"
	"github.com/packlens/packlens/internal/credits"
	"github.com/packlens/packlens/internal/db"
	"github.com/packlens/packlens/internal/jobs"
	"github.com/packlens/packlens/internal/llm"
	"github.com/packlens/packlens/internal/metrics"
	"github.com/packlens/packlens/internal/notify"
	"github.com/packlens/packlens/internal/progress"
	"github.com/packlens/packlens/internal/server"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()

	logger.Info("starting packlens-server", "addr", cfg.ListenAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	if err := dbClient.InitSchema(ctx); err != nil {
		cancel()
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	if *wipeDB || os.Getenv("PACKLENS_WIPE_DB") == "true" {
		if err := dbClient.WipeData(ctx); err != nil {
			cancel()
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}
	cancel()

	store, err := blob.NewFilesystemStore(cfg.BlobRoot)
	if err != nil {
		logger.Error("failed to open blob store", "error", err, "root", cfg.BlobRoot)
		os.Exit(1)
	}

	completer, err := llm.NewClient(llm.ClientConfig{
		Provider:        llm.Provider(cfg.LLMProvider),
		Model:           cfg.LLMModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OllamaHost:      cfg.OllamaHost,
	})
	if err != nil {
		logger.Error("failed to create LLM client", "error", err)
		os.Exit(1)
	}

	prices, err := config.LoadPricing(cfg.PricingFile)
	if err != nil {
		logger.Error("failed to load pricing", "error", err, "file", cfg.PricingFile)
		os.Exit(1)
	}

	var notifier notify.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	pipeline := analyzer.NewService(
		store,
		dbClient,
		completer,
		jobs.NewRegistry(),
		progress.NewTracker(),
		credits.NewReconciler(dbClient, logger),
		notifier,
		metrics.NewCollector(),
		analyzer.Config{
			Model:             cfg.LLMModel,
			MaxTokensPerChunk: cfg.MaxTokensPerChunk,
			InitialCharWindow: cfg.InitialCharWindow,
			OverlapChars:      cfg.OverlapChars,
			MinChunkChars:     cfg.MinChunkChars,
			MaxRetries:        cfg.MaxRetries,
			Temperature:       cfg.Temperature,
			MaxOutputTokens:   cfg.MaxOutputTokens,
			Prices:            prices,
		},
		logger,
	)

	srv := server.New(cfg.ListenAddr, pipeline, dbClient, dbClient, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
