package main

import (
	"context"
	"fmt"
	"log/slog"
	"mediumpilot/internal/composer"
	"mediumpilot/internal/config"
	"mediumpilot/internal/database"
	"mediumpilot/internal/feed"
	"mediumpilot/internal/notify"
	"mediumpilot/internal/pipeline"
	"mediumpilot/internal/publisher"
	"mediumpilot/internal/registry"
	"mediumpilot/internal/summarizer"
	"os"
	"time"
)

type app struct {
	cfg          config.Config
	db           *database.Database
	orchestrator *pipeline.Orchestrator
	registry     *registry.Registry
	log          *slog.Logger
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("init db %q: %w", cfg.DBPath, err)
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	reg, err := registry.New(db, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init registry: %w", err)
	}

	opts := pipeline.Options{
		Concurrency: cfg.CycleConcurrency,
		LeaseTTL:    cfg.LeaseTTL,
		Reporter:    initNotifier(ctx, cfg, log),
	}

	orchestrator := pipeline.New(pipeline.Deps{
		Directory: db,
		Fetcher:   feed.NewFetcher(cfg.HTTPTimeout, log),
		Extractor: feed.NewExtractor(cfg.CoverImageFromContent, log),
		Excerpts:  feed.NewExcerptPolicy(initSummarizer(ctx, cfg, log), log),
		Composer:  composer.New(composer.DefaultPhrases(), loc, time.Now),
		Publisher: publisher.NewLinkedIn(cfg.LinkedInAPIURL, cfg.HTTPTimeout, log),
	}, opts, log)

	return &app{
		cfg:          cfg,
		db:           db,
		orchestrator: orchestrator,
		registry:     reg,
		log:          log,
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.db.Close(); err != nil {
		a.log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", a.cfg.DBPath)
	}
}

func initSummarizer(ctx context.Context, cfg config.Config, log *slog.Logger) summarizer.Summarizer {
	if cfg.SummarizerProvider == config.SummarizerProviderOpenAI {
		s, err := summarizer.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.SummarizerCharLimit, cfg.SummarizerTimeout)
		if err != nil {
			log.WarnContext(ctx, "Failed to create OpenAI summarizer so fallback will be used",
				"error", err,
				"envVar", "OPENAI_API_KEY")

			return nil
		}

		log.InfoContext(ctx, "Summarizer is initialized",
			"provider", config.SummarizerProviderOpenAI)

		return s
	}

	if cfg.SummarizerURL == "" {
		log.WarnContext(ctx, "SUMMARIZER_URL is empty so fallback will be used",
			"envVar", "SUMMARIZER_URL")

		return nil
	}

	log.InfoContext(ctx, "Summarizer is initialized",
		"provider", config.SummarizerProviderHTTP,
		"url", cfg.SummarizerURL,
		"timeout", cfg.SummarizerTimeout.String())

	return summarizer.NewHTTPSummarizer(cfg.SummarizerURL, cfg.SummarizerCharLimit, cfg.SummarizerTimeout)
}

func initNotifier(ctx context.Context, cfg config.Config, log *slog.Logger) pipeline.Reporter {
	if !cfg.NotifierEnabled() {
		return nil
	}

	n, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
	if err != nil {
		log.WarnContext(ctx, "Failed to create Telegram notifier so reports are disabled",
			"error", err,
			"chatID", cfg.TelegramChatID)

		return nil
	}

	log.InfoContext(ctx, "Telegram notifier is initialized",
		"chatID", cfg.TelegramChatID)

	return n
}
