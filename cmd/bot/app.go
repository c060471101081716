package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/mimic-bot/internal/bot"
	"github.com/xaenox/mimic-bot/internal/chatconfig"
	"github.com/xaenox/mimic-bot/internal/generator"
	"github.com/xaenox/mimic-bot/internal/janitor"
	"github.com/xaenox/mimic-bot/internal/memory"
	"github.com/xaenox/mimic-bot/internal/prompt"
	"github.com/xaenox/mimic-bot/internal/storage"
	"github.com/xaenox/mimic-bot/internal/style"
	"github.com/xaenox/mimic-bot/internal/transport"
	"github.com/xaenox/mimic-bot/pkg/config"
	"go.uber.org/zap"
)

type app struct {
	store        storage.Storage
	transport    transport.Transport
	orchestrator *bot.Orchestrator
	janitor      *janitor.Janitor
	logger       *zap.Logger
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}

func openStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageDriver() {
	case config.DriverMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case config.DriverPostgres:
		logger.Info("Using PostgreSQL storage")
		store, err := storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.Path))
		store, err := storage.NewSQLiteStorage(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func openTransport(cfg *config.Config, logger *zap.Logger) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportDiscord:
		tr, err := transport.NewDiscord(cfg.Discord.Token, cfg.Discord.OwnerID, logger)
		if err != nil {
			return nil, err
		}
		return tr, nil
	default:
		tr, err := transport.NewTelegram(cfg.Telegram.Token, cfg.Telegram.OwnerID, logger)
		if err != nil {
			return nil, err
		}
		return tr, nil
	}
}

func loadPrompts(path string) (*prompt.Builder, error) {
	templates := prompt.DefaultTemplates()
	if path != "" {
		var err error
		if templates, err = prompt.LoadTemplates(path); err != nil {
			return nil, err
		}
	}
	return prompt.NewBuilder(templates)
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStorage(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	chats, err := chatconfig.Load(cfg.Bot.ChatsConfigPath, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load chat config: %w", err)
	}

	prompts, err := loadPrompts(cfg.Bot.PromptsPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	tr, err := openTransport(cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connect transport: %w", err)
	}

	gen := generator.NewOpenAIGenerator(generator.Config{
		APIKey:            cfg.OpenAI.APIKey,
		BaseURL:           cfg.OpenAI.BaseURL,
		Model:             cfg.OpenAI.Model,
		MaxTokens:         cfg.OpenAI.MaxTokens,
		Temperature:       cfg.OpenAI.Temperature,
		RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
		MaxResponseLength: chats.Settings().MaxResponseLength,
		RetryBackoff:      2 * time.Second,
	}, logger)

	mem := memory.New(store, logger)
	opts := bot.DefaultOptions()
	opts.CommandPrefix = cfg.Bot.CommandPrefix
	opts.DefaultDebounce = cfg.Bot.Debounce
	opts.SpecialDebounce = cfg.Bot.SpecialDebounce
	opts.DedupWindow = cfg.Bot.DedupWindow
	opts.HistoryLimit = cfg.Bot.HistoryLimit
	opts.HistoryMaxAge = cfg.Bot.HistoryMaxAge
	opts.LearnBatch = cfg.Bot.LearnBatch

	orchestrator := bot.New(bot.Deps{
		Memory:     mem,
		Authorizer: chats,
		Generator:  gen,
		Sender:     tr,
		Learner:    style.NewAnalyzer(store, store, logger),
		Prompts:    prompts,
	}, opts, logger)

	a := &app{
		store:        store,
		transport:    tr,
		orchestrator: orchestrator,
		logger:       logger,
	}

	if retention := cfg.Maintenance.Retention(); retention > 0 {
		a.janitor, err = janitor.New(mem, cfg.Maintenance.Schedule, retention, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Run blocks until ctx is cancelled or the transport stops delivering.
func (a *app) Run(ctx context.Context) error {
	events, err := a.transport.Start(ctx)
	if err != nil {
		return fmt.Errorf("start %s transport: %w", a.transport.Name(), err)
	}

	if a.janitor != nil {
		go func() {
			if err := a.janitor.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("Janitor stopped", zap.Error(err))
			}
		}()
	}

	a.logger.Info("Bot started", zap.String("transport", a.transport.Name()))
	return a.orchestrator.Run(ctx, events)
}

func (a *app) Close() {
	a.orchestrator.Close()
	if err := a.transport.Close(); err != nil {
		a.logger.Warn("Failed to close transport", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close storage", zap.Error(err))
	}
}
