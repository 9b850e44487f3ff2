package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xaenox/regretgpt/internal/cache"
	"github.com/xaenox/regretgpt/internal/classifier"
	"github.com/xaenox/regretgpt/internal/storage"
	"github.com/xaenox/regretgpt/pkg/config"
	"go.uber.org/zap"
)

type appContext struct {
	configFlag *string
	debugFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
}

func newAppContext(configFlag *string, debugFlag *bool) *appContext {
	return &appContext{
		configFlag: configFlag,
		debugFlag:  debugFlag,
	}
}

func (a *appContext) ensureConfig() (*config.Config, error) {
	a.configOnce.Do(func() {
		var path string
		if a.configFlag != nil {
			path = strings.TrimSpace(*a.configFlag)
		}
		a.config, a.configErr = config.LoadConfig(path)
	})
	return a.config, a.configErr
}

func (a *appContext) ensureLogger() *zap.Logger {
	a.loggerOnce.Do(func() {
		var err error
		if a.debugFlag != nil && *a.debugFlag {
			a.logger, err = zap.NewDevelopment()
		} else {
			a.logger, err = zap.NewProduction()
		}
		if err != nil {
			a.logger = zap.NewNop()
		}
	})
	return a.logger
}

// candidates maps configured models onto classifier candidates, keeping
// their order.
func candidates(models []config.ModelConfig) []classifier.ModelCandidate {
	out := make([]classifier.ModelCandidate, 0, len(models))
	for _, m := range models {
		out = append(out, classifier.ModelCandidate{
			Name: m.Name,
			Capabilities: classifier.Capabilities{
				SystemInstruction: m.SystemInstruction,
				StructuredOutput:  m.StructuredOutput,
			},
		})
	}
	return out
}

func newClassifier(cfg *config.Config, logger *zap.Logger) *classifier.RegretClassifier {
	completer := classifier.NewOpenAICompleter(cfg.Gemini.APIKey, cfg.Gemini.BaseURL)
	return classifier.NewRegretClassifier(completer, classifier.Options{
		Candidates:  candidates(cfg.Gemini.Models),
		MaxRetries:  cfg.Gemini.MaxRetries,
		RetryDelay:  cfg.Gemini.RetryDelay,
		Temperature: float32(cfg.Gemini.Temperature),
		MaxTokens:   cfg.Gemini.MaxTokens,
	}, logger)
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(storage.DefaultMemoryCapacity), nil
	}

	logger.Info("Using PostgreSQL storage")
	store, err := storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// openCache falls back to no caching when Redis is unreachable.
func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		return cache.NoopCache{}
	}
	c, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
	if err != nil {
		logger.Warn("Verdict cache disabled", zap.Error(err))
		return cache.NoopCache{}
	}
	logger.Info("Using Redis verdict cache", zap.Duration("ttl", cfg.Cache.TTL))
	return c
}
