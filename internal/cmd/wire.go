package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/classifier"
	"github.com/xaenox/emotrack/internal/impact"
	"github.com/xaenox/emotrack/internal/incident"
	"github.com/xaenox/emotrack/internal/orchestrator"
	"github.com/xaenox/emotrack/internal/profile"
	"github.com/xaenox/emotrack/internal/sink"
	"github.com/xaenox/emotrack/internal/storage"
	"github.com/xaenox/emotrack/internal/temporal"
	"github.com/xaenox/emotrack/pkg/config"
)

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func buildStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		})
	case config.DriverSQLite:
		logger.Info("Using SQLite storage", zap.String("path", cfg.SQLitePath))
		return storage.NewSQLiteStorage(cfg.SQLitePath)
	default:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}
}

// buildClassifier composes the GPT classifier as fallback(retry(gpt), keyword)
// so transient API errors are retried before the keyword lexicon answers.
func buildClassifier(cfg *config.Config, logger *zap.Logger) classifier.EmotionClassifier {
	retry := classifier.RetryOptions{
		Timeout:    cfg.Classifier.Timeout,
		MaxRetries: cfg.Classifier.MaxRetries,
		Backoff:    cfg.Classifier.RetryBackoff,
	}
	if cfg.Classifier.Provider != config.ProviderGPT {
		return classifier.NewRetrying(classifier.NewKeywordClassifier(), retry, logger)
	}

	var c classifier.EmotionClassifier = classifier.NewRetrying(
		classifier.NewGPTClassifier(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		),
		retry,
		logger,
	)
	if cfg.Classifier.Fallback {
		c = classifier.NewFallback(c, classifier.NewKeywordClassifier(), logger)
	}
	return c
}

func profileConfig(cfg config.ProfileConfig) profile.Config {
	return profile.Config{
		Activation: profile.Activation{
			MidTerm:  profile.Threshold{MinDays: cfg.MidTermDays, MinMessages: cfg.MidTermMessages},
			LongTerm: profile.Threshold{MinDays: cfg.LongTermDays, MinMessages: cfg.LongTermMessages},
		},
		Learning: profile.Learning{
			ShortTermRate: cfg.ShortTermRate,
			MidTermRate:   cfg.MidTermRate,
			LongTermRate:  cfg.LongTermRate,
			DecayConstant: cfg.DecayConstant,
			WeightRates: impact.Weights{
				EmotionIntensity:   cfg.WeightRates.EmotionIntensity,
				Recency:            cfg.WeightRates.Recency,
				Recurrence:         cfg.WeightRates.Recurrence,
				TemporalConfidence: cfg.WeightRates.TemporalConfidence,
			},
		},
		HistorySize: cfg.HistorySize,
	}
}

func temporalOptions(cfg config.TemporalConfig) temporal.Options {
	opts := temporal.Options{DisableDateParser: cfg.DisableDateParse}
	for _, p := range cfg.ExtraPatterns {
		opts.ExtraPatterns = append(opts.ExtraPatterns, temporal.Pattern{
			Name:     p.Name,
			Expr:     p.Expr,
			Category: temporal.Category(p.Category),
			Language: temporal.Language(p.Language),
		})
	}
	return opts
}

func buildOrchestrator(cfg *config.Config, store storage.Storage, s sink.Sink, logger *zap.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(
		buildClassifier(cfg, logger),
		temporal.NewResolver(logger, temporalOptions(cfg.Temporal)),
		incident.NewDetector().WithKeywords(cfg.Incident.ExtraKeywords...),
		store,
		s,
		profileConfig(cfg.Profile),
		logger,
		orchestrator.Options{MinProbability: cfg.Classifier.MinProbability},
	)
}
