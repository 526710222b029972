package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/assessment"
	"github.com/clintjohnsn/pytchdeck/internal/checkpoint"
	"github.com/clintjohnsn/pytchdeck/internal/config"
	"github.com/clintjohnsn/pytchdeck/internal/db"
	"github.com/clintjohnsn/pytchdeck/internal/guardrails"
	"github.com/clintjohnsn/pytchdeck/internal/ingestion"
	"github.com/clintjohnsn/pytchdeck/internal/llm"
	"github.com/clintjohnsn/pytchdeck/internal/logger"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
	"github.com/clintjohnsn/pytchdeck/internal/rendering"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "pytchdeck",
		Short: "Pitch deck generator",
		Long: `pytchdeck validates a job description, assesses how well the candidate fits it
and renders a reveal.js pitch deck. Every step is checkpointed per thread id so
repeated requests resume instead of starting over.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a config file (default ./pytchdeck.yaml when present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newPitchCmd(opts),
		newIngestCmd(opts),
		newStepsCmd(opts),
	)
	return root
}

// loadConfig reads, overrides and validates settings.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Server.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log.With(zap.String("service", cfg.ProjectName)), nil
}

// openStore selects the checkpoint backend. The returned close func is never nil.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (checkpoint.Store, func(), error) {
	cc := cfg.Checkpoint
	switch cc.Backend {
	case "redis":
		store, err := checkpoint.NewRedisStore(ctx, checkpoint.RedisOptions{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
			TTL:      cc.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		database, err := db.Connect(ctx, cc.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		return db.NewCheckpointStore(database), database.Close, nil
	case "sqlite":
		store, err := checkpoint.NewSQLiteStore(ctx, cc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		log.Warn("using in-memory checkpoints; runs will not survive a restart")
		store := checkpoint.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	}
}

// newLLMClient builds the provider client wrapped with retries.
func newLLMClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (llm.Client, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	llmCfg := llm.ConfigFor(cfg.LLM.Provider)
	if cfg.LLM.Model != "" {
		llmCfg = llmCfg.WithAllModels(cfg.LLM.Model)
	}
	llmCfg.BaseURL = cfg.LLM.OpenAIBase

	client, err := llm.NewClient(ctx, llmCfg, cfg.LLM.APIKey())
	if err != nil {
		return nil, err
	}

	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = cfg.LLM.MaxRetries
	retry.CallTimeout = cfg.LLM.Timeout
	return llm.WithRetry(client, retry, log), nil
}

// app is everything a command needs to run the workflow.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *pipeline.Engine
	client llm.Client
	close  func()
}

// newApp wires the engine from configuration.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	client, err := newLLMClient(ctx, cfg, log)
	if err != nil {
		closeStore()
		return nil, err
	}

	engine, err := pipeline.NewEngine(pipeline.Deps{
		Acquirer:  ingestion.NewAcquirerWithTimeout(cfg.Fetch.Timeout, cfg.Fetch.UseBrowser, log),
		Validator: guardrails.NewValidator(client, cfg.TargetRoles, log),
		Assessor:  assessment.NewFitAssessor(client, log),
		Generator: rendering.NewDeckGenerator(client, log),
		Writer:    pipeline.NewFileWriter(cfg.Paths.GeneratedDir),
		Store:     store,
	}, log)
	if err != nil {
		_ = client.Close()
		closeStore()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: log,
		engine: engine,
		client: client,
		close: func() {
			_ = client.Close()
			closeStore()
		},
	}, nil
}
