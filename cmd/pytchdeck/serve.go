package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/ingestion"
	"github.com/clintjohnsn/pytchdeck/internal/server"
	"github.com/clintjohnsn/pytchdeck/internal/server/ratelimit"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start an HTTP server that exposes the pitch generation endpoints.

The candidate profile is read from CANDIDATE_DIR once at startup; the server
refuses to start when it is missing or empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, port int) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	candidateContext, err := ingestion.LoadCandidateContext(ctx, cfg.Paths.CandidateDir, log)
	if err != nil {
		log.Error("candidate context unavailable", zap.String("dir", cfg.Paths.CandidateDir), zap.Error(err))
		return err
	}
	log.Info("loaded candidate context", zap.Int("chars", len(candidateContext)))

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	defer a.close()

	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		APIPrefix:    cfg.Server.APIPrefix,
		PublicHost:   cfg.Server.PublicHost,
		CORSOrigins:  cfg.Server.CORSOrigins,
		GeneratedDir: cfg.Paths.GeneratedDir,
		RateLimit: ratelimit.NewConfig(ratelimit.Settings{
			Enabled:          cfg.RateLimit.Enabled,
			GeneratePerDay:   cfg.RateLimit.GeneratePerDay,
			DefaultPerMinute: cfg.RateLimit.DefaultPerMinute,
			APIPrefix:        cfg.Server.APIPrefix,
		}),
	}, a.engine, candidateContext, log)

	log.Info("serving",
		zap.String("env", cfg.Server.Env),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
	)
	return srv.Start(ctx)
}
