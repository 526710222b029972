package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/ingestion"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
	"github.com/clintjohnsn/pytchdeck/internal/types"
)

type pitchOptions struct {
	jd           string
	jdFile       string
	link         string
	threadID     string
	host         string
	candidateDir string
	fresh        bool
}

func newPitchCmd(opts *rootOptions) *cobra.Command {
	po := &pitchOptions{}
	cmd := &cobra.Command{
		Use:   "pitch",
		Short: "Generate one pitch deck without starting the server",
		Long: `Runs the same workflow as POST /api/v1/generate and writes the deck to GENERATED_DIR.

Exactly one of --jd, --jd-file or --link is required. Re-running with the same
--thread-id resumes from the last completed step.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPitch(cmd.Context(), cmd.OutOrStdout(), opts, po)
		},
	}
	cmd.Flags().StringVar(&po.jd, "jd", "", "Job description text")
	cmd.Flags().StringVarP(&po.jdFile, "jd-file", "f", "", "Path to a file holding the job description")
	cmd.Flags().StringVarP(&po.link, "link", "l", "", "URL of the job posting")
	cmd.Flags().StringVarP(&po.threadID, "thread-id", "t", "", "Checkpoint thread id (default: random)")
	cmd.Flags().StringVar(&po.host, "host", "", "Base URL for the deck link (default PUBLIC_HOST or http://localhost:PORT)")
	cmd.Flags().StringVar(&po.candidateDir, "candidate-dir", "", "Override CANDIDATE_DIR")
	cmd.Flags().BoolVar(&po.fresh, "fresh", false, "Discard the thread's checkpoints before running")
	cmd.MarkFlagsMutuallyExclusive("jd", "jd-file", "link")
	cmd.MarkFlagsOneRequired("jd", "jd-file", "link")
	return cmd
}

// request turns the flags into a PitchRequest.
func (po *pitchOptions) request() (types.PitchRequest, error) {
	req := types.PitchRequest{JobDescription: strings.TrimSpace(po.jd), JobDescriptionLink: strings.TrimSpace(po.link)}
	if po.jdFile != "" {
		text, _, err := ingestion.IngestFromFile(po.jdFile)
		if err != nil {
			return req, err
		}
		req.JobDescription = text
	}
	if !req.HasInput() {
		return req, pipeline.ErrNoInput
	}
	if req.JobDescriptionLink != "" {
		if err := ingestion.CheckScheme(req.JobDescriptionLink); err != nil {
			return req, err
		}
	}
	return req, nil
}

func runPitch(ctx context.Context, out io.Writer, opts *rootOptions, po *pitchOptions) error {
	req, err := po.request()
	if err != nil {
		return err
	}
	threadID := po.threadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	if !pipeline.ValidThreadID(threadID) {
		return pipeline.ErrInvalidThreadID
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if po.candidateDir != "" {
		cfg.Paths.CandidateDir = po.candidateDir
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
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if po.fresh {
		if err := a.engine.Reset(ctx, threadID); err != nil {
			return fmt.Errorf("failed to reset thread %s: %w", threadID, err)
		}
	}

	host := po.host
	switch {
	case host != "":
	case cfg.Server.PublicHost != "":
		host = cfg.Server.PublicHost
	default:
		host = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	fmt.Fprintln(out, titleStyle.Render("pytchdeck")+" "+reusedStyle.Render("thread "+threadID))
	result, err := a.engine.Run(ctx, req, pipeline.ExecutionContext{
		ThreadID:   threadID,
		Host:       host,
		OnProgress: progressPrinter(out),
	}, candidateContext)
	if err != nil {
		log.Debug("pitch failed", zap.String("step", pipeline.FailedStep(err)), zap.Error(err))
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, labelStyle.Render(result.Title)+linkStyle.Render(result.Link))
	fmt.Fprintln(out, labelStyle.Render("File")+filepath.Join(cfg.Paths.GeneratedDir, pipeline.ArtifactName(threadID)))
	return nil
}
