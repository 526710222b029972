package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/clintjohnsn/pytchdeck/internal/ingestion"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		dir       string
		printText bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Show the candidate context the server would load",
		Long: `Reads every supported document in CANDIDATE_DIR (pdf, txt, md, html) the same way
serve does at startup and prints a summary. Use --print to dump the joined text.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd.OutOrStdout(), opts, dir, printText)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Override CANDIDATE_DIR")
	cmd.Flags().BoolVar(&printText, "print", false, "Print the full candidate context")
	return cmd
}

func runIngest(ctx context.Context, out io.Writer, opts *rootOptions, dir string, printText bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Paths.CandidateDir
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	profile, err := ingestion.LoadCandidateProfile(ctx, dir, log)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(profile.Documents))
	total := 0
	for _, doc := range profile.Documents {
		rel, relErr := filepath.Rel(dir, doc.Path)
		if relErr != nil {
			rel = doc.Path
		}
		hash := ""
		if doc.Metadata != nil {
			hash = doc.Metadata.Hash
			if len(hash) > 12 {
				hash = hash[:12]
			}
		}
		rows = append(rows, []string{rel, strconv.Itoa(len(doc.Text)), hash})
		total += len(doc.Text)
	}

	fmt.Fprintln(out, titleStyle.Render("Candidate context")+" "+reusedStyle.Render(dir))
	fmt.Fprintln(out, table([]string{"DOCUMENT", "CHARS", "HASH"}, rows))
	for _, skipped := range profile.Skipped {
		fmt.Fprintln(out, warnStyle.Render("skipped "+skipped+" (unsupported type)"))
	}
	fmt.Fprintf(out, "%s%d documents, %d chars\n", labelStyle.Render("Total"), len(profile.Documents), total)

	if printText {
		fmt.Fprintln(out)
		fmt.Fprintln(out, profile.Context())
	}
	return nil
}
