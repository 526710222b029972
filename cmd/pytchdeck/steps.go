package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
	"github.com/clintjohnsn/pytchdeck/internal/pipeline/steps"
)

func newStepsCmd(opts *rootOptions) *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Print the workflow steps, or a thread's checkpoint status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if threadID == "" {
				printStepTable(cmd.OutOrStdout())
				return nil
			}
			return runThreadSteps(cmd.Context(), cmd.OutOrStdout(), opts, threadID)
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread-id", "t", "", "Show checkpoint status for this thread")
	return cmd
}

func printStepTable(out io.Writer) {
	rows := make([][]string, 0, len(steps.Ordered))
	for i, def := range steps.Ordered {
		deps := strings.Join(def.Dependencies, ", ")
		if deps == "" {
			deps = "-"
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), def.Name, def.Category, string(def.Phase), deps, def.Description})
	}
	fmt.Fprintln(out, titleStyle.Render("Workflow steps"))
	fmt.Fprintln(out, table([]string{"#", "STEP", "CATEGORY", "PHASE", "DEPENDS ON", "DESCRIPTION"}, rows))
}

func runThreadSteps(ctx context.Context, out io.Writer, opts *rootOptions, threadID string) error {
	if !pipeline.ValidThreadID(threadID) {
		return pipeline.ErrInvalidThreadID
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	statuses, err := steps.Status(ctx, store, threadID)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		state := st.State
		switch st.State {
		case steps.StateCompleted:
			state = okStyle.Render(state)
		case steps.StateFailed:
			state = failStyle.Render(state)
		default:
			state = reusedStyle.Render(state)
		}
		duration := ""
		if st.DurationMs > 0 {
			duration = fmt.Sprintf("%dms", st.DurationMs)
		}
		rows = append(rows, []string{st.Name, state, duration, st.CompletedAt, st.Error})
	}
	fmt.Fprintln(out, titleStyle.Render("Thread "+threadID)+" "+reusedStyle.Render(cfg.Checkpoint.Backend))
	fmt.Fprintln(out, table([]string{"STEP", "STATE", "DURATION", "AT", "ERROR"}, rows))
	if next := steps.Available(statuses); len(next) > 0 {
		fmt.Fprintf(out, "%s%s\n", labelStyle.Render("Next"), next[0])
	}
	return nil
}
