package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"shopwatch/internal/model"
	"shopwatch/internal/notify"
	"shopwatch/internal/pipeline"
	"shopwatch/internal/render"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shopwatch",
		Short:         "shopwatch watches auction and marketplace searches for new and cheaper listings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newWatchCmd(), newHistoryCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var dryRun, quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search every keyword once and print the report.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			keywords, err := a.keywords()
			if err != nil {
				return err
			}
			report, err := a.runner(dryRun).Run(ctx, keywords)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Text)

			if !quiet && !dryRun {
				a.deliver(ctx, a.senders(), report)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not store snapshots, run logs or send the report")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print the report without sending it")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var every time.Duration
	var quiet bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run repeatedly until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if every <= 0 {
				return fmt.Errorf("--every must be positive")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			keywords, err := a.keywords()
			if err != nil {
				return err
			}
			runner := a.runner(false)

			var senders notify.Multi
			if !quiet {
				senders = a.senders()
			}

			a.log.Info("watching", "count", len(keywords), "every", every)
			pipeline.Watch(ctx, every, a.watchTick(runner, keywords, senders, cmd.OutOrStdout()))
			a.log.Info("watch stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&every, "every", 30*time.Minute, "interval between runs")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print reports without sending them")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent run logs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.store.ListRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			writeHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of run logs to show")
	return cmd
}

// watchTick returns one iteration of watch. The same senders serve every
// iteration.
func (a *app) watchTick(runner *pipeline.Runner, keywords []model.Keyword, senders notify.Multi, w io.Writer) func(context.Context) {
	return func(ctx context.Context) {
		report, err := runner.Run(ctx, keywords)
		if err != nil {
			a.log.Warn("run aborted", "error", err)
			return
		}
		fmt.Fprintln(w, report.Text)
		a.deliver(ctx, senders, report)
	}
}

func (a *app) deliver(ctx context.Context, senders notify.Multi, report *pipeline.Report) {
	if len(senders) == 0 {
		return
	}
	if err := senders.Send(ctx, report); err != nil {
		a.log.Error("deliver report", "error", err)
	}
}

func writeHistory(w io.Writer, runs []model.RunLog) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Source", "Started", "Pages", "Entries", "New", "Discount", "Status", "Errors"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID, r.Source, render.FormatTime(r.StartedAt), r.Pages, r.Items,
			r.New, r.Discounted, r.StatusChanged, r.Errors,
		})
	}
	if len(runs) == 0 {
		t.AppendFooter(table.Row{"", "no runs recorded yet"})
	}
	t.Render()
}
