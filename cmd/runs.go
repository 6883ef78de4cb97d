package main

import (
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recorded reprocessing runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("no runs recorded")
			return nil
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Started", "Pipeline", "Mode", "Status", "Processed", "Skipped", "Errors"})
		for _, r := range runs {
			mode := "live"
			if r.DryRun {
				mode = "dry-run"
			}
			processed, skipped, errors := "-", "-", "-"
			if r.Stats != nil {
				processed = strconv.Itoa(r.Stats.Processed)
				skipped = strconv.Itoa(r.Stats.Skipped)
				errors = strconv.Itoa(r.Stats.Errors)
			}
			tw.AppendRow(table.Row{
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Pipeline,
				mode,
				string(r.Status),
				processed,
				skipped,
				errors,
			})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
			{Number: 7, Align: text.AlignRight},
		})
		tw.Render()

		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to show (0 = all)")
	rootCmd.AddCommand(runsCmd)
}
