package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/internal/pipeline"
	"github.com/sells-group/archive-cli/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive counts and staleness per pipeline",
	Long:  "Counts archived items and, for each pipeline, how many have a current output, a stale output, or no output at all under the configured versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		reg := registry.New(cfg.Versions)

		ids, err := store.ListIDs(ctx)
		if err != nil {
			return eris.Wrap(err, "list items")
		}
		fmt.Fprintf(os.Stdout, "%d item(s) archived\n", len(ids))

		type tally struct {
			current, stale, missing, unreadable int
		}
		builtins := pipeline.Builtins()
		tallies := make([]tally, len(builtins))

		manifests := make([]model.Manifest, len(builtins))
		for i, b := range builtins {
			m, err := reg.Snapshot(b.VersionKeys)
			if err != nil {
				return eris.Wrapf(err, "pipeline %s", b.Name)
			}
			manifests[i] = m
		}

		for _, id := range ids {
			item, err := store.Get(ctx, id)
			if err != nil {
				for i := range tallies {
					tallies[i].unreadable++
				}
				continue
			}
			for i, b := range builtins {
				latest := item.LatestDerived(b.OutputType)
				switch {
				case latest == nil:
					tallies[i].missing++
				case latest.TransformManifest.Equal(manifests[i]):
					tallies[i].current++
				default:
					tallies[i].stale++
				}
			}
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Pipeline", "Current", "Stale", "Missing", "Unreadable"})
		for i, b := range builtins {
			t := tallies[i]
			tw.AppendRow(table.Row{
				b.Name,
				strconv.Itoa(t.current),
				strconv.Itoa(t.stale),
				strconv.Itoa(t.missing),
				strconv.Itoa(t.unreadable),
			})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
		})
		tw.Render()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
