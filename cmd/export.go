package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/archive-cli/internal/export"
	"github.com/sells-group/archive-cli/internal/registry"
)

var exportCollection string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Push embeddings and summaries into the vector index",
	Long:  "Writes every item's newest embedding into the downstream vector index, recording each push in the item's processing history. Items without an embedding are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		reg := registry.New(cfg.Versions)
		version, err := reg.Version("exporter")
		if err != nil {
			return err
		}

		collection := cfg.Export.Collection
		if exportCollection != "" {
			collection = exportCollection
		}

		exporter, err := export.New(store, cfg.Export.Path, collection, version, cfg.Export.Concurrency)
		if err != nil {
			return err
		}

		stats, err := exporter.Export(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("exported %d, skipped %d, errors %d\n", stats.Exported, stats.Skipped, stats.Errors)
		if stats.Errors > 0 {
			return eris.Errorf("export finished with %d error(s)", stats.Errors)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCollection, "collection", "", "collection name (default from config)")
	rootCmd.AddCommand(exportCmd)
}
