package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/internal/pipeline"
	"github.com/sells-group/archive-cli/internal/registry"
)

var (
	reprocessPipeline string
	reprocessDryRun   bool
	reprocessLimit    int
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-derive stale outputs across the archive",
	Long:  "Walks every archived item and recomputes derived outputs whose version manifest no longer matches the configured versions. Items already current are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		reg := registry.New(cfg.Versions)

		names := allPipelines
		if reprocessPipeline != "all" {
			names = []string{reprocessPipeline}
		}

		var totalErrors int
		for _, name := range names {
			spec, err := buildSpec(name)
			if err != nil {
				return err
			}

			run, err := store.CreateRun(ctx, spec.Name(), reprocessDryRun)
			if err != nil {
				return eris.Wrapf(err, "create run record for %s", spec.Name())
			}

			runner := pipeline.NewRunner(store, reg, spec,
				pipeline.NewConsoleObserver(os.Stdout, spec.Name(), reprocessDryRun),
				pipeline.NewLogObserver(spec.Name()),
			)

			stats, runErr := runner.Run(ctx, pipeline.RunOptions{
				Limit:  reprocessLimit,
				DryRun: reprocessDryRun,
			})
			totalErrors += stats.Errors

			status := model.RunStatusComplete
			if runErr != nil {
				status = model.RunStatusAborted
			}
			if err := store.CompleteRun(ctx, run.ID, status, &stats); err != nil {
				zap.L().Warn("failed to finalize run record",
					zap.String("run_id", run.ID),
					zap.Error(err),
				)
			}

			if runErr != nil {
				return runErr
			}
		}

		if totalErrors > 0 {
			return eris.Errorf("reprocess finished with %d item error(s)", totalErrors)
		}
		return nil
	},
}

func init() {
	reprocessCmd.Flags().StringVar(&reprocessPipeline, "pipeline", "all", "pipeline to run (normalize, keywords, summarize, embed, or all)")
	reprocessCmd.Flags().BoolVar(&reprocessDryRun, "dry-run", false, "report what would be reprocessed without writing")
	reprocessCmd.Flags().IntVar(&reprocessLimit, "limit", 0, "max items to consider (0 = all)")
	rootCmd.AddCommand(reprocessCmd)
}
