package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/archive-cli/internal/archive"
)

var (
	ingestID   string
	ingestFile string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Archive raw source content for a new item",
	Long:  "Stores raw source content under the given ID. Source content is write-once: ingesting an ID that already exists is an error.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var (
			raw []byte
			err error
		)
		if ingestFile != "" {
			raw, err = os.ReadFile(ingestFile)
			if err != nil {
				return eris.Wrapf(err, "read source file %s", ingestFile)
			}
		} else {
			raw, err = io.ReadAll(os.Stdin)
			if err != nil {
				return eris.Wrap(err, "read source from stdin")
			}
		}
		if len(raw) == 0 {
			return eris.New("source content is empty")
		}

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Put(ctx, ingestID, string(raw)); err != nil {
			if archive.IsConflict(err) {
				return eris.Errorf("item %s already exists; source content is write-once", ingestID)
			}
			return err
		}

		zap.L().Info("item archived",
			zap.String("id", ingestID),
			zap.Int("bytes", len(raw)),
		)
		cmd.Printf("archived %s (%d bytes)\n", ingestID, len(raw))
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "item ID (required)")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path to source content (default: stdin)")
	_ = ingestCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(ingestCmd)
}
