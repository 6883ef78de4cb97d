// Package archive persists append-only records of source content and every
// artifact derived from it. Raw source is write-once; output lists only grow.
package archive

import (
	"context"

	"github.com/sells-group/archive-cli/internal/model"
)

// Store defines the persistence interface for the archive.
//
// Every append is durably persisted before the call returns, and each append
// is atomic at item granularity. Output rows are never updated or deleted.
type Store interface {
	// Items
	Get(ctx context.Context, id string) (*model.Item, error)
	Put(ctx context.Context, id string, rawSource string) error
	ListIDs(ctx context.Context) ([]string, error)

	// Appends
	AppendLLMOutput(ctx context.Context, id string, out model.LLMOutput) error
	AppendDerivedOutput(ctx context.Context, id string, out model.DerivedOutput) error
	AppendProcessingRecord(ctx context.Context, id string, rec model.ProcessingRecord) error

	// Run log
	CreateRun(ctx context.Context, pipeline string, dryRun bool) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
