// Package export pushes processed items into the downstream vector index.
// It is caller-driven: it runs after reprocessing, outside the pipeline
// core, and records each push in the item's processing history.
package export

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/archive-cli/internal/archive"
	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/internal/transform"
)

// Stats tallies one export pass.
type Stats struct {
	Exported int64 `json:"exported"`
	Skipped  int64 `json:"skipped"`
	Errors   int64 `json:"errors"`
}

// Exporter writes each item's newest embedding and summary into a chromem
// collection.
type Exporter struct {
	store       archive.Store
	collection  *chromem.Collection
	name        string
	version     string
	concurrency int
}

// New opens (or creates) the persistent index at path and returns an
// Exporter targeting the named collection. version is stamped on every
// processing record so history shows which exporter wrote where.
func New(store archive.Store, path, collectionName, version string, concurrency int) (*Exporter, error) {
	db, err := chromem.NewPersistentDB(filepath.Join(path, "chromem.gob"), false)
	if err != nil {
		return nil, eris.Wrap(err, "export: open index")
	}

	// Embeddings are always precomputed by the embed pipeline; the
	// collection must never compute its own.
	embeddingFunc := func(_ context.Context, _ string) ([]float32, error) {
		return nil, eris.New("export: collection only accepts precomputed embeddings")
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, embeddingFunc)
	if err != nil {
		return nil, eris.Wrapf(err, "export: open collection %s", collectionName)
	}

	if concurrency <= 0 {
		concurrency = 4
	}
	return &Exporter{
		store:       store,
		collection:  collection,
		name:        collectionName,
		version:     version,
		concurrency: concurrency,
	}, nil
}

// Export pushes every item that has an embedding. Items without one are
// skipped; per-item failures are logged and counted, never fatal.
func (e *Exporter) Export(ctx context.Context) (Stats, error) {
	var stats Stats

	ids, err := e.store.ListIDs(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "export: list items")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			log := zap.L().With(zap.String("item", id))

			if err := e.exportItem(gctx, id); err != nil {
				if errors.Is(err, errNoEmbedding) {
					atomic.AddInt64(&stats.Skipped, 1)
					return nil
				}
				atomic.AddInt64(&stats.Errors, 1)
				log.Error("export failed", zap.Error(err))
				return nil // don't abort the pass on individual failure
			}

			atomic.AddInt64(&stats.Exported, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, eris.Wrap(err, "export: wait")
	}

	zap.L().Info("export complete",
		zap.String("collection", e.name),
		zap.Int64("exported", stats.Exported),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("errors", stats.Errors),
	)
	return stats, nil
}

var errNoEmbedding = eris.New("no embedding output")

func (e *Exporter) exportItem(ctx context.Context, id string) error {
	item, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}

	embOut := item.LatestDerived(transform.OutputEmbedding)
	if embOut == nil {
		return errNoEmbedding
	}
	vector, ok := vectorFromValue(embOut.OutputValue)
	if !ok || len(vector) == 0 {
		return eris.Errorf("export: unreadable embedding for %s", id)
	}

	err = e.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   contentFor(item),
		Embedding: vector,
		Metadata: map[string]string{
			"exporter_version":    e.version,
			"transformer_version": embOut.TransformerVersion,
		},
	})
	if err != nil {
		return eris.Wrapf(err, "export: add document %s", id)
	}

	return e.store.AppendProcessingRecord(ctx, id, model.ProcessingRecord{
		Version:        e.version,
		CollectionName: e.name,
		ProcessedAt:    time.Now().UTC(),
	})
}

// contentFor picks the text stored alongside the vector: summary if present,
// then normalized text, then the raw source.
func contentFor(item *model.Item) string {
	if out := item.LatestDerived(transform.OutputSummary); out != nil {
		if s := summaryFromValue(out.OutputValue); s != "" {
			return s
		}
	}
	if out := item.LatestDerived(transform.OutputNormalizedText); out != nil {
		if s, ok := out.OutputValue.(string); ok && s != "" {
			return s
		}
	}
	return item.RawSource
}

// vectorFromValue handles both the in-process result type and the
// map shape it takes after a store round trip.
func vectorFromValue(v any) ([]float32, bool) {
	switch val := v.(type) {
	case *transform.EmbeddingResult:
		return val.Vector, true
	case map[string]any:
		raw, ok := val["vector"].([]any)
		if !ok {
			return nil, false
		}
		vec := make([]float32, 0, len(raw))
		for _, f := range raw {
			n, ok := f.(float64)
			if !ok {
				return nil, false
			}
			vec = append(vec, float32(n))
		}
		return vec, true
	default:
		return nil, false
	}
}

func summaryFromValue(v any) string {
	switch val := v.(type) {
	case *transform.SummaryResult:
		return val.Summary
	case map[string]any:
		s, _ := val["summary"].(string)
		return s
	default:
		return ""
	}
}
