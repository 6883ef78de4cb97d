// Package pipeline orchestrates staleness-aware reprocessing of the archive:
// iterate items, compare the current version manifest against the newest
// derived output, skip what is current, recompute what is stale, append the
// result, and report every outcome through observers.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/archive-cli/internal/archive"
	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/internal/registry"
)

// Spec is what a concrete pipeline supplies to the runner.
type Spec interface {
	// Name identifies the pipeline in run records and reports.
	Name() string

	// OutputType identifies which derived_outputs entries belong to this
	// pipeline.
	OutputType() string

	// TransformerVersion is stamped on every output this pipeline produces.
	TransformerVersion() string

	// VersionKeys are exactly the registry keys that determine staleness
	// for this pipeline.
	VersionKeys() []string

	// SourceOutputs reports which existing output types Process consumed
	// for this item, recorded for provenance only.
	SourceOutputs(item *model.Item) []string

	// Process computes the derived value for one item.
	Process(ctx context.Context, item *model.Item) (any, error)
}

// LLMRecorder is implemented by derived values that carry an upstream model
// call worth recording in llm_outputs.
type LLMRecorder interface {
	LLMRecords() []model.LLMOutput
}

// RunOptions controls a single run.
type RunOptions struct {
	// Limit caps the number of items considered; 0 means all.
	Limit int

	// DryRun evaluates staleness identically to a real run but never calls
	// Process and never writes; stale items count as Processed.
	DryRun bool
}

// Runner applies one pipeline across the archive.
type Runner struct {
	store     archive.Store
	registry  *registry.Registry
	spec      Spec
	observers []Observer
}

// NewRunner creates a Runner. The registry is held by reference and must not
// change for the duration of a run.
func NewRunner(store archive.Store, reg *registry.Registry, spec Spec, observers ...Observer) *Runner {
	return &Runner{store: store, registry: reg, spec: spec, observers: observers}
}

// Run executes the reprocessing loop. Per-item failures (missing or corrupt
// records, transform errors) are counted and never abort the run; only
// setup-level misconfiguration does. On context cancellation the loop stops
// between items, observers still receive the stats so far, and the context
// error is returned alongside them.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (model.RunStats, error) {
	var stats model.RunStats

	// Snapshot once: the registry is immutable during a run, and an
	// undeclared key is a configuration error, not a per-item one.
	manifest, err := r.registry.Snapshot(r.spec.VersionKeys())
	if err != nil {
		return stats, eris.Wrapf(err, "pipeline %s: snapshot manifest", r.spec.Name())
	}

	ids, err := r.store.ListIDs(ctx)
	if err != nil {
		return stats, eris.Wrapf(err, "pipeline %s: list items", r.spec.Name())
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	r.notify(func(o Observer) { o.OnStart(len(ids)) })

	var canceled bool
	for _, id := range ids {
		if ctx.Err() != nil {
			canceled = true
			break
		}

		item, err := r.store.Get(ctx, id)
		if err != nil {
			stats.Errors++
			r.notify(func(o Observer) { o.OnError(id, err) })
			continue
		}

		latest := item.LatestDerived(r.spec.OutputType())
		if latest != nil && latest.TransformManifest.Equal(manifest) {
			stats.Skipped++
			r.notify(func(o Observer) { o.OnSkip(id) })
			continue
		}

		if opts.DryRun {
			stats.Processed++
			r.notify(func(o Observer) { o.OnSuccess(id, nil) })
			continue
		}

		value, err := r.spec.Process(ctx, item)
		if err != nil {
			stats.Errors++
			r.notify(func(o Observer) { o.OnError(id, err) })
			continue
		}

		if err := r.append(ctx, item, value, manifest); err != nil {
			stats.Errors++
			r.notify(func(o Observer) { o.OnError(id, err) })
			continue
		}

		stats.Processed++
		r.notify(func(o Observer) { o.OnSuccess(id, value) })
	}

	r.notify(func(o Observer) { o.OnComplete(stats) })

	if canceled {
		return stats, eris.Wrapf(ctx.Err(), "pipeline %s: interrupted", r.spec.Name())
	}
	return stats, nil
}

func (r *Runner) append(ctx context.Context, item *model.Item, value any, manifest model.Manifest) error {
	now := time.Now().UTC()

	if rec, ok := value.(LLMRecorder); ok {
		for _, out := range rec.LLMRecords() {
			out.GeneratedAt = now
			if err := r.store.AppendLLMOutput(ctx, item.ID, out); err != nil {
				return err
			}
		}
	}

	return r.store.AppendDerivedOutput(ctx, item.ID, model.DerivedOutput{
		OutputType:         r.spec.OutputType(),
		OutputValue:        value,
		TransformerVersion: r.spec.TransformerVersion(),
		TransformManifest:  manifest.Clone(),
		SourceOutputs:      r.spec.SourceOutputs(item),
		GeneratedAt:        now,
	})
}

// notify fans out one observer callback. Observers must never corrupt a run,
// so panics are logged and swallowed.
func (r *Runner) notify(fn func(Observer)) {
	for _, o := range r.observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					zap.L().Warn("observer panicked",
						zap.String("pipeline", r.spec.Name()),
						zap.Any("panic", rec),
					)
				}
			}()
			fn(o)
		}()
	}
}
