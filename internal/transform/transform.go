// Package transform holds the versioned strategies that compute derived
// artifacts from archived items. A transformer never talks to the archive
// store or version registry; the pipeline hands it item data and records
// whatever it returns.
package transform

import (
	"context"

	"github.com/sells-group/archive-cli/internal/model"
)

// Output types produced by the built-in transformers.
const (
	OutputNormalizedText = "normalized_text"
	OutputKeywords       = "keywords"
	OutputSummary        = "summary"
	OutputEmbedding      = "embedding"
)

// Transformer computes one derived artifact from an item's existing data.
//
// Transform is pure with respect to its declared inputs: the same item data
// plus the same dependency versions yield the same output. That contract is
// best effort for transformers that call a model internally.
type Transformer interface {
	// Version is this transformer's own logic version, recorded as
	// transformer_version on every output it produces.
	Version() string

	// DependencyKeys names the registry keys whose values influence this
	// transformer's output, beyond its own version key.
	DependencyKeys() []string

	Transform(ctx context.Context, item *model.Item) (any, error)
}

// sourceText returns the best available text for downstream transformers:
// the newest normalized_text derived output when present, the raw transcript
// otherwise.
func sourceText(item *model.Item) (string, []string) {
	if out := item.LatestDerived(OutputNormalizedText); out != nil {
		if s, ok := out.OutputValue.(string); ok && s != "" {
			return s, []string{OutputNormalizedText}
		}
	}
	return item.RawSource, nil
}

// SourceTextOutputs reports which existing output types sourceText would
// consume for this item, recorded for provenance.
func SourceTextOutputs(item *model.Item) []string {
	_, sources := sourceText(item)
	return sources
}
