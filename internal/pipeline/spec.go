package pipeline

import (
	"context"

	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/internal/transform"
)

// transformerSpec adapts a transform.Transformer into a pipeline Spec. Its
// version key set is the transformer's own registry key plus the dependency
// keys the transformer declares.
type transformerSpec struct {
	name       string
	outputType string
	ownKey     string
	tr         transform.Transformer
	sources    func(item *model.Item) []string
}

// FromTransformer builds a Spec around a transformer. ownKey is the registry
// key engineers bump when the transformer's logic changes.
func FromTransformer(name, outputType, ownKey string, tr transform.Transformer, sources func(*model.Item) []string) Spec {
	return &transformerSpec{
		name:       name,
		outputType: outputType,
		ownKey:     ownKey,
		tr:         tr,
		sources:    sources,
	}
}

func (s *transformerSpec) Name() string {
	return s.name
}

func (s *transformerSpec) OutputType() string {
	return s.outputType
}

func (s *transformerSpec) TransformerVersion() string {
	return s.tr.Version()
}

func (s *transformerSpec) VersionKeys() []string {
	keys := []string{s.ownKey}
	return append(keys, s.tr.DependencyKeys()...)
}

func (s *transformerSpec) SourceOutputs(item *model.Item) []string {
	if s.sources == nil {
		return nil
	}
	return s.sources(item)
}

func (s *transformerSpec) Process(ctx context.Context, item *model.Item) (any, error) {
	return s.tr.Transform(ctx, item)
}

// Builtin pipeline names.
const (
	NameNormalize = "normalize"
	NameKeywords  = "keywords"
	NameSummarize = "summarize"
	NameEmbed     = "embed"
)

// NormalizeSpec is the pipeline over transform.Normalizer.
func NormalizeSpec() Spec {
	return FromTransformer(NameNormalize, transform.OutputNormalizedText, "normalizer",
		transform.NewNormalizer(), nil)
}

// KeywordsSpec is the pipeline over transform.KeywordTagger.
func KeywordsSpec(tr *transform.KeywordTagger) Spec {
	return FromTransformer(NameKeywords, transform.OutputKeywords, "keyword_tagger",
		tr, transform.SourceTextOutputs)
}

// SummarizeSpec is the pipeline over transform.Summarizer.
func SummarizeSpec(tr *transform.Summarizer) Spec {
	return FromTransformer(NameSummarize, transform.OutputSummary, "summarizer",
		tr, transform.SourceTextOutputs)
}

// EmbedSpec is the pipeline over transform.Embedder.
func EmbedSpec(tr *transform.Embedder) Spec {
	return FromTransformer(NameEmbed, transform.OutputEmbedding, "embedder",
		tr, transform.SourceTextOutputs)
}

// Builtin describes one builtin pipeline's staleness identity. Reporting
// commands use this to evaluate currency without constructing transformer
// dependencies like API clients or vocabulary files.
type Builtin struct {
	Name        string
	OutputType  string
	VersionKeys []string
}

// Builtins lists the builtin pipelines in run order.
func Builtins() []Builtin {
	return []Builtin{
		{NameNormalize, transform.OutputNormalizedText, []string{"normalizer"}},
		{NameKeywords, transform.OutputKeywords, []string{"keyword_tagger", "vocabulary"}},
		{NameSummarize, transform.OutputSummary, []string{"summarizer", "summary_model"}},
		{NameEmbed, transform.OutputEmbedding, []string{"embedder", "embedding_model"}},
	}
}
