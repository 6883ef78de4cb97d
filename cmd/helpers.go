package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/archive-cli/internal/archive"
	"github.com/sells-group/archive-cli/internal/cost"
	"github.com/sells-group/archive-cli/internal/pipeline"
	"github.com/sells-group/archive-cli/internal/transform"
	anthropicpkg "github.com/sells-group/archive-cli/pkg/anthropic"
	"github.com/sells-group/archive-cli/pkg/embedding"
)

// initStore opens the configured archive backend and runs migrations.
func initStore(ctx context.Context) (archive.Store, error) {
	var (
		st  archive.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = archive.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		st, err = archive.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// costCalculator builds a Calculator from configured pricing, falling back
// to defaults for anything unset.
func costCalculator() *cost.Calculator {
	rates := cost.DefaultRates()
	if len(cfg.Pricing.Anthropic) > 0 {
		rates.Anthropic = make(map[string]cost.ModelRate, len(cfg.Pricing.Anthropic))
		for m, p := range cfg.Pricing.Anthropic {
			rates.Anthropic[m] = cost.ModelRate{Input: p.Input, Output: p.Output}
		}
	}
	if cfg.Pricing.Embedding.PerMTok > 0 {
		rates.Embedding.PerMTok = cfg.Pricing.Embedding.PerMTok
	}
	return cost.NewCalculator(rates)
}

// buildSpec constructs the named pipeline and its transformer dependencies.
func buildSpec(name string) (pipeline.Spec, error) {
	switch name {
	case pipeline.NameNormalize:
		return pipeline.NormalizeSpec(), nil

	case pipeline.NameKeywords:
		vocab, err := transform.LoadVocabulary(cfg.Transform.VocabularyPath)
		if err != nil {
			return nil, err
		}
		return pipeline.KeywordsSpec(transform.NewKeywordTagger(vocab)), nil

	case pipeline.NameSummarize:
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		tr := transform.NewSummarizer(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, costCalculator())
		return pipeline.SummarizeSpec(tr), nil

	case pipeline.NameEmbed:
		client := embedding.NewClient(cfg.Embedding.Key,
			embedding.WithBaseURL(cfg.Embedding.BaseURL),
			embedding.WithRateLimit(cfg.Embedding.RequestsPerSec),
		)
		tr := transform.NewEmbedder(client, cfg.Embedding.Model, costCalculator())
		return pipeline.EmbedSpec(tr), nil

	default:
		return nil, eris.Errorf("unknown pipeline %q", name)
	}
}

// allPipelines lists the builtin pipelines in dependency order: normalize
// first, since the others prefer normalized text when it exists.
var allPipelines = []string{
	pipeline.NameNormalize,
	pipeline.NameKeywords,
	pipeline.NameSummarize,
	pipeline.NameEmbed,
}
