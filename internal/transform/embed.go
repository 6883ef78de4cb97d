package transform

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/archive-cli/internal/cost"
	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/pkg/embedding"
)

// maxEmbedInputChars caps the text sent to the embedding backend.
const maxEmbedInputChars = 30000

// EmbeddingResult is the derived output value of the embedder.
type EmbeddingResult struct {
	Vector  []float32 `json:"vector"`
	Model   string    `json:"model"`
	Tokens  int       `json:"tokens"`
	CostUSD float64   `json:"cost_usd"`
}

// LLMRecords exposes the backend call for the llm_outputs audit trail.
func (r *EmbeddingResult) LLMRecords() []model.LLMOutput {
	return []model.LLMOutput{{
		OutputType:  OutputEmbedding,
		OutputValue: map[string]any{"dimensions": len(r.Vector), "tokens": r.Tokens},
		Model:       r.Model,
		CostUSD:     r.CostUSD,
	}}
}

// Embedder computes an embedding vector for an item's text via the HTTP
// inference backend. It declares "embedding_model" so switching models
// re-embeds the archive.
type Embedder struct {
	client embedding.Client
	model  string
	calc   *cost.Calculator
}

// NewEmbedder creates an Embedder calling the given model.
func NewEmbedder(client embedding.Client, modelName string, calc *cost.Calculator) *Embedder {
	return &Embedder{client: client, model: modelName, calc: calc}
}

func (e *Embedder) Version() string {
	return "v1.0"
}

func (e *Embedder) DependencyKeys() []string {
	return []string{"embedding_model"}
}

func (e *Embedder) Transform(ctx context.Context, item *model.Item) (any, error) {
	text, _ := sourceText(item)
	if text == "" {
		return nil, eris.Errorf("embed: item %s has no text", item.ID)
	}
	if len(text) > maxEmbedInputChars {
		text = text[:maxEmbedInputChars]
	}

	resp, err := e.client.Embed(ctx, e.model, []string{text})
	if err != nil {
		return nil, eris.Wrapf(err, "embed: item %s", item.ID)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, eris.Errorf("embed: backend returned no vector for item %s", item.ID)
	}

	return &EmbeddingResult{
		Vector:  resp.Data[0].Embedding,
		Model:   resp.Model,
		Tokens:  resp.Usage.TotalTokens,
		CostUSD: e.calc.Embedding(resp.Usage.TotalTokens),
	}, nil
}
