package transform

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/archive-cli/internal/cost"
	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/pkg/embedding"
)

type mockEmbeddingClient struct {
	resp   *embedding.EmbedResponse
	err    error
	inputs [][]string
}

func (m *mockEmbeddingClient) Embed(_ context.Context, _ string, inputs []string) (*embedding.EmbedResponse, error) {
	m.inputs = append(m.inputs, inputs)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestEmbedder_Transform(t *testing.T) {
	client := &mockEmbeddingClient{
		resp: &embedding.EmbedResponse{
			Model: "nomic-embed-text-v1.5",
			Data:  []embedding.Embedding{{Index: 0, Embedding: []float32{0.1, 0.2, 0.3}}},
			Usage: embedding.Usage{PromptTokens: 40, TotalTokens: 40},
		},
	}
	e := NewEmbedder(client, "nomic-embed-text-v1.5", cost.NewCalculator(cost.DefaultRates()))

	assert.Equal(t, "v1.0", e.Version())
	assert.Equal(t, []string{"embedding_model"}, e.DependencyKeys())

	out, err := e.Transform(context.Background(), &model.Item{
		ID:        "call-001",
		RawSource: "some text",
	})
	require.NoError(t, err)

	result, ok := out.(*EmbeddingResult)
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, result.Vector)
	assert.Equal(t, "nomic-embed-text-v1.5", result.Model)
	assert.Equal(t, 40, result.Tokens)
	assert.InDelta(t, 40.0/1e6*0.02, result.CostUSD, 1e-12)

	require.Len(t, client.inputs, 1)
	assert.Equal(t, []string{"some text"}, client.inputs[0])

	records := result.LLMRecords()
	require.Len(t, records, 1)
	assert.Equal(t, OutputEmbedding, records[0].OutputType)
	// The audit record carries dimensions, not the full vector.
	assert.Equal(t, map[string]any{"dimensions": 3, "tokens": 40}, records[0].OutputValue)
}

func TestEmbedder_EmptyText(t *testing.T) {
	e := NewEmbedder(&mockEmbeddingClient{}, "m", cost.NewCalculator(cost.DefaultRates()))

	_, err := e.Transform(context.Background(), &model.Item{ID: "call-001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no text")
}

func TestEmbedder_BackendError(t *testing.T) {
	client := &mockEmbeddingClient{err: eris.New("backend down")}
	e := NewEmbedder(client, "m", cost.NewCalculator(cost.DefaultRates()))

	_, err := e.Transform(context.Background(), &model.Item{ID: "call-001", RawSource: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestEmbedder_NoVector(t *testing.T) {
	client := &mockEmbeddingClient{resp: &embedding.EmbedResponse{Model: "m"}}
	e := NewEmbedder(client, "m", cost.NewCalculator(cost.DefaultRates()))

	_, err := e.Transform(context.Background(), &model.Item{ID: "call-001", RawSource: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no vector")
}
