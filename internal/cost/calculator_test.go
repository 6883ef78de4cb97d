package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku":  {Input: 0.80, Output: 4.00},
			"sonnet": {Input: 3.00, Output: 15.00},
		},
		Embedding: EmbeddingRate{PerMTok: 0.02},
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		model  string
		input  int64
		output int64
		want   float64
	}{
		{
			name:  "haiku",
			model: "haiku",
			input: 1000000, output: 100000,
			want: 0.80 + 0.40,
		},
		{
			name:  "sonnet",
			model: "sonnet",
			input: 500000, output: 10000,
			want: 1.50 + 0.15,
		},
		{
			name:  "unknown model costs zero",
			model: "mystery",
			input: 1000000, output: 1000000,
			want: 0,
		},
		{
			name:  "zero usage",
			model: "haiku",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Claude(tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEmbedding(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.02, calc.Embedding(1000000), 1e-9)
	assert.InDelta(t, 0.0, calc.Embedding(0), 1e-9)
	assert.InDelta(t, 0.00001, calc.Embedding(500), 1e-9)
}

func TestDefaultRates(t *testing.T) {
	rates := DefaultRates()
	assert.NotEmpty(t, rates.Anthropic)
	assert.Greater(t, rates.Embedding.PerMTok, 0.0)
}
