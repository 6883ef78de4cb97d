package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/archive-cli/internal/cost"
	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/pkg/anthropic"
)

type mockAnthropicClient struct {
	resp  *anthropic.MessageResponse
	err   error
	calls []anthropic.MessageRequest
}

func (m *mockAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestSummarizer_Transform(t *testing.T) {
	client := &mockAnthropicClient{
		resp: &anthropic.MessageResponse{
			Model:   "claude-haiku-4-5-20251001",
			Content: []anthropic.ContentBlock{{Type: "text", Text: "A dense summary."}},
			Usage:   anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 100},
		},
	}
	s := NewSummarizer(client, "claude-haiku-4-5-20251001", 1024, cost.NewCalculator(cost.DefaultRates()))

	assert.Equal(t, "v1.1", s.Version())
	assert.Equal(t, []string{"summary_model"}, s.DependencyKeys())

	out, err := s.Transform(context.Background(), &model.Item{
		ID:        "call-001",
		RawSource: "a long transcript",
	})
	require.NoError(t, err)

	result, ok := out.(*SummaryResult)
	require.True(t, ok)
	assert.Equal(t, "A dense summary.", result.Summary)
	assert.Equal(t, "claude-haiku-4-5-20251001", result.Model)
	assert.Equal(t, int64(1000), result.InputTokens)
	assert.Equal(t, int64(100), result.OutputTokens)
	// 1000 input at $0.80/MTok plus 100 output at $4.00/MTok.
	assert.InDelta(t, 0.0012, result.CostUSD, 1e-9)

	require.Len(t, client.calls, 1)
	req := client.calls[0]
	assert.Equal(t, "claude-haiku-4-5-20251001", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "a long transcript", req.Messages[0].Content)
	require.Len(t, req.System, 1)
	assert.Contains(t, req.System[0].Text, "summarize transcripts")

	records := result.LLMRecords()
	require.Len(t, records, 1)
	assert.Equal(t, OutputSummary, records[0].OutputType)
	assert.Equal(t, "A dense summary.", records[0].OutputValue)
	assert.InDelta(t, 0.0012, records[0].CostUSD, 1e-9)
}

func TestSummarizer_EmptyText(t *testing.T) {
	client := &mockAnthropicClient{}
	s := NewSummarizer(client, "claude-haiku-4-5-20251001", 1024, cost.NewCalculator(cost.DefaultRates()))

	_, err := s.Transform(context.Background(), &model.Item{ID: "call-001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no text")
	assert.Empty(t, client.calls)
}

func TestSummarizer_EmptyResponse(t *testing.T) {
	client := &mockAnthropicClient{resp: &anthropic.MessageResponse{}}
	s := NewSummarizer(client, "claude-haiku-4-5-20251001", 1024, cost.NewCalculator(cost.DefaultRates()))

	_, err := s.Transform(context.Background(), &model.Item{ID: "call-001", RawSource: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestSummarizer_APIErrorNotRetriedWhenPermanent(t *testing.T) {
	client := &mockAnthropicClient{err: eris.New("invalid request")}
	s := NewSummarizer(client, "claude-haiku-4-5-20251001", 1024, cost.NewCalculator(cost.DefaultRates()))

	_, err := s.Transform(context.Background(), &model.Item{ID: "call-001", RawSource: "text"})
	require.Error(t, err)
	assert.Len(t, client.calls, 1)
}

func TestSummarizer_TruncatesLongInput(t *testing.T) {
	client := &mockAnthropicClient{
		resp: &anthropic.MessageResponse{
			Model:   "claude-haiku-4-5-20251001",
			Content: []anthropic.ContentBlock{{Type: "text", Text: "ok"}},
		},
	}
	s := NewSummarizer(client, "claude-haiku-4-5-20251001", 1024, cost.NewCalculator(cost.DefaultRates()))

	_, err := s.Transform(context.Background(), &model.Item{
		ID:        "call-001",
		RawSource: strings.Repeat("x", maxSummaryInputChars+500),
	})
	require.NoError(t, err)
	require.Len(t, client.calls, 1)
	assert.Len(t, client.calls[0].Messages[0].Content, maxSummaryInputChars)
}
