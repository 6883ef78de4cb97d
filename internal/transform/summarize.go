package transform

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/archive-cli/internal/cost"
	"github.com/sells-group/archive-cli/internal/model"
	"github.com/sells-group/archive-cli/internal/resilience"
	"github.com/sells-group/archive-cli/pkg/anthropic"
)

const summarySystemPrompt = `You summarize transcripts for a research archive.
Write a single dense paragraph (max 150 words) capturing the main topics,
claims, and conclusions. No preamble, no bullet points.`

// maxSummaryInputChars caps the transcript text sent to the model.
const maxSummaryInputChars = 60000

// SummaryResult is the derived output value of the summarizer, plus the
// upstream call record the pipeline appends to llm_outputs.
type SummaryResult struct {
	Summary      string  `json:"summary"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// LLMRecords exposes the upstream model call for the llm_outputs audit trail.
func (r *SummaryResult) LLMRecords() []model.LLMOutput {
	return []model.LLMOutput{{
		OutputType:  OutputSummary,
		OutputValue: r.Summary,
		Model:       r.Model,
		CostUSD:     r.CostUSD,
	}}
}

// Summarizer produces a one-paragraph summary of a transcript via Claude.
// It declares "summary_model" so bumping the model reprocesses summaries.
type Summarizer struct {
	client anthropic.Client
	model  string
	tokens int64
	calc   *cost.Calculator
	retry  resilience.RetryConfig
}

// NewSummarizer creates a Summarizer calling the given model.
func NewSummarizer(client anthropic.Client, modelName string, maxTokens int64, calc *cost.Calculator) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "summarize")
	return &Summarizer{
		client: client,
		model:  modelName,
		tokens: maxTokens,
		calc:   calc,
		retry:  retry,
	}
}

func (s *Summarizer) Version() string {
	return "v1.1"
}

func (s *Summarizer) DependencyKeys() []string {
	return []string{"summary_model"}
}

func (s *Summarizer) Transform(ctx context.Context, item *model.Item) (any, error) {
	text, _ := sourceText(item)
	if text == "" {
		return nil, eris.Errorf("summarize: item %s has no text", item.ID)
	}
	if len(text) > maxSummaryInputChars {
		text = text[:maxSummaryInputChars]
	}

	resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     s.model,
			MaxTokens: s.tokens,
			System:    []anthropic.SystemBlock{{Text: summarySystemPrompt}},
			Messages:  []anthropic.Message{{Role: "user", Content: text}},
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "summarize: item %s", item.ID)
	}

	summary := resp.Text()
	if summary == "" {
		return nil, eris.Errorf("summarize: empty response for item %s", item.ID)
	}

	return &SummaryResult{
		Summary:      summary,
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostUSD:      s.calc.Claude(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}, nil
}
