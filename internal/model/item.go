// Package model defines the core data types for the transcript archive:
// items, their append-only output lists, version manifests, and run records.
package model

import "time"

// Item is one archived piece of source content plus everything ever derived
// from it. RawSource is written once at ingestion and never modified; the
// three list fields only ever grow.
type Item struct {
	ID                string             `json:"id"`
	RawSource         string             `json:"raw_source"`
	LLMOutputs        []LLMOutput        `json:"llm_outputs"`
	DerivedOutputs    []DerivedOutput    `json:"derived_outputs"`
	ProcessingHistory []ProcessingRecord `json:"processing_history"`
	CreatedAt         time.Time          `json:"created_at"`
}

// LLMOutput records the result of one expensive upstream model call.
type LLMOutput struct {
	OutputType  string    `json:"output_type"`
	OutputValue any       `json:"output_value"`
	Model       string    `json:"model,omitempty"`
	CostUSD     float64   `json:"cost_usd,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DerivedOutput records the result of one versioned transformer run,
// stamped with the manifest that produced it.
type DerivedOutput struct {
	OutputType         string    `json:"output_type"`
	OutputValue        any       `json:"output_value"`
	TransformerVersion string    `json:"transformer_version"`
	TransformManifest  Manifest  `json:"transform_manifest"`
	SourceOutputs      []string  `json:"source_outputs"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// ProcessingRecord notes one export of this item to a downstream sink.
type ProcessingRecord struct {
	Version        string    `json:"version"`
	CollectionName string    `json:"collection_name"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// LatestDerived returns the most recently appended derived output of the
// given type, or nil if none exists.
func (it *Item) LatestDerived(outputType string) *DerivedOutput {
	for i := len(it.DerivedOutputs) - 1; i >= 0; i-- {
		if it.DerivedOutputs[i].OutputType == outputType {
			return &it.DerivedOutputs[i]
		}
	}
	return nil
}

// LatestLLM returns the most recently appended LLM output of the given type,
// or nil if none exists.
func (it *Item) LatestLLM(outputType string) *LLMOutput {
	for i := len(it.LLMOutputs) - 1; i >= 0; i-- {
		if it.LLMOutputs[i].OutputType == outputType {
			return &it.LLMOutputs[i]
		}
	}
	return nil
}
