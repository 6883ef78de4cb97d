package transform

import (
	"context"
	"sort"
	"strings"

	"github.com/sells-group/archive-cli/internal/model"
)

// Keyword is one vocabulary term matched in an item's text.
type Keyword struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// KeywordTagger tags items against a controlled vocabulary. Its output
// depends on the vocabulary file, so it declares the "vocabulary" key.
type KeywordTagger struct {
	vocab *Vocabulary
}

// NewKeywordTagger creates a tagger over the given vocabulary.
func NewKeywordTagger(vocab *Vocabulary) *KeywordTagger {
	return &KeywordTagger{vocab: vocab}
}

func (t *KeywordTagger) Version() string {
	return "v1.0"
}

func (t *KeywordTagger) DependencyKeys() []string {
	return []string{"vocabulary"}
}

func (t *KeywordTagger) Transform(_ context.Context, item *model.Item) (any, error) {
	text, _ := sourceText(item)
	haystack := " " + strings.ToLower(Normalize(text)) + " "

	var keywords []Keyword
	for term, patterns := range t.vocab.matchers() {
		count := 0
		for _, p := range patterns {
			// Pad with spaces so "go" does not match inside "cargo".
			count += strings.Count(haystack, " "+p+" ")
		}
		if count > 0 {
			keywords = append(keywords, Keyword{Term: term, Count: count})
		}
	}

	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return keywords[i].Term < keywords[j].Term
	})
	return keywords, nil
}
