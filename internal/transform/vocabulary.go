package transform

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Vocabulary is the controlled term list the keyword tagger matches against.
// Engineers edit the YAML file and bump the "vocabulary" registry key
// together, so tagged items go stale when the term list changes.
type Vocabulary struct {
	Version string      `yaml:"version"`
	Terms   []VocabTerm `yaml:"terms"`
}

// VocabTerm is one canonical term plus the aliases that map to it.
type VocabTerm struct {
	Term    string   `yaml:"term"`
	Aliases []string `yaml:"aliases"`
}

// LoadVocabulary reads and parses a vocabulary YAML file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vocabulary: read %s", path)
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, eris.Wrapf(err, "vocabulary: parse %s", path)
	}
	if len(v.Terms) == 0 {
		return nil, eris.Errorf("vocabulary: %s declares no terms", path)
	}
	return &v, nil
}

// matchers returns canonical term → lowercased match strings.
func (v *Vocabulary) matchers() map[string][]string {
	out := make(map[string][]string, len(v.Terms))
	for _, t := range v.Terms {
		patterns := make([]string, 0, len(t.Aliases)+1)
		patterns = append(patterns, strings.ToLower(t.Term))
		for _, a := range t.Aliases {
			patterns = append(patterns, strings.ToLower(a))
		}
		out[t.Term] = patterns
	}
	return out
}
