package transform

import (
	"context"
	"strings"
	"unicode"

	"github.com/sells-group/archive-cli/internal/model"
	"golang.org/x/text/unicode/norm"
)

// fillerTokens are transcript artifacts stripped during normalization.
var fillerTokens = map[string]bool{
	"um":   true,
	"uh":   true,
	"erm":  true,
	"mm":   true,
	"mmhm": true,
}

// Normalizer cleans raw transcript text: NFC unicode normalization,
// control-character removal, whitespace collapse, and filler-token
// stripping. Pure; no dependency keys.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Version() string {
	return "v1.2"
}

func (n *Normalizer) DependencyKeys() []string {
	return nil
}

func (n *Normalizer) Transform(_ context.Context, item *model.Item) (any, error) {
	return Normalize(item.RawSource), nil
}

// Normalize applies the normalizer's text cleanup to s.
func Normalize(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		if fillerTokens[strings.ToLower(strings.Trim(f, ",."))] {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
