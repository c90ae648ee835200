// Package tokens normalizes sub-word tokens for display.
package tokens

import "strings"

// Replacement rewrites one tokenizer marker.
type Replacement struct {
	From string
	To   string
}

// DefaultReplacements covers byte-level BPE (Ġ), SentencePiece (▁) and
// end-of-word (</w>) markers.
var DefaultReplacements = []Replacement{
	{From: "Ġ", To: " "},
	{From: "▁", To: " "},
	{From: "</w>", To: ""},
}

// ContinuationPrefix marks a WordPiece token that continues the previous word.
const ContinuationPrefix = "##"

// Prettifier strips tokenizer markers. It never changes the number or order
// of tokens.
type Prettifier struct {
	replacer  *strings.Replacer
	stripCont bool
}

// NewPrettifier builds a Prettifier from replacements. When stripContinuation
// is set, a leading "##" is removed from tokens longer than the prefix.
func NewPrettifier(replacements []Replacement, stripContinuation bool) *Prettifier {
	pairs := make([]string, 0, 2*len(replacements))
	for _, r := range replacements {
		if r.From == "" {
			continue
		}
		pairs = append(pairs, r.From, r.To)
	}
	return &Prettifier{
		replacer:  strings.NewReplacer(pairs...),
		stripCont: stripContinuation,
	}
}

// Token returns the display form of one token.
func (p *Prettifier) Token(tok string) string {
	if p.stripCont && len(tok) > len(ContinuationPrefix) && strings.HasPrefix(tok, ContinuationPrefix) {
		tok = tok[len(ContinuationPrefix):]
	}
	return p.replacer.Replace(tok)
}

// Apply returns a new slice with every token prettified. The input is not
// modified.
func (p *Prettifier) Apply(toks []string) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = p.Token(t)
	}
	return out
}

var defaultPrettifier = NewPrettifier(DefaultReplacements, true)

// Default returns the shared Prettifier for DefaultReplacements with "##"
// stripping. It is safe for concurrent use.
func Default() *Prettifier {
	return defaultPrettifier
}
