package arbor

import (
	"fmt"
	"iter"
)

// Token is a lexical unit of the source: a leaf, a comment or a
// whitespace run. Its text is sliced from the source on demand.
type Token struct {
	Kind  FringeKind
	Type  string
	Range Range
	tree  *Tree
}

// Text returns the token's source text.
func (t Token) Text() string {
	return string(t.tree.source[t.Range.Start:t.Range.End])
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q %s", t.Type, t.Text(), t.Range)
}

// TokenizeOption configures Tokenize.
type TokenizeOption func(*tokenizeConfig)

type tokenizeConfig struct {
	ignoreWhitespace bool
	ignoreComments   bool
}

// IgnoreWhitespace drops whitespace tokens. It defaults to true.
func IgnoreWhitespace(on bool) TokenizeOption {
	return func(c *tokenizeConfig) { c.ignoreWhitespace = on }
}

// IgnoreComments drops comment tokens. It defaults to false.
func IgnoreComments(on bool) TokenizeOption {
	return func(c *tokenizeConfig) { c.ignoreComments = on }
}

// Tokenize yields the tree's tokens in source order. Whitespace tokens
// carry the type "whitespace" and unparsed gaps the type "unparsed".
func (t *Tree) Tokenize(opts ...TokenizeOption) iter.Seq[Token] {
	cfg := tokenizeConfig{ignoreWhitespace: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	fringe := t.Fringe(FringeOptions{
		Nodes:      true,
		Types:      true,
		Comments:   !cfg.ignoreComments,
		Whitespace: !cfg.ignoreWhitespace,
	})
	return func(yield func(Token) bool) {
		for e := range fringe {
			tok := Token{Kind: e.Kind, Type: e.Type, Range: e.Range, tree: t}
			if e.Node.IsZero() {
				tok.Type = e.Kind.String()
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// TokenTexts collects the text of every token Tokenize yields.
func (t *Tree) TokenTexts(opts ...TokenizeOption) []string {
	var out []string
	for tok := range t.Tokenize(opts...) {
		out = append(out, tok.Text())
	}
	return out
}
