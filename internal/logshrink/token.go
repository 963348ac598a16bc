// Package logshrink implements the online template-extraction engine: it
// clusters tokenized log bodies into a small set of templates with
// positional wildcards, so that a batch of similar messages can be stored
// as one template plus per-message variable lists instead of N full
// strings.
package logshrink

import "strings"

// Token is one slot in a Template: either a literal word or the wildcard
// sentinel <*>, which matches any single token at that position.
type Token struct {
	Var  bool
	Text string
}

// Var is the wildcard token.
var Var = Token{Var: true}

// Lit builds a literal token.
func Lit(s string) Token { return Token{Text: s} }

// Tokenize splits a log body on runs of ASCII space/tab, trimming leading
// and trailing whitespace. This is the only lossy normalization the engine
// performs: leading/trailing whitespace and the exact run of spaces/tabs
// between tokens cannot survive reconstruction, since reconstructed output
// separates tokens with exactly one space.
func Tokenize(body string) []string {
	fields := strings.FieldsFunc(body, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
	return fields
}
