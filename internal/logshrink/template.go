package logshrink

// similarityThreshold is the minimum fraction of matching positions for a
// candidate template to absorb a new record, per the clustering rule.
const similarityThreshold = 0.5

// Template is an ordered sequence of literal and wildcard tokens.
type Template []Token

// entry is one candidate template tracked by the table, addressable by a
// stable id assigned at creation time.
type entry struct {
	id     int
	tokens Template
}

// Table performs the chunk-scoped online clustering described by the
// similarity rule: candidates are grouped by token count, and within a
// group the first candidate meeting the similarity threshold absorbs the
// incoming record, in insertion order, deterministically.
type Table struct {
	templates  []Template // by id, append-only
	byLength   map[int][]*entry
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{byLength: make(map[int][]*entry)}
}

// Templates returns the current template list, indexed by id. The slice
// reflects in-place migrations applied by Assign, and must not be retained
// across further Assign calls without copying.
func (t *Table) Templates() []Template {
	return t.templates
}

// Assign clusters raw (untokenized-into-vars) tokens against the existing
// candidates of the same length, mutating the winning template in place to
// generalize any mismatched literal positions to <*>, and returns its id.
// If no candidate meets the similarity threshold, a new literal template is
// created from tokens verbatim.
func (t *Table) Assign(tokens []string) int {
	n := len(tokens)
	candidates := t.byLength[n]

	for _, c := range candidates {
		if similarity(c.tokens, tokens) >= similarityThreshold {
			migrate(c.tokens, tokens)
			return c.id
		}
	}

	id := len(t.templates)
	tmpl := make(Template, n)
	for i, tok := range tokens {
		tmpl[i] = Lit(tok)
	}
	t.templates = append(t.templates, tmpl)
	t.byLength[n] = append(candidates, &entry{id: id, tokens: tmpl})
	return id
}

// similarity computes the fraction of positions where the candidate's
// token equals the incoming token, or the candidate's token is already a
// wildcard. Both slices are assumed to have equal length (same token-count
// bucket).
func similarity(candidate Template, tokens []string) float64 {
	if len(candidate) == 0 {
		return 0
	}
	matches := 0
	for i, tok := range tokens {
		if candidate[i].Var || candidate[i].Text == tok {
			matches++
		}
	}
	return float64(matches) / float64(len(tokens))
}

// migrate generalizes candidate in place: any literal position that
// disagrees with tokens becomes <*>. Positions that already agree, or are
// already wildcards, are left untouched.
func migrate(candidate Template, tokens []string) {
	for i, tok := range tokens {
		if !candidate[i].Var && candidate[i].Text != tok {
			candidate[i] = Var
		}
	}
}

// Resolve expands template with the raw tokens that were actually seen for
// one record, returning the variable values consumed by each <*> slot in
// left-to-right order. template must be the final, post-migration state of
// the template that tokens was assigned to.
func Resolve(template Template, tokens []string) []string {
	var vars []string
	for i, t := range template {
		if t.Var {
			vars = append(vars, tokens[i])
		}
	}
	return vars
}

// VarCount returns the number of wildcard slots in a template.
func VarCount(template Template) int {
	n := 0
	for _, t := range template {
		if t.Var {
			n++
		}
	}
	return n
}

// Expand walks template left to right, emitting literal tokens verbatim
// and consuming one value from vars for every wildcard, in order.
func Expand(template Template, vars []string) []string {
	out := make([]string, 0, len(template))
	vi := 0
	for _, t := range template {
		if t.Var {
			out = append(out, vars[vi])
			vi++
			continue
		}
		out = append(out, t.Text)
	}
	return out
}
