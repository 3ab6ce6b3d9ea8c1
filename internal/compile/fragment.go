package compile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChartKind discriminates Bugzilla boolean-chart terms.
type ChartKind int

const (
	// ChartField is one f{n}/o{n}/v{n} triple.
	ChartField ChartKind = iota
	// ChartOpen opens a parenthesized group joined by Join (f{n}=OP, j{n}).
	ChartOpen
	// ChartClose closes a group (f{n}=CP).
	ChartClose
)

// ChartTerm is one abstract boolean-chart entry. Term numbering is assigned
// by the Bugzilla adapter when the full request is assembled, so fragments
// compose without renumbering.
type ChartTerm struct {
	Kind   ChartKind
	Field  string
	Op     string
	Value  string
	Join   string // ChartOpen: "AND" or "OR"
	Negate bool   // ChartField: invert the term (n{n}=1)
}

// Param is one query-string parameter for parameter-oriented backends.
type Param struct {
	Key   string
	Value string
}

// Fragment is a compiled, backend-specific unit: boolean-chart terms for
// Bugzilla, query-string parameters for Redmine, search qualifiers for
// GitHub, or an update payload fragment. Fragments are opaque to the
// fetcher and consumed only by the owning adapter.
type Fragment struct {
	Backend Backend
	Field   string

	// Search forms.
	Chart      []ChartTerm
	Params     []Param
	Qualifiers []string

	// Update forms. Update holds payload entries merged into the request
	// body; Add/Remove hold values for native incremental endpoints.
	Update map[string]any
	Add    []string
	Remove []string

	// NeedsRead marks a delta the backend cannot apply incrementally: the
	// adapter must read the field's current remote state, apply Add/Remove,
	// and emit a Set. The resulting read-modify-write is not atomic;
	// concurrent external modification between read and write can be lost.
	NeedsRead bool
}

// Encode renders the fragment in a canonical textual form. Compiling the
// same field and expression twice yields byte-identical encodings, which
// tests rely on; adapters use it for debug logging only.
func (f Fragment) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s", f.Backend, f.Field)
	for _, t := range f.Chart {
		switch t.Kind {
		case ChartOpen:
			fmt.Fprintf(&b, " OP(%s)", t.Join)
		case ChartClose:
			b.WriteString(" CP")
		default:
			fmt.Fprintf(&b, " {%s %s %s}", t.Field, t.Op, t.Value)
			if t.Negate {
				b.WriteString("!")
			}
		}
	}
	for _, p := range f.Params {
		fmt.Fprintf(&b, " %s=%s", p.Key, p.Value)
	}
	for _, q := range f.Qualifiers {
		fmt.Fprintf(&b, " %s", q)
	}
	if f.Update != nil {
		// json.Marshal sorts map keys, keeping the encoding stable.
		data, _ := json.Marshal(f.Update)
		fmt.Fprintf(&b, " update=%s", data)
	}
	if len(f.Add) > 0 {
		fmt.Fprintf(&b, " add=%s", strings.Join(f.Add, ","))
	}
	if len(f.Remove) > 0 {
		fmt.Fprintf(&b, " remove=%s", strings.Join(f.Remove, ","))
	}
	if f.NeedsRead {
		b.WriteString(" needs-read")
	}
	return b.String()
}
