package compile

import (
	"fmt"
	"strings"

	"tracq/internal/query"
)

// CompileQuery compiles a parsed list group for one field into a
// backend-specific fragment. The group's AND/OR structure was decided at
// parse time; compilation only renders it, or fails when the backend cannot
// express the shape.
func CompileQuery(backend Backend, field string, g query.ListGroup) (Fragment, error) {
	spec, ok := lookupField(backend, field)
	if !ok {
		return Fragment{}, unsupported(backend, field, "filter")
	}
	switch backend {
	case Bugzilla:
		return compileBugzillaQuery(spec, field, g)
	case Redmine:
		return compileRedmineQuery(spec, field, g)
	default:
		return compileGitHubQuery(spec, field, g)
	}
}

// CompileTriState compiles a tri-state existence filter. Content constraints
// delegate to CompileQuery as a single-item group.
func CompileTriState(backend Backend, field string, ts query.TriState) (Fragment, error) {
	switch ts.Kind {
	case query.TriMatch:
		m := ts.Match
		return CompileQuery(backend, field, query.ListGroup{
			Op:    query.GroupAnd,
			Items: []query.ListItem{{Match: &m}},
		})
	case query.TriRange:
		r := ts.Range
		return CompileQuery(backend, field, query.ListGroup{
			Op:    query.GroupAnd,
			Items: []query.ListItem{{Range: &r}},
		})
	}

	spec, ok := lookupField(backend, field)
	if !ok || !spec.exists {
		return Fragment{}, unsupported(backend, field, "exists")
	}
	present := ts.Kind == query.TriPresent
	switch backend {
	case Bugzilla:
		op := "isnotempty"
		if !present {
			op = "isempty"
		}
		return Fragment{
			Backend: Bugzilla,
			Field:   field,
			Chart:   []ChartTerm{{Kind: ChartField, Field: spec.wire, Op: op}},
		}, nil
	case Redmine:
		v := "*"
		if !present {
			v = "!*"
		}
		return Fragment{
			Backend: Redmine,
			Field:   field,
			Params:  []Param{{Key: spec.wire, Value: v}},
		}, nil
	default:
		if !spec.no {
			return Fragment{}, unsupported(backend, field, "exists")
		}
		q := "no:" + spec.wire
		if present {
			q = "-" + q
		}
		return Fragment{Backend: GitHub, Field: field, Qualifiers: []string{q}}, nil
	}
}

// CompileChange compiles a change-history query. Only the Bugzilla chart
// grammar can express change queries; the other backends report the whole
// query unsupported rather than approximating it.
func CompileChange(backend Backend, c query.Change) (Fragment, error) {
	if backend != Bugzilla {
		return Fragment{}, unsupported(backend, c.Field, "changed")
	}
	spec, ok := lookupField(Bugzilla, c.Field)
	if !ok {
		return Fragment{}, unsupported(Bugzilla, c.Field, "changed")
	}

	f := Fragment{Backend: Bugzilla, Field: c.Field}
	switch {
	case c.Interval != nil:
		f.Chart = changeIntervalTerms(spec.wire, *c.Interval)
	case len(c.ByUsers) > 0:
		if len(c.ByUsers) == 1 {
			f.Chart = []ChartTerm{{Kind: ChartField, Field: spec.wire, Op: "changedby", Value: c.ByUsers[0]}}
			break
		}
		f.Chart = append(f.Chart, ChartTerm{Kind: ChartOpen, Join: "OR"})
		for _, u := range c.ByUsers {
			f.Chart = append(f.Chart, ChartTerm{Kind: ChartField, Field: spec.wire, Op: "changedby", Value: u})
		}
		f.Chart = append(f.Chart, ChartTerm{Kind: ChartClose})
	case c.From != nil:
		f.Chart = []ChartTerm{{Kind: ChartField, Field: spec.wire, Op: "changedfrom", Value: *c.From}}
	case c.To != nil:
		f.Chart = []ChartTerm{{Kind: ChartField, Field: spec.wire, Op: "changedto", Value: *c.To}}
	default:
		// Ever changed: anything before the moving "Now" anchor. Inverting
		// the term matches fields that never changed.
		f.Chart = []ChartTerm{{Kind: ChartField, Field: spec.wire, Op: "changedbefore", Value: "Now", Negate: c.Inverted}}
	}
	return f, nil
}

// changeIntervalTerms renders a change-time constraint. Relational operators
// collapse onto changedafter/changedbefore; intervals emit both ends.
func changeIntervalTerms(wire string, r query.Range) []ChartTerm {
	if r.Relational {
		op := "changedafter"
		if r.Op == query.RangeLt || r.Op == query.RangeLe {
			op = "changedbefore"
		}
		return []ChartTerm{{Kind: ChartField, Field: wire, Op: op, Value: r.Bound.Wire()}}
	}
	var terms []ChartTerm
	if r.Lo != nil {
		terms = append(terms, ChartTerm{Kind: ChartField, Field: wire, Op: "changedafter", Value: r.Lo.Wire()})
	}
	if r.Hi != nil {
		terms = append(terms, ChartTerm{Kind: ChartField, Field: wire, Op: "changedbefore", Value: r.Hi.Wire()})
	}
	return terms
}

// ---- Bugzilla ----

func compileBugzillaQuery(spec fieldSpec, field string, g query.ListGroup) (Fragment, error) {
	terms, err := bugzillaGroupTerms(spec, field, g, true)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Backend: Bugzilla, Field: field, Chart: terms}, nil
}

// bugzillaGroupTerms renders a list group as chart terms. Top-level AND needs
// no wrapping (chart terms are implicitly conjoined); everything else is
// wrapped in OP/CP when more than one member renders.
func bugzillaGroupTerms(spec fieldSpec, field string, g query.ListGroup, top bool) ([]ChartTerm, error) {
	// An interval renders as two terms that must hold together. At the top
	// level chart terms are already conjoined; anywhere else the pair needs
	// its own AND group.
	wrapIntervals := !(top && g.Op == query.GroupAnd)

	var members [][]ChartTerm
	for _, item := range g.Items {
		terms, err := bugzillaItemTerms(spec, field, item, wrapIntervals)
		if err != nil {
			return nil, err
		}
		members = append(members, terms)
	}
	for _, sub := range g.Groups {
		terms, err := bugzillaGroupTerms(spec, field, sub, false)
		if err != nil {
			return nil, err
		}
		members = append(members, terms)
	}

	var out []ChartTerm
	for _, m := range members {
		out = append(out, m...)
	}
	if len(members) <= 1 || (top && g.Op == query.GroupAnd) {
		return out, nil
	}
	wrapped := make([]ChartTerm, 0, len(out)+2)
	wrapped = append(wrapped, ChartTerm{Kind: ChartOpen, Join: g.Op.String()})
	wrapped = append(wrapped, out...)
	wrapped = append(wrapped, ChartTerm{Kind: ChartClose})
	return wrapped, nil
}

func bugzillaItemTerms(spec fieldSpec, field string, item query.ListItem, wrapIntervals bool) ([]ChartTerm, error) {
	if item.Match != nil {
		if !spec.match {
			return nil, unsupported(Bugzilla, field, item.Match.Op.String())
		}
		return []ChartTerm{{
			Kind:  ChartField,
			Field: spec.wire,
			Op:    bugzillaMatchOps[item.Match.Op],
			Value: item.Match.Value,
		}}, nil
	}

	r := *item.Range
	if !spec.ranged {
		return nil, unsupported(Bugzilla, field, "range")
	}
	if r.Relational {
		return []ChartTerm{{
			Kind:  ChartField,
			Field: spec.wire,
			Op:    bugzillaRangeOps[r.Op],
			Value: r.Bound.Wire(),
		}}, nil
	}

	var terms []ChartTerm
	if r.Lo != nil {
		terms = append(terms, ChartTerm{Kind: ChartField, Field: spec.wire, Op: "greaterthaneq", Value: r.Lo.Wire()})
	}
	if r.Hi != nil {
		op := "lessthan"
		if r.InclusiveHi {
			op = "lessthaneq"
		}
		terms = append(terms, ChartTerm{Kind: ChartField, Field: spec.wire, Op: op, Value: r.Hi.Wire()})
	}
	if len(terms) == 2 && wrapIntervals {
		wrapped := make([]ChartTerm, 0, 4)
		wrapped = append(wrapped, ChartTerm{Kind: ChartOpen, Join: "AND"})
		wrapped = append(wrapped, terms...)
		wrapped = append(wrapped, ChartTerm{Kind: ChartClose})
		return wrapped, nil
	}
	return terms, nil
}

// ---- Redmine ----

// compileRedmineQuery renders onto prefix-operator query parameters. The
// parameter grammar has no grouping: one field takes one filter value, with
// OR spelled as a | alternation of equalities. Everything else is reported
// unsupported.
func compileRedmineQuery(spec fieldSpec, field string, g query.ListGroup) (Fragment, error) {
	if len(g.Groups) > 0 {
		return Fragment{}, unsupported(Redmine, field, "or-group")
	}

	if len(g.Items) > 1 && g.Op == query.GroupOr {
		// Only equality alternation is expressible.
		values := make([]string, 0, len(g.Items))
		for _, item := range g.Items {
			switch {
			case item.Match != nil && item.Match.Op == query.OpEquals:
				values = append(values, item.Match.Value)
			case item.Range != nil && item.Range.Relational && item.Range.Op == query.RangeEq:
				values = append(values, item.Range.Bound.Wire())
			default:
				return Fragment{}, unsupported(Redmine, field, "or-group")
			}
		}
		return Fragment{
			Backend: Redmine,
			Field:   field,
			Params:  []Param{{Key: spec.wire, Value: strings.Join(values, "|")}},
		}, nil
	}

	f := Fragment{Backend: Redmine, Field: field}
	for _, item := range g.Items {
		params, err := redmineItemParams(spec, field, item)
		if err != nil {
			return Fragment{}, err
		}
		f.Params = append(f.Params, params...)
	}
	return f, nil
}

func redmineItemParams(spec fieldSpec, field string, item query.ListItem) ([]Param, error) {
	if item.Match != nil {
		if !spec.match {
			return nil, unsupported(Redmine, field, item.Match.Op.String())
		}
		prefix, ok := redmineMatchOps[item.Match.Op]
		if !ok {
			return nil, unsupported(Redmine, field, item.Match.Op.String())
		}
		return []Param{{Key: spec.wire, Value: prefix + item.Match.Value}}, nil
	}

	r := *item.Range
	if !spec.ranged {
		return nil, unsupported(Redmine, field, "range")
	}
	if r.Relational {
		return []Param{{Key: spec.wire, Value: redmineRangeOps[r.Op] + r.Bound.Wire()}}, nil
	}
	if r.Lo != nil && r.Hi != nil && r.InclusiveHi {
		return []Param{{Key: spec.wire, Value: fmt.Sprintf("><%s|%s", r.Lo.Wire(), r.Hi.Wire())}}, nil
	}
	var params []Param
	if r.Lo != nil {
		params = append(params, Param{Key: spec.wire, Value: ">=" + r.Lo.Wire()})
	}
	if r.Hi != nil {
		op := "<"
		if r.InclusiveHi {
			op = "<="
		}
		params = append(params, Param{Key: spec.wire, Value: op + r.Hi.Wire()})
	}
	return params, nil
}

// ---- GitHub ----

// compileGitHubQuery renders onto search qualifiers. Qualifiers are
// implicitly conjoined; OR groups have no qualifier form and are reported
// unsupported.
func compileGitHubQuery(spec fieldSpec, field string, g query.ListGroup) (Fragment, error) {
	if len(g.Groups) > 0 || (g.Op == query.GroupOr && len(g.Items) > 1) {
		return Fragment{}, unsupported(GitHub, field, "or-group")
	}

	f := Fragment{Backend: GitHub, Field: field}
	for _, item := range g.Items {
		quals, err := githubItemQualifiers(spec, field, item)
		if err != nil {
			return Fragment{}, err
		}
		f.Qualifiers = append(f.Qualifiers, quals...)
	}
	return f, nil
}

func githubItemQualifiers(spec fieldSpec, field string, item query.ListItem) ([]string, error) {
	if item.Match != nil {
		m := *item.Match
		if !spec.match {
			return nil, unsupported(GitHub, field, m.Op.String())
		}
		// Free-text fields scope a term instead of taking a qualifier value.
		if spec.in != "" {
			switch m.Op {
			case query.OpIContains, query.OpEquals:
				return []string{fmt.Sprintf("%s in:%s", quoteQualifier(m.Value), spec.in)}, nil
			case query.OpNotIContains, query.OpNotEquals:
				return []string{fmt.Sprintf("-%s in:%s", quoteQualifier(m.Value), spec.in)}, nil
			default:
				return nil, unsupported(GitHub, field, m.Op.String())
			}
		}
		prefix, ok := githubMatchOps[m.Op]
		if !ok {
			if m.Op == query.OpNotIContains {
				return []string{fmt.Sprintf("-%s:%s", spec.wire, quoteQualifier(m.Value))}, nil
			}
			return nil, unsupported(GitHub, field, m.Op.String())
		}
		return []string{fmt.Sprintf("%s%s:%s", prefix, spec.wire, quoteQualifier(m.Value))}, nil
	}

	r := *item.Range
	if !spec.ranged {
		return nil, unsupported(GitHub, field, "range")
	}
	if r.Relational {
		op, ok := githubRangeOps[r.Op]
		if !ok {
			return nil, unsupported(GitHub, field, r.Op.String())
		}
		return []string{fmt.Sprintf("%s:%s%s", spec.wire, op, r.Bound.Wire())}, nil
	}
	if r.Lo != nil && r.Hi != nil && r.InclusiveHi {
		return []string{fmt.Sprintf("%s:%s..%s", spec.wire, r.Lo.Wire(), r.Hi.Wire())}, nil
	}
	var quals []string
	if r.Lo != nil {
		quals = append(quals, fmt.Sprintf("%s:>=%s", spec.wire, r.Lo.Wire()))
	}
	if r.Hi != nil {
		op := "<"
		if r.InclusiveHi {
			op = "<="
		}
		quals = append(quals, fmt.Sprintf("%s:%s%s", spec.wire, op, r.Hi.Wire()))
	}
	return quals, nil
}

// quoteQualifier quotes a qualifier value containing whitespace.
func quoteQualifier(v string) string {
	if strings.ContainsAny(v, " \t") {
		return `"` + v + `"`
	}
	return v
}
