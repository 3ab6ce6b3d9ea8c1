package query

import (
	"fmt"
	"strings"
	"time"
)

// FieldKind selects the list-combination rule for a field. The rule is
// recorded per field, never inferred from the values.
type FieldKind int

const (
	// KindText fields combine comma-separated items with AND; items are
	// match expressions.
	KindText FieldKind = iota
	// KindID fields combine comma-separated items with OR by default;
	// any range item in the group forces AND. Plain items become equality
	// ranges.
	KindID
	// KindTime fields combine like KindID but read bare integers as
	// years, so "2024" is a time point rather than the number 2024.
	KindTime
)

// GroupOp combines the items of a list group.
type GroupOp int

const (
	GroupAnd GroupOp = iota
	GroupOr
)

func (op GroupOp) String() string {
	if op == GroupOr {
		return "OR"
	}
	return "AND"
}

// ListItem is one member of a list group: a match expression or a range.
type ListItem struct {
	Match *Match
	Range *Range
}

// ListGroup is an ordered group of items combined by a single operator,
// decided once at parse time. Repeated option occurrences produce a group
// of subgroups OR-ed together.
type ListGroup struct {
	Op     GroupOp
	Items  []ListItem
	Groups []ListGroup
}

// ParseList parses one or more option occurrences into a list group.
// Comma-separated items within one occurrence form a subgroup (AND for text
// fields, OR for ID-like fields unless a range forces AND); repeated
// occurrences are OR-ed together. Mixing range and non-range items in one
// occurrence is an error rather than a guessed combination rule.
func ParseList(occurrences []string, kind FieldKind, now time.Time) (ListGroup, error) {
	groups := make([]ListGroup, 0, len(occurrences))
	for _, occ := range occurrences {
		g, err := parseOccurrence(occ, kind, now)
		if err != nil {
			return ListGroup{}, err
		}
		groups = append(groups, g)
	}
	if len(groups) == 1 {
		return groups[0], nil
	}
	return ListGroup{Op: GroupOr, Groups: groups}, nil
}

func parseOccurrence(raw string, kind FieldKind, now time.Time) (ListGroup, error) {
	values := splitCSV(raw)
	if len(values) == 0 {
		return ListGroup{}, fmt.Errorf("%w: empty list argument", ErrInvalidValue)
	}

	if kind == KindText {
		g := ListGroup{Op: GroupAnd}
		for _, v := range values {
			m := ParseMatch(v)
			g.Items = append(g.Items, ListItem{Match: &m})
		}
		return g, nil
	}

	// ID-like: classify every item first so the group operator is decided
	// once, then reject mixed groups outright.
	ranged := 0
	items := make([]ListItem, 0, len(values))
	for _, v := range values {
		if r, err := ParseRange(v, kind, now); err == nil {
			ranged++
			rc := r
			items = append(items, ListItem{Range: &rc})
			continue
		}
		s, err := parseBound(v, kind, now)
		if err != nil {
			return ListGroup{}, fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
		items = append(items, ListItem{Range: &Range{Relational: true, Op: RangeEq, Bound: s}})
	}

	op := GroupOr
	if ranged > 0 {
		if ranged != len(values) {
			return ListGroup{}, fmt.Errorf("%w: %q", ErrMixedGroup, raw)
		}
		op = GroupAnd
	}
	return ListGroup{Op: op, Items: items}, nil
}

// splitCSV splits a comma-separated argument, dropping empty entries.
func splitCSV(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Flatten returns the group's leaf items, descending into subgroups.
func (g ListGroup) Flatten() []ListItem {
	items := append([]ListItem(nil), g.Items...)
	for _, sub := range g.Groups {
		items = append(items, sub.Flatten()...)
	}
	return items
}
