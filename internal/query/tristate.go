package query

import "time"

// TriStateKind is the shape of a tri-state existence query.
type TriStateKind int

const (
	// TriPresent matches records where the field is present/non-empty.
	TriPresent TriStateKind = iota
	// TriAbsent matches records where the field is missing/empty.
	TriAbsent
	// TriMatch constrains the field's content with a match expression;
	// presence is implied.
	TriMatch
	// TriRange constrains the field's content with a range expression;
	// presence is implied.
	TriRange
)

// TriState is a parsed tri-state field filter.
type TriState struct {
	Kind  TriStateKind
	Match Match
	Range Range
}

// ParseTriState parses a tri-state filter argument. A nil argument means the
// bare flag was given and the field must be present. The literal booleans
// select explicit presence or absence. Any other value constrains the
// field's content: a range expression when it parses as one, otherwise a
// match expression.
func ParseTriState(raw *string, now time.Time) TriState {
	if raw == nil {
		return TriState{Kind: TriPresent}
	}
	switch *raw {
	case "true":
		return TriState{Kind: TriPresent}
	case "false":
		return TriState{Kind: TriAbsent}
	}
	if r, err := ParseRange(*raw, KindID, now); err == nil {
		return TriState{Kind: TriRange, Range: r}
	}
	return TriState{Kind: TriMatch, Match: ParseMatch(*raw)}
}
