package query

import (
	"fmt"
	"strings"
	"time"
)

// RangeOp is a relational range operator.
type RangeOp int

const (
	RangeLt RangeOp = iota // <
	RangeLe                // <=
	RangeEq                // =
	RangeNe                // !=
	RangeGe                // >=
	RangeGt                // >
)

func (op RangeOp) String() string {
	switch op {
	case RangeLt:
		return "<"
	case RangeLe:
		return "<="
	case RangeEq:
		return "="
	case RangeNe:
		return "!="
	case RangeGe:
		return ">="
	case RangeGt:
		return ">"
	default:
		return "?"
	}
}

// Range is a parsed range expression over numeric or time scalars. It is
// either relational (Op applied to Bound) or an interval with optional
// bounds; `..` leaves the upper bound exclusive, `..=` makes it inclusive.
type Range struct {
	Relational bool
	Op         RangeOp
	Bound      Scalar

	Lo          *Scalar
	Hi          *Scalar
	InclusiveHi bool
}

// relational operator prefixes, longest first so <= wins over <.
var rangeOpTokens = []struct {
	tok string
	op  RangeOp
}{
	{"<=", RangeLe},
	{">=", RangeGe},
	{"!=", RangeNe},
	{"<", RangeLt},
	{">", RangeGt},
	{"=", RangeEq},
}

// ParseRange parses a relational or interval range expression. The field
// kind decides how bare integers read (a year on time fields); relative time
// bounds resolve against now. It fails with ErrInvalidRange when no range
// operator is present, a bound is unparsable, or a fully-bounded interval
// has lo > hi.
func ParseRange(raw string, kind FieldKind, now time.Time) (Range, error) {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, ".."); idx >= 0 {
		return parseInterval(s, idx, kind, now)
	}

	for _, entry := range rangeOpTokens {
		if rest, ok := strings.CutPrefix(s, entry.tok); ok {
			bound, err := parseBound(strings.TrimSpace(rest), kind, now)
			if err != nil {
				return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
			}
			return Range{Relational: true, Op: entry.op, Bound: bound}, nil
		}
	}

	return Range{}, fmt.Errorf("%w: missing range operator: %q", ErrInvalidRange, raw)
}

func parseInterval(s string, idx int, kind FieldKind, now time.Time) (Range, error) {
	loPart := s[:idx]
	hiPart := s[idx+2:]
	inclusive := false
	if rest, ok := strings.CutPrefix(hiPart, "="); ok {
		inclusive = true
		hiPart = rest
	}

	r := Range{InclusiveHi: inclusive}
	if loPart != "" {
		lo, err := parseBound(loPart, kind, now)
		if err != nil {
			return Range{}, fmt.Errorf("%w: lower bound %q", ErrInvalidRange, loPart)
		}
		r.Lo = &lo
	}
	if hiPart != "" {
		hi, err := parseBound(hiPart, kind, now)
		if err != nil {
			return Range{}, fmt.Errorf("%w: upper bound %q", ErrInvalidRange, hiPart)
		}
		r.Hi = &hi
	}
	if r.Lo != nil && r.Hi != nil {
		less, err := r.Hi.Less(*r.Lo)
		if err != nil {
			return Range{}, err
		}
		if less {
			return Range{}, fmt.Errorf("%w: %q > %q", ErrInvalidRange, r.Lo.Raw, r.Hi.Raw)
		}
	}
	return r, nil
}

// IsRange reports whether raw parses as a range expression. Used by the list
// grammar to decide whether an item is a range or a plain value.
func IsRange(raw string, kind FieldKind, now time.Time) bool {
	_, err := ParseRange(raw, kind, now)
	return err == nil
}

// String re-renders the range in its source form.
func (r Range) String() string {
	if r.Relational {
		return r.Op.String() + r.Bound.Raw
	}
	var b strings.Builder
	if r.Lo != nil {
		b.WriteString(r.Lo.Raw)
	}
	b.WriteString("..")
	if r.InclusiveHi {
		b.WriteString("=")
	}
	if r.Hi != nil {
		b.WriteString(r.Hi.Raw)
	}
	return b.String()
}
