// Package query implements the backend-agnostic filter and delta grammar:
// match expressions, numeric/time ranges, tri-state existence queries,
// AND/OR list groups, and add/remove/set delta lists. Parsing is pure and
// synchronous; relative times are resolved against a "now" captured once per
// invocation so that a multi-page fetch compiles consistently.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ScalarKind discriminates the two scalar families a range bound can hold.
type ScalarKind int

const (
	ScalarInt ScalarKind = iota
	ScalarTime
)

// Scalar is a parsed numeric or time-point value. Raw preserves the exact
// user input for error messages and re-rendering.
type Scalar struct {
	Raw  string
	Kind ScalarKind
	Int  int64
	Time time.Time
}

var relativeTimeRe = regexp.MustCompile(`^(?:\d+[smhdwMy])+$`)
var relativeTermRe = regexp.MustCompile(`(\d+)([smhdwMy])`)

// Absolute timestamp layouts accepted for time scalars, most specific first.
// Bare years are absent here: they parse as integers and are reinterpreted
// per field kind by parseBound.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
}

// ParseScalar parses a numeric or time scalar. Relative durations of the
// form <integer><unit> (unit one of s, m, h, d, w, M, y where m is minutes
// and M is months) resolve to now minus the duration, so "1w" means "one
// week ago". Terms may be concatenated, e.g. "1d12h".
func ParseScalar(raw string, now time.Time) (Scalar, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Scalar{}, fmt.Errorf("%w: empty scalar", ErrInvalidValue)
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Scalar{Raw: s, Kind: ScalarInt, Int: n}, nil
	}

	if relativeTimeRe.MatchString(s) {
		t, err := resolveRelative(s, now)
		if err != nil {
			return Scalar{}, err
		}
		return Scalar{Raw: s, Kind: ScalarTime, Time: t}, nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Scalar{Raw: s, Kind: ScalarTime, Time: t.UTC()}, nil
		}
	}

	return Scalar{}, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
}

// parseBound parses a range bound with the field's kind deciding how an
// ambiguous bare integer reads: on time-valued fields a four-digit value is
// a year and anything else numeric is rejected, elsewhere integers stay
// integers.
func parseBound(raw string, kind FieldKind, now time.Time) (Scalar, error) {
	s, err := ParseScalar(raw, now)
	if err != nil {
		return Scalar{}, err
	}
	if kind == KindTime && s.Kind == ScalarInt {
		t, err := time.Parse("2006", s.Raw)
		if err != nil {
			return Scalar{}, fmt.Errorf("%w: %q is not a time point", ErrInvalidValue, raw)
		}
		return Scalar{Raw: s.Raw, Kind: ScalarTime, Time: t.UTC()}, nil
	}
	return s, nil
}

// resolveRelative subtracts the accumulated duration terms from now.
// Month and year terms use calendar arithmetic; the rest are fixed spans.
func resolveRelative(s string, now time.Time) (time.Time, error) {
	t := now.UTC()
	for _, m := range relativeTermRe.FindAllStringSubmatch(s, -1) {
		n, err := strconv.ParseInt(m[1], 10, 32)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: duration term %q", ErrInvalidValue, m[0])
		}
		switch m[2] {
		case "s":
			t = t.Add(-time.Duration(n) * time.Second)
		case "m":
			t = t.Add(-time.Duration(n) * time.Minute)
		case "h":
			t = t.Add(-time.Duration(n) * time.Hour)
		case "d":
			t = t.Add(-time.Duration(n) * 24 * time.Hour)
		case "w":
			t = t.Add(-time.Duration(n) * 7 * 24 * time.Hour)
		case "M":
			t = t.AddDate(0, -int(n), 0)
		case "y":
			t = t.AddDate(-int(n), 0, 0)
		}
	}
	return t, nil
}

// Wire renders the scalar in the canonical on-the-wire form shared by all
// backends: decimal for numbers, UTC RFC 3339 seconds for time points.
func (s Scalar) Wire() string {
	if s.Kind == ScalarInt {
		return strconv.FormatInt(s.Int, 10)
	}
	return s.Time.UTC().Format("2006-01-02T15:04:05Z")
}

// Less reports whether s sorts before other. Both scalars must share a kind.
func (s Scalar) Less(other Scalar) (bool, error) {
	if s.Kind != other.Kind {
		return false, fmt.Errorf("%w: cannot compare %q with %q", ErrInvalidRange, s.Raw, other.Raw)
	}
	if s.Kind == ScalarInt {
		return s.Int < other.Int, nil
	}
	return s.Time.Before(other.Time), nil
}
