package query

import (
	"fmt"
	"strings"
	"time"
)

// Change is a parsed change query over a field's modification history.
// Inverted means the field never changed (only meaningful without further
// constraints). At most one of Interval, ByUsers, From, or To is set by a
// single parse; callers merge multiple change options for the same field.
type Change struct {
	Field    string
	Inverted bool
	Interval *Range
	ByUsers  []string
	From     *string
	To       *string
}

// ParseChanged parses a changed query: "field" (ever changed), "!field"
// (never changed), or "field=<range>" (changed within the time interval).
func ParseChanged(raw string, now time.Time) (Change, error) {
	name, arg, hasArg := strings.Cut(raw, "=")
	c := Change{Field: name}
	if rest, ok := strings.CutPrefix(name, "!"); ok {
		c.Field = rest
		c.Inverted = true
	}
	if c.Field == "" {
		return Change{}, fmt.Errorf("%w: empty change field: %q", ErrInvalidValue, raw)
	}
	if hasArg {
		if c.Inverted {
			return Change{}, fmt.Errorf("%w: inverted change query with interval: %q", ErrInvalidValue, raw)
		}
		// Change windows are always over modification timestamps.
		r, err := ParseRange(arg, KindTime, now)
		if err != nil {
			return Change{}, err
		}
		// Equality has no meaning against a change history.
		if r.Relational && (r.Op == RangeEq || r.Op == RangeNe) {
			return Change{}, fmt.Errorf("%w: equality operator invalid for change values: %q", ErrInvalidValue, arg)
		}
		c.Interval = &r
	}
	return c, nil
}

// ParseChangedBy parses "field=user[,user...]".
func ParseChangedBy(raw string) (Change, error) {
	name, arg, ok := strings.Cut(raw, "=")
	if !ok || name == "" {
		return Change{}, fmt.Errorf("%w: expected field=user[,user...]: %q", ErrInvalidValue, raw)
	}
	users := splitCSV(arg)
	if len(users) == 0 {
		return Change{}, fmt.Errorf("%w: no users: %q", ErrInvalidValue, raw)
	}
	return Change{Field: name, ByUsers: users}, nil
}

// ParseChangedFrom parses "field=value" matching records whose field once
// held value.
func ParseChangedFrom(raw string) (Change, error) {
	return parseChangeValue(raw, true)
}

// ParseChangedTo parses "field=value" matching records whose field was ever
// changed to value.
func ParseChangedTo(raw string) (Change, error) {
	return parseChangeValue(raw, false)
}

func parseChangeValue(raw string, from bool) (Change, error) {
	name, arg, ok := strings.Cut(raw, "=")
	if !ok || name == "" || arg == "" {
		return Change{}, fmt.Errorf("%w: expected field=value: %q", ErrInvalidValue, raw)
	}
	c := Change{Field: name}
	if from {
		c.From = &arg
	} else {
		c.To = &arg
	}
	return c, nil
}
