package query

import (
	"fmt"
	"strings"
)

// Order is an invertible result-ordering key. Field names are logical;
// adapters translate them to wire order keys and reject unknown fields.
type Order struct {
	Field      string
	Descending bool
}

// ParseOrder parses a comma-separated list of order keys. A leading -
// selects descending order; a leading + or no prefix selects ascending.
func ParseOrder(raw string) ([]Order, error) {
	var out []Order
	for _, term := range splitCSV(raw) {
		o := Order{Field: term}
		if rest, ok := strings.CutPrefix(term, "-"); ok {
			o = Order{Field: rest, Descending: true}
		} else if rest, ok := strings.CutPrefix(term, "+"); ok {
			o = Order{Field: rest}
		}
		if o.Field == "" {
			return nil, fmt.Errorf("%w: empty order key: %q", ErrInvalidValue, raw)
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no order keys: %q", ErrInvalidValue, raw)
	}
	return out, nil
}
