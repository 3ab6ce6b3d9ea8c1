package query

import "strings"

// MatchOp is a string match operator. The zero value is the default
// case-sensitive substring match applied when no operator token is present.
type MatchOp int

const (
	OpContains     MatchOp = iota // =~ contains, case-sensitive
	OpIContains                   // ~~ contains, case-insensitive
	OpNotIContains                // !~ doesn't contain, case-insensitive
	OpEquals                      // == equal to value
	OpNotEquals                   // != not equal to value
	OpRegexp                      // =* matches regular expression
	OpNotRegexp                   // !* doesn't match regular expression
)

var matchOpTokens = map[string]MatchOp{
	"=~": OpContains,
	"~~": OpIContains,
	"!~": OpNotIContains,
	"==": OpEquals,
	"!=": OpNotEquals,
	"=*": OpRegexp,
	"!*": OpNotRegexp,
}

func (op MatchOp) String() string {
	switch op {
	case OpContains:
		return "=~"
	case OpIContains:
		return "~~"
	case OpNotIContains:
		return "!~"
	case OpEquals:
		return "=="
	case OpNotEquals:
		return "!="
	case OpRegexp:
		return "=*"
	case OpNotRegexp:
		return "!*"
	default:
		return "?"
	}
}

// Match is a parsed match expression: an operator plus the value text.
type Match struct {
	Op    MatchOp
	Value string
}

// ParseMatch parses a match expression. The operator token, when present, is
// one of the two-character forms separated from the value by exactly one
// space. Parsing is total: an unknown leading token is not an error, the
// whole input is kept as literal value text with default substring
// semantics.
func ParseMatch(raw string) Match {
	if tok, rest, ok := strings.Cut(raw, " "); ok {
		if op, known := matchOpTokens[tok]; known {
			return Match{Op: op, Value: rest}
		}
	}
	return Match{Op: OpContains, Value: raw}
}
