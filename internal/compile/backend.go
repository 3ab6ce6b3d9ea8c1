// Package compile translates parsed filter and delta expressions into
// backend-specific fragments. Each backend variant owns a capability table
// mapping (field, operator) to a wire rendering; anything the backend cannot
// express surfaces an UnsupportedError rather than a silent approximation.
// Downgrade decisions (for example substring instead of regexp) belong to
// the adapter layer, never to this package.
package compile

import "fmt"

// Backend is the closed set of supported service variants.
type Backend int

const (
	Bugzilla Backend = iota
	Redmine
	GitHub
)

func (b Backend) String() string {
	switch b {
	case Bugzilla:
		return "bugzilla"
	case Redmine:
		return "redmine"
	case GitHub:
		return "github"
	default:
		return "unknown"
	}
}

// ParseBackend parses a backend name as used in connection profiles.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "bugzilla":
		return Bugzilla, nil
	case "redmine":
		return Redmine, nil
	case "github":
		return GitHub, nil
	default:
		return 0, fmt.Errorf("unknown service kind: %q", s)
	}
}
