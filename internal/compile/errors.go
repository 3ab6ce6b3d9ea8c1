package compile

import "fmt"

// UnsupportedError reports a (field, operator) combination the backend
// cannot express. It carries enough context for the user to adjust the
// query; callers wanting an approximation must decide that themselves.
type UnsupportedError struct {
	Backend  Backend
	Field    string
	Operator string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: field %q: unsupported operator %q", e.Backend, e.Field, e.Operator)
}

func unsupported(backend Backend, field, operator string) error {
	return &UnsupportedError{Backend: backend, Field: field, Operator: operator}
}
