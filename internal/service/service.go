// Package service defines the backend-neutral surface shared by the tracker
// adapters: connection profiles, the normalized record shape, paged request
// parameters, and the adapter contract itself. Concrete adapters live in the
// subpackages and consume compiled fragments; nothing here knows about any
// wire grammar.
package service

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"tracq/internal/compile"
)

// Connection is one configured tracker endpoint, usually loaded from a named
// profile in the config file.
type Connection struct {
	Base        string
	Token       string
	User        string
	Repo        string
	Timeout     time.Duration
	Concurrency int
	Insecure    bool
}

// DefaultTimeout bounds a single page request when the profile sets none.
const DefaultTimeout = 30 * time.Second

// HTTPClient builds the pooled client for this connection. Timeouts apply
// per request; a timed-out page surfaces like any other rejected request.
func (c Connection) HTTPClient() *http.Client {
	transport := cleanhttp.DefaultPooledTransport()
	if c.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // G402: explicit per-profile opt-in
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// ReplaceUserAlias substitutes the @me alias with the profile's configured
// user. Values without the alias pass through untouched.
func (c Connection) ReplaceUserAlias(value string) string {
	if value == "@me" && c.User != "" {
		return c.User
	}
	return value
}

// Record is the normalized record shape all adapters map onto. Fields the
// backend did not return stay at their zero value; Extra keeps any requested
// backend-specific fields (for example Bugzilla custom fields).
type Record struct {
	ID       int64             `json:"id"`
	Summary  string            `json:"summary"`
	Status   string            `json:"status,omitempty"`
	Assignee string            `json:"assignee,omitempty"`
	Creator  string            `json:"creator,omitempty"`
	Created  time.Time         `json:"created,omitzero"`
	Updated  time.Time         `json:"updated,omitzero"`
	Labels   []string          `json:"labels,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// PagedRequest carries everything a single search invocation needs. Requests
// are immutable once built; page offsets derive new values instead of
// mutating shared state.
type PagedRequest struct {
	Offset      int64
	Limit       int64
	Max         int64 // 0 = unbounded
	Concurrency int
	Order       []string
	Fields      []string
	Fragments   []compile.Fragment
	Quicksearch string
}

// Page returns a copy positioned at the k-th page.
func (r PagedRequest) Page(k int64) PagedRequest {
	r.Offset += k * r.Limit
	return r
}

// Adapter is the per-backend service contract. SearchPage returns one page
// of records in the backend's order; a short page signals the end of the
// result set.
type Adapter interface {
	// Backend identifies the wire grammar this adapter speaks.
	Backend() compile.Backend
	// SearchPage fetches a single page of a compiled search.
	SearchPage(ctx context.Context, req PagedRequest) ([]Record, error)
	// Get fetches records by ID.
	Get(ctx context.Context, ids []int64) ([]Record, error)
	// Create files a new record from compiled creation fragments and
	// returns its id.
	Create(ctx context.Context, frags []compile.Fragment) (int64, error)
	// Update applies compiled update fragments to the given records.
	Update(ctx context.Context, ids []int64, frags []compile.Fragment) error
	// ReadListField reads a collection field's current remote value, the
	// read half of the read-modify-write fallback for NeedsRead fragments.
	ReadListField(ctx context.Context, id int64, field string) ([]string, error)
}

// NormalizeFields ensures the id field is always requested and drops
// duplicates while preserving the caller's order.
func NormalizeFields(fields []string, defaults []string) []string {
	if len(fields) == 0 {
		fields = defaults
	}
	out := make([]string, 0, len(fields)+1)
	seen := map[string]bool{}
	add := func(f string) {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			return
		}
		seen[f] = true
		out = append(out, f)
	}
	add("id")
	for _, f := range fields {
		add(f)
	}
	return out
}
