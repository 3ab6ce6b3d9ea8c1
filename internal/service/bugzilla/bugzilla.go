// Package bugzilla implements the service adapter for Bugzilla's REST API
// and its boolean-chart search grammar.
package bugzilla

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"tracq/internal/compile"
	"tracq/internal/log"
	"tracq/internal/service"
)

// Client talks to one Bugzilla instance.
type Client struct {
	conn service.Connection
	http *http.Client

	// Field metadata is fetched lazily and cached; custom-field validation
	// should not cost a round trip per invocation.
	meta *gocache.Cache
}

const metaTTL = 15 * time.Minute

func New(conn service.Connection) *Client {
	return &Client{
		conn: conn,
		http: conn.HTTPClient(),
		meta: gocache.New(metaTTL, 2*metaTTL),
	}
}

func (c *Client) Backend() compile.Backend { return compile.Bugzilla }

// Status aliases expand to the Bugzilla pseudo-values understood by the
// search endpoint.
var statusAliases = map[string]string{
	"@open":   "__open__",
	"@closed": "__closed__",
	"@all":    "__all__",
}

// include_fields uses REST field names, not the search grammar's wire names.
var restFields = map[string]string{
	"id":         "id",
	"alias":      "alias",
	"summary":    "summary",
	"status":     "status",
	"resolution": "resolution",
	"assignee":   "assigned_to",
	"creator":    "creator",
	"cc":         "cc",
	"created":    "creation_time",
	"updated":    "last_change_time",
	"priority":   "priority",
	"severity":   "severity",
	"component":  "component",
	"product":    "product",
	"version":    "version",
	"platform":   "platform",
	"os":         "op_sys",
	"labels":     "keywords",
	"blocks":     "blocks",
	"depends":    "depends_on",
	"whiteboard": "whiteboard",
	"milestone":  "target_milestone",
	"url":        "url",
}

// Fields the alias table treats as holding user values; @me expands against
// the connection profile before hitting the wire.
var userValued = compile.UserFields(compile.Bugzilla)

// BuildSearchParams assembles the full search query: chart terms numbered
// sequentially across all fragments, default open-status and ordering when
// the request does not override them, and include_fields with id always
// present.
func (c *Client) BuildSearchParams(req service.PagedRequest) (url.Values, error) {
	params := url.Values{}

	if req.Quicksearch != "" {
		params.Set("quicksearch", req.Quicksearch)
	}

	n := 0
	hasStatus := false
	for _, frag := range req.Fragments {
		if frag.Backend != compile.Bugzilla {
			return nil, fmt.Errorf("fragment for %s given to bugzilla adapter", frag.Backend)
		}
		for _, term := range frag.Chart {
			n++
			key := strconv.Itoa(n)
			switch term.Kind {
			case compile.ChartOpen:
				params.Set("f"+key, "OP")
				if term.Join == "OR" {
					params.Set("j"+key, "OR")
				}
			case compile.ChartClose:
				params.Set("f"+key, "CP")
			default:
				if term.Field == "bug_status" {
					hasStatus = true
				}
				value := term.Value
				if alias, ok := statusAliases[value]; ok && term.Field == "bug_status" {
					value = alias
				}
				if userValued[term.Field] {
					value = c.conn.ReplaceUserAlias(value)
				}
				params.Set("f"+key, term.Field)
				params.Set("o"+key, term.Op)
				params.Set("v"+key, value)
				if term.Negate {
					params.Set("n"+key, "1")
				}
			}
		}
	}

	// Searches are scoped to open records unless the query says otherwise.
	if !hasStatus && req.Quicksearch == "" {
		params.Set("bug_status", "__open__")
	}

	order := req.Order
	if len(order) == 0 {
		order = []string{"bug_id"}
	}
	params.Set("order", strings.Join(order, ","))

	fields := service.NormalizeFields(req.Fields, []string{"id", "summary"})
	rest := make([]string, 0, len(fields))
	for _, f := range fields {
		if w, ok := restFields[f]; ok {
			rest = append(rest, w)
			continue
		}
		if strings.HasPrefix(f, "cf_") {
			rest = append(rest, f)
			continue
		}
		return nil, fmt.Errorf("unknown field: %q", f)
	}
	params.Set("include_fields", strings.Join(rest, ","))

	params.Set("limit", strconv.FormatInt(req.Limit, 10))
	params.Set("offset", strconv.FormatInt(req.Offset, 10))
	return params, nil
}

// SearchURL renders the equivalent web interface URL for a compiled search.
func (c *Client) SearchURL(req service.PagedRequest) (string, error) {
	params, err := c.BuildSearchParams(req)
	if err != nil {
		return "", err
	}
	params.Del("include_fields")
	params.Del("limit")
	params.Del("offset")
	return strings.TrimSuffix(c.conn.Base, "/") + "/buglist.cgi?" + params.Encode(), nil
}

func (c *Client) SearchPage(ctx context.Context, req service.PagedRequest) ([]service.Record, error) {
	params, err := c.BuildSearchParams(req)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Bugs []json.RawMessage `json:"bugs"`
	}
	if err := c.get(ctx, "/rest/bug", params, &payload); err != nil {
		return nil, err
	}
	records := make([]service.Record, 0, len(payload.Bugs))
	for _, raw := range payload.Bugs {
		rec, err := decodeBug(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	log.Debug(log.CatService, "bugzilla search page", "offset", req.Offset, "count", len(records))
	return records, nil
}

func (c *Client) Get(ctx context.Context, ids []int64) ([]service.Record, error) {
	params := url.Values{}
	params.Set("id", joinIDs(ids))
	var payload struct {
		Bugs []json.RawMessage `json:"bugs"`
	}
	if err := c.get(ctx, "/rest/bug", params, &payload); err != nil {
		return nil, err
	}
	records := make([]service.Record, 0, len(payload.Bugs))
	for _, raw := range payload.Bugs {
		rec, err := decodeBug(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// wireBug is the REST bug shape for the fields this client requests.
type wireBug struct {
	ID       int64     `json:"id"`
	Summary  string    `json:"summary"`
	Status   string    `json:"status"`
	Assignee string    `json:"assigned_to"`
	Creator  string    `json:"creator"`
	Created  time.Time `json:"creation_time"`
	Updated  time.Time `json:"last_change_time"`
	Keywords []string  `json:"keywords"`
}

// decodeBug maps a wire bug onto the normalized record, keeping custom
// fields in Extra.
func decodeBug(raw json.RawMessage) (service.Record, error) {
	var b wireBug
	if err := json.Unmarshal(raw, &b); err != nil {
		return service.Record{}, fmt.Errorf("%w: %v", service.ErrMalformed, err)
	}
	rec := service.Record{
		ID:       b.ID,
		Summary:  b.Summary,
		Status:   b.Status,
		Assignee: b.Assignee,
		Creator:  b.Creator,
		Created:  b.Created,
		Updated:  b.Updated,
		Labels:   b.Keywords,
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err == nil {
		for k, v := range all {
			if !strings.HasPrefix(k, "cf_") {
				continue
			}
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				s = string(v)
			}
			if rec.Extra == nil {
				rec.Extra = map[string]string{}
			}
			rec.Extra[k] = s
		}
	}
	return rec, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := strings.TrimSuffix(c.conn.Base, "/") + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.conn.Token != "" {
		req.Header.Set("X-BUGZILLA-API-KEY", c.conn.Token)
	}
	log.Debug(log.CatHTTP, "bugzilla request", "method", req.Method, "url", req.URL.String())
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bugzilla request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return service.DecodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", service.ErrMalformed, err)
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
