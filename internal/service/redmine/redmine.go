// Package redmine implements the service adapter for Redmine-style REST
// APIs with prefix-operator filter parameters.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tracq/internal/compile"
	"tracq/internal/log"
	"tracq/internal/service"
)

// Client talks to one Redmine instance.
type Client struct {
	conn service.Connection
	http *http.Client
}

func New(conn service.Connection) *Client {
	return &Client{conn: conn, http: conn.HTTPClient()}
}

func (c *Client) Backend() compile.Backend { return compile.Redmine }

var userValued = compile.UserFields(compile.Redmine)

// BuildSearchParams assembles the issues.json query from compiled filter
// params plus paging and ordering.
func (c *Client) BuildSearchParams(req service.PagedRequest) (url.Values, error) {
	params := url.Values{}
	for _, frag := range req.Fragments {
		if frag.Backend != compile.Redmine {
			return nil, fmt.Errorf("fragment for %s given to redmine adapter", frag.Backend)
		}
		for _, p := range frag.Params {
			value := p.Value
			if userValued[p.Key] {
				if value == "@me" {
					// Redmine spells the alias natively.
					value = "me"
				} else {
					value = c.conn.ReplaceUserAlias(value)
				}
			}
			params.Add(p.Key, value)
		}
	}

	// Searches are scoped to open issues unless the query filters status.
	if params.Get("status_id") == "" {
		params.Set("status_id", "open")
	}

	order := req.Order
	if len(order) == 0 {
		order = []string{"id:asc"}
	}
	params.Set("sort", strings.Join(order, ","))
	params.Set("limit", strconv.FormatInt(req.Limit, 10))
	params.Set("offset", strconv.FormatInt(req.Offset, 10))
	return params, nil
}

// wireIssue is the issues.json shape for the fields this client reads.
type wireIssue struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Status  struct {
		Name string `json:"name"`
	} `json:"status"`
	AssignedTo struct {
		Name string `json:"name"`
	} `json:"assigned_to"`
	Author struct {
		Name string `json:"name"`
	} `json:"author"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

func (i wireIssue) record() service.Record {
	return service.Record{
		ID:       i.ID,
		Summary:  i.Subject,
		Status:   i.Status.Name,
		Assignee: i.AssignedTo.Name,
		Creator:  i.Author.Name,
		Created:  i.CreatedOn,
		Updated:  i.UpdatedOn,
	}
}

func (c *Client) SearchPage(ctx context.Context, req service.PagedRequest) ([]service.Record, error) {
	params, err := c.BuildSearchParams(req)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Issues []wireIssue `json:"issues"`
	}
	if err := c.get(ctx, "/issues.json", params, &payload); err != nil {
		return nil, err
	}
	records := make([]service.Record, 0, len(payload.Issues))
	for _, issue := range payload.Issues {
		records = append(records, issue.record())
	}
	log.Debug(log.CatService, "redmine search page", "offset", req.Offset, "count", len(records))
	return records, nil
}

func (c *Client) Get(ctx context.Context, ids []int64) ([]service.Record, error) {
	records := make([]service.Record, 0, len(ids))
	for _, id := range ids {
		var payload struct {
			Issue wireIssue `json:"issue"`
		}
		if err := c.get(ctx, "/issues/"+strconv.FormatInt(id, 10)+".json", nil, &payload); err != nil {
			return nil, err
		}
		records = append(records, payload.Issue.record())
	}
	return records, nil
}

// Create opens a new issue from compiled creation fragments and returns its
// id. Beyond the subject the server owns validation; project membership and
// workflow rules live there.
func (c *Client) Create(ctx context.Context, frags []compile.Fragment) (int64, error) {
	fields := map[string]any{}
	for _, frag := range frags {
		for k, v := range frag.Update {
			if k == "assigned_to_id" {
				if s, ok := v.(string); ok {
					v = c.conn.ReplaceUserAlias(s)
				}
			}
			fields[k] = v
		}
	}
	if s, _ := fields["subject"].(string); s == "" {
		return 0, fmt.Errorf("a new issue needs a summary")
	}
	data, err := json.Marshal(map[string]any{"issue": fields})
	if err != nil {
		return 0, err
	}
	u := strings.TrimSuffix(c.conn.Base, "/") + "/issues.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	var payload struct {
		Issue struct {
			ID int64 `json:"id"`
		} `json:"issue"`
	}
	if err := c.do(req, &payload); err != nil {
		return 0, err
	}
	if payload.Issue.ID == 0 {
		return 0, fmt.Errorf("%w: response carries no id", service.ErrMalformed)
	}
	log.Debug(log.CatService, "redmine create", "id", payload.Issue.ID)
	return payload.Issue.ID, nil
}

// Update applies compiled update fragments issue by issue. NeedsRead
// fragments resolve through a read-modify-write cycle per issue; the cycle
// is not atomic against concurrent editors.
func (c *Client) Update(ctx context.Context, ids []int64, frags []compile.Fragment) error {
	for _, id := range ids {
		fields := map[string]any{}
		for _, frag := range frags {
			if frag.NeedsRead {
				merged, err := c.mergeListDelta(ctx, id, frag)
				if err != nil {
					return err
				}
				for k, v := range merged.Update {
					fields[k] = v
				}
				continue
			}
			for k, v := range frag.Update {
				fields[k] = v
			}
		}
		if err := c.putIssue(ctx, id, fields); err != nil {
			return err
		}
	}
	return nil
}

// mergeListDelta is the write half of the incremental-update fallback: read
// the field's current value, apply Add/Remove, compile the result as a Set.
func (c *Client) mergeListDelta(ctx context.Context, id int64, frag compile.Fragment) (compile.Fragment, error) {
	current, err := c.ReadListField(ctx, id, frag.Field)
	if err != nil {
		return compile.Fragment{}, err
	}
	merged := applyDelta(current, frag.Add, frag.Remove)
	log.Debug(log.CatService, "redmine delta merge",
		"id", id, "field", frag.Field, "before", len(current), "after", len(merged))
	return compile.CompileSet(compile.Redmine, frag.Field, merged)
}

func applyDelta(current, add, remove []string) []string {
	out := make([]string, 0, len(current)+len(add))
	removed := map[string]bool{}
	for _, v := range remove {
		removed[v] = true
	}
	seen := map[string]bool{}
	for _, v := range append(append([]string{}, current...), add...) {
		if removed[v] || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ReadListField reads a collection field's current remote value.
func (c *Client) ReadListField(ctx context.Context, id int64, field string) ([]string, error) {
	switch field {
	case "cc":
		var payload struct {
			Issue struct {
				Watchers []struct {
					ID int64 `json:"id"`
				} `json:"watchers"`
			} `json:"issue"`
		}
		params := url.Values{}
		params.Set("include", "watchers")
		if err := c.get(ctx, "/issues/"+strconv.FormatInt(id, 10)+".json", params, &payload); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(payload.Issue.Watchers))
		for _, w := range payload.Issue.Watchers {
			out = append(out, strconv.FormatInt(w.ID, 10))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q is not a readable collection", field)
	}
}

func (c *Client) putIssue(ctx context.Context, id int64, fields map[string]any) error {
	data, err := json.Marshal(map[string]any{"issue": fields})
	if err != nil {
		return err
	}
	u := strings.TrimSuffix(c.conn.Base, "/") + "/issues/" + strconv.FormatInt(id, 10) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	log.Debug(log.CatService, "redmine update", "id", id, "fields", len(fields))
	return c.do(req, nil)
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
		req.Header.Set("X-Redmine-API-Key", c.conn.Token)
	}
	log.Debug(log.CatHTTP, "redmine request", "method", req.Method, "url", req.URL.String())
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("redmine request: %w", err)
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
