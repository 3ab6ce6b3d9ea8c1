// Package github implements the service adapter for GitHub-style issue
// APIs: qualifier-based search plus per-issue REST endpoints.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tracq/internal/compile"
	"tracq/internal/log"
	"tracq/internal/service"
)

// Client talks to one GitHub-style API host, scoped to a single repository
// from the connection profile.
type Client struct {
	conn service.Connection
	http *http.Client
}

func New(conn service.Connection) *Client {
	return &Client{conn: conn, http: conn.HTTPClient()}
}

func (c *Client) Backend() compile.Backend { return compile.GitHub }

// Search page size ceiling imposed by the API.
const maxPerPage = 100

// BuildSearchQuery assembles the q= search expression: the repo scope,
// compiled qualifiers with @me expanded, and an is:open default when the
// query does not constrain state.
func (c *Client) BuildSearchQuery(req service.PagedRequest) (string, error) {
	if c.conn.Repo == "" {
		return "", fmt.Errorf("connection profile has no repo")
	}
	parts := []string{"repo:" + c.conn.Repo, "is:issue"}
	hasState := false
	for _, frag := range req.Fragments {
		if frag.Backend != compile.GitHub {
			return "", fmt.Errorf("fragment for %s given to github adapter", frag.Backend)
		}
		if frag.Field == "status" {
			hasState = true
		}
		for _, q := range frag.Qualifiers {
			parts = append(parts, c.expandAlias(q))
		}
	}
	if !hasState {
		parts = append(parts, "is:open")
	}
	if req.Quicksearch != "" {
		parts = append(parts, req.Quicksearch)
	}
	return strings.Join(parts, " "), nil
}

// expandAlias rewrites @me inside user-valued qualifiers to the profile's
// user.
func (c *Client) expandAlias(qualifier string) string {
	key, value, ok := strings.Cut(qualifier, ":")
	if !ok || value != "@me" {
		return qualifier
	}
	if userValued[strings.TrimPrefix(key, "-")] {
		return key + ":" + c.conn.ReplaceUserAlias(value)
	}
	return qualifier
}

var userValued = compile.UserFields(compile.GitHub)

// wireIssue is the issue shape shared by search results and the issues
// endpoint.
type wireIssue struct {
	Number int64  `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Assignee struct {
		Login string `json:"login"`
	} `json:"assignee"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i wireIssue) record() service.Record {
	rec := service.Record{
		ID:       i.Number,
		Summary:  i.Title,
		Status:   i.State,
		Assignee: i.Assignee.Login,
		Creator:  i.User.Login,
		Created:  i.CreatedAt,
		Updated:  i.UpdatedAt,
	}
	for _, l := range i.Labels {
		rec.Labels = append(rec.Labels, l.Name)
	}
	return rec
}

func (c *Client) SearchPage(ctx context.Context, req service.PagedRequest) ([]service.Record, error) {
	q, err := c.BuildSearchQuery(req)
	if err != nil {
		return nil, err
	}
	if req.Limit > maxPerPage {
		return nil, fmt.Errorf("page size %d exceeds the api maximum %d", req.Limit, maxPerPage)
	}
	// The search API pages by number, not offset; offsets are aligned to
	// the page size by construction.
	if req.Limit <= 0 || req.Offset%req.Limit != 0 {
		return nil, fmt.Errorf("offset %d is not aligned to page size %d", req.Offset, req.Limit)
	}
	// The search API sorts by one key. Compiled order keys arrive as
	// field:direction; anything beyond a single key cannot be honored and
	// is rejected rather than approximated.
	sortKey, sortDir := "created", "asc"
	if len(req.Order) > 1 {
		return nil, fmt.Errorf("the search api sorts by a single key, got %d", len(req.Order))
	}
	if len(req.Order) == 1 {
		if key, dir, ok := strings.Cut(req.Order[0], ":"); ok {
			sortKey, sortDir = key, dir
		} else {
			sortKey = req.Order[0]
		}
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("per_page", strconv.FormatInt(req.Limit, 10))
	params.Set("page", strconv.FormatInt(req.Offset/req.Limit+1, 10))
	params.Set("sort", sortKey)
	params.Set("order", sortDir)

	var payload struct {
		Items []wireIssue `json:"items"`
	}
	if err := c.get(ctx, "/search/issues", params, &payload); err != nil {
		return nil, err
	}
	records := make([]service.Record, 0, len(payload.Items))
	for _, item := range payload.Items {
		records = append(records, item.record())
	}
	log.Debug(log.CatService, "github search page", "offset", req.Offset, "count", len(records))
	return records, nil
}

func (c *Client) Get(ctx context.Context, ids []int64) ([]service.Record, error) {
	records := make([]service.Record, 0, len(ids))
	for _, id := range ids {
		var issue wireIssue
		if err := c.get(ctx, c.issuePath(id), nil, &issue); err != nil {
			return nil, err
		}
		records = append(records, issue.record())
	}
	return records, nil
}

// Create opens a new issue from compiled creation fragments and returns its
// number.
func (c *Client) Create(ctx context.Context, frags []compile.Fragment) (int64, error) {
	if c.conn.Repo == "" {
		return 0, fmt.Errorf("connection profile has no repo")
	}
	fields := map[string]any{}
	for _, frag := range frags {
		for k, v := range frag.Update {
			if k == "assignees" {
				if list, ok := v.([]string); ok {
					out := make([]string, len(list))
					for i, u := range list {
						out[i] = c.conn.ReplaceUserAlias(u)
					}
					v = out
				}
			}
			fields[k] = v
		}
	}
	if _, ok := fields["title"]; !ok {
		return 0, fmt.Errorf("a new issue needs a summary")
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}
	var issue wireIssue
	if err := c.post(ctx, "/repos/"+c.conn.Repo+"/issues", body, &issue); err != nil {
		return 0, err
	}
	log.Debug(log.CatService, "github create", "number", issue.Number)
	return issue.Number, nil
}

// Update applies compiled update fragments: native label add/remove
// endpoints where they exist, a PATCH of merged fields for everything else.
func (c *Client) Update(ctx context.Context, ids []int64, frags []compile.Fragment) error {
	for _, id := range ids {
		patch := map[string]any{}
		for _, frag := range frags {
			switch {
			case frag.NeedsRead:
				current, err := c.ReadListField(ctx, id, frag.Field)
				if err != nil {
					return err
				}
				merged, err := compile.CompileSet(compile.GitHub, frag.Field, applyDelta(current, frag.Add, frag.Remove))
				if err != nil {
					return err
				}
				for k, v := range merged.Update {
					patch[k] = v
				}
			case len(frag.Add) > 0 || len(frag.Remove) > 0:
				if err := c.applyNativeDelta(ctx, id, frag); err != nil {
					return err
				}
			default:
				for k, v := range frag.Update {
					patch[k] = v
				}
			}
		}
		if len(patch) > 0 {
			if err := c.patchIssue(ctx, id, patch); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) applyNativeDelta(ctx context.Context, id int64, frag compile.Fragment) error {
	switch frag.Field {
	case "labels":
		if len(frag.Add) > 0 {
			body, _ := json.Marshal(map[string][]string{"labels": frag.Add})
			if err := c.send(ctx, http.MethodPost, c.issuePath(id)+"/labels", body); err != nil {
				return err
			}
		}
		for _, label := range frag.Remove {
			if err := c.send(ctx, http.MethodDelete, c.issuePath(id)+"/labels/"+url.PathEscape(label), nil); err != nil {
				return err
			}
		}
	case "assignee":
		expand := func(users []string) []string {
			out := make([]string, len(users))
			for i, u := range users {
				out[i] = c.conn.ReplaceUserAlias(u)
			}
			return out
		}
		if len(frag.Add) > 0 {
			body, _ := json.Marshal(map[string][]string{"assignees": expand(frag.Add)})
			if err := c.send(ctx, http.MethodPost, c.issuePath(id)+"/assignees", body); err != nil {
				return err
			}
		}
		if len(frag.Remove) > 0 {
			body, _ := json.Marshal(map[string][]string{"assignees": expand(frag.Remove)})
			if err := c.send(ctx, http.MethodDelete, c.issuePath(id)+"/assignees", body); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("field %q has no incremental endpoint", frag.Field)
	}
	return nil
}

// ReadListField reads a collection field's current remote value.
func (c *Client) ReadListField(ctx context.Context, id int64, field string) ([]string, error) {
	var issue wireIssue
	if err := c.get(ctx, c.issuePath(id), nil, &issue); err != nil {
		return nil, err
	}
	switch field {
	case "labels":
		out := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			out = append(out, l.Name)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q is not a readable collection", field)
	}
}

func applyDelta(current, add, remove []string) []string {
	removed := map[string]bool{}
	for _, v := range remove {
		removed[v] = true
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(current)+len(add))
	for _, v := range append(append([]string{}, current...), add...) {
		if removed[v] || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (c *Client) issuePath(id int64) string {
	return "/repos/" + c.conn.Repo + "/issues/" + strconv.FormatInt(id, 10)
}

func (c *Client) patchIssue(ctx context.Context, id int64, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	log.Debug(log.CatService, "github update", "id", id, "fields", len(fields))
	return c.send(ctx, http.MethodPatch, c.issuePath(id), body)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) error {
	u := strings.TrimSuffix(c.conn.Base, "/") + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, nil)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	u := strings.TrimSuffix(c.conn.Base, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
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
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.conn.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.conn.Token)
	}
	log.Debug(log.CatHTTP, "github request", "method", req.Method, "url", req.URL.String())
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
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
