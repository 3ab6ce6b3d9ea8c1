package bugzilla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"tracq/internal/compile"
	"tracq/internal/log"
	"tracq/internal/service"
)

// Required creation fields that default server-side conventions when the
// caller leaves them unset.
var createDefaults = map[string]string{
	"op_sys":   "All",
	"platform": "All",
	"priority": "Normal",
	"severity": "normal",
	"version":  "unspecified",
}

// Creation fields that must be non-empty and have no default.
var createRequired = []string{"component", "description", "product", "summary"}

// Create files a new bug from compiled creation fragments and returns its
// id. Required fields without a default are checked here so a half-formed
// request never reaches the server.
func (c *Client) Create(ctx context.Context, frags []compile.Fragment) (int64, error) {
	body := map[string]any{}
	for _, frag := range frags {
		for k, v := range frag.Update {
			body[k] = c.expandUserValues(k, v)
		}
	}
	for k, v := range createDefaults {
		if _, ok := body[k]; !ok {
			body[k] = v
		}
	}

	var missing []string
	for _, k := range createRequired {
		if s, _ := body[k].(string); s == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return 0, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	// Dependency lists go over the wire as numbers.
	for _, k := range []string{"blocks", "depends_on"} {
		list, ok := body[k].([]string)
		if !ok {
			continue
		}
		ids := make([]int64, len(list))
		for i, s := range list {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%s: %q is not a record id", k, s)
			}
			ids[i] = n
		}
		body[k] = ids
	}

	// cc takes a plain user array at creation, not the add/remove shape.
	if list, ok := body["cc"].([]string); ok {
		out := make([]string, len(list))
		for i, u := range list {
			out[i] = c.conn.ReplaceUserAlias(u)
		}
		body["cc"] = out
	}

	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	u := strings.TrimSuffix(c.conn.Base, "/") + "/rest/bug"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	var payload struct {
		ID int64 `json:"id"`
	}
	if err := c.do(req, &payload); err != nil {
		return 0, err
	}
	if payload.ID == 0 {
		return 0, fmt.Errorf("%w: response carries no id", service.ErrMalformed)
	}
	log.Debug(log.CatService, "bugzilla create", "id", payload.ID)
	return payload.ID, nil
}
