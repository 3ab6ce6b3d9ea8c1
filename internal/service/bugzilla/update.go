package bugzilla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tracq/internal/compile"
	"tracq/internal/log"
	"tracq/internal/service"
)

// Update applies compiled update fragments to the given bugs in a single
// PUT. Fragment payloads merge into one body; Bugzilla applies it to every
// listed id.
func (c *Client) Update(ctx context.Context, ids []int64, frags []compile.Fragment) error {
	if len(ids) == 0 {
		return fmt.Errorf("no record ids given")
	}
	body := map[string]any{"ids": ids}
	for _, frag := range frags {
		if frag.NeedsRead {
			return fmt.Errorf("fragment %q needs a remote read; bugzilla applies deltas natively", frag.Field)
		}
		for k, v := range frag.Update {
			body[k] = c.expandUserValues(k, v)
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	u := strings.TrimSuffix(c.conn.Base, "/") + "/rest/bug/" + strconv.FormatInt(ids[0], 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	log.Debug(log.CatService, "bugzilla update", "ids", len(ids), "fields", len(body)-1)
	return c.do(req, nil)
}

// expandUserValues applies the @me alias inside update payloads targeting
// user-valued fields.
func (c *Client) expandUserValues(key string, v any) any {
	switch key {
	case "assigned_to":
		if s, ok := v.(string); ok {
			return c.conn.ReplaceUserAlias(s)
		}
	case "cc":
		if body, ok := v.(map[string]any); ok {
			for action, vals := range body {
				if list, ok := vals.([]string); ok {
					out := make([]string, len(list))
					for i, s := range list {
						out[i] = c.conn.ReplaceUserAlias(s)
					}
					body[action] = out
				}
			}
			return body
		}
	}
	return v
}

// ReadListField returns a collection field's current remote value. Bugzilla
// updates lists natively, so this exists only for interface completeness;
// it still answers correctly when asked.
func (c *Client) ReadListField(ctx context.Context, id int64, field string) ([]string, error) {
	wire, ok := restFields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field: %q", field)
	}
	params := url.Values{}
	params.Set("include_fields", wire)
	var payload struct {
		Bugs []map[string][]string `json:"bugs"`
	}
	if err := c.get(ctx, "/rest/bug/"+strconv.FormatInt(id, 10), params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Bugs) == 0 {
		return nil, fmt.Errorf("%w: empty bug list", service.ErrMalformed)
	}
	return payload.Bugs[0][wire], nil
}
