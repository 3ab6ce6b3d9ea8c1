package bugzilla

import (
	"context"
	"fmt"
	"strings"

	"tracq/internal/log"
	"tracq/internal/service"
)

// FieldMeta describes one field as reported by the instance.
type FieldMeta struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	IsCustom    bool   `json:"is_custom"`
	Type        int    `json:"type"`
}

const metaKey = "fields"

// Fields returns the instance's field metadata, fetching it on first use
// and serving the cached copy until the TTL expires.
func (c *Client) Fields(ctx context.Context) ([]FieldMeta, error) {
	if cached, ok := c.meta.Get(metaKey); ok {
		log.Debug(log.CatCache, "field metadata served from cache")
		return cached.([]FieldMeta), nil
	}
	var payload struct {
		Fields []FieldMeta `json:"fields"`
	}
	if err := c.get(ctx, "/rest/field/bug", nil, &payload); err != nil {
		return nil, err
	}
	if len(payload.Fields) == 0 {
		return nil, fmt.Errorf("%w: no field metadata", service.ErrMalformed)
	}
	c.meta.SetDefault(metaKey, payload.Fields)
	log.Debug(log.CatCache, "field metadata cached", "fields", len(payload.Fields))
	return payload.Fields, nil
}

// ValidateCustomField checks a cf_-prefixed field name against the
// instance's metadata before it is sent in a search.
func (c *Client) ValidateCustomField(ctx context.Context, name string) error {
	if !strings.HasPrefix(name, "cf_") {
		return fmt.Errorf("not a custom field: %q", name)
	}
	fields, err := c.Fields(ctx)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.Name == name {
			return nil
		}
	}
	return fmt.Errorf("unknown custom field: %q", name)
}
