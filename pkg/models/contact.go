package models

import (
	"slices"
	"time"
)

// Contact is a person reachable through the messaging channel.
type Contact struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Phone      string         `json:"phone"        validate:"required"`
	Tags       []string       `json:"tags"`
	CRMBoardID string         `json:"crm_board_id,omitempty"`
	CRMStageID string         `json:"crm_stage_id,omitempty"`
	WindowOpen bool           `json:"window_open"`
	OptedOut   bool           `json:"opted_out"`
	Fields     map[string]any `json:"fields,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// HasTag reports whether the contact carries the tag.
func (c *Contact) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// Field returns a named field. name and phone are built in; anything else is a custom field.
func (c *Contact) Field(name string) (any, bool) {
	switch name {
	case "name":
		return c.Name, true
	case "phone":
		return c.Phone, true
	}

	value, ok := c.Fields[name]

	return value, ok
}

// Vars exposes the contact to the interpolator and to persisted run contexts.
func (c *Contact) Vars() map[string]any {
	fields := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		fields[k] = v
	}

	tags := make([]any, len(c.Tags))
	for i, tag := range c.Tags {
		tags[i] = tag
	}

	return map[string]any{
		"id":           c.ID,
		"name":         c.Name,
		"phone":        c.Phone,
		"tags":         tags,
		"crm_board_id": c.CRMBoardID,
		"crm_stage_id": c.CRMStageID,
		"window_open":  c.WindowOpen,
		"opted_out":    c.OptedOut,
		"fields":       fields,
	}
}

// ContactPatch is a partial contact update. Nil members are left untouched.
type ContactPatch struct {
	Name       *string        `json:"name,omitempty"`
	Phone      *string        `json:"phone,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	CRMBoardID *string        `json:"crm_board_id,omitempty"`
	CRMStageID *string        `json:"crm_stage_id,omitempty"`
	WindowOpen *bool          `json:"window_open,omitempty"`
	OptedOut   *bool          `json:"opted_out,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Apply writes the patch onto the contact. Fields are merged key by key.
func (p ContactPatch) Apply(c *Contact) {
	if p.Name != nil {
		c.Name = *p.Name
	}

	if p.Phone != nil {
		c.Phone = *p.Phone
	}

	if p.Tags != nil {
		c.Tags = slices.Clone(p.Tags)
	}

	if p.CRMBoardID != nil {
		c.CRMBoardID = *p.CRMBoardID
	}

	if p.CRMStageID != nil {
		c.CRMStageID = *p.CRMStageID
	}

	if p.WindowOpen != nil {
		c.WindowOpen = *p.WindowOpen
	}

	if p.OptedOut != nil {
		c.OptedOut = *p.OptedOut
	}

	if len(p.Fields) > 0 {
		if c.Fields == nil {
			c.Fields = make(map[string]any, len(p.Fields))
		}

		for k, v := range p.Fields {
			c.Fields[k] = v
		}
	}
}
