package models_test

import (
	"testing"

	"github.com/dukex/relay/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestContact_Field(t *testing.T) {
	contact := &models.Contact{Name: "Ana", Phone: "5511", Tags: []string{"vip"}, Fields: map[string]any{"city": "Recife"}}

	value, ok := contact.Field("name")
	assert.True(t, ok)
	assert.Equal(t, "Ana", value)

	value, ok = contact.Field("city")
	assert.True(t, ok)
	assert.Equal(t, "Recife", value)

	_, ok = contact.Field("plan")
	assert.False(t, ok)

	assert.True(t, contact.HasTag("vip"))
	assert.False(t, contact.HasTag("lead"))
}

func TestContactPatch_Apply(t *testing.T) {
	name := "Ana Souza"
	optedOut := true
	contact := &models.Contact{Name: "Ana", Phone: "5511", Tags: []string{"vip"}, Fields: map[string]any{"city": "Recife"}}

	models.ContactPatch{
		Name:     &name,
		OptedOut: &optedOut,
		Fields:   map[string]any{"plan": "gold"},
	}.Apply(contact)

	assert.Equal(t, "Ana Souza", contact.Name)
	assert.Equal(t, "5511", contact.Phone)
	assert.Equal(t, []string{"vip"}, contact.Tags)
	assert.True(t, contact.OptedOut)
	assert.Equal(t, map[string]any{"city": "Recife", "plan": "gold"}, contact.Fields)

	tags := []string{"lead"}
	models.ContactPatch{Tags: tags}.Apply(contact)
	tags[0] = "mutated"
	assert.Equal(t, []string{"lead"}, contact.Tags)
}
