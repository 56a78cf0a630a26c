package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	data := map[string]any{
		"contact": map[string]any{
			"name":   "Ana",
			"phone":  "5511999990000",
			"tags":   []any{"vip", "lead"},
			"fields": map[string]any{"score": float64(42), "ratio": 0.5, "active": true},
		},
		"event": map[string]any{
			"tag_name": "vip",
			"nothing":  nil,
			"order":    map[string]any{"id": "A-1"},
		},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "hello", "hello"},
		{"single token", "Hi {{contact.name}}", "Hi Ana"},
		{"spaces inside braces", "Hi {{ contact.name }}!", "Hi Ana!"},
		{"number without trailing zeros", "score={{contact.fields.score}}", "score=42"},
		{"fraction", "{{contact.fields.ratio}}", "0.5"},
		{"bool", "{{contact.fields.active}}", "true"},
		{"slice index", "{{contact.tags.1}}", "lead"},
		{"object becomes json", "{{event.order}}", `{"id":"A-1"}`},
		{"unknown root kept", "{{a.b}}", "{{a.b}}"},
		{"unknown leaf kept", "{{contact.email}}", "{{contact.email}}"},
		{"walk into scalar kept", "{{contact.name.first}}", "{{contact.name.first}}"},
		{"nil value kept", "{{event.nothing}}", "{{event.nothing}}"},
		{"out of range index kept", "{{contact.tags.9}}", "{{contact.tags.9}}"},
		{"mixed", "{{contact.name}}-{{event.tag_name}}-{{x}}", "Ana-vip-{{x}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Interpolate(tt.input, data))
		})
	}
}

func TestInterpolate_UnknownPathOnEmptyContext(t *testing.T) {
	assert.Equal(t, "{{a.b}}", Interpolate("{{a.b}}", map[string]any{}))
	assert.Equal(t, "{{a.b}}", Interpolate("{{a.b}}", nil))
}

func TestInterpolate_Idempotent(t *testing.T) {
	data := map[string]any{
		"contact": map[string]any{"name": "Ana", "fields": map[string]any{"plan": "gold"}},
	}

	inputs := []string{
		"",
		"Hi {{contact.name}}",
		"{{contact.fields.plan}} {{missing.path}} {{ contact.name }}",
		"{{}} {{contact}} {{contact.fields}}",
	}

	for _, input := range inputs {
		once := Interpolate(input, data)
		assert.Equal(t, once, Interpolate(once, data), input)
	}
}

func TestInterpolateMap(t *testing.T) {
	data := map[string]any{"contact": map[string]any{"id": "c-1"}}

	out := InterpolateMap(map[string]string{"X-Contact": "{{contact.id}}"}, data)
	assert.Equal(t, map[string]string{"X-Contact": "c-1"}, out)
	assert.Nil(t, InterpolateMap(nil, data))
}
