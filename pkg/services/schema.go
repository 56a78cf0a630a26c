package services

import (
	"fmt"
	"strings"

	"github.com/dukex/relay/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var subtypes = []any{
	string(models.SubtypeContactCreated), string(models.SubtypeTagAdded), string(models.SubtypeCRMStageChanged),
	string(models.SubtypeContextMessage), string(models.SubtypeWebhook),
	string(models.SubtypeSendMessage), string(models.SubtypeWait), string(models.SubtypeAddTag),
	string(models.SubtypeRemoveTag), string(models.SubtypeMoveCRMStage), string(models.SubtypeOptOut),
	string(models.SubtypeForwardAutomation), string(models.SubtypeHTTPRequest),
	string(models.SubtypeConditional), string(models.SubtypeRandomizer),
}

// automationSchema describes the stored shape of an automation.
var automationSchema = map[string]any{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []any{"name", "status", "nodes"},
	"properties": map[string]any{
		"name":   map[string]any{"type": "string", "minLength": 3},
		"status": map[string]any{"enum": []any{"active", "paused", "draft"}},
		"nodes": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "kind", "subtype"},
				"properties": map[string]any{
					"id":      map[string]any{"type": "string", "minLength": 1},
					"kind":    map[string]any{"enum": []any{"trigger", "action"}},
					"subtype": map[string]any{"enum": subtypes},
					"position": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"x": map[string]any{"type": "number"},
							"y": map[string]any{"type": "number"},
						},
					},
					"data": map[string]any{"type": []any{"object", "null"}},
				},
			},
		},
		"edges": map[string]any{
			"type": []any{"array", "null"},
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "source", "target"},
				"properties": map[string]any{
					"id":            map[string]any{"type": "string", "minLength": 1},
					"source":        map[string]any{"type": "string", "minLength": 1},
					"target":        map[string]any{"type": "string", "minLength": 1},
					"source_handle": map[string]any{"type": "string", "pattern": "^(true|false|branch-[0-9]+)$"},
				},
			},
		},
	},
}

var compiledSchema = mustCompile(automationSchema)

func mustCompile(schema map[string]any) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		panic(fmt.Errorf("invalid automation schema: %w", err))
	}

	return compiled
}

// validateSchema checks the JSON form of the automation against automationSchema.
func validateSchema(automation *models.Automation) error {
	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(automation))
	if err != nil {
		return fmt.Errorf("failed to validate automation schema: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(errors, "; "))
	}

	return nil
}
