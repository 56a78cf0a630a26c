package models

import (
	"encoding/json"
	"fmt"
)

// ConditionType identifies one variant of Condition.
type ConditionType string

const (
	ConditionContactTag         ConditionType = "contact_tag"
	ConditionContactField       ConditionType = "contact_field"
	ConditionConversationWindow ConditionType = "conversation_window"
	ConditionBusinessHours      ConditionType = "business_hours"
)

// Operator is the comparison a condition applies. The valid set depends on the variant.
type Operator string

const (
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorIs          Operator = "is"
	OperatorIsNot       Operator = "is_not"
	OperatorIsOpen      Operator = "is_open"
	OperatorIsClosed    Operator = "is_closed"
	OperatorIsWithin    Operator = "is_within"
	OperatorIsOutside   Operator = "is_outside"
)

// Condition is a single test against a contact.
type Condition interface {
	ConditionType() ConditionType
}

type TagCondition struct {
	Operator Operator `json:"operator"`
	Tag      string   `json:"tag"`
}

type FieldCondition struct {
	Operator Operator `json:"operator"`
	Field    string   `json:"field"`
	Value    string   `json:"value"`
}

type WindowCondition struct {
	Operator Operator `json:"operator"`
}

// BusinessHoursCondition tests the current weekday and HH:MM against a schedule.
// Days use three letter lowercase names (mon, tue, ...).
type BusinessHoursCondition struct {
	Operator  Operator `json:"operator"`
	Days      []string `json:"days"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Timezone  string   `json:"timezone,omitempty"`
}

func (TagCondition) ConditionType() ConditionType           { return ConditionContactTag }
func (FieldCondition) ConditionType() ConditionType         { return ConditionContactField }
func (WindowCondition) ConditionType() ConditionType        { return ConditionConversationWindow }
func (BusinessHoursCondition) ConditionType() ConditionType { return ConditionBusinessHours }

// Conditions is an ordered list of conditions encoded with a "type" discriminator.
type Conditions []Condition

// UnmarshalJSON decodes every element into the variant named by its type.
func (c *Conditions) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}

	conditions := make(Conditions, 0, len(raws))

	for i, raw := range raws {
		var envelope struct {
			Type ConditionType `json:"type"`
		}

		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}

		var condition Condition

		switch envelope.Type {
		case ConditionContactTag:
			var v TagCondition
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("condition %d: %w", i, err)
			}

			condition = v
		case ConditionContactField:
			var v FieldCondition
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("condition %d: %w", i, err)
			}

			condition = v
		case ConditionConversationWindow:
			var v WindowCondition
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("condition %d: %w", i, err)
			}

			condition = v
		case ConditionBusinessHours:
			var v BusinessHoursCondition
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("condition %d: %w", i, err)
			}

			condition = v
		default:
			return fmt.Errorf("condition %d: %w: unknown condition type %q", i, ErrInvalidAutomation, envelope.Type)
		}

		conditions = append(conditions, condition)
	}

	*c = conditions

	return nil
}

// MarshalJSON writes every element with its type discriminator.
func (c Conditions) MarshalJSON() ([]byte, error) {
	out := make([]map[string]any, 0, len(c))

	for _, condition := range c {
		raw, err := json.Marshal(condition)
		if err != nil {
			return nil, err
		}

		fields := make(map[string]any)
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}

		fields["type"] = condition.ConditionType()
		out = append(out, fields)
	}

	return json.Marshal(out)
}
