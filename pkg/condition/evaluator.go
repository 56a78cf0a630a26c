// Package condition evaluates the branching conditions of conditional nodes against a contact.
package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/relay/pkg/models"
)

var (
	ErrUnknownCondition = errors.New("unknown condition")
	ErrUnknownOperator  = errors.New("unknown operator")
	ErrUnknownLogic     = errors.New("unknown logic")
	ErrInvalidTime      = errors.New("invalid time of day")
)

var weekdays = map[time.Weekday]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

// Evaluator holds no state besides the fallback location for business hours.
type Evaluator struct {
	location *time.Location
}

// NewEvaluator returns an evaluator using location when a business hours
// condition names no timezone. A nil location means UTC.
func NewEvaluator(location *time.Location) *Evaluator {
	if location == nil {
		location = time.UTC
	}

	return &Evaluator{location: location}
}

// EvaluateAll combines conditions with short-circuit and/or logic.
// An empty list is true under and, false under or.
func (e *Evaluator) EvaluateAll(logic models.Logic, conditions models.Conditions, contact *models.Contact, now time.Time) (bool, error) {
	var isAnd bool

	switch logic {
	case models.LogicAnd, "":
		isAnd = true
	case models.LogicOr:
		isAnd = false
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownLogic, logic)
	}

	for _, c := range conditions {
		result, err := e.Evaluate(c, contact, now)
		if err != nil {
			return false, err
		}

		if isAnd && !result {
			return false, nil
		}

		if !isAnd && result {
			return true, nil
		}
	}

	return isAnd, nil
}

// Evaluate tests a single condition.
func (e *Evaluator) Evaluate(c models.Condition, contact *models.Contact, now time.Time) (bool, error) {
	switch cond := c.(type) {
	case models.TagCondition:
		return evaluateTag(cond, contact)
	case models.FieldCondition:
		return evaluateField(cond, contact)
	case models.WindowCondition:
		return evaluateWindow(cond, contact)
	case models.BusinessHoursCondition:
		return e.evaluateBusinessHours(cond, now)
	case nil:
		return false, ErrUnknownCondition
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownCondition, c.ConditionType())
	}
}

func evaluateTag(cond models.TagCondition, contact *models.Contact) (bool, error) {
	switch cond.Operator {
	case models.OperatorContains:
		return contact.HasTag(cond.Tag), nil
	case models.OperatorNotContains:
		return !contact.HasTag(cond.Tag), nil
	default:
		return false, fmt.Errorf("%w: %q for %s", ErrUnknownOperator, cond.Operator, cond.ConditionType())
	}
}

func evaluateField(cond models.FieldCondition, contact *models.Contact) (bool, error) {
	var actual string

	if value, ok := contact.Field(cond.Field); ok && value != nil {
		actual = fmt.Sprint(value)
	}

	actual = strings.ToLower(actual)
	expected := strings.ToLower(cond.Value)

	switch cond.Operator {
	case models.OperatorIs:
		return actual == expected, nil
	case models.OperatorIsNot:
		return actual != expected, nil
	case models.OperatorContains:
		return strings.Contains(actual, expected), nil
	default:
		return false, fmt.Errorf("%w: %q for %s", ErrUnknownOperator, cond.Operator, cond.ConditionType())
	}
}

func evaluateWindow(cond models.WindowCondition, contact *models.Contact) (bool, error) {
	switch cond.Operator {
	case models.OperatorIsOpen:
		return contact.WindowOpen, nil
	case models.OperatorIsClosed:
		return !contact.WindowOpen, nil
	default:
		return false, fmt.Errorf("%w: %q for %s", ErrUnknownOperator, cond.Operator, cond.ConditionType())
	}
}

// evaluateBusinessHours treats both ends of the window as inclusive for
// is_within and for is_outside, so both hold exactly at start and end.
func (e *Evaluator) evaluateBusinessHours(cond models.BusinessHoursCondition, now time.Time) (bool, error) {
	location := e.location

	if cond.Timezone != "" {
		loc, err := time.LoadLocation(cond.Timezone)
		if err != nil {
			return false, fmt.Errorf("failed to load timezone %q: %w", cond.Timezone, err)
		}

		location = loc
	}

	start, err := minuteOfDay(cond.StartTime)
	if err != nil {
		return false, err
	}

	end, err := minuteOfDay(cond.EndTime)
	if err != nil {
		return false, err
	}

	local := now.In(location)
	current := local.Hour()*60 + local.Minute()
	today := weekdays[local.Weekday()]

	scheduled := false

	for _, day := range cond.Days {
		if normalizeDay(day) == today {
			scheduled = true

			break
		}
	}

	switch cond.Operator {
	case models.OperatorIsWithin:
		return scheduled && current >= start && current <= end, nil
	case models.OperatorIsOutside:
		return !scheduled || current <= start || current >= end, nil
	default:
		return false, fmt.Errorf("%w: %q for %s", ErrUnknownOperator, cond.Operator, cond.ConditionType())
	}
}

func normalizeDay(day string) string {
	day = strings.ToLower(strings.TrimSpace(day))
	if len(day) > 3 {
		day = day[:3]
	}

	return day
}

func minuteOfDay(hhmm string) (int, error) {
	hours, minutes, found := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !found {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}

	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}

	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}

	return h*60 + m, nil
}
