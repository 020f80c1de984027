package features

import (
	"fmt"
	"strings"
)

type rangeRule struct {
	field    string
	min, max float64
}

// Numeric fields checked before any condition is evaluated. Bounds are inclusive.
var numericRules = []rangeRule{
	{field: "age", min: 0, max: 120},
	{field: "bmi", min: 10, max: 50},
	{field: "bloodPressureSystolic", min: 70, max: 250},
	{field: "bloodPressureDiastolic", min: 40, max: 150},
	{field: "bloodSugar", min: 30, max: 500},
	{field: "cholesterol", min: 100, max: 500},
}

// ValidationError carries every field violation found in a request.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation errors: " + strings.Join(e.Details, "; ")
}

// Validate type- and range-checks the recognized numeric fields of fs and
// returns one message per violation. Unrecognized and absent fields are ignored.
func Validate(fs FeatureSet) []string {
	var errs []string
	for _, rule := range numericRules {
		v, ok := fs[rule.field]
		if !ok {
			continue
		}
		n, isNum := v.Number()
		if !isNum {
			errs = append(errs, fmt.Sprintf("%s must be a number", rule.field))
			continue
		}
		if n < rule.min || n > rule.max {
			errs = append(errs, fmt.Sprintf("%s must be between %g and %g", rule.field, rule.min, rule.max))
		}
	}
	return errs
}

// Check is Validate in error form; it returns a *ValidationError or nil.
func Check(fs FeatureSet) error {
	if details := Validate(fs); len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}
