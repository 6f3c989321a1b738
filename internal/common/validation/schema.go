package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// intakeSchema validates the raw intake payload shape before typed construction.
// Business-level checks (exam rank consistency, document slots) happen afterwards
// in the orchestrator; this layer rejects malformed or out-of-range input early.
var intakeSchema = map[string]interface{}{
	"type": "object",
	"required": []interface{}{
		"name", "email", "gender", "address", "course",
		"grade10Percentage", "grade12Percentage",
		"parentName", "parentPhone",
	},
	"properties": map[string]interface{}{
		"name":    map[string]interface{}{"type": "string", "minLength": 1},
		"email":   map[string]interface{}{"type": "string", "pattern": "^[^@\\s]+@[^@\\s]+$"},
		"gender":  map[string]interface{}{"type": "string", "minLength": 1},
		"address": map[string]interface{}{"type": "string", "minLength": 1},
		"course":  map[string]interface{}{"type": "string", "minLength": 1},
		"grade10Percentage": map[string]interface{}{
			"type": "number", "minimum": 0, "maximum": 100,
		},
		"grade12Percentage": map[string]interface{}{
			"type": "number", "minimum": 0, "maximum": 100,
		},
		"entranceExam":     map[string]interface{}{"type": "string"},
		"entranceExamRank": map[string]interface{}{"type": "integer", "minimum": 0},
		"parentName":       map[string]interface{}{"type": "string", "minLength": 1},
		"parentPhone":      map[string]interface{}{"type": "string", "minLength": 1},
		"parentEmail":      map[string]interface{}{"type": "string"},
		"loanInterest":     map[string]interface{}{"type": "boolean"},
		"dateOfBirth":      map[string]interface{}{"type": "string"},
		"documents":        map[string]interface{}{"type": "object"},
	},
}

// ValidateIntake checks an intake payload against the JSON schema and returns
// field-level errors rather than failing fast on the first problem.
func ValidateIntake(payload map[string]interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewGoLoader(intakeSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return out, nil
}
