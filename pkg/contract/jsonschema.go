package contract

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchemaValidator backs the SchemaValidator seam with
// gojsonschema. Any conformant JSON Schema implementation can be
// substituted behind the same interface.
type JSONSchemaValidator struct{}

func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{}
}

func (j *JSONSchemaValidator) Validate(schema, document any) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return violations, nil
}
