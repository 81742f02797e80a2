// Package contract reconciles live HTTP responses against the JSON
// Schemas an OpenAPI document declares for them, under lenient
// best-effort matching rules: mismatches become findings, never errors.
package contract

import (
	"encoding/json"
	"strings"

	"github.com/finsec-lab/apiaudit/pkg/types"
)

const (
	CategoryMismatch        = "ContractMismatch"
	CategoryMatch           = "ContractMatch"
	CategoryCheck           = "ContractCheck"
	CategoryValidationError = "ContractValidationError"
)

// maxEvidence caps the response snippet attached to findings.
const maxEvidence = 2000

// SchemaValidator is the narrow seam to a JSON Schema implementation:
// it returns one message per violation, or an error when the schema
// itself cannot be processed.
type SchemaValidator interface {
	Validate(schema, document any) ([]string, error)
}

// ResponseData is the slice of an HTTP response the validator needs,
// decoupled from net/http so callers can validate replayed bodies.
type ResponseData struct {
	Status      int
	ContentType string
	Body        string
}

type Validator struct {
	schemas SchemaValidator
}

func NewValidator(schemas SchemaValidator) *Validator {
	if schemas == nil {
		schemas = NewJSONSchemaValidator()
	}
	return &Validator{schemas: schemas}
}

// Validate applies three independent rules: a content-type check, a
// schema conformance check, and a no-contract note. A wrong content
// type does not stop schema validation since the body may still be JSON.
func (v *Validator) Validate(endpoint, method string, resp ResponseData, expectedSchema any) []types.Finding {
	var out []types.Finding

	if expectedSchema != nil && !strings.Contains(strings.ToLower(resp.ContentType), "application/json") {
		out = append(out, types.NewFinding(endpoint, method, resp.Status, CategoryMismatch,
			types.SeverityLow,
			"Unexpected Content-Type: "+resp.ContentType,
			Snippet(resp.Body, maxEvidence)))
	}

	if expectedSchema != nil && strings.TrimSpace(resp.Body) != "" && LooksLikeJSON(resp.Body) {
		var doc any
		if err := json.Unmarshal([]byte(resp.Body), &doc); err != nil {
			out = append(out, types.NewFinding(endpoint, method, resp.Status, CategoryValidationError,
				types.SeverityLow,
				"Validator error: "+err.Error(),
				Snippet(resp.Body, maxEvidence)))
			return out
		}
		violations, err := v.schemas.Validate(expectedSchema, doc)
		switch {
		case err != nil:
			out = append(out, types.NewFinding(endpoint, method, resp.Status, CategoryValidationError,
				types.SeverityLow,
				"Validator error: "+err.Error(),
				Snippet(resp.Body, maxEvidence)))
		case len(violations) > 0:
			out = append(out, types.NewFinding(endpoint, method, resp.Status, CategoryMismatch,
				types.SeverityMedium,
				"Schema violations: "+strings.Join(violations, "; "),
				Snippet(resp.Body, maxEvidence)))
		default:
			out = append(out, types.NewFinding(endpoint, method, resp.Status, CategoryMatch,
				types.SeverityInfo,
				"Response matches schema",
				Snippet(resp.Body, maxEvidence)))
		}
	} else {
		out = append(out, types.NewFinding(endpoint, method, resp.Status, CategoryCheck,
			types.SeverityInfo,
			"No schema to validate or non-JSON body",
			Snippet(resp.Body, maxEvidence)))
	}

	return out
}

// LooksLikeJSON reports whether a trimmed body is structurally
// JSON-like: matching braces or brackets at both ends.
func LooksLikeJSON(s string) bool {
	t := strings.TrimSpace(s)
	return (strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")) ||
		(strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"))
}

// Snippet truncates evidence to max characters, marking the cut.
func Snippet(s string, max int) string {
	if len(s) > max {
		return s[:max] + "...(truncated)"
	}
	return s
}
