package contract

import (
	"errors"
	"strings"
	"testing"

	"github.com/finsec-lab/apiaudit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchemaValidator struct {
	violations []string
	err        error
}

func (f *fakeSchemaValidator) Validate(schema, document any) ([]string, error) {
	return f.violations, f.err
}

func findByCategory(findings []types.Finding, category string) []types.Finding {
	var out []types.Finding
	for _, f := range findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func TestValidateContentTypeMismatchStillValidates(t *testing.T) {
	v := NewValidator(&fakeSchemaValidator{})
	schema := map[string]any{"type": "object"}

	findings := v.Validate("/accounts", "GET", ResponseData{
		Status:      200,
		ContentType: "text/plain",
		Body:        "{}",
	}, schema)

	mismatches := findByCategory(findings, CategoryMismatch)
	require.Len(t, mismatches, 1)
	assert.Equal(t, types.SeverityLow, mismatches[0].Severity)
	assert.Contains(t, mismatches[0].Message, "text/plain")

	// JSON-shaped body was still validated despite the wrong header.
	matches := findByCategory(findings, CategoryMatch)
	require.Len(t, matches, 1)
	assert.Equal(t, types.SeverityInfo, matches[0].Severity)
}

func TestValidateSchemaViolationsConcatenated(t *testing.T) {
	v := NewValidator(&fakeSchemaValidator{violations: []string{"id is required", "name: invalid type"}})

	findings := v.Validate("/accounts", "GET", ResponseData{
		Status:      200,
		ContentType: "application/json",
		Body:        `{"x": 1}`,
	}, map[string]any{"type": "object"})

	require.Len(t, findings, 1)
	assert.Equal(t, CategoryMismatch, findings[0].Category)
	assert.Equal(t, types.SeverityMedium, findings[0].Severity)
	assert.Contains(t, findings[0].Message, "id is required; name: invalid type")
}

func TestValidateValidatorErrorIsSoft(t *testing.T) {
	v := NewValidator(&fakeSchemaValidator{err: errors.New("bad schema")})

	findings := v.Validate("/accounts", "GET", ResponseData{
		Status:      200,
		ContentType: "application/json",
		Body:        `{}`,
	}, map[string]any{"type": "object"})

	require.Len(t, findings, 1)
	assert.Equal(t, CategoryValidationError, findings[0].Category)
	assert.Equal(t, types.SeverityLow, findings[0].Severity)
}

func TestValidateNoSchemaEmitsCheck(t *testing.T) {
	v := NewValidator(&fakeSchemaValidator{})

	findings := v.Validate("/health", "GET", ResponseData{
		Status:      200,
		ContentType: "application/json",
		Body:        `{"ok": true}`,
	}, nil)

	require.Len(t, findings, 1)
	assert.Equal(t, CategoryCheck, findings[0].Category)
	assert.Equal(t, types.SeverityInfo, findings[0].Severity)
}

func TestValidateNonJSONBodyEmitsCheck(t *testing.T) {
	v := NewValidator(&fakeSchemaValidator{violations: []string{"should not run"}})

	findings := v.Validate("/accounts", "GET", ResponseData{
		Status:      200,
		ContentType: "application/json",
		Body:        "plain text",
	}, map[string]any{"type": "object"})

	require.Len(t, findings, 1)
	assert.Equal(t, CategoryCheck, findings[0].Category)
}

func TestEvidenceTruncation(t *testing.T) {
	long := strings.Repeat("a", 2500)
	s := Snippet(long, 2000)
	assert.Len(t, s, 2000+len("...(truncated)"))
	assert.True(t, strings.HasSuffix(s, "...(truncated)"))
	assert.Equal(t, "short", Snippet("short", 2000))
}

func TestLooksLikeJSON(t *testing.T) {
	assert.True(t, LooksLikeJSON(`{"a": 1}`))
	assert.True(t, LooksLikeJSON("  [1, 2]  "))
	assert.False(t, LooksLikeJSON("plain"))
	assert.False(t, LooksLikeJSON("{unclosed"))
}

func TestJSONSchemaValidator(t *testing.T) {
	v := NewJSONSchemaValidator()
	schema := map[string]any{
		"type":     "object",
		"required": []any{"id"},
		"properties": map[string]any{
			"id": map[string]any{"type": "string"},
		},
	}

	violations, err := v.Validate(schema, map[string]any{"id": "abc"})
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = v.Validate(schema, map[string]any{"id": 42})
	require.NoError(t, err)
	assert.NotEmpty(t, violations)

	violations, err = v.Validate(schema, map[string]any{})
	require.NoError(t, err)
	assert.NotEmpty(t, violations)
}
