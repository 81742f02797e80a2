// Package generator derives executable test scenarios from an OpenAPI
// document: one positive request per declared operation plus, for most
// endpoints, a negative mutation probing access control or strict input
// validation.
package generator

import (
	"strings"

	"github.com/finsec-lab/apiaudit/pkg/openapi"
	"github.com/finsec-lab/apiaudit/pkg/types"
)

// DefaultSkipEndpoints lists endpoints with unreliable schemas (auth and
// consent bootstrapping paths); matched by substring.
var DefaultSkipEndpoints = []string{
	"/account-consents/request",
	"/auth/bank-token",
	"/product-agreement-consents/request",
	"/product-agreements",
}

// methods in emission order per path.
var methods = []string{"get", "post", "put", "delete"}

// Params carries the interbank context injected into sensitive
// scenarios. Empty fields disable the corresponding injection.
type Params struct {
	RequestingBank    string
	InterbankClientID string
	SkipEndpoints     []string
}

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// Generate walks the declared paths and emits scenarios: a positive,
// immediately followed by its negative counterpart where one applies,
// in path-then-method order.
func (g *Generator) Generate(doc openapi.Document, p Params) []types.Scenario {
	var out []types.Scenario
	skip := p.SkipEndpoints
	if skip == nil {
		skip = DefaultSkipEndpoints
	}

	for _, path := range openapi.PathNames(doc) {
		if matchesAny(path, skip) {
			continue
		}
		item, ok := openapi.PathItem(doc, path)
		if !ok {
			continue
		}

		for _, m := range methods {
			op, ok := item[m].(map[string]any)
			if !ok {
				continue
			}

			s := types.Scenario{
				Path:    path,
				Method:  strings.ToUpper(m),
				Query:   map[string]string{},
				Headers: map[string]string{},
				Label:   types.LabelPositive,
			}

			if path == "/accounts" && p.InterbankClientID != "" {
				s.Query["client_id"] = p.InterbankClientID
				if p.RequestingBank != "" {
					s.Headers["X-Requesting-Bank"] = p.RequestingBank
				}
			}

			// Consent and agreement endpoints carry schemas the engine
			// cannot synthesize sensible bodies for.
			if !strings.Contains(path, "/consents") && !strings.Contains(path, "/agreements") {
				if schema := requestBodySchema(op); schema != nil {
					s.Body = MinimalValidJSON(schema)
				}
			}
			out = append(out, s)

			if strings.Contains(path, "/auth") || strings.Contains(path, "/consents") {
				continue
			}
			neg := s.Clone()
			neg.Label = types.LabelNegative
			if _, ok := neg.Query["client_id"]; ok {
				// Cross-tenant probe: an id belonging to nobody.
				neg.Query["client_id"] = "other-9999"
			} else if neg.Body != nil {
				// Strict-validation probe: one schema-undeclared property.
				neg.Body["_unexpected"] = "boom"
			}
			out = append(out, neg)
		}
	}
	return out
}

func requestBodySchema(op map[string]any) map[string]any {
	rb, ok := op["requestBody"].(map[string]any)
	if !ok {
		return nil
	}
	content, ok := rb["content"].(map[string]any)
	if !ok {
		return nil
	}
	media, ok := content["application/json"].(map[string]any)
	if !ok {
		return nil
	}
	schema, ok := media["schema"].(map[string]any)
	if !ok {
		return nil
	}
	return schema
}

// MinimalValidJSON synthesizes the smallest schema-shaped object: only
// required properties when a required list exists, every declared
// property otherwise. Payloads are deterministic, not necessarily
// semantically valid.
func MinimalValidJSON(schema map[string]any) map[string]any {
	obj := map[string]any{}
	if schema == nil {
		return obj
	}
	if t, _ := schema["type"].(string); t != "object" {
		return obj
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return obj
	}
	required := map[string]bool{}
	if reqList, ok := schema["required"].([]any); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	for name, ps := range props {
		if len(required) == 0 || required[name] {
			propSchema, _ := ps.(map[string]any)
			obj[name] = DefaultFor(propSchema)
		}
	}
	return obj
}

// DefaultFor generates a placeholder value matching the schema type.
func DefaultFor(schema map[string]any) any {
	if schema == nil {
		return "sample"
	}
	t, _ := schema["type"].(string)
	switch t {
	case "string":
		if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
			return enum[0]
		}
		return "sample"
	case "integer", "number":
		return 1
	case "boolean":
		return true
	case "array":
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return []any{}
		}
		return []any{DefaultFor(items)}
	case "object":
		return MinimalValidJSON(schema)
	default:
		return "sample"
	}
}

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
