// Package inventory implements the improper-inventory-management check
// (OWASP API9): stale version markers in paths and non-production
// servers leaked into the published document.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/finsec-lab/apiaudit/internal/plugins"
	"github.com/finsec-lab/apiaudit/pkg/openapi"
	"github.com/finsec-lab/apiaudit/pkg/types"
)

var nonProdMarkers = []string{"staging", "test", "dev"}

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string    { return "API9:InventoryManagement" }
func (p *Plugin) Title() string { return "Improper Inventory Management" }
func (p *Plugin) Description() string {
	return "Flags stale API version markers and non-production servers exposed by the specification"
}

func (p *Plugin) Run(_ context.Context, ec *plugins.ExecutionContext) ([]types.Finding, error) {
	var out []types.Finding

	if ec.Doc == nil {
		out = append(out, types.NewFinding("N/A", "N/A", 0, p.ID(),
			types.SeverityLow, "OpenAPI specification not available for analysis", ""))
		return out, nil
	}

	if info, ok := openapi.Info(ec.Doc); ok {
		version, _ := info["version"].(string)
		title, _ := info["title"].(string)
		if version != "" {
			out = append(out, types.NewFinding("/info", "N/A", 0, p.ID(),
				types.SeverityInfo,
				fmt.Sprintf("API version: %s (%s)", version, title), ""))
		}
	}

	for _, path := range openapi.PathNames(ec.Doc) {
		if strings.Contains(path, "/v1/") || strings.Contains(path, "/v2/") {
			out = append(out, types.NewFinding(path, "N/A", 0, p.ID(),
				types.SeverityLow, "Endpoint embeds an API version in its path", path))
		}
	}

	for _, u := range openapi.ServerURLs(ec.Doc) {
		for _, marker := range nonProdMarkers {
			if strings.Contains(u, marker) {
				out = append(out, types.NewFinding(u, "N/A", 0, p.ID(),
					types.SeverityMedium, "Declared server looks like a non-production environment", u))
				break
			}
		}
	}

	return out, nil
}
