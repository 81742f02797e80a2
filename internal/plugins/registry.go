package plugins

import (
	"context"
	"fmt"

	"github.com/finsec-lab/apiaudit/pkg/types"
)

// Registry holds plugins in registration order. Execution order is
// fixed to that order.
type Registry struct {
	plugins []Plugin
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(p Plugin) *Registry {
	r.plugins = append(r.plugins, p)
	return r
}

// All returns the registered plugins in order.
func (r *Registry) All() []Plugin {
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

func (r *Registry) Len() int {
	return len(r.plugins)
}

// RunAll executes every plugin against the shared context. A plugin
// error or panic is converted into a single LOW finding tagged with
// that plugin's ID and never stops subsequent plugins.
func (r *Registry) RunAll(ctx context.Context, ec *ExecutionContext) {
	for _, p := range r.plugins {
		findings, err := runOne(ctx, p, ec)
		if err != nil {
			ec.Log.Warnw("Plugin failed", "plugin", p.ID(), "error", err)
			ec.Findings.Append(types.NewFinding("(plugin)", "N/A", 0, p.ID(),
				types.SeverityLow, "Plugin error: "+err.Error(), ""))
			continue
		}
		ec.Findings.Append(findings...)
		ec.Log.Infow("Plugin completed", "plugin", p.ID(), "findings", len(findings))
	}
}

func runOne(ctx context.Context, p Plugin, ec *ExecutionContext) (findings []types.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			findings = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return p.Run(ctx, ec)
}
