package inventory

import (
	"context"
	"testing"

	"github.com/finsec-lab/apiaudit/internal/plugins"
	"github.com/finsec-lab/apiaudit/pkg/openapi"
	"github.com/finsec-lab/apiaudit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithoutDocument(t *testing.T) {
	findings, err := New().Run(context.Background(), &plugins.ExecutionContext{})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, types.SeverityLow, findings[0].Severity)
	assert.Contains(t, findings[0].Message, "not available")
}

func TestRunFlagsVersionedPathsAndNonProdServers(t *testing.T) {
	doc := openapi.Document{
		"info": map[string]any{"version": "2.1.0", "title": "Virtual Bank API"},
		"paths": map[string]any{
			"/v1/accounts": map[string]any{},
			"/accounts":    map[string]any{},
		},
		"servers": []any{
			map[string]any{"url": "https://staging.vbank.example.com"},
			map[string]any{"url": "https://api.vbank.example.com"},
		},
	}

	findings, err := New().Run(context.Background(), &plugins.ExecutionContext{Doc: doc})
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, types.SeverityInfo, findings[0].Severity)
	assert.Contains(t, findings[0].Message, "2.1.0")

	assert.Equal(t, "/v1/accounts", findings[1].Endpoint)
	assert.Equal(t, types.SeverityLow, findings[1].Severity)

	assert.Equal(t, types.SeverityMedium, findings[2].Severity)
	assert.Contains(t, findings[2].Endpoint, "staging")
}

func TestRunCleanDocument(t *testing.T) {
	doc := openapi.Document{
		"paths":   map[string]any{"/accounts": map[string]any{}},
		"servers": []any{map[string]any{"url": "https://api.vbank.example.com"}},
	}
	findings, err := New().Run(context.Background(), &plugins.ExecutionContext{Doc: doc})
	require.NoError(t, err)
	assert.Empty(t, findings)
}
