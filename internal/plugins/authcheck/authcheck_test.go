package authcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finsec-lab/apiaudit/internal/config"
	"github.com/finsec-lab/apiaudit/internal/executor"
	"github.com/finsec-lab/apiaudit/internal/logger"
	"github.com/finsec-lab/apiaudit/internal/plugins"
	"github.com/finsec-lab/apiaudit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T, baseURL string) *plugins.ExecutionContext {
	t.Helper()
	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	return &plugins.ExecutionContext{
		BaseURL: baseURL,
		Exec:    executor.New(http.DefaultClient, log, false, nil),
		Log:     log,
	}
}

func TestRunFlagsUnprotectedResource(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		w.Write([]byte(`{"accounts": [{"id": "acc-1"}]}`))
	}))
	defer srv.Close()

	findings, err := New().Run(context.Background(), newContext(t, srv.URL))
	require.NoError(t, err)
	require.Len(t, findings, 1)

	assert.False(t, sawAuth, "probe must carry no credentials")
	assert.Equal(t, types.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "/accounts", findings[0].Endpoint)
	assert.NotEmpty(t, findings[0].Recommendation)
	assert.Contains(t, findings[0].Evidence, "acc-1")
}

func TestRunAcceptsProperRefusal(t *testing.T) {
	for _, status := range []int{401, 403} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		findings, err := New().Run(context.Background(), newContext(t, srv.URL))
		srv.Close()
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, types.SeverityInfo, findings[0].Severity)
		assert.Equal(t, status, findings[0].Status)
	}
}

func TestRunUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	findings, err := New().Run(context.Background(), newContext(t, srv.URL))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, types.SeverityLow, findings[0].Severity)
}

func TestRunConnectionErrorSkips(t *testing.T) {
	findings, err := New().Run(context.Background(), newContext(t, "http://127.0.0.1:1"))
	require.NoError(t, err)
	assert.Nil(t, findings)
}
