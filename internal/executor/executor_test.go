package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	parsed := ParseHeaders([]string{
		"X-Requesting-Bank: team184",
		"X-Custom:value:with:colons",
		"malformed",
		": novalue",
		"NoVal:   ",
	})

	require.Len(t, parsed, 2)
	assert.Equal(t, [2]string{"X-Requesting-Bank", "team184"}, parsed[0])
	assert.Equal(t, [2]string{"X-Custom", "value:with:colons"}, parsed[1])
}

func TestGetAppliesHeaders(t *testing.T) {
	var gotAuth, gotBank string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBank = r.Header.Get("X-Requesting-Bank")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	e := New(srv.Client(), nil, false, []string{"X-Requesting-Bank: team184"})
	resp, err := e.Get(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer tok"})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "team184", gotBank)
	assert.Equal(t, "application/json", resp.ContentType())
	assert.JSONEq(t, `{"ok": true}`, resp.Body)
}

func TestPostJSONEncodesBody(t *testing.T) {
	var got map[string]any
	var ct string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	e := New(srv.Client(), nil, false, nil)
	resp, err := e.PostJSON(context.Background(), srv.URL, map[string]any{"amount": 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "application/json", ct)
	assert.Equal(t, float64(1), got["amount"])
}

func TestPostNilBodySendsEmptyObject(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = json.Marshal(mustDecode(r))
	}))
	defer srv.Close()

	e := New(srv.Client(), nil, false, nil)
	_, err := e.PostJSON(context.Background(), srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func mustDecode(r *http.Request) map[string]any {
	var m map[string]any
	json.NewDecoder(r.Body).Decode(&m)
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func TestDoConnectionError(t *testing.T) {
	e := New(http.DefaultClient, nil, false, nil)
	_, err := e.Get(context.Background(), "http://127.0.0.1:1/unreachable", nil)
	assert.Error(t, err)
}
