// Package openapi loads OpenAPI documents and answers the two queries
// the audit engine needs: the first declared server URL and the
// response schema declared for a (path, status, content-type) triple.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrSpecUnavailable wraps every load failure: network error, non-2xx
// fetch status or a body that parses as neither JSON nor YAML. Callers
// treat it as terminal only when deriving the base URL; everywhere else
// a missing document degrades to "no schema".
var ErrSpecUnavailable = errors.New("openapi spec unavailable")

// Document is the immutable, lazily-loaded OpenAPI tree. All queries
// are read-only traversals; missing nodes mean "not found", never
// failure.
type Document map[string]any

// methodPrecedence is the fixed lookup order used when resolving a
// response schema. First present operation wins regardless of which
// method the response actually came from. This is a documented
// simplification carried over from the engine this was modelled on;
// do not "fix" it without flagging the behavior change.
var methodPrecedence = []string{"get", "post", "put", "delete"}

// Resolver loads and caches OpenAPI documents.
type Resolver struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]Document
}

func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		client: client,
		cache:  make(map[string]Document),
	}
}

// Load fetches and parses the document at location, which may be an
// http(s) URL, a file: URI or a plain filesystem path. The parsed tree
// is cached per location: a second Load returns the identical document
// without touching the network or disk again.
func (r *Resolver) Load(ctx context.Context, location string) (Document, error) {
	r.mu.Lock()
	if doc, ok := r.cache[location]; ok {
		r.mu.Unlock()
		return doc, nil
	}
	r.mu.Unlock()

	raw, err := r.fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpecUnavailable, location, err)
	}

	doc, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpecUnavailable, location, err)
	}

	r.mu.Lock()
	r.cache[location] = doc
	r.mu.Unlock()
	return doc, nil
}

func (r *Resolver) fetch(ctx context.Context, location string) ([]byte, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	case strings.HasPrefix(location, "file:"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(u.Path)
	default:
		return os.ReadFile(location)
	}
}

func parse(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err == nil {
		return doc, nil
	}
	// Swagger documents are frequently served as YAML.
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("document is neither JSON nor YAML: %w", err)
	}
	if doc == nil {
		return nil, errors.New("empty document")
	}
	return doc, nil
}

// FirstServerURL returns servers[0].url if declared.
func FirstServerURL(doc Document) (string, bool) {
	servers, ok := asSlice(doc["servers"])
	if !ok || len(servers) == 0 {
		return "", false
	}
	first, ok := asMap(servers[0])
	if !ok {
		return "", false
	}
	u, ok := first["url"].(string)
	if !ok || strings.TrimSpace(u) == "" {
		return "", false
	}
	return u, true
}

// ResolveResponseSchema walks paths → operation → responses → content
// and returns the declared schema, or nil when any node along the way
// is absent. Operation lookup follows methodPrecedence; the status key
// falls back to "default"; the content-type key is normalized (the
// parameter suffix stripped, lowercased) and falls back to
// "application/json".
func ResolveResponseSchema(doc Document, path string, status int, contentType string) any {
	if doc == nil {
		return nil
	}
	paths, ok := asMap(doc["paths"])
	if !ok {
		return nil
	}
	pathNode, ok := asMap(paths[path])
	if !ok {
		return nil
	}

	var op map[string]any
	for _, m := range methodPrecedence {
		if candidate, ok := asMap(pathNode[m]); ok {
			op = candidate
			break
		}
	}
	if op == nil {
		return nil
	}

	responses, ok := asMap(op["responses"])
	if !ok {
		return nil
	}
	resp, ok := asMap(responses[strconv.Itoa(status)])
	if !ok {
		if resp, ok = asMap(responses["default"]); !ok {
			return nil
		}
	}

	content, ok := asMap(resp["content"])
	if !ok {
		return nil
	}
	ctNode, ok := asMap(content[NormalizeContentType(contentType)])
	if !ok {
		if ctNode, ok = asMap(content["application/json"]); !ok {
			return nil
		}
	}

	schema, ok := ctNode["schema"]
	if !ok {
		return nil
	}
	return schema
}

// NormalizeContentType lowercases and strips any ";"-delimited
// parameter suffix ("application/json; charset=utf-8" → "application/json").
// An empty content type defaults to application/json.
func NormalizeContentType(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return "application/json"
	}
	ct = strings.ToLower(ct)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// PathNames returns the declared path names sorted lexically. Go maps
// do not preserve document order, so sorting is what keeps scenario
// emission deterministic across runs.
func PathNames(doc Document) []string {
	paths, ok := asMap(doc["paths"])
	if !ok {
		return nil
	}
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PathItem returns the operations object declared under a path.
func PathItem(doc Document, path string) (map[string]any, bool) {
	paths, ok := asMap(doc["paths"])
	if !ok {
		return nil, false
	}
	return asMap(paths[path])
}

// Info returns the document's info object, which may be absent.
func Info(doc Document) (map[string]any, bool) {
	return asMap(doc["info"])
}

// ServerURLs returns every declared servers[].url value.
func ServerURLs(doc Document) []string {
	servers, ok := asSlice(doc["servers"])
	if !ok {
		return nil
	}
	var out []string
	for _, s := range servers {
		if m, ok := asMap(s); ok {
			if u, ok := m["url"].(string); ok && u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}
