package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexjbarnes/ampwidgets/internal/page"
	"github.com/alexjbarnes/ampwidgets/internal/session"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

// fakeGraph serves the Graph API subset the widgets use.
type fakeGraph struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	requests    []string
	auth        []string
	totalCount  int64
	hasLiked    bool
	expired     bool
	comments    []map[string]any
	paging      map[string]any
	pages       map[string]string
	lookupCount int
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()

	g := &fakeGraph{t: t, pages: make(map[string]string)}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)

	return g
}

func (g *fakeGraph) baseURL() string { return g.srv.URL + "/v2.9/" }

func (g *fakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, r.Method+" "+r.URL.RequestURI())
	g.auth = append(g.auth, r.Header.Get("Authorization"))

	if g.expired {
		g.write(w, map[string]any{"error": map[string]any{"type": "OAuthException", "code": 190, "message": "Expired"}})
		return
	}

	escaped := r.URL.EscapedPath()

	if body, ok := g.pages[r.URL.RequestURI()]; ok {
		w.Write([]byte(body))
		return
	}

	switch {
	case escaped == "/v2.9/" && r.URL.Query().Get("id") != "":
		g.lookupCount++
		g.write(w, map[string]any{"id": r.URL.Query().Get("id"), "og_object": map[string]any{"id": "OG1"}})
	case escaped == "/v2.9/OG1/likes" && r.Method == http.MethodGet:
		g.write(w, map[string]any{"data": []any{}, "summary": map[string]any{"total_count": g.totalCount, "has_liked": g.hasLiked}})
	case escaped == "/v2.9/OG1/likes" && r.Method == http.MethodPost:
		g.totalCount++
		g.hasLiked = true
		g.write(w, map[string]any{"success": true})
	case escaped == "/v2.9/OG1/likes" && r.Method == http.MethodDelete:
		g.totalCount--
		g.hasLiked = false
		g.write(w, map[string]any{"success": true})
	case strings.HasSuffix(escaped, "/comments"):
		g.write(w, map[string]any{"data": g.comments, "paging": g.paging})
	default:
		w.WriteHeader(http.StatusNotFound)
		g.write(w, map[string]any{"error": map[string]any{"type": "GraphMethodException", "code": 100, "message": "Unsupported get request."}})
	}
}

func (g *fakeGraph) write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (g *fakeGraph) Requests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]string(nil), g.requests...)
}

func (g *fakeGraph) Auth() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]string(nil), g.auth...)
}

func (g *fakeGraph) set(fn func(g *fakeGraph)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// testDeps wires a memory store and a static page at pageURL to g.
func testDeps(t *testing.T, g *fakeGraph, pageURL string) (Deps, *session.MemoryStore, *page.Static) {
	t.Helper()

	store := session.NewMemoryStore()
	p := page.NewStatic(mustParse(t, pageURL))

	deps := Deps{
		Store:        store,
		Page:         p,
		AuthURL:      "https://www.facebook.com/v2.9/dialog/oauth",
		ClientID:     "733349513518212",
		Location:     time.UTC,
		Logger:       discard,
		Preconnector: &recordingPreconnector{},
	}.DefaultScopes()

	if g != nil {
		deps.HTTPClient = g.srv.Client()
		deps.GraphBaseURL = g.baseURL()
	}

	return deps, store, p
}

type recordingPreconnector struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingPreconnector) URL(_ context.Context, rawURL string, onLayout bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	suffix := ""
	if onLayout {
		suffix = " (layout)"
	}

	r.calls = append(r.calls, rawURL+suffix)
}

func (r *recordingPreconnector) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

func render(t *testing.T, el Element) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, el.Render(&buf))

	return buf.String()
}
