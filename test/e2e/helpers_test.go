package e2e_test

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/alexjbarnes/ampwidgets/internal/page"
	"github.com/alexjbarnes/ampwidgets/internal/sandbox"
	"github.com/alexjbarnes/ampwidgets/internal/session"
	"github.com/alexjbarnes/ampwidgets/internal/widget"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUsername = "testuser"
	testPassword = "testpass"
	testClientID = "733349513518212"
	pageURL      = "http://127.0.0.1:19876/article?ref=e2e"
	articleURL   = "https://example.com/article"
	sessionKey   = "oauth2-fb"
)

// harness holds the full e2e test stack: a sandbox provider served over
// real HTTP and a bolt-backed session shared by every page load.
type harness struct {
	URL     string
	Sandbox *sandbox.Server
	Store   *session.BoltStore
	DBPath  string
	Logger  *slog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	var sb *sandbox.Server
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sb.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	logger := slog.New(slog.DiscardHandler)

	sb, err = sandbox.New(sandbox.Config{
		ServerURL: ts.URL,
		ClientIDs: []string{testClientID},
		Fixtures: &sandbox.Fixtures{
			Users: []sandbox.FixtureUser{
				{ID: "1001", Name: "Test User", Username: testUsername, PasswordHash: string(hash)},
				{ID: "1002", Name: "Other Person"},
			},
			Objects: []sandbox.FixtureObject{{
				URL:   articleURL,
				ID:    "OG1",
				Likes: []string{"1002"},
				Comments: []sandbox.FixtureComment{
					{ID: "c1", From: "1002", Message: "first!", CreatedTime: "2017-05-01T12:00:00+0000"},
				},
			}},
		},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(sb.Close)

	dbPath := filepath.Join(t.TempDir(), "session.db")
	store, err := session.OpenBolt(dbPath, sessionKey)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &harness{URL: ts.URL, Sandbox: sb, Store: store, DBPath: dbPath, Logger: logger}
}

// deps wires widgets on pg to the sandbox.
func (h *harness) deps(pg *page.Static) widget.Deps {
	return widget.Deps{
		Store:        h.Store,
		Page:         pg,
		GraphBaseURL: h.URL + "/v2.9/",
		AuthURL:      h.URL + "/v2.9/dialog/oauth",
		ClientID:     testClientID,
		Logger:       h.Logger,
	}.DefaultScopes()
}

// load mounts one element on pg, lays it out and waits for its calls.
func (h *harness) load(t *testing.T, pg *page.Static, name string, attrs widget.Attributes) widget.Element {
	t.Helper()

	host := widget.NewHost(widget.DefaultRegistry(), h.deps(pg))

	el, err := host.Mount(name, attrs)
	require.NoError(t, err)
	require.NoError(t, host.LayoutAll(t.Context()))
	host.Wait()

	return el
}

var csrfRe = regexp.MustCompile(`name="csrf_token" value="([0-9a-f]+)"`)

// signInThroughDialog plays the browser on the sign-in dialog at
// dialogURL and returns where the dialog redirected to.
func (h *harness) signInThroughDialog(dialogURL, password string) (*url.URL, error) {
	resp, err := http.Get(dialogURL)
	if err != nil {
		return nil, err
	}

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dialog returned %d: %s", resp.StatusCode, body)
	}

	m := csrfRe.FindSubmatch(body)
	if m == nil {
		return nil, errors.New("csrf token not found in dialog")
	}

	q, err := url.Parse(dialogURL)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"csrf_token":    {string(m[1])},
		"client_id":     {q.Query().Get("client_id")},
		"redirect_uri":  {q.Query().Get("redirect_uri")},
		"response_type": {q.Query().Get("response_type")},
		"scope":         {q.Query().Get("scope")},
		"username":      {testUsername},
		"password":      {password},
		"action":        {"allow"},
	}

	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err = noRedirect.PostForm(h.URL+"/v2.9/dialog/oauth", form)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return nil, fmt.Errorf("dialog post returned %d", resp.StatusCode)
	}

	return url.Parse(resp.Header.Get("Location"))
}

// followSignIn takes the navigation pg is waiting on through the dialog
// and loads the page it redirects back to.
func (h *harness) followSignIn(t *testing.T, pg *page.Static) {
	t.Helper()

	target, ok := pg.Navigated()
	require.True(t, ok, "page did not navigate to sign-in")
	require.True(t, strings.HasPrefix(target.String(), h.URL+"/v2.9/dialog/oauth?"), target.String())

	landing, err := h.signInThroughDialog(target.String(), testPassword)
	require.NoError(t, err)

	pg.Load(landing)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)

	return u
}
