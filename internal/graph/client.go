// Package graph is a thin client for the Facebook Graph API. It attaches
// the stored bearer token to every call, parses every response body as
// JSON and turns a body-level `error` object into an *APIError. When the
// provider reports an expired token the client asks its Reauthenticator
// to sign in again and still returns the error.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
	"github.com/alexjbarnes/ampwidgets/internal/session"
	"github.com/segmentio/ksuid"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the versioned Graph API root relative locators are
// resolved against.
const DefaultBaseURL = "https://graph.facebook.com/v2.9/"

// maxAPIResponseBytes caps response body reads to prevent a
// misbehaving server from consuming unbounded memory.
const maxAPIResponseBytes = 4 * 1024 * 1024

// Reauthenticator restarts the sign-in flow. For a browser page this is
// a full navigation, so SignIn may never hand control back in a
// meaningful way.
type Reauthenticator interface {
	SignIn(ctx context.Context) error
}

// Request describes one API call.
type Request struct {
	// Locator is either a suffix relative to the base URL or an
	// absolute URL (anything containing "//").
	Locator string
	// Method defaults to GET.
	Method string
	// Body, when non-nil, is sent as JSON.
	Body any
}

// Client talks to the Graph API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	reauth     Reauthenticator
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL. A trailing slash is added when
// missing.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		c.baseURL = base
	}
}

// WithHTTPClient sets the client whose transport carries requests. The
// bearer header is layered on top of its transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client that reads its token from store and calls
// reauth on expired-token errors. There is no client timeout: a call
// lives as long as its context.
func NewClient(store session.Store, reauth Reauthenticator, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		reauth:     reauth,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	base := c.httpClient
	c.httpClient = &http.Client{
		Transport: &oauth2.Transport{
			Source: session.TokenSource(store),
			Base:   base.Transport,
		},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}

	return c
}

// Resolve returns the URL a locator is sent to. Locators containing a
// double slash are treated as absolute and returned unchanged.
func (c *Client) Resolve(locator string) string {
	if strings.Contains(locator, "//") {
		return locator
	}

	return c.baseURL + locator
}

// Get issues a GET for locator.
func (c *Client) Get(ctx context.Context, locator string) (Body, error) {
	return c.Do(ctx, Request{Locator: locator})
}

// Call issues a bodyless request. An empty method means GET.
func (c *Client) Call(ctx context.Context, locator, method string) (Body, error) {
	return c.Do(ctx, Request{Locator: locator, Method: method})
}

// Do sends req once. Transport failures wrap ErrAPIRequest, bodies that
// are not JSON wrap ErrAPIResponse, and a body carrying an `error`
// member fails with *APIError.
func (c *Client) Do(ctx context.Context, req Request) (Body, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader

	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		reqBody = bytes.NewReader(payload)
	}

	target := c.Resolve(req.Locator)

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	requestID := ksuid.New().String()
	logger := c.logger.With(
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("locator", req.Locator),
	)
	logger.Debug("graph request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", apperrors.ErrAPIRequest, method, req.Locator, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s: %w", apperrors.ErrAPIRequest, req.Locator, err)
	}

	// The body is parsed whatever the status: the provider reports
	// failures as JSON under both 200 and 4xx.
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: %s returned status %d: %s",
			apperrors.ErrAPIResponse, req.Locator, resp.StatusCode, sanitizeResponseBody(raw))
	}

	if v := gjson.GetBytes(raw, "error"); truthy(v) {
		apiErr := newAPIError(v, resp.StatusCode)
		logger.Debug("graph error",
			slog.String("type", apiErr.Type),
			slog.Int64("code", apiErr.Code),
			slog.String("message", apiErr.Message),
		)

		if apiErr.IsExpiredToken() {
			c.signIn(ctx, logger)
		}

		return nil, apiErr
	}

	logger.Debug("graph response", slog.Int("status", resp.StatusCode))

	return Body(raw), nil
}

// signIn re-triggers authentication. The stale token stays in the store
// until the next redirect-back overwrites it.
func (c *Client) signIn(ctx context.Context, logger *slog.Logger) {
	if c.reauth == nil {
		logger.Warn("token expired and no sign-in flow configured")
		return
	}

	logger.Info("token expired, signing in again")

	if err := c.reauth.SignIn(ctx); err != nil {
		logger.Warn("sign-in redirect failed", slog.String("error", err.Error()))
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}
