// Package oauth drives the OAuth2 implicit flow from the page hosting a
// widget: it picks the access token out of the URL fragment on
// redirect-back, persists it, and sends the page to the provider's
// authorization dialog when a token is needed.
package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alexjbarnes/ampwidgets/internal/fragment"
	"github.com/alexjbarnes/ampwidgets/internal/session"
	"golang.org/x/oauth2"
)

const (
	// DefaultAuthURL is the provider's implicit-flow dialog.
	DefaultAuthURL = "https://www.facebook.com/v2.9/dialog/oauth"
	// DefaultClientID is the registered application id.
	DefaultClientID = "733349513518212"
	// LikeScope grants reading and publishing likes.
	LikeScope = "publish_actions,user_likes"
	// CommentsScope is empty: reading a comment stream needs no extra
	// permission, so the scope parameter is omitted.
	CommentsScope = ""
)

const accessTokenParam = "access_token"

// Page is the document the widget lives in. Navigate leaves the current
// page for good; ReplaceURL changes the visible address without a load.
type Page interface {
	URL() *url.URL
	Navigate(ctx context.Context, target *url.URL) error
	ReplaceURL(u *url.URL) error
}

// State is derived from the session store alone.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}

	return "unauthenticated"
}

// Config selects the provider endpoint and the per-widget behaviour.
type Config struct {
	AuthURL  string
	ClientID string
	// Scope is sent verbatim. Empty omits the parameter.
	Scope string
	// StripFragment removes the token from the visible URL after it has
	// been read.
	StripFragment bool
}

// Activation reports what Activate found on the current page load.
type Activation struct {
	State State
	// Arrived is true when this page load carried a fresh token.
	Arrived bool
}

// Controller ties a page to a session store.
type Controller struct {
	store  session.Store
	page   Page
	cfg    Config
	logger *slog.Logger
}

// NewController creates a controller. Empty AuthURL and ClientID fall
// back to the provider defaults.
func NewController(store session.Store, page Page, cfg Config, logger *slog.Logger) *Controller {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}

	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		store:  store,
		page:   page,
		cfg:    cfg,
		logger: logger,
	}
}

// Activate inspects the page URL fragment. A non-empty access_token is
// persisted, overwriting any stored token, and the fragment is stripped
// first when configured. The resulting state always comes from the
// store, so a token kept from an earlier load authenticates without any
// network call.
func (c *Controller) Activate() (Activation, error) {
	current := c.page.URL()
	params := fragment.Parse(current.EscapedFragment())

	token := params[accessTokenParam]
	if token == "" {
		return Activation{State: c.State()}, nil
	}

	if c.cfg.StripFragment {
		stripped := *current
		stripped.Fragment = ""
		stripped.RawFragment = ""

		if err := c.page.ReplaceURL(&stripped); err != nil {
			c.logger.Warn("could not strip token from page URL", slog.String("error", err.Error()))
		}
	}

	if err := c.store.Put(token); err != nil {
		return Activation{State: c.State()}, fmt.Errorf("persisting access token: %w", err)
	}

	c.logger.Debug("access token received from redirect")

	return Activation{State: c.State(), Arrived: true}, nil
}

// State reports whether a token is held.
func (c *Controller) State() State {
	if c.store.IsGranted() {
		return Authenticated
	}

	return Unauthenticated
}

// IsGranted is shorthand for State() == Authenticated.
func (c *Controller) IsGranted() bool {
	return c.State() == Authenticated
}

// AuthorizationURL returns the dialog URL for the current page. The
// redirect target is the full current URL, fragment included.
func (c *Controller) AuthorizationURL() string {
	conf := &oauth2.Config{
		ClientID:    c.cfg.ClientID,
		RedirectURL: c.page.URL().String(),
		Endpoint: oauth2.Endpoint{
			AuthURL: c.cfg.AuthURL,
		},
	}

	if c.cfg.Scope != "" {
		conf.Scopes = []string{c.cfg.Scope}
	}

	return conf.AuthCodeURL("", oauth2.SetAuthURLParam("response_type", "token"))
}

// SignIn navigates the page to the authorization dialog. Nothing is
// recorded beforehand and the stored token, stale or not, is left in
// place; the next page load decides the new state.
func (c *Controller) SignIn(ctx context.Context) error {
	target, err := url.Parse(c.AuthorizationURL())
	if err != nil {
		return fmt.Errorf("building authorization URL: %w", err)
	}

	c.logger.Info("redirecting to sign-in", slog.String("dialog", c.cfg.AuthURL))

	if err := c.page.Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigating to sign-in: %w", err)
	}

	return nil
}
