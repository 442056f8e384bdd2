package widget

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alexjbarnes/ampwidgets/internal/graph"
	"github.com/alexjbarnes/ampwidgets/internal/oauth"
	"github.com/alexjbarnes/ampwidgets/internal/session"
)

// Deps are the collaborators shared by every element on a page.
type Deps struct {
	Store session.Store
	Page  oauth.Page

	// HTTPClient carries Graph API calls. Nil uses a default client.
	HTTPClient   *http.Client
	GraphBaseURL string

	AuthURL       string
	ClientID      string
	LikeScope     string
	CommentsScope string

	Preconnector Preconnector
	// Location renders comment timestamps. Nil means time.Local.
	Location *time.Location
	Logger   *slog.Logger
}

// DefaultScopes fills the like and comment scopes with the provider
// defaults.
func (d Deps) DefaultScopes() Deps {
	d.LikeScope = oauth.LikeScope
	d.CommentsScope = oauth.CommentsScope

	return d
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}

	return d.Logger
}

// controller builds the auth controller for one element.
func (d Deps) controller(scope string, stripFragment bool, logger *slog.Logger) *oauth.Controller {
	return oauth.NewController(d.Store, d.Page, oauth.Config{
		AuthURL:       d.AuthURL,
		ClientID:      d.ClientID,
		Scope:         scope,
		StripFragment: stripFragment,
	}, logger)
}

// client builds a Graph client that signs in again through ctrl.
func (d Deps) client(ctrl *oauth.Controller, logger *slog.Logger) *graph.Client {
	opts := []graph.Option{graph.WithLogger(logger)}

	if d.GraphBaseURL != "" {
		opts = append(opts, graph.WithBaseURL(d.GraphBaseURL))
	}

	if d.HTTPClient != nil {
		opts = append(opts, graph.WithHTTPClient(d.HTTPClient))
	}

	return graph.NewClient(d.Store, ctrl, opts...)
}
