package widget

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
	"github.com/alexjbarnes/ampwidgets/internal/fragment"
	"github.com/alexjbarnes/ampwidgets/internal/graph"
	"github.com/alexjbarnes/ampwidgets/internal/oauth"
)

// CommentsElementName is the markup name of the comment stream.
const CommentsElementName = "amp-facebook-object-comments"

const (
	loginButtonText = "Login to view comments"
	// createdTimeLayout matches an en-US toLocaleString rendering.
	createdTimeLayout = "1/2/2006, 3:04:05 PM"
	invalidDate       = "Invalid Date"
)

// Link directions for comment paging.
const (
	Previous = "previous"
	Next     = "next"
)

// providerTimeLayouts are the timestamp shapes the Graph API emits.
var providerTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

type commentsAttributes struct {
	ObjectID string `attr:"object-id" validate:"required,secure_url"`
}

// CommentView is one rendered comment.
type CommentView struct {
	ID          string
	Message     string
	Name        string
	CreatedTime string
}

// CommentsView is what the comment stream currently shows.
type CommentsView struct {
	// LoginButton is set when no token is held.
	LoginButton string
	Comments    []CommentView
	Previous    string
	Next        string
}

// Comments lists the comment stream of an object identified by URL.
type Comments struct {
	lifecycle

	attrs    Attributes
	ctrl     *oauth.Controller
	client   *graph.Client
	logger   *slog.Logger
	location *time.Location
	tasks    tasks

	mu        sync.Mutex
	encodedID string
	view      CommentsView
}

// NewComments creates an unbuilt comment stream. The token is stripped
// from the visible URL after sign-in.
func NewComments(deps Deps, attrs Attributes) *Comments {
	logger := deps.logger().With(slog.String("element", CommentsElementName))
	ctrl := deps.controller(deps.CommentsScope, true, logger)

	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}

	return &Comments{
		attrs:    attrs,
		ctrl:     ctrl,
		client:   deps.client(ctrl, logger),
		logger:   logger,
		location: loc,
		tasks:    tasks{logger: logger},
	}
}

func (c *Comments) Name() string { return CommentsElementName }

func (c *Comments) Build() error {
	return c.build(func() error {
		a := commentsAttributes{ObjectID: c.attrs["object-id"]}
		if err := validateAttributes(CommentsElementName, a); err != nil {
			return err
		}

		c.mu.Lock()
		c.encodedID = fragment.EncodeComponent(a.ObjectID)
		c.mu.Unlock()

		return nil
	})
}

func (c *Comments) Preconnect(context.Context, bool) {}

// Layout lists the stream when a token is held and shows the login
// button otherwise.
func (c *Comments) Layout(ctx context.Context) error {
	return c.layout(func() error {
		if _, err := c.ctrl.Activate(); err != nil {
			return err
		}

		if c.ctrl.IsGranted() {
			c.mu.Lock()
			locator := c.encodedID + "/comments?filter=stream"
			c.mu.Unlock()

			c.tasks.Go(ctx, "refresh-comments", func(ctx context.Context) error {
				return c.refreshComments(ctx, locator)
			})

			return nil
		}

		c.mu.Lock()
		c.view.LoginButton = loginButtonText
		c.mu.Unlock()

		return nil
	})
}

func (c *Comments) Unlayout() bool {
	return c.unlayout(func() bool { return false })
}

// Login is the login button's click handler.
func (c *Comments) Login(ctx context.Context) error {
	if err := c.requireLaidOut(); err != nil {
		return fmt.Errorf("login on %s: %w", CommentsElementName, err)
	}

	c.mu.Lock()
	shown := c.view.LoginButton != ""
	c.mu.Unlock()

	if !shown {
		return fmt.Errorf("login on %s: %w", CommentsElementName, apperrors.ErrInvalidTransition)
	}

	return c.ctrl.SignIn(ctx)
}

// FollowLink loads the previous or next page. The paging URLs are
// absolute and are fetched as given.
func (c *Comments) FollowLink(ctx context.Context, direction string) error {
	if err := c.requireLaidOut(); err != nil {
		return fmt.Errorf("paging %s: %w", CommentsElementName, err)
	}

	c.mu.Lock()
	var target string
	switch direction {
	case Previous:
		target = c.view.Previous
	case Next:
		target = c.view.Next
	}
	c.mu.Unlock()

	if target == "" {
		return fmt.Errorf("%w: %s", apperrors.ErrNoPage, direction)
	}

	c.tasks.Go(ctx, "refresh-comments", func(ctx context.Context) error {
		return c.refreshComments(ctx, target)
	})

	return nil
}

func (c *Comments) Wait() { c.tasks.Wait() }

// View returns a snapshot of the rendered state.
func (c *Comments) View() CommentsView {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.view
	v.Comments = append([]CommentView(nil), c.view.Comments...)

	return v
}

// Controller exposes the element's auth controller.
func (c *Comments) Controller() *oauth.Controller { return c.ctrl }

// refreshComments replaces the container with the page at locator.
func (c *Comments) refreshComments(ctx context.Context, locator string) error {
	body, err := c.client.Get(ctx, locator)
	if err != nil {
		return fmt.Errorf("fetching comments: %w", err)
	}

	var resp graph.CommentsResponse
	if err := body.Decode(&resp); err != nil {
		return fmt.Errorf("%w: comments: %w", apperrors.ErrAPIResponse, err)
	}

	view := CommentsView{
		Comments: make([]CommentView, 0, len(resp.Data)),
		Previous: resp.Paging.Previous,
		Next:     resp.Paging.Next,
	}

	for _, cm := range resp.Data {
		view.Comments = append(view.Comments, CommentView{
			ID:          cm.ID,
			Message:     cm.Message,
			Name:        cm.From.Name,
			CreatedTime: FormatCreatedTime(cm.CreatedTime, c.location),
		})
	}

	c.mu.Lock()
	c.view = view
	c.mu.Unlock()

	c.logger.Debug("comments rendered", slog.Int("count", len(view.Comments)))

	return nil
}

// FormatCreatedTime renders a provider timestamp in loc.
func FormatCreatedTime(raw string, loc *time.Location) string {
	for _, layout := range providerTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(loc).Format(createdTimeLayout)
		}
	}

	return invalidDate
}

var commentsTemplate = template.Must(template.New("comments").Parse(`<div class="container">` +
	`{{range .Comments}}<div class="comment-container">` +
	`<div class="message">{{.Message}}</div>` +
	`<div class="name">{{.Name}}</div>` +
	`<div class="created-time">{{.CreatedTime}}</div>` +
	`</div>{{end}}` +
	`{{if .Previous}}<a href="javascript:void(0)" data-page="previous">Previous</a>{{end}}` +
	`{{if .Next}}<a href="javascript:void(0)" data-page="next">Next</a>{{end}}` +
	`{{if .LoginButton}}<button>{{.LoginButton}}</button>{{end}}` +
	`</div>`))

func (c *Comments) Render(w io.Writer) error {
	if !c.isBuilt() {
		return apperrors.ErrNotBuilt
	}

	return commentsTemplate.Execute(w, c.View())
}
