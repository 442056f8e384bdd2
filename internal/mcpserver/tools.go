// Package mcpserver registers MCP tools that drive the widgets headlessly.
// Each call mounts a widget on a static page at the configured redirect
// URL, lays it out and reports what it would render.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/alexjbarnes/ampwidgets/internal/oauth"
	"github.com/alexjbarnes/ampwidgets/internal/page"
	"github.com/alexjbarnes/ampwidgets/internal/widget"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tools holds the state shared by tool handlers.
type Tools struct {
	deps    widget.Deps
	pageURL *url.URL

	mu       sync.Mutex
	comments map[string]*widget.Comments
}

// NewTools creates the tool set. pageURL is the page widgets are hosted
// on and the redirect target of sign-in URLs.
func NewTools(deps widget.Deps, pageURL string) (*Tools, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid page URL %q", pageURL)
	}

	return &Tools{
		deps:     deps,
		pageURL:  u,
		comments: make(map[string]*widget.Comments),
	}, nil
}

// RegisterTools adds all widget tools to the given MCP server.
func RegisterTools(server *mcp.Server, t *Tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_status",
		Description: "Report whether an access token is held. No network call is made.",
	}, t.sessionStatusHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sign_in_url",
		Description: "Build the sign-in dialog URL for the like button or comment stream scope. Open it in a browser, then pass the page URL you are redirected to to sign_in_complete.",
	}, t.signInURLHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sign_in_complete",
		Description: "Finish sign-in with the URL the dialog redirected to. The access_token in its fragment is stored.",
	}, t.signInCompleteHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "like_status",
		Description: "Show the like button for a URL: whether the signed-in user likes it and the like count text.",
	}, t.likeStatusHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "like_toggle",
		Description: "Click the like button for a URL. Without a token the result carries the sign-in URL instead.",
	}, t.likeToggleHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "comments_list",
		Description: "List the comment stream for a URL. Pass direction previous or next to page through the stream loaded by the last call for the same URL.",
	}, t.commentsListHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "doc_embed",
		Description: "Build the iframe embed for a Google Doc URL.",
	}, t.docEmbedHandler())
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// SessionStatusInput has no parameters.
type SessionStatusInput struct{}

// SignInURLInput holds parameters for sign_in_url.
type SignInURLInput struct {
	Widget string `json:"widget,omitempty" jsonschema:"like or comments, defaults to like"`
}

// SignInCompleteInput holds parameters for sign_in_complete.
type SignInCompleteInput struct {
	RedirectURL string `json:"redirect_url" jsonschema:"required,the full URL the sign-in dialog redirected to, fragment included"`
}

// LikeInput holds parameters for like_status and like_toggle.
type LikeInput struct {
	Src        string `json:"src" jsonschema:"required,https URL of the object to like"`
	ButtonText string `json:"button_text,omitempty" jsonschema:"button label, defaults to Like"`
}

// CommentsInput holds parameters for comments_list.
type CommentsInput struct {
	ObjectID  string `json:"object_id" jsonschema:"required,https URL whose comments to list"`
	Direction string `json:"direction,omitempty" jsonschema:"previous or next to follow a paging link"`
}

// DocInput holds parameters for doc_embed.
type DocInput struct {
	Src string `json:"src" jsonschema:"required,https URL of the published document"`
}

// --- Results ---

// SessionResult reports the session state.
type SessionResult struct {
	State   string `json:"state"`
	Granted bool   `json:"granted"`
}

// SignInResult carries a dialog URL.
type SignInResult struct {
	URL string `json:"url"`
}

// LikeResult is the like button's view.
type LikeResult struct {
	ButtonText string `json:"button_text"`
	Liked      bool   `json:"liked"`
	CountText  string `json:"count_text,omitempty"`
	ObjectID   string `json:"object_id,omitempty"`
	Granted    bool   `json:"granted"`
	SignInURL  string `json:"sign_in_url,omitempty"`
	HTML       string `json:"html"`
}

// CommentResult is one comment.
type CommentResult struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
}

// CommentsResult is the comment stream's view.
type CommentsResult struct {
	Granted     bool            `json:"granted"`
	LoginButton string          `json:"login_button,omitempty"`
	Comments    []CommentResult `json:"comments"`
	HasPrevious bool            `json:"has_previous"`
	HasNext     bool            `json:"has_next"`
	SignInURL   string          `json:"sign_in_url,omitempty"`
}

// DocResult is the embed.
type DocResult struct {
	Src             string `json:"src"`
	FrameBorder     string `json:"frameborder"`
	AllowFullscreen bool   `json:"allowfullscreen"`
	HTML            string `json:"html"`
}

// --- Handlers ---

func (t *Tools) sessionStatusHandler() mcp.ToolHandlerFor[SessionStatusInput, *SessionResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ SessionStatusInput) (*mcp.CallToolResult, *SessionResult, error) {
		ctrl := oauth.NewController(t.deps.Store, page.NewStatic(t.pageURL), oauth.Config{}, t.deps.Logger)
		result := &SessionResult{State: ctrl.State().String(), Granted: ctrl.IsGranted()}

		return textResult(result), result, nil
	}
}

func (t *Tools) signInURLHandler() mcp.ToolHandlerFor[SignInURLInput, *SignInResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input SignInURLInput) (*mcp.CallToolResult, *SignInResult, error) {
		scope := t.deps.LikeScope

		switch strings.ToLower(input.Widget) {
		case "", "like":
		case "comments":
			scope = t.deps.CommentsScope
		default:
			return nil, nil, fmt.Errorf("unknown widget %q, want like or comments", input.Widget)
		}

		ctrl := oauth.NewController(t.deps.Store, page.NewStatic(t.pageURL), oauth.Config{
			AuthURL:  t.deps.AuthURL,
			ClientID: t.deps.ClientID,
			Scope:    scope,
		}, t.deps.Logger)
		result := &SignInResult{URL: ctrl.AuthorizationURL()}

		return textResult(result), result, nil
	}
}

func (t *Tools) signInCompleteHandler() mcp.ToolHandlerFor[SignInCompleteInput, *SessionResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input SignInCompleteInput) (*mcp.CallToolResult, *SessionResult, error) {
		u, err := url.Parse(input.RedirectURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redirect URL: %w", err)
		}

		ctrl := oauth.NewController(t.deps.Store, page.NewStatic(u), oauth.Config{StripFragment: true}, t.deps.Logger)

		act, err := ctrl.Activate()
		if err != nil {
			return nil, nil, err
		}

		if !act.Arrived {
			return nil, nil, fmt.Errorf("no access_token in the fragment of %s", u.Redacted())
		}

		result := &SessionResult{State: act.State.String(), Granted: ctrl.IsGranted()}

		return textResult(result), result, nil
	}
}

func (t *Tools) likeStatusHandler() mcp.ToolHandlerFor[LikeInput, *LikeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LikeInput) (*mcp.CallToolResult, *LikeResult, error) {
		like, pg, err := t.mountLike(ctx, input)
		if err != nil {
			return nil, nil, err
		}

		result, err := likeResult(like, pg)
		if err != nil {
			return nil, nil, err
		}

		return textResult(result), result, nil
	}
}

func (t *Tools) likeToggleHandler() mcp.ToolHandlerFor[LikeInput, *LikeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LikeInput) (*mcp.CallToolResult, *LikeResult, error) {
		like, pg, err := t.mountLike(ctx, input)
		if err != nil {
			return nil, nil, err
		}

		if err := like.Click(ctx); err != nil {
			return nil, nil, err
		}

		like.Wait()

		result, err := likeResult(like, pg)
		if err != nil {
			return nil, nil, err
		}

		return textResult(result), result, nil
	}
}

func (t *Tools) commentsListHandler() mcp.ToolHandlerFor[CommentsInput, *CommentsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CommentsInput) (*mcp.CallToolResult, *CommentsResult, error) {
		var (
			comments *widget.Comments
			pg       *page.Static
		)

		switch input.Direction {
		case "":
			pg = page.NewStatic(t.pageURL)

			el, err := t.mount(ctx, pg, widget.CommentsElementName, widget.Attributes{"object-id": input.ObjectID})
			if err != nil {
				return nil, nil, err
			}

			comments = el.(*widget.Comments)

			t.mu.Lock()
			t.comments[input.ObjectID] = comments
			t.mu.Unlock()
		case widget.Previous, widget.Next:
			t.mu.Lock()
			comments = t.comments[input.ObjectID]
			t.mu.Unlock()

			if comments == nil {
				return nil, nil, fmt.Errorf("no comment stream loaded for %s, call without direction first", input.ObjectID)
			}

			if err := comments.FollowLink(ctx, input.Direction); err != nil {
				return nil, nil, err
			}

			comments.Wait()
		default:
			return nil, nil, fmt.Errorf("unknown direction %q, want previous or next", input.Direction)
		}

		view := comments.View()
		result := &CommentsResult{
			Granted:     comments.Controller().IsGranted(),
			LoginButton: view.LoginButton,
			Comments:    make([]CommentResult, 0, len(view.Comments)),
			HasPrevious: view.Previous != "",
			HasNext:     view.Next != "",
		}

		for _, c := range view.Comments {
			result.Comments = append(result.Comments, CommentResult{
				ID:          c.ID,
				Name:        c.Name,
				Message:     c.Message,
				CreatedTime: c.CreatedTime,
			})
		}

		if view.LoginButton != "" {
			result.SignInURL = comments.Controller().AuthorizationURL()
		}

		return textResult(result), result, nil
	}
}

func (t *Tools) docEmbedHandler() mcp.ToolHandlerFor[DocInput, *DocResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DocInput) (*mcp.CallToolResult, *DocResult, error) {
		el, err := t.mount(ctx, page.NewStatic(t.pageURL), widget.GoogleDocElementName, widget.Attributes{"src": input.Src})
		if err != nil {
			return nil, nil, err
		}

		doc := el.(*widget.GoogleDoc)

		frame := doc.Frame()
		if frame == nil {
			return nil, nil, fmt.Errorf("document was not laid out")
		}

		var html strings.Builder
		if err := doc.Render(&html); err != nil {
			return nil, nil, err
		}

		result := &DocResult{
			Src:             frame.Src,
			FrameBorder:     frame.FrameBorder,
			AllowFullscreen: frame.AllowFullscreen,
			HTML:            html.String(),
		}

		return textResult(result), result, nil
	}
}

// mount builds and lays out one element on pg and waits for its
// background calls.
func (t *Tools) mount(ctx context.Context, pg *page.Static, name string, attrs widget.Attributes) (widget.Element, error) {
	deps := t.deps
	deps.Page = pg

	host := widget.NewHost(widget.DefaultRegistry(), deps)

	el, err := host.Mount(name, attrs)
	if err != nil {
		return nil, err
	}

	if err := host.LayoutAll(ctx); err != nil {
		return nil, err
	}

	host.Wait()

	return el, nil
}

func (t *Tools) mountLike(ctx context.Context, input LikeInput) (*widget.Like, *page.Static, error) {
	attrs := widget.Attributes{"src": input.Src}
	if input.ButtonText != "" {
		attrs["button-text"] = input.ButtonText
	}

	pg := page.NewStatic(t.pageURL)

	el, err := t.mount(ctx, pg, widget.LikeElementName, attrs)
	if err != nil {
		return nil, nil, err
	}

	return el.(*widget.Like), pg, nil
}

func likeResult(like *widget.Like, pg *page.Static) (*LikeResult, error) {
	var html strings.Builder
	if err := like.Render(&html); err != nil {
		return nil, err
	}

	view := like.View()
	result := &LikeResult{
		ButtonText: view.ButtonText,
		Liked:      view.Liked,
		CountText:  view.CountText,
		ObjectID:   view.ObjectID,
		Granted:    like.Controller().IsGranted(),
		HTML:       html.String(),
	}

	if target, ok := pg.Navigated(); ok {
		result.SignInURL = target.String()
	}

	return result, nil
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
