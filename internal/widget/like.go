package widget

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sync"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
	"github.com/alexjbarnes/ampwidgets/internal/fragment"
	"github.com/alexjbarnes/ampwidgets/internal/graph"
	"github.com/alexjbarnes/ampwidgets/internal/oauth"
)

// LikeElementName is the markup name of the like button.
const LikeElementName = "amp-facebook-like-oauth"

const defaultButtonText = "Like"

// FormatLikeSummary renders the like count shown under the button. When
// the viewer has liked the object they are counted out of the total.
func FormatLikeSummary(count int64, hasLiked bool) string {
	if hasLiked {
		return fmt.Sprintf("You and %d people like this.", count-1)
	}

	return fmt.Sprintf("%d people like this.", count)
}

type likeAttributes struct {
	Src        string `attr:"src" validate:"required,secure_url"`
	ButtonText string `attr:"button-text"`
}

// LikeView is what the like button currently shows.
type LikeView struct {
	ButtonText string
	Liked      bool
	CountText  string
	ObjectID   string
}

// Like is a like button for an Open Graph object identified by URL.
type Like struct {
	lifecycle

	attrs  Attributes
	ctrl   *oauth.Controller
	client *graph.Client
	logger *slog.Logger
	tasks  tasks

	mu         sync.Mutex
	src        string
	encodedSrc string
	buttonText string
	objectID   string
	liked      bool
	countText  string
}

// NewLike creates an unbuilt like button. The fragment is left in the
// visible URL after sign-in.
func NewLike(deps Deps, attrs Attributes) *Like {
	logger := deps.logger().With(slog.String("element", LikeElementName))
	ctrl := deps.controller(deps.LikeScope, false, logger)

	return &Like{
		attrs:  attrs,
		ctrl:   ctrl,
		client: deps.client(ctrl, logger),
		logger: logger,
		tasks:  tasks{logger: logger},
	}
}

func (l *Like) Name() string { return LikeElementName }

// Build validates src. button-text is plain text.
func (l *Like) Build() error {
	return l.build(func() error {
		a := likeAttributes{Src: l.attrs["src"], ButtonText: defaultButtonText}
		if text, ok := l.attrs.Lookup("button-text"); ok {
			a.ButtonText = text
		}

		if err := validateAttributes(LikeElementName, a); err != nil {
			return err
		}

		l.mu.Lock()
		l.src = a.Src
		l.encodedSrc = fragment.EncodeComponent(a.Src)
		l.buttonText = a.ButtonText
		l.mu.Unlock()

		return nil
	})
}

func (l *Like) Preconnect(context.Context, bool) {}

// Layout picks up a token from the redirect and, when one arrived,
// completes the like that sent the viewer to sign in. With a token held
// the current state is fetched.
func (l *Like) Layout(ctx context.Context) error {
	return l.layout(func() error {
		act, err := l.ctrl.Activate()
		if err != nil {
			return err
		}

		if act.Arrived {
			l.tasks.Go(ctx, "toggle-like", l.toggleLike)
		}

		if l.ctrl.IsGranted() {
			l.tasks.Go(ctx, "refresh-state", l.refreshState)
		}

		return nil
	})
}

func (l *Like) Unlayout() bool {
	return l.unlayout(func() bool { return false })
}

// Click toggles the like, or signs in when no token is held.
func (l *Like) Click(ctx context.Context) error {
	if err := l.requireLaidOut(); err != nil {
		return fmt.Errorf("click on %s: %w", LikeElementName, err)
	}

	if !l.ctrl.IsGranted() {
		return l.ctrl.SignIn(ctx)
	}

	l.tasks.Go(ctx, "toggle-like", l.toggleLike)

	return nil
}

func (l *Like) Wait() { l.tasks.Wait() }

// View returns a snapshot of the rendered state.
func (l *Like) View() LikeView {
	l.mu.Lock()
	defer l.mu.Unlock()

	return LikeView{
		ButtonText: l.buttonText,
		Liked:      l.liked,
		CountText:  l.countText,
		ObjectID:   l.objectID,
	}
}

// Controller exposes the element's auth controller.
func (l *Like) Controller() *oauth.Controller { return l.ctrl }

func (l *Like) toggleLike(ctx context.Context) error {
	id, err := l.resolveObjectID(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	method := http.MethodPost
	if l.liked {
		method = http.MethodDelete
	}
	locator := fmt.Sprintf("%s/likes?url=%s", id, l.encodedSrc)
	l.mu.Unlock()

	if _, err := l.client.Call(ctx, locator, method); err != nil {
		return fmt.Errorf("toggling like: %w", err)
	}

	return l.refreshState(ctx)
}

func (l *Like) refreshState(ctx context.Context) error {
	id, err := l.resolveObjectID(ctx)
	if err != nil {
		return err
	}

	body, err := l.client.Get(ctx, id+"/likes?summary=true")
	if err != nil {
		return fmt.Errorf("fetching like summary: %w", err)
	}

	var resp graph.LikesResponse
	if err := body.Decode(&resp); err != nil {
		return fmt.Errorf("%w: like summary: %w", apperrors.ErrAPIResponse, err)
	}

	if resp.Summary == nil {
		return fmt.Errorf("%w: like summary missing", apperrors.ErrAPIResponse)
	}

	l.mu.Lock()
	l.liked = resp.Summary.HasLiked
	l.countText = FormatLikeSummary(resp.Summary.TotalCount, resp.Summary.HasLiked)
	l.mu.Unlock()

	return nil
}

// resolveObjectID looks up the Open Graph id of src once per element.
func (l *Like) resolveObjectID(ctx context.Context) (string, error) {
	l.mu.Lock()
	id, encoded := l.objectID, l.encodedSrc
	l.mu.Unlock()

	if id != "" {
		return id, nil
	}

	body, err := l.client.Get(ctx, "?id="+encoded)
	if err != nil {
		return "", fmt.Errorf("looking up object id: %w", err)
	}

	id = body.Get("og_object.id").String()
	if id == "" {
		return "", fmt.Errorf("%w: no og_object for %s", apperrors.ErrAPIResponse, l.src)
	}

	l.mu.Lock()
	l.objectID = id
	l.mu.Unlock()

	return id, nil
}

var likeTemplate = template.Must(template.New("like").Parse(`<div class="container">` +
	`<button class="like-button{{if .Liked}} liked{{end}}">{{.ButtonText}}</button>` +
	`<div class="like-count">{{.CountText}}</div>` +
	`</div>`))

func (l *Like) Render(w io.Writer) error {
	if !l.isBuilt() {
		return apperrors.ErrNotBuilt
	}

	return likeTemplate.Execute(w, l.View())
}
