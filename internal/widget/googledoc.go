package widget

import (
	"context"
	"html/template"
	"io"
	"log/slog"
	"sync"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
)

// GoogleDocElementName is the markup name of the Google Doc embed.
const GoogleDocElementName = "amp-google-doc"

// googleDocViewportDistance keeps heavy embeds from loading until they
// are within three quarters of a viewport.
const googleDocViewportDistance = 0.75

type googleDocAttributes struct {
	Src string `attr:"src" validate:"required,secure_url"`
}

// Iframe is the frame a Google Doc is shown in.
type Iframe struct {
	Src             string
	FrameBorder     string
	AllowFullscreen bool
}

// GoogleDoc embeds a published document in an iframe.
type GoogleDoc struct {
	lifecycle

	attrs        Attributes
	preconnector Preconnector
	logger       *slog.Logger

	mu     sync.Mutex
	src    string
	iframe *Iframe
}

// NewGoogleDoc creates an unbuilt embed.
func NewGoogleDoc(deps Deps, attrs Attributes) *GoogleDoc {
	return &GoogleDoc{
		attrs:        attrs,
		preconnector: deps.Preconnector,
		logger:       deps.logger().With(slog.String("element", GoogleDocElementName)),
	}
}

func (g *GoogleDoc) Name() string { return GoogleDocElementName }

func (g *GoogleDoc) Build() error {
	return g.build(func() error {
		a := googleDocAttributes{Src: g.attrs["src"]}
		if err := validateAttributes(GoogleDocElementName, a); err != nil {
			return err
		}

		g.mu.Lock()
		g.src = a.Src
		g.mu.Unlock()

		return nil
	})
}

// Preconnect warms the document origin once src is known.
func (g *GoogleDoc) Preconnect(ctx context.Context, onLayout bool) {
	g.mu.Lock()
	src := g.src
	g.mu.Unlock()

	if src == "" || g.preconnector == nil {
		return
	}

	g.preconnector.URL(ctx, src, onLayout)
}

func (g *GoogleDoc) Layout(context.Context) error {
	return g.layout(func() error {
		g.mu.Lock()
		g.iframe = &Iframe{
			Src:             g.src,
			FrameBorder:     "0",
			AllowFullscreen: true,
		}
		g.mu.Unlock()

		return nil
	})
}

// Unlayout removes the iframe.
func (g *GoogleDoc) Unlayout() bool {
	return g.unlayout(func() bool {
		g.mu.Lock()
		g.iframe = nil
		g.mu.Unlock()

		return true
	})
}

// UnlayoutOnPause reports that the embed is torn down when the page is
// paused.
func (g *GoogleDoc) UnlayoutOnPause() bool { return true }

// RenderOutsideViewport is how many viewports away layout may start.
func (g *GoogleDoc) RenderOutsideViewport() float64 { return googleDocViewportDistance }

func (g *GoogleDoc) Wait() {}

// Frame returns the current iframe, or nil when not laid out.
func (g *GoogleDoc) Frame() *Iframe {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.iframe == nil {
		return nil
	}

	f := *g.iframe

	return &f
}

var googleDocTemplate = template.Must(template.New("googledoc").Parse(
	`{{with .}}<iframe src="{{.Src}}" frameborder="{{.FrameBorder}}"{{if .AllowFullscreen}} allowfullscreen="true"{{end}}></iframe>{{end}}`))

func (g *GoogleDoc) Render(w io.Writer) error {
	if !g.isBuilt() {
		return apperrors.ErrNotBuilt
	}

	return googleDocTemplate.Execute(w, g.Frame())
}
