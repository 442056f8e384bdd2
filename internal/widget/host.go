package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// defaultViewportDistance is how far outside the viewport an element
// without its own preference may be laid out.
const defaultViewportDistance = 3

// viewportAware elements choose how early they are laid out.
type viewportAware interface {
	RenderOutsideViewport() float64
}

// pausable elements may ask to be unlaid out when the page pauses.
type pausable interface {
	UnlayoutOnPause() bool
}

// Host mounts elements on a page and drives their lifecycle.
type Host struct {
	registry *Registry
	deps     Deps
	logger   *slog.Logger

	mu       sync.Mutex
	elements []Element
}

// NewHost creates a host that builds elements from registry.
func NewHost(registry *Registry, deps Deps) *Host {
	return &Host{
		registry: registry,
		deps:     deps,
		logger:   deps.logger(),
	}
}

// Mount creates and builds an element. A build failure halts that
// element only: it is not mounted and the error is returned.
func (h *Host) Mount(name string, attrs Attributes) (Element, error) {
	el, err := h.registry.Create(name, h.deps, attrs)
	if err != nil {
		return nil, err
	}

	if err := el.Build(); err != nil {
		h.logger.Error("element build failed", slog.String("element", name), slog.String("error", err.Error()))
		return nil, err
	}

	h.mu.Lock()
	h.elements = append(h.elements, el)
	h.mu.Unlock()

	return el, nil
}

// Elements returns the mounted elements in mount order.
func (h *Host) Elements() []Element {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Element(nil), h.elements...)
}

// Preconnect lets every mounted element warm its connections.
func (h *Host) Preconnect(ctx context.Context) {
	for _, el := range h.Elements() {
		el.Preconnect(ctx, false)
	}
}

// Layout lays out every element willing to render viewportsAway
// viewports from view. Failures are logged per element and joined.
func (h *Host) Layout(ctx context.Context, viewportsAway float64) error {
	var errs []error

	for _, el := range h.Elements() {
		if viewportsAway > renderDistance(el) {
			continue
		}

		if el.Phase() == LaidOut {
			continue
		}

		el.Preconnect(ctx, true)

		if err := el.Layout(ctx); err != nil {
			h.logger.Error("element layout failed", slog.String("element", el.Name()), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", el.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// LayoutAll lays out every element as if in view.
func (h *Host) LayoutAll(ctx context.Context) error {
	return h.Layout(ctx, 0)
}

// Pause unlays out elements that ask for it.
func (h *Host) Pause() {
	for _, el := range h.Elements() {
		if p, ok := el.(pausable); ok && p.UnlayoutOnPause() {
			el.Unlayout()
		}
	}
}

// Resume lays out again what Pause took down.
func (h *Host) Resume(ctx context.Context) error {
	var errs []error

	for _, el := range h.Elements() {
		if el.Phase() != UnlaidOut {
			continue
		}

		if err := el.Layout(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", el.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// Unlayout unlays out every element.
func (h *Host) Unlayout() {
	for _, el := range h.Elements() {
		el.Unlayout()
	}
}

// Wait blocks until every element's background tasks finish.
func (h *Host) Wait() {
	for _, el := range h.Elements() {
		el.Wait()
	}
}

// Render writes every element, one per line.
func (h *Host) Render(w io.Writer) error {
	for _, el := range h.Elements() {
		if err := el.Render(w); err != nil {
			return fmt.Errorf("rendering %s: %w", el.Name(), err)
		}

		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}

	return nil
}

func renderDistance(el Element) float64 {
	if v, ok := el.(viewportAware); ok {
		return v.RenderOutsideViewport()
	}

	return defaultViewportDistance
}
