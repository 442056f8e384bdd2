// Package widget implements the embeddable elements: a like button and a
// comment stream backed by the Graph API, and a Google Doc embed. A Host
// drives each element through build, layout and unlayout the way a
// component runtime would; the elements only react.
package widget

import (
	"context"
	"io"
	"sync"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
)

// Phase is an element's position in the host lifecycle.
type Phase int

const (
	Unbuilt Phase = iota
	Built
	LaidOut
	UnlaidOut
)

func (p Phase) String() string {
	switch p {
	case Built:
		return "built"
	case LaidOut:
		return "laid-out"
	case UnlaidOut:
		return "unlaid-out"
	default:
		return "unbuilt"
	}
}

// Element is what the host drives. Every handler is idempotent: calling
// it again in the phase it leads to does nothing.
type Element interface {
	Name() string
	Phase() Phase
	Build() error
	// Preconnect warms connections the element is about to need.
	Preconnect(ctx context.Context, onLayout bool)
	Layout(ctx context.Context) error
	// Unlayout releases layout resources. It reports whether the
	// element needs a fresh layout to be shown again.
	Unlayout() bool
	Render(w io.Writer) error
	// Wait blocks until the element's background tasks finish.
	Wait()
}

// lifecycle tracks the phase and gates the handlers.
type lifecycle struct {
	mu    sync.Mutex
	phase Phase
}

func (l *lifecycle) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.phase
}

// build runs fn once. A failed build leaves the element unbuilt.
func (l *lifecycle) build(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.phase != Unbuilt {
		return nil
	}

	if err := fn(); err != nil {
		return err
	}

	l.phase = Built

	return nil
}

// layout runs fn from Built or UnlaidOut. fn runs outside the lock so it
// may read the phase.
func (l *lifecycle) layout(fn func() error) error {
	l.mu.Lock()
	switch l.phase {
	case Unbuilt:
		l.mu.Unlock()
		return apperrors.ErrNotBuilt
	case LaidOut:
		l.mu.Unlock()
		return nil
	}
	l.phase = LaidOut
	l.mu.Unlock()

	return fn()
}

// unlayout runs fn only when laid out.
func (l *lifecycle) unlayout(fn func() bool) bool {
	l.mu.Lock()
	if l.phase != LaidOut {
		l.mu.Unlock()
		return false
	}
	l.phase = UnlaidOut
	l.mu.Unlock()

	return fn()
}

// requireLaidOut guards user interaction: handlers are attached during
// layout.
func (l *lifecycle) requireLaidOut() error {
	if l.Phase() != LaidOut {
		return apperrors.ErrInvalidTransition
	}

	return nil
}

func (l *lifecycle) isBuilt() bool {
	return l.Phase() != Unbuilt
}
