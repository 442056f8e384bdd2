package widget

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
)

// Factory creates an unbuilt element.
type Factory func(deps Deps, attrs Attributes) Element

// Registry maps element names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the like button, the
// comment stream and the Google Doc embed.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Names are distinct, so registration cannot fail.
	_ = r.Register(LikeElementName, func(d Deps, a Attributes) Element { return NewLike(d, a) })
	_ = r.Register(CommentsElementName, func(d Deps, a Attributes) Element { return NewComments(d, a) })
	_ = r.Register(GoogleDocElementName, func(d Deps, a Attributes) Element { return NewGoogleDoc(d, a) })

	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateElement, name)
	}

	r.factories[name] = f

	return nil
}

// Create instantiates the element registered under name.
func (r *Registry) Create(name string, deps Deps, attrs Attributes) (Element, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownElement, name)
	}

	return f(deps, attrs), nil
}

// Names lists registered element names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
