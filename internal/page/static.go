// Package page provides the documents widgets are hosted in: a Static
// page for headless use and a Loopback page that serves the redirect
// target on 127.0.0.1 and drives the system browser.
package page

import (
	"context"
	"net/url"
	"sync"
)

// Static is a page that never leaves the process. Navigate records the
// target instead of loading it; Load simulates the browser arriving at a
// new URL.
type Static struct {
	mu        sync.Mutex
	current   *url.URL
	navigated *url.URL
}

// NewStatic returns a page showing u.
func NewStatic(u *url.URL) *Static {
	return &Static{current: cloneURL(u)}
}

func (s *Static) URL() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneURL(s.current)
}

// Navigate records target as the pending navigation. Only the last
// navigation is kept.
func (s *Static) Navigate(_ context.Context, target *url.URL) error {
	s.mu.Lock()
	s.navigated = cloneURL(target)
	s.mu.Unlock()

	return nil
}

func (s *Static) ReplaceURL(u *url.URL) error {
	s.mu.Lock()
	s.current = cloneURL(u)
	s.mu.Unlock()

	return nil
}

// Navigated returns the pending navigation target, if any.
func (s *Static) Navigated() (*url.URL, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.navigated == nil {
		return nil, false
	}

	return cloneURL(s.navigated), true
}

// Load replaces the page with u and clears any pending navigation.
func (s *Static) Load(u *url.URL) {
	s.mu.Lock()
	s.current = cloneURL(u)
	s.navigated = nil
	s.mu.Unlock()
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}

	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}

	return &c
}
