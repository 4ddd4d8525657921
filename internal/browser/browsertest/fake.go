// Package browsertest provides an in-memory browser.Browser for tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"schoolcal/internal/browser"
)

// Browser serves fixed markup. Pages is consumed one entry per HTML call so
// tests can simulate a list that is still rendering; the last page repeats.
type Browser struct {
	Pages []string

	// OpenErr is returned from Open when set.
	OpenErr error
	// Ready reports whether the marker is present. If nil, the marker is
	// considered present when the current page contains it as a class name.
	Ready func(selector string) bool

	mu       sync.Mutex
	opened   int
	sessions []*Session
}

// Open implements browser.Browser.
func (b *Browser) Open(_ context.Context, url string) (browser.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened++
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	s := &Session{browser: b, URL: url}
	b.sessions = append(b.sessions, s)
	return s, nil
}

// Opened returns how many times Open was called.
func (b *Browser) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Live returns the number of sessions opened but not yet closed.
func (b *Browser) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.sessions {
		if !s.closed {
			n++
		}
	}
	return n
}

// Session is the fake page handed out by Browser.
type Session struct {
	browser *Browser
	URL     string

	reads  int
	closed bool
}

func (s *Session) current() string {
	pages := s.browser.Pages
	if len(pages) == 0 {
		return ""
	}
	if s.reads < len(pages) {
		return pages[s.reads]
	}
	return pages[len(pages)-1]
}

// WaitFor implements browser.Session.
func (s *Session) WaitFor(_ context.Context, selector string, timeout time.Duration) error {
	s.browser.mu.Lock()
	defer s.browser.mu.Unlock()

	ready := s.browser.Ready
	if ready == nil {
		page := s.current()
		ready = func(sel string) bool {
			return strings.Contains(page, strings.TrimPrefix(sel, "."))
		}
	}
	if !ready(selector) {
		return fmt.Errorf("%w: %q not found after %s", browser.ErrTimeout, selector, timeout)
	}
	return nil
}

// HTML implements browser.Session.
func (s *Session) HTML(_ context.Context) (string, error) {
	s.browser.mu.Lock()
	defer s.browser.mu.Unlock()
	page := s.current()
	s.reads++
	return page, nil
}

// Close implements browser.Session.
func (s *Session) Close() error {
	s.browser.mu.Lock()
	defer s.browser.mu.Unlock()
	s.closed = true
	return nil
}
