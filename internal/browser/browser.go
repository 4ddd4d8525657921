// Package browser loads a page and hands back its rendered markup.
//
// The Browser/Session pair is the only thing the scraper knows about page
// loading. Chromium drives a real headless browser through chromedp; Static
// fetches the raw document without running JavaScript and doubles as a
// fixture engine in tests.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStartup means the engine could not be started or the page could
	// not be opened (missing browser binary, crashed process, unreachable URL).
	ErrStartup = errors.New("browser: startup failed")

	// ErrTimeout means the marker element did not appear in time.
	ErrTimeout = errors.New("browser: timed out waiting for marker")
)

// Browser opens a page in a fresh session.
type Browser interface {
	// Open starts the engine and navigates to url. The returned Session
	// owns every resource started by Open and must be closed by the caller.
	Open(ctx context.Context, url string) (Session, error)
}

// Session is one loaded page.
type Session interface {
	// WaitFor blocks until an element matching the CSS selector exists or
	// timeout elapses (ErrTimeout).
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// HTML returns the current, fully rendered markup of the page.
	HTML(ctx context.Context) (string, error)

	// Close terminates the session. It is safe to call more than once.
	Close() error
}
