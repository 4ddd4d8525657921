package scrape

import (
	"context"
	"errors"
	"time"

	"schoolcal/internal/browser"
	appLog "schoolcal/internal/log"
)

const DefaultTimeout = 10 * time.Second

// FetchOptions controls how long the fetcher waits for the page.
type FetchOptions struct {
	// Timeout bounds the wait for Selectors.Marker. If zero,
	// DefaultTimeout is used.
	Timeout time.Duration

	// SettlePolls, when > 0, re-reads the page after the marker appears
	// until two consecutive reads contain the same number of containers,
	// at most SettlePolls reads. The marker alone does not guarantee every
	// event has been rendered; this narrows that window, it does not close it.
	SettlePolls    int
	SettleInterval time.Duration
}

// Fetcher returns the rendered markup of a page through a browser.Browser.
type Fetcher struct {
	browser   browser.Browser
	selectors Selectors
	opts      FetchOptions
}

// NewFetcher creates a Fetcher.
func NewFetcher(b browser.Browser, sel Selectors, opts FetchOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SettleInterval <= 0 {
		opts.SettleInterval = 500 * time.Millisecond
	}
	return &Fetcher{browser: b, selectors: sel, opts: opts}
}

// Fetch opens url, waits for the marker element and returns the page
// markup. The browser session is closed before Fetch returns on every path.
//
// Errors wrap browser.ErrStartup or browser.ErrTimeout where applicable.
func (f *Fetcher) Fetch(ctx context.Context, url string) (html string, err error) {
	appLog.Info("fetch start", "url", browser.RedactURL(url), "marker", f.selectors.Marker, "timeout", f.opts.Timeout)

	sess, err := f.browser.Open(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			appLog.Error("closing browser session failed", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	if err := sess.WaitFor(ctx, f.selectors.Marker, f.opts.Timeout); err != nil {
		return "", err
	}
	appLog.Debug("fetch marker ready", "marker", f.selectors.Marker)

	if f.opts.SettlePolls > 0 {
		html, err = f.settle(ctx, sess)
	} else {
		html, err = sess.HTML(ctx)
	}
	if err != nil {
		return "", err
	}

	appLog.Info("fetch completed", "bytes", len(html))
	return html, nil
}

// settle polls the page until the container count stops changing.
func (f *Fetcher) settle(ctx context.Context, sess browser.Session) (string, error) {
	html, err := sess.HTML(ctx)
	if err != nil {
		return "", err
	}
	prev, err := CountContainers(html, f.selectors)
	if err != nil {
		return "", err
	}

	for poll := 1; poll < f.opts.SettlePolls; poll++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.opts.SettleInterval):
		}

		next, err := sess.HTML(ctx)
		if err != nil {
			return "", err
		}
		n, err := CountContainers(next, f.selectors)
		if err != nil {
			return "", err
		}
		html = next
		if n == prev {
			appLog.Debug("fetch settled", "containers", n, "polls", poll+1)
			return html, nil
		}
		prev = n
	}

	if f.opts.SettlePolls > 1 {
		appLog.Warn("fetch did not settle; using last read", "containers", prev, "polls", f.opts.SettlePolls)
	}
	return html, nil
}

// IsStartup reports whether err means the browser engine could not start.
func IsStartup(err error) bool { return errors.Is(err, browser.ErrStartup) }

// IsTimeout reports whether err means the marker never appeared.
func IsTimeout(err error) bool { return errors.Is(err, browser.ErrTimeout) }

// Describe names the failure kind for log lines.
func Describe(err error) string {
	switch {
	case IsStartup(err):
		return "startup"
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
