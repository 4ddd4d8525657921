package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	appLog "schoolcal/internal/log"
)

// DefaultNavigateTimeout bounds browser start plus the initial page load.
const DefaultNavigateTimeout = 30 * time.Second

// Chromium opens pages in a headless Chrome/Chromium process via chromedp.
type Chromium struct {
	// ExecPath is the browser executable, e.g. "/usr/bin/chromium".
	ExecPath string

	// NavigateTimeout bounds start + navigation. If zero,
	// DefaultNavigateTimeout is used.
	NavigateTimeout time.Duration
}

// NewChromium returns a Chromium engine bound to the given executable.
func NewChromium(execPath string) *Chromium {
	return &Chromium{ExecPath: execPath}
}

// Open launches a new browser process and navigates to url.
//
// The browser always runs headless with GPU acceleration disabled; both are
// environment-compatibility settings for servers and containers. Any
// failure to start the process is reported as ErrStartup and leaves no
// process behind.
func (c *Chromium) Open(parentCtx context.Context, url string) (Session, error) {
	if c.ExecPath == "" {
		return nil, fmt.Errorf("%w: browser executable path is empty", ErrStartup)
	}
	info, err := os.Stat(c.ExecPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return nil, fmt.Errorf("%w: %s is not an executable file", ErrStartup, c.ExecPath)
	}

	navTimeout := c.NavigateTimeout
	if navTimeout <= 0 {
		navTimeout = DefaultNavigateTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(c.ExecPath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	// Chromium refuses to start as root with the sandbox enabled (containers).
	if os.Geteuid() == 0 {
		opts = append(opts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromiumSession{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	// An empty Run starts the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}
	appLog.Debug("chromium started", "exec", c.ExecPath)

	navCtx, navCancel := context.WithTimeout(tabCtx, navTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: navigate: %w", ErrStartup, err)
	}

	return s, nil
}

type chromiumSession struct {
	ctx    context.Context
	cancel func()

	closeOnce sync.Once
	closeErr  error
}

func (s *chromiumSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	// Propagate caller cancellation (e.g. SIGINT) into the tab context.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %q not found after %s", ErrTimeout, selector, timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("browser: wait for %q: %w", selector, err)
	}
}

func (s *chromiumSession) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: read page markup: %w", err)
	}
	return html, nil
}

// Close asks the browser to shut down gracefully, then cancels the
// allocator which kills the process if it is still running.
func (s *chromiumSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("browser: close: %w", err)
		}
		s.cancel()
		appLog.Debug("chromium stopped")
	})
	return s.closeErr
}
