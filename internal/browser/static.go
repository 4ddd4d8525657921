package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	appLog "schoolcal/internal/log"
)

const (
	DefaultUserAgent     = "schoolcal/1.0"
	DefaultStaticTimeout = 15 * time.Second
)

// Static loads the raw document without executing JavaScript. It accepts
// http(s) URLs and file:// URLs (or bare filesystem paths).
type Static struct {
	client    *http.Client
	userAgent string
}

// NewStatic creates a Static engine with a bounded HTTP client.
func NewStatic() *Static {
	return &Static{
		client: &http.Client{
			Timeout: DefaultStaticTimeout,
		},
		userAgent: DefaultUserAgent,
	}
}

// Open fetches the document once. Every failure to obtain a body is
// reported as ErrStartup: without a body there is no page to wait on.
func (s *Static) Open(ctx context.Context, rawURL string) (Session, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: source URL is empty", ErrStartup)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	var body []byte
	switch u.Scheme {
	case "http", "https":
		body, err = s.get(ctx, rawURL)
	case "file":
		body, err = os.ReadFile(u.Path)
	case "":
		body, err = os.ReadFile(rawURL)
	default:
		err = fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	appLog.Debug("static page loaded", "url", RedactURL(rawURL), "bytes", len(body))
	return &staticSession{html: string(body)}, nil
}

func (s *Static) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	return io.ReadAll(resp.Body)
}

type staticSession struct {
	html   string
	closed bool
}

// WaitFor checks the selector once; a static document never changes, so
// waiting longer could not make the marker appear.
func (s *staticSession) WaitFor(_ context.Context, selector string, timeout time.Duration) error {
	if s.closed {
		return errors.New("browser: session closed")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return fmt.Errorf("browser: parse page: %w", err)
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %q not found after %s", ErrTimeout, selector, timeout)
	}
	return nil
}

func (s *staticSession) HTML(_ context.Context) (string, error) {
	if s.closed {
		return "", errors.New("browser: session closed")
	}
	return s.html, nil
}

func (s *staticSession) Close() error {
	s.closed = true
	return nil
}

// RedactURL hides the path and query of a URL for logging purposes.
//
//	https://example.com/calendar/?calid=2 -> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "file://...(redacted)"
	}
	i += 3

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	return u[:j] + redactedSuffix
}
