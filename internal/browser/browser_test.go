package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

const samplePage = `<html><body>
<div class="event-item"><span class="event-title">Sports Day</span></div>
</body></html>`

func TestStatic_OpenHTTP(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		marker      string
		wantOpenErr error
		wantWaitErr error
	}{
		{
			name:       "marker present",
			statusCode: http.StatusOK,
			marker:     ".event-item",
		},
		{
			name:        "marker absent",
			statusCode:  http.StatusOK,
			marker:      ".calendar-ready",
			wantWaitErr: ErrTimeout,
		},
		{
			name:        "HTTP error",
			statusCode:  http.StatusNotFound,
			marker:      ".event-item",
			wantOpenErr: ErrStartup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "schoolcal") {
					t.Errorf("User-Agent = %q, should contain 'schoolcal'", ua)
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(samplePage))
			}))
			defer server.Close()

			ctx := context.Background()
			sess, err := NewStatic().Open(ctx, server.URL)
			if tt.wantOpenErr != nil {
				if !errors.Is(err, tt.wantOpenErr) {
					t.Fatalf("Open() error = %v, want %v", err, tt.wantOpenErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer sess.Close()

			err = sess.WaitFor(ctx, tt.marker, time.Second)
			if tt.wantWaitErr != nil {
				if !errors.Is(err, tt.wantWaitErr) {
					t.Fatalf("WaitFor() error = %v, want %v", err, tt.wantWaitErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("WaitFor() error = %v", err)
			}

			html, err := sess.HTML(ctx)
			if err != nil {
				t.Fatalf("HTML() error = %v", err)
			}
			if !strings.Contains(html, "Sports Day") {
				t.Errorf("HTML() = %q, want page body", html)
			}
		})
	}
}

func TestStatic_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.html")
	if err := os.WriteFile(path, []byte(samplePage), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	for _, src := range []string{path, "file://" + path} {
		t.Run(src, func(t *testing.T) {
			sess, err := NewStatic().Open(context.Background(), src)
			if err != nil {
				t.Fatalf("Open(%q) error = %v", src, err)
			}
			if err := sess.WaitFor(context.Background(), ".event-title", time.Second); err != nil {
				t.Errorf("WaitFor() error = %v", err)
			}
		})
	}
}

func TestStatic_ClosedSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.html")
	if err := os.WriteFile(path, []byte(samplePage), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	sess, err := NewStatic().Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := sess.HTML(context.Background()); err == nil {
		t.Error("HTML() on closed session should fail")
	}
}

func TestStatic_UnsupportedScheme(t *testing.T) {
	_, err := NewStatic().Open(context.Background(), "ftp://example.com/calendar")
	if !errors.Is(err, ErrStartup) {
		t.Errorf("Open() error = %v, want ErrStartup", err)
	}
}

func TestChromium_MissingExecutable(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"missing file", filepath.Join(t.TempDir(), "no-such-chromium")},
		{"directory", t.TempDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChromium(tt.path).Open(context.Background(), "about:blank")
			if !errors.Is(err, ErrStartup) {
				t.Errorf("Open() error = %v, want ErrStartup", err)
			}
		})
	}
}

func findChromium() string {
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func TestChromium_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
	execPath := findChromium()
	if execPath == "" {
		t.Skip("no Chrome/Chromium binary on PATH")
	}

	// The event list only exists after the script runs.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div id="list"></div><script>
setTimeout(function () {
  document.getElementById("list").innerHTML =
    '<div class="event-item"><span class="event-title">Sports Day</span></div>';
}, 100);
</script></body></html>`))
	}))
	defer server.Close()

	ctx := context.Background()
	sess, err := NewChromium(execPath).Open(ctx, server.URL)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sess.Close()

	if err := sess.WaitFor(ctx, ".event-item", 10*time.Second); err != nil {
		t.Fatalf("WaitFor() error = %v", err)
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if !strings.Contains(html, "Sports Day") {
		t.Errorf("rendered markup missing event, got %q", html)
	}

	if err := sess.WaitFor(ctx, ".never-rendered", 200*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitFor(absent) error = %v, want ErrTimeout", err)
	}

	// After a timeout, Close must still take the browser process down.
	cs := sess.(*chromiumSession)
	c := chromedp.FromContext(cs.ctx)
	if c == nil || c.Browser == nil || c.Browser.Process() == nil {
		t.Fatal("no browser process attached to the session")
	}
	proc := c.Browser.Process()

	if err := sess.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case <-cs.ctx.Done():
	default:
		t.Error("session context still live after Close")
	}
	if err := proc.Signal(syscall.Signal(0)); !errors.Is(err, os.ErrProcessDone) {
		t.Errorf("browser process still running after Close (signal err = %v)", err)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.org/calendar/?calid=2", "https://www.example.org/...(redacted)"},
		{"http://host", "http://host/...(redacted)"},
		{"/tmp/page.html", "file://...(redacted)"},
	}

	for _, tt := range tests {
		if got := RedactURL(tt.in); got != tt.want {
			t.Errorf("RedactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
