package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"schoolcal/internal/ics"
)

const page = `<html><body>
<div class="event-item">
  <span class="event-title">Sports Day</span>
  <span class="event-date">12 June 2025</span>
  <span class="event-time">09:00</span>
  <span class="event-location">Main Field</span>
</div>
</body></html>`

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	pagePath := writeTemp(t, dir, "calendar.html", page)
	emptyPath := writeTemp(t, dir, "empty.html", `<html><body><div class="event-item"></div></body></html>`)
	cfgPath := writeTemp(t, dir, "schoolcal.yaml", "engine: static\ncalendar_name: Queen Emma\n")

	tests := []struct {
		name       string
		args       func(out string) []string
		wantCode   int
		wantStdout string
		wantFile   bool
	}{
		{
			name: "written",
			args: func(out string) []string {
				return []string{"--config", cfgPath, "--url", "file://" + pagePath, "--output", out, "--verify", "--log-level", "error"}
			},
			wantCode:   ExitSuccess,
			wantStdout: "Fetched 1 events",
			wantFile:   true,
		},
		{
			name: "no events",
			args: func(out string) []string {
				return []string{"--config", cfgPath, "--url", emptyPath, "--output", out, "--log-level", "error"}
			},
			wantCode:   ExitNoEvents,
			wantStdout: "No events found",
		},
		{
			name: "incomplete event reported",
			args: func(out string) []string {
				return []string{"--config", cfgPath, "--url", emptyPath, "--output", out, "--log-level", "error"}
			},
			wantCode:   ExitNoEvents,
			wantStdout: "Skipped event 0: missing title.",
		},
		{
			name: "fetch failure",
			args: func(out string) []string {
				return []string{"--config", cfgPath, "--url", filepath.Join(dir, "missing.html"), "--output", out, "--log-level", "error"}
			},
			wantCode:   ExitNoEvents,
			wantStdout: "No events found",
		},
		{
			name: "chromium binary missing",
			args: func(out string) []string {
				return []string{"--config", cfgPath, "--engine", "chromium", "--driver-path", filepath.Join(dir, "no-chromium"), "--output", out, "--log-level", "error"}
			},
			wantCode:   ExitNoEvents,
			wantStdout: "No events found",
		},
		{
			name: "write failure",
			args: func(string) []string {
				return []string{"--config", cfgPath, "--url", pagePath, "--output", filepath.Join(dir, "nope", "out.ics"), "--log-level", "error"}
			},
			wantCode:   ExitError,
			wantStdout: "could not save",
		},
		{
			name: "invalid engine",
			args: func(out string) []string {
				return []string{"--config", cfgPath, "--engine", "firefox", "--output", out}
			},
			wantCode: ExitError,
		},
		{
			name: "unexpected argument",
			args: func(out string) []string {
				return []string{"extra"}
			},
			wantCode: ExitError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "calendar_events.ics")
			var stdout, stderr bytes.Buffer

			code := execute(tt.args(out), &stdout, &stderr)

			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stdout=%q stderr=%q)", code, tt.wantCode, stdout.String(), stderr.String())
			}
			if tt.wantStdout != "" && !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want it to contain %q", stdout.String(), tt.wantStdout)
			}

			_, err := os.Stat(out)
			if exists := err == nil; exists != tt.wantFile {
				t.Fatalf("output exists = %v, want %v", exists, tt.wantFile)
			}
			if !tt.wantFile {
				return
			}
			events, err := ics.ReadFile(out)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if len(events) != 1 || events[0].Summary != "Sports Day" {
				t.Errorf("events = %+v", events)
			}
			data, _ := os.ReadFile(out)
			if !strings.Contains(string(data), "X-WR-CALNAME:Queen Emma") {
				t.Error("calendar_name from config file not applied")
			}
		})
	}
}
