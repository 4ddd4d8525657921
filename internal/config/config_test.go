package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schoolcal.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}

	if cfg.URL != DefaultURL {
		t.Errorf("URL = %q, want %q", cfg.URL, DefaultURL)
	}
	if cfg.OutputPath != DefaultOutputPath {
		t.Errorf("OutputPath = %q, want %q", cfg.OutputPath, DefaultOutputPath)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Errorf("Timeout() = %v, want 10s", cfg.Timeout())
	}
	if cfg.Selectors != DefaultSelectors() {
		t.Errorf("Selectors = %+v, want defaults", cfg.Selectors)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Load() should not create %s", path)
	}
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := writeFile(t, `
url: https://school.example/calendar
timeout_seconds: 0
engine: STATIC
selectors:
  container: .cal-entry
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}

	if cfg.URL != "https://school.example/calendar" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Errorf("TimeoutSeconds = %d, want %d", cfg.TimeoutSeconds, DefaultTimeoutSeconds)
	}
	if cfg.Engine != EngineStatic {
		t.Errorf("Engine = %q, want %q", cfg.Engine, EngineStatic)
	}
	if cfg.Selectors.Container != ".cal-entry" {
		t.Errorf("Selectors.Container = %q", cfg.Selectors.Container)
	}
	if cfg.Selectors.Title != ".event-title" {
		t.Errorf("Selectors.Title = %q, want default", cfg.Selectors.Title)
	}
	if cfg.OutputPath != DefaultOutputPath {
		t.Errorf("OutputPath = %q, want default", cfg.OutputPath)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "url: [unterminated")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestNormalize_MarkerFollowsContainer(t *testing.T) {
	cfg := &Config{Selectors: SelectorConfig{Container: ".row"}}
	cfg.Normalize()

	if cfg.Selectors.Marker != ".row" {
		t.Errorf("Marker = %q, want %q", cfg.Selectors.Marker, ".row")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"static engine", func(c *Config) { c.Engine = EngineStatic }, false},
		{"unknown engine", func(c *Config) { c.Engine = "firefox" }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
