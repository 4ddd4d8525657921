package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine names accepted in the `engine` key.
const (
	EngineChromium = "chromium"
	EngineStatic   = "static"
)

const (
	DefaultURL            = "https://www.queenemmaschool.org.uk/calendar/?calid=2&pid=16&viewid=2"
	DefaultOutputPath     = "calendar_events.ics"
	DefaultTimeoutSeconds = 10
	DefaultDriverPath     = "/usr/bin/chromium"
	DefaultTimezone       = "Europe/London"
	DefaultSettleInterval = 500
)

// SelectorConfig maps each extracted field to a CSS selector.
type SelectorConfig struct {
	// Container matches one node per event; the other selectors are
	// evaluated inside it.
	Container string `yaml:"container" json:"container"`
	Title     string `yaml:"title" json:"title"`
	Date      string `yaml:"date" json:"date"`
	Time      string `yaml:"time" json:"time"`
	Location  string `yaml:"location" json:"location"`

	// Marker is the element whose presence means client-side rendering of
	// the event list has finished.
	Marker string `yaml:"marker" json:"marker"`
}

// Config is the top-level application configuration.
type Config struct {
	// URL is the calendar page to scrape.
	URL string `yaml:"url" json:"url"`

	// OutputPath is the .ics file written on success. It is overwritten.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// TimeoutSeconds bounds the wait for the marker element.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`

	// DriverPath is the local Chrome/Chromium executable used by the
	// chromium engine.
	DriverPath string `yaml:"driver_path" json:"driver_path"`

	// Engine selects how the page is loaded:
	//   - "chromium" (default): headless browser, JavaScript executed
	//   - "static": plain HTTP GET / file read, no JavaScript
	Engine string `yaml:"engine" json:"engine"`

	// Timezone is the IANA zone the site's local date/time text is in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// CalendarName is written as X-WR-CALNAME if set.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// EventDurationMinutes adds DTEND = DTSTART + duration to timed events.
	// Zero leaves DTEND out.
	EventDurationMinutes int `yaml:"event_duration_minutes" json:"event_duration_minutes"`

	// SettlePolls enables waiting for the number of event containers to
	// stop changing after the marker appears. Zero disables it.
	SettlePolls      int `yaml:"settle_polls" json:"settle_polls"`
	SettleIntervalMs int `yaml:"settle_interval_ms" json:"settle_interval_ms"`

	// Verify re-reads the written file and checks the event count.
	Verify bool `yaml:"verify" json:"verify"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Selectors SelectorConfig `yaml:"selectors" json:"selectors"`
}

// DefaultSelectors returns the selectors used by the school's calendar page.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Container: ".event-item",
		Title:     ".event-title",
		Date:      ".event-date",
		Time:      ".event-time",
		Location:  ".event-location",
		Marker:    ".event-item",
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		URL:              DefaultURL,
		OutputPath:       DefaultOutputPath,
		TimeoutSeconds:   DefaultTimeoutSeconds,
		DriverPath:       DefaultDriverPath,
		Engine:           EngineChromium,
		Timezone:         DefaultTimezone,
		SettleIntervalMs: DefaultSettleInterval,
		LogLevel:         "info",
		Selectors:        DefaultSelectors(),
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled config files still behave correctly.
func (c *Config) Normalize() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.DriverPath == "" {
		c.DriverPath = DefaultDriverPath
	}
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	if c.Engine == "" {
		c.Engine = EngineChromium
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.EventDurationMinutes < 0 {
		c.EventDurationMinutes = 0
	}
	if c.SettlePolls < 0 {
		c.SettlePolls = 0
	}
	if c.SettleIntervalMs <= 0 {
		c.SettleIntervalMs = DefaultSettleInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	def := DefaultSelectors()
	if c.Selectors.Container == "" {
		c.Selectors.Container = def.Container
	}
	if c.Selectors.Title == "" {
		c.Selectors.Title = def.Title
	}
	if c.Selectors.Date == "" {
		c.Selectors.Date = def.Date
	}
	if c.Selectors.Time == "" {
		c.Selectors.Time = def.Time
	}
	if c.Selectors.Location == "" {
		c.Selectors.Location = def.Location
	}
	if c.Selectors.Marker == "" {
		// The container itself is a good marker: it only exists once the
		// list has been rendered.
		c.Selectors.Marker = c.Selectors.Container
	}
}

// Validate reports values that Normalize cannot repair.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineChromium, EngineStatic:
	default:
		return fmt.Errorf("config: unknown engine %q (want %q or %q)", c.Engine, EngineChromium, EngineStatic)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Timeout returns the marker wait bound as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SettleInterval returns the pause between settle polls.
func (c *Config) SettleInterval() time.Duration {
	return time.Duration(c.SettleIntervalMs) * time.Millisecond
}

// Location loads the configured timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - path empty or file missing: defaults are returned, nothing is written
//   - file present: YAML is unmarshalled over the defaults and normalized
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}
