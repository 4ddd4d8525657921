// Package pipeline runs one fetch → extract → write cycle and classifies
// the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolcal/internal/browser"
	"schoolcal/internal/config"
	"schoolcal/internal/ics"
	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
	"schoolcal/internal/scrape"
)

// Outcome classifies a finished run.
type Outcome int

const (
	// Written means the calendar file was written.
	Written Outcome = iota
	// NoEvents means nothing was written: the fetch failed, the page held
	// no complete events, or none had a readable start. The output file is
	// left untouched.
	NoEvents
	// WriteFailed means events were found but the file could not be written.
	WriteFailed
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case NoEvents:
		return "no-events"
	case WriteFailed:
		return "write-failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ErrVerify means the written file did not read back as expected.
var ErrVerify = errors.New("pipeline: verification failed")

// Report describes a finished run.
type Report struct {
	Outcome Outcome

	// FetchErr is the fetch-stage failure that degraded the run to zero
	// events, if any.
	FetchErr error
	// WriteErr is the failure behind WriteFailed.
	WriteErr error

	Records     []model.Record
	ExtractSkip []model.Skip
	WriteSkip   []model.Skip
	Written     int
	OutputPath  string
}

// Pipeline holds the wired components for a run.
type Pipeline struct {
	URL        string
	OutputPath string
	Verify     bool

	Fetcher   *scrape.Fetcher
	Selectors scrape.Selectors
	Writer    *ics.Writer
}

// New wires a Pipeline from configuration. The browser engine is passed in
// so tests can substitute a fixture.
func New(cfg *config.Config, b browser.Browser) *Pipeline {
	sel := SelectorsFromConfig(cfg.Selectors)
	return &Pipeline{
		URL:        cfg.URL,
		OutputPath: cfg.OutputPath,
		Verify:     cfg.Verify,
		Selectors:  sel,
		Fetcher: scrape.NewFetcher(b, sel, scrape.FetchOptions{
			Timeout:        cfg.Timeout(),
			SettlePolls:    cfg.SettlePolls,
			SettleInterval: cfg.SettleInterval(),
		}),
		Writer: &ics.Writer{
			Source:       cfg.URL,
			CalendarName: cfg.CalendarName,
			Location:     cfg.Location(),
			Duration:     time.Duration(cfg.EventDurationMinutes) * time.Minute,
		},
	}
}

// NewBrowser returns the engine selected by cfg.Engine.
func NewBrowser(cfg *config.Config) browser.Browser {
	if cfg.Engine == config.EngineStatic {
		return browser.NewStatic()
	}
	return browser.NewChromium(cfg.DriverPath)
}

// SelectorsFromConfig converts the YAML selector block.
func SelectorsFromConfig(c config.SelectorConfig) scrape.Selectors {
	return scrape.Selectors{
		Container: c.Container,
		Title:     c.Title,
		Date:      c.Date,
		Time:      c.Time,
		Location:  c.Location,
		Marker:    c.Marker,
	}
}

// Run executes the pipeline once. Fetch and extraction failures never
// return an error: they are logged and yield NoEvents. Only a write (or
// verification) failure is reported through Report.WriteErr.
func (p *Pipeline) Run(ctx context.Context) Report {
	rep := Report{OutputPath: p.OutputPath}

	html, err := p.Fetcher.Fetch(ctx, p.URL)
	if err != nil {
		appLog.Error("fetch failed", err, "kind", scrape.Describe(err), "url", browser.RedactURL(p.URL))
		rep.Outcome = NoEvents
		rep.FetchErr = err
		return rep
	}

	records, skips, err := scrape.Extract(html, p.Selectors)
	if err != nil {
		appLog.Error("extract failed", err)
		rep.Outcome = NoEvents
		rep.FetchErr = err
		return rep
	}
	rep.Records = records
	rep.ExtractSkip = skips
	if len(skips) > 0 {
		appLog.Warn("skipped incomplete events", "count", len(skips))
	}

	if len(records) == 0 {
		appLog.Info("no events extracted; output left untouched", "path", p.OutputPath)
		rep.Outcome = NoEvents
		return rep
	}

	cal, writeSkips := p.Writer.Build(records)
	rep.WriteSkip = writeSkips
	written := len(cal.Events())
	if written == 0 {
		appLog.Warn("no event had a readable start; output left untouched", "path", p.OutputPath, "skipped", len(writeSkips))
		rep.Outcome = NoEvents
		return rep
	}

	if err := ics.Write(p.OutputPath, cal); err != nil {
		appLog.Error("write failed", err, "path", p.OutputPath)
		rep.Outcome = WriteFailed
		rep.WriteErr = err
		return rep
	}
	rep.Written = written
	if len(writeSkips) > 0 {
		appLog.Warn("skipped events with unreadable start", "count", len(writeSkips))
	}

	if p.Verify {
		if err := verify(p.OutputPath, written); err != nil {
			appLog.Error("verification failed", err, "path", p.OutputPath)
			rep.Outcome = WriteFailed
			rep.WriteErr = err
			return rep
		}
		appLog.Debug("verification passed", "path", p.OutputPath, "events", written)
	}

	rep.Outcome = Written
	return rep
}

func verify(path string, want int) error {
	events, err := ics.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}
	if len(events) != want {
		return fmt.Errorf("%w: read back %d events, wrote %d", ErrVerify, len(events), want)
	}
	return nil
}
