package ics

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
)

const DefaultProductID = "-//schoolcal//School Calendar Export//EN"

// ErrWrite wraps every failure to create or write the output file.
var ErrWrite = errors.New("ics: write failed")

// Writer turns scraped records into an iCalendar document.
type Writer struct {
	// Source identifies the page the records came from. It namespaces the
	// generated UIDs so two different calendars never collide.
	Source string

	ProductID    string
	CalendarName string

	// Location is the zone the site's date/time text is in. Timed events
	// are written in UTC after conversion from this zone.
	Location *time.Location

	// Duration, if > 0, adds DTEND to timed events.
	Duration time.Duration

	// Now supplies DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

// Result summarizes a written calendar.
type Result struct {
	Path    string
	Written int
	Skips   []model.Skip
}

// Build maps records to VEVENTs. Records whose start cannot be parsed are
// left out and reported as skips (Index = position in records).
func (w *Writer) Build(records []model.Record) (*ical.Calendar, []model.Skip) {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}
	stamp := now()

	cal := ical.NewCalendar()
	productID := w.ProductID
	if productID == "" {
		productID = DefaultProductID
	}
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	if w.CalendarName != "" {
		cal.SetXWRCalName(w.CalendarName)
	}
	if loc != time.Local {
		cal.SetXWRTimezone(loc.String())
	}

	ns := uuid.NewSHA1(uuid.NameSpaceURL, []byte(w.Source))
	seen := make(map[model.Record]int)
	skips := make([]model.Skip, 0)

	for i, rec := range records {
		start, allDay, err := ParseStart(rec.Date, rec.Time, loc)
		if err != nil {
			appLog.Warn("skipping event with unparseable start", "index", i, "title", rec.Title, "start", rec.Start())
			skips = append(skips, model.Skip{Index: i, Reason: errUnparseable.Error()})
			continue
		}

		// Identical records are legitimate (e.g. a listing repeated for two
		// year groups); the ordinal keeps their UIDs apart.
		n := seen[rec]
		seen[rec] = n + 1

		ev := cal.AddEvent(eventUID(ns, rec, n))
		ev.SetDtStampTime(stamp)
		ev.SetSummary(oneLine(rec.Title))
		if allDay {
			ev.SetAllDayStartAt(start)
		} else {
			ev.SetStartAt(start)
			if w.Duration > 0 {
				ev.SetEndAt(start.Add(w.Duration))
			}
		}
		ev.SetLocation(oneLine(rec.Location))
	}

	return cal, skips
}

// WriteFile builds the calendar and writes it to path, truncating any
// existing file. Write errors wrap ErrWrite.
func (w *Writer) WriteFile(path string, records []model.Record) (Result, error) {
	cal, skips := w.Build(records)
	res := Result{Path: path, Written: len(cal.Events()), Skips: skips}
	return res, Write(path, cal)
}

// Write serializes cal to path with CRLF line endings, truncating any
// existing file. Errors wrap ErrWrite.
func Write(path string, cal *ical.Calendar) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrWrite, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := cal.SerializeTo(bw, ical.WithNewLineWindows); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	appLog.Info("ics written", "path", path, "events", len(cal.Events()))
	return nil
}

// eventUID derives a stable UID from the record content so that re-running
// against an unchanged page reproduces the same file.
func eventUID(ns uuid.UUID, rec model.Record, ordinal int) string {
	name := strings.Join([]string{rec.Title, rec.Date, rec.Time, rec.Location, strconv.Itoa(ordinal)}, "\x1f")
	return uuid.NewSHA1(ns, []byte(name)).String() + "@schoolcal"
}

// oneLine collapses markup whitespace (indentation, line breaks, &nbsp;)
// into single spaces for SUMMARY and LOCATION.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
