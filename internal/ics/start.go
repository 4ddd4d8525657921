package ics

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Date layouts seen on UK school calendar pages. Day-first numeric forms
// come before anything a generic parser would read month-first.
var dateLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"Monday 2 January 2006",
	"Mon 2 January 2006",
	"Monday 2 Jan 2006",
	"Mon 2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2.1.2006",
	"2006-01-02",
}

var timeLayouts = []string{
	"15:04",
	"15.04",
	"3:04PM",
	"3:04 PM",
	"3.04PM",
	"3PM",
	"3 PM",
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	timeRangeSep  = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)
)

var errUnparseable = errors.New("unparseable start")

// dayFirst keeps the generic fallback consistent with the layouts above.
var dayFirst = dateparse.PreferMonthFirst(false)

// dateParts separates the components of a date string.
var dateParts = regexp.MustCompile(`[\s./-]+`)

// ParseStart turns the site's date and time text into a start instant in
// loc. If the combined text cannot be parsed but the date alone can (time
// text such as "All Day"), allDay is true and start is midnight of that
// date.
func ParseStart(date, clock string, loc *time.Location) (start time.Time, allDay bool, err error) {
	if loc == nil {
		loc = time.Local
	}

	d := normalizeDate(date)
	c := normalizeClock(clock)

	// Without a digit the time text is a label ("All Day", "TBC").
	if strings.ContainsAny(c, "0123456789") {
		combined := d + " " + c
		for _, dl := range dateLayouts {
			for _, tl := range timeLayouts {
				if t, err := time.ParseInLocation(dl+" "+tl, combined, loc); err == nil {
					return t, false, nil
				}
			}
		}
		if t, err := dateparse.ParseIn(combined, loc, dayFirst); err == nil {
			return t, false, nil
		}
	}

	for _, dl := range dateLayouts {
		if t, err := time.ParseInLocation(dl, d, loc); err == nil {
			return t, true, nil
		}
	}
	// A lone number ("2025") is not a date.
	if len(dateParts.Split(strings.Trim(d, " ./-"), -1)) < 2 {
		return time.Time{}, false, fmt.Errorf("%w: %q", errUnparseable, date+" "+clock)
	}
	if t, err := dateparse.ParseIn(d, loc, dayFirst); err == nil {
		y, m, day := t.Date()
		return time.Date(y, m, day, 0, 0, 0, 0, loc), true, nil
	}

	return time.Time{}, false, fmt.Errorf("%w: %q", errUnparseable, date+" "+clock)
}

// normalizeDate drops ordinal suffixes and punctuation so "Thursday, 12th
// June 2025" matches "Monday 2 January 2006".
func normalizeDate(s string) string {
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ",", " ")
	return strings.Join(strings.Fields(s), " ")
}

// normalizeClock keeps the start of a range ("9:00am - 10:30am") and
// upper-cases am/pm markers for the PM layouts.
func normalizeClock(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if loc := timeRangeSep.FindStringIndex(s); loc != nil && loc[0] > 0 {
		s = s[:loc[0]]
	}
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
