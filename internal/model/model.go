package model

// Record is one event as scraped from the school calendar page.
// Date and Time are kept in the site's own text format; parsing happens
// only when the record is turned into a VEVENT.
//
// Title, Date and Time are always non-empty for a record returned by the
// extractor. Location may be empty.
type Record struct {
	Title    string
	Date     string
	Time     string
	Location string
}

// Start returns the combined "date time" text used to derive DTSTART.
func (r Record) Start() string {
	return r.Date + " " + r.Time
}

// Skip describes an item that was dropped instead of failing the run.
type Skip struct {
	// Index is the zero-based position of the item in its input sequence
	// (document order for containers, slice order for records).
	Index int
	// Reason is a short machine-friendly description, e.g. "missing date".
	Reason string
}
