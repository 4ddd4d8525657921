package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
)

// Selectors locate the event list on the page. Title, Date, Time and
// Location are evaluated inside each Container match.
type Selectors struct {
	Container string
	Title     string
	Date      string
	Time      string
	Location  string
	Marker    string
}

// Extract parses rendered markup and returns one record per complete event
// container, in document order. Containers without a title, date or time
// are reported in skips instead; a missing location becomes "".
//
// Only a failure to parse the document at all is returned as an error.
func Extract(html string, sel Selectors) ([]model.Record, []model.Skip, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("scrape: parsing HTML: %w", err)
	}

	records := make([]model.Record, 0)
	skips := make([]model.Skip, 0)

	doc.Find(sel.Container).Each(func(i int, item *goquery.Selection) {
		title, okTitle := fieldText(item, sel.Title)
		date, okDate := fieldText(item, sel.Date)
		tm, okTime := fieldText(item, sel.Time)

		var reason string
		switch {
		case !okTitle:
			reason = "missing title"
		case !okDate:
			reason = "missing date"
		case !okTime:
			reason = "missing time"
		}
		if reason != "" {
			skips = append(skips, model.Skip{Index: i, Reason: reason})
			appLog.Warn("skipping incomplete event", "index", i, "reason", reason)
			return
		}

		location, _ := fieldText(item, sel.Location)

		records = append(records, model.Record{
			Title:    title,
			Date:     date,
			Time:     tm,
			Location: location,
		})
	})

	return records, skips, nil
}

// CountContainers reports how many event containers the markup holds.
func CountContainers(html string, sel Selectors) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("scrape: parsing HTML: %w", err)
	}
	return doc.Find(sel.Container).Length(), nil
}

// fieldText returns the trimmed text of the first match of selector inside
// item. ok is false when nothing matches or the text is blank.
func fieldText(item *goquery.Selection, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	match := item.Find(selector).First()
	if match.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(match.Text())
	return text, text != ""
}
