// Package notice contains the core domain types for the notice board notifier.
package notice

import (
	"strconv"
	"time"
)

// PinnedNumber is the Number carried by pinned records.
const PinnedNumber = "pinned"

// Record is a single row of the notice listing.
type Record struct {
	ID     string `json:"id"`     // Synthetic, assigned at parse time
	Number string `json:"number"` // Site sequence number, or PinnedNumber
	Title  string `json:"title"`
	Link   string `json:"link"` // Absolute URL of the detail page
	Pinned bool   `json:"pinned"`
}

// Seq returns the numeric sequence number of a regular record.
// Pinned or malformed records report ok=false.
func (r Record) Seq() (n int, ok bool) {
	if r.Pinned {
		return 0, false
	}
	n, err := strconv.Atoi(r.Number)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Page is one parsed listing page.
type Page struct {
	Pinned  []Record
	Regular []Record
}

// Len returns the total number of records on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Pinned) + len(p.Regular)
}

// Collection is the ordered notice set shown to readers.
type Collection struct {
	Pinned  []Record `json:"pinned"`
	Regular []Record `json:"regular"` // Strictly descending by Number
}

// Titles returns pinned titles followed by regular titles.
func (c Collection) Titles() []string {
	titles := make([]string, 0, len(c.Pinned)+len(c.Regular))
	for _, r := range c.Pinned {
		titles = append(titles, r.Title)
	}
	for _, r := range c.Regular {
		titles = append(titles, r.Title)
	}
	return titles
}

// PaginationState is the fetch cursor into the remote listing.
type PaginationState struct {
	Offset    int  `json:"offset"`
	PageSize  int  `json:"page_size"`
	Exhausted bool `json:"exhausted"`
}

// Snapshot is the persisted set of titles seen at the last completed check.
type Snapshot struct {
	SavedAt time.Time `json:"saved_at"`
	Titles  []string  `json:"titles"`
}
