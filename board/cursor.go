// Package board holds the live notice collection and the fetch state machine that drives it.
package board

import "noticeboard-notifier/pkg/notice"

// DefaultPageSize is the number of rows requested per listing page.
const DefaultPageSize = 10

// Cursor tracks the offset of the next listing page to fetch.
type Cursor struct {
	offset    int
	pageSize  int
	exhausted bool
}

// NewCursor returns a cursor at offset 0. A non-positive pageSize selects DefaultPageSize.
func NewCursor(pageSize int) *Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Cursor{pageSize: pageSize}
}

// Current returns the offset of the next page to fetch.
func (c *Cursor) Current() int {
	return c.offset
}

// PageSize returns the number of rows per page.
func (c *Cursor) PageSize() int {
	return c.pageSize
}

// Advance records the outcome of merging a page that added `added` new records.
// A page with new records moves the offset forward by one page; an empty one
// marks the cursor exhausted. Advance does nothing once exhausted.
func (c *Cursor) Advance(added int) {
	if c.exhausted {
		return
	}
	if added <= 0 {
		c.exhausted = true
		return
	}
	c.offset += c.pageSize
}

// Reset returns the cursor to offset 0 and clears the exhausted flag.
func (c *Cursor) Reset() {
	c.offset = 0
	c.exhausted = false
}

// Exhausted reports whether the listing has no further pages with new records.
func (c *Cursor) Exhausted() bool {
	return c.exhausted
}

// State returns the cursor as a value.
func (c *Cursor) State() notice.PaginationState {
	return notice.PaginationState{
		Offset:    c.offset,
		PageSize:  c.pageSize,
		Exhausted: c.exhausted,
	}
}
