package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"noticeboard-notifier/pkg/notice"
)

// DefaultNotifyTitle is the notification title used when none is configured.
const DefaultNotifyTitle = "새로운 공지사항이 있습니다"

// ErrNotAccepted reports a Refresh or LoadMore that was ignored because a fetch
// was in flight or the listing was exhausted.
var ErrNotAccepted = errors.New("request not accepted")

// Fetcher retrieves one listing page.
type Fetcher interface {
	FetchListing(ctx context.Context, offset, limit int) (*notice.Page, error)
}

// SnapshotStore persists the titles seen at the last completed check.
type SnapshotStore interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, titles []string) error
}

// Notifier announces a new notice.
type Notifier interface {
	NotifyNewNotice(ctx context.Context, title, body string) error
}

// Phase is the state of a Controller.
type Phase int

// Controller phases.
const (
	PhaseIdle Phase = iota
	PhaseFetchingFirstPage
	PhaseFetchingNextPage
	PhaseExhausted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetchingFirstPage:
		return "fetching_first_page"
	case PhaseFetchingNextPage:
		return "fetching_next_page"
	case PhaseExhausted:
		return "exhausted"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Fetching reports whether a fetch is in flight.
func (p Phase) Fetching() bool {
	return p == PhaseFetchingFirstPage || p == PhaseFetchingNextPage
}

// Status is a point-in-time view of a Controller.
type Status struct {
	Phase      Phase                  `json:"phase"`
	Reason     string                 `json:"reason,omitempty"` // Set in PhaseFailed
	Pagination notice.PaginationState `json:"pagination"`
	Collection notice.Collection      `json:"collection"`
	LastCheck  time.Time              `json:"last_check,omitzero"`
	CheckError string                 `json:"check_error,omitempty"` // Last change-check failure, if any
}

// Options configures a Controller.
type Options struct {
	PageSize    int
	NotifyTitle string
}

// Controller serializes fetches against one board and owns its cursor and collection.
// At most one fetch is in flight; requests arriving meanwhile are ignored.
type Controller struct {
	fetcher   Fetcher
	snapshots SnapshotStore // Optional
	notifier  Notifier      // Optional
	logger    *slog.Logger
	title     string

	mu        sync.Mutex
	phase     Phase
	reason    error
	cursor    *Cursor
	store     *Store
	lastCheck time.Time
	checkErr  error
}

// NewController creates a controller. snapshots and notifier may be nil, which
// disables change detection or notification respectively.
func NewController(fetcher Fetcher, snapshots SnapshotStore, notifier Notifier, opts Options, logger *slog.Logger) *Controller {
	title := opts.NotifyTitle
	if title == "" {
		title = DefaultNotifyTitle
	}
	return &Controller{
		fetcher:   fetcher,
		snapshots: snapshots,
		notifier:  notifier,
		logger:    logger,
		title:     title,
		cursor:    NewCursor(opts.PageSize),
		store:     NewStore(),
	}
}

// Status returns the current phase, pagination state and a copy of the collection.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Phase:      c.phase,
		Pagination: c.cursor.State(),
		Collection: c.store.Collection(),
		LastCheck:  c.lastCheck,
	}
	if c.reason != nil {
		st.Reason = c.reason.Error()
	}
	if c.checkErr != nil {
		st.CheckError = c.checkErr.Error()
	}
	return st
}

// Refresh fetches the first page, replaces the collection and runs a change check.
// It returns false when another fetch is in flight. A failed fetch leaves the
// collection and cursor as they were and moves the controller to PhaseFailed.
func (c *Controller) Refresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.phase.Fetching() {
		c.mu.Unlock()
		c.logger.Debug("Refresh ignored, fetch in flight")
		return false, nil
	}
	c.phase = PhaseFetchingFirstPage
	c.reason = nil
	limit := c.cursor.PageSize()
	c.mu.Unlock()

	start := time.Now()
	page, err := c.fetcher.FetchListing(ctx, 0, limit)
	if err != nil {
		c.fail(err)
		c.logger.Warn("First page fetch failed", "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return true, fmt.Errorf("fetch first page: %w", err)
	}
	if page == nil {
		page = &notice.Page{}
	}

	c.mu.Lock()
	c.store.ReplaceFirstPage(page.Pinned, page.Regular)
	coll := c.store.Collection()
	c.cursor.Reset()
	c.cursor.Advance(len(coll.Regular))
	c.mu.Unlock()

	c.logger.Info("First page loaded",
		"pinned", len(coll.Pinned),
		"regular", len(coll.Regular),
		"duration_ms", time.Since(start).Milliseconds())

	// The phase stays FetchingFirstPage until the check completes so that
	// check cycles never overlap.
	checkErr := c.check(ctx, coll.Titles())

	c.mu.Lock()
	c.phase = c.restingPhase()
	c.lastCheck = time.Now()
	c.checkErr = checkErr
	c.mu.Unlock()

	if checkErr != nil {
		c.logger.Error("Change check failed", "error", checkErr)
	}
	return true, nil
}

// LoadMore fetches the page at the cursor and merges its new records.
// It returns false when a fetch is in flight or the listing is exhausted.
// A page adding no new records exhausts the listing until the next Refresh.
func (c *Controller) LoadMore(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.phase.Fetching() || c.cursor.Exhausted() {
		phase := c.phase
		c.mu.Unlock()
		c.logger.Debug("Load more ignored", "phase", phase.String())
		return false, nil
	}
	c.phase = PhaseFetchingNextPage
	c.reason = nil
	offset := c.cursor.Current()
	limit := c.cursor.PageSize()
	c.mu.Unlock()

	page, err := c.fetcher.FetchListing(ctx, offset, limit)
	if err != nil {
		c.fail(err)
		c.logger.Warn("Next page fetch failed", "offset", offset, "error", err)
		return true, fmt.Errorf("fetch page at offset %d: %w", offset, err)
	}

	var regular []notice.Record
	if page != nil {
		regular = page.Regular
	}

	c.mu.Lock()
	added := c.store.MergeNextPage(regular)
	c.cursor.Advance(added)
	c.phase = c.restingPhase()
	total := c.store.Len()
	exhausted := c.cursor.Exhausted()
	c.mu.Unlock()

	c.logger.Info("Next page merged",
		"offset", offset,
		"added", added,
		"total", total,
		"exhausted", exhausted)
	return true, nil
}

// Acknowledge clears a failure once it has been observed.
func (c *Controller) Acknowledge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseFailed {
		return
	}
	c.phase = c.restingPhase()
	c.reason = nil
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseFailed
	c.reason = err
}

// restingPhase must be called with mu held.
func (c *Controller) restingPhase() Phase {
	if c.cursor.Exhausted() {
		return PhaseExhausted
	}
	return PhaseIdle
}

// check compares titles with the stored snapshot, notifies on the first new
// title and saves titles as the new snapshot. Only a snapshot that cannot be
// loaded skips the save; a failed notification is reported but the baseline
// still moves forward.
func (c *Controller) check(ctx context.Context, titles []string) error {
	if c.snapshots == nil {
		return nil
	}

	previous, err := c.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	var notifyErr error
	fresh := DetectNew(titles, previous)
	if len(fresh) > 0 {
		c.logger.Info("New notices detected", "count", len(fresh), "first", fresh[0])
		if c.notifier != nil {
			if err := c.notifier.NotifyNewNotice(ctx, c.title, fresh[0]); err != nil {
				c.logger.Warn("Notification failed, saving snapshot anyway", "error", err)
				notifyErr = fmt.Errorf("notify: %w", err)
			}
		}
	}

	if err := c.snapshots.Save(ctx, titles); err != nil {
		return errors.Join(notifyErr, fmt.Errorf("save snapshot: %w", err))
	}
	return notifyErr
}
