package reportview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrReportNotFound = errors.New("report not found")

type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateReady    State = "ready"
)

// fetching -> fetching happens when a newer request supersedes one still in flight.
var stateTransitions = map[State][]State{
	StateIdle:     {StateFetching},
	StateFetching: {StateFetching, StateReady},
	StateReady:    {StateFetching},
}

// Fetcher loads the raw report listing. Criteria are a hint for sources that can
// narrow the listing server-side; the controller re-applies every predicate anyway.
type Fetcher interface {
	FetchReports(ctx context.Context, criteria FilterCriteria) ([]RawReport, error)
}

type FetcherFunc func(ctx context.Context, criteria FilterCriteria) ([]RawReport, error)

func (f FetcherFunc) FetchReports(ctx context.Context, criteria FilterCriteria) ([]RawReport, error) {
	return f(ctx, criteria)
}

// Renderer receives every new view. It is called with the controller locked and must not
// call back into the controller.
type Renderer interface {
	Render(View)
}

type RenderFunc func(View)

func (f RenderFunc) Render(v View) { f(v) }

// View is what a page currently shows.
type View struct {
	State      State
	Generation uint64
	Criteria   FilterCriteria
	Page       Page
	FetchedAt  time.Time
	Err        error
	Retryable  bool
}

func (v View) Empty() bool {
	return v.Page.TotalItems == 0
}

type Config struct {
	PageSize int
	// DateMode applies when the criteria leave it blank; each call site picks its own.
	DateMode DateMode
	Zone     *time.Location
	Map      *MapSync
	Renderer Renderer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Controller drives normalize, filter, sort, paginate and map sync for one view and
// discards fetch responses that a newer request has superseded.
type Controller struct {
	mu sync.Mutex

	fetcher    Fetcher
	renderer   Renderer
	mapSync    *MapSync
	normalizer Normalizer
	store      *Store
	log        *slog.Logger
	now        func() time.Time

	dateMode DateMode
	zone     *time.Location
	pageSize int

	state     State
	requested FilterCriteria
	shown     FilterCriteria
	page      int
	// resetPage is set while requested criteria have not been applied yet; the page
	// goes back to 1 once they are.
	resetPage bool
	ordered   []Report
	view      View
}

func NewController(fetcher Fetcher, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	zone := cfg.Zone
	if zone == nil {
		zone = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	dateMode := cfg.DateMode
	if dateMode == "" {
		dateMode = DateRange
	}

	c := &Controller{
		fetcher:    fetcher,
		renderer:   cfg.Renderer,
		mapSync:    cfg.Map,
		normalizer: Normalizer{Zone: zone, Logger: logger},
		store:      NewStore(),
		log:        logger,
		now:        now,
		dateMode:   dateMode,
		zone:       zone,
		pageSize:   pageSize,
		state:      StateIdle,
		page:       1,
	}
	c.requested = c.withDefaults(FilterCriteria{})
	c.shown = c.requested
	c.view = View{State: StateIdle, Criteria: c.shown, Page: Paginate(nil, 1, pageSize)}
	return c
}

// Refresh refetches with the most recently requested criteria.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	criteria := c.requested
	generation := c.beginFetchLocked()
	c.mu.Unlock()
	return c.fetch(ctx, generation, criteria)
}

// SetCriteria replaces the criteria, goes back to page 1 and fetches.
func (c *Controller) SetCriteria(ctx context.Context, criteria FilterCriteria) error {
	c.mu.Lock()
	criteria = c.withDefaults(criteria)
	c.requested = criteria
	c.resetPage = true
	generation := c.beginFetchLocked()
	c.mu.Unlock()
	return c.fetch(ctx, generation, criteria)
}

// SetPage moves the window over the list already shown; no fetch is made. Criteria still
// in flight reset the page again when their result arrives.
func (c *Controller) SetPage(page int) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = page
	c.repaginateLocked()
	c.renderLocked()
	return c.view
}

// SetPageSize changes the page size, e.g. when the viewport is resized, and goes back to page 1.
func (c *Controller) SetPageSize(pageSize int) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize != c.pageSize {
		c.pageSize = pageSize
		c.page = 1
		c.repaginateLocked()
		c.renderLocked()
	}
	return c.view
}

// ApplyStatus reflects a status change the admin save action already persisted.
func (c *Controller) ApplyStatus(id string, status string) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.store.Get(id)
	if !ok {
		return Report{}, fmt.Errorf("apply status to %q: %w", id, ErrReportNotFound)
	}
	report.Status = AdminWriteStatus(status)
	c.store.Patch(report)
	c.recomputeLocked()
	c.renderLocked()
	return report, nil
}

// PatchReport replaces the stored entry with the same id by a freshly normalized record.
func (c *Controller) PatchReport(raw RawReport) (Report, error) {
	report, err := c.normalizer.Normalize(raw)
	if err != nil {
		return Report{}, fmt.Errorf("patch report: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.store.Patch(report) {
		return Report{}, fmt.Errorf("patch report %q: %w", report.ID, ErrReportNotFound)
	}
	c.recomputeLocked()
	c.renderLocked()
	return report, nil
}

// RemoveReport drops a report the backend confirmed as deleted.
func (c *Controller) RemoveReport(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.store.Remove(id) {
		return fmt.Errorf("remove report %q: %w", id, ErrReportNotFound)
	}
	c.recomputeLocked()
	c.renderLocked()
	return nil
}

// Redraw recomputes the shown view from the stored snapshot without fetching, e.g. to
// apply a recenter request right away.
func (c *Controller) Redraw() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recomputeLocked()
	c.renderLocked()
	return c.view
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Criteria returns the most recently requested criteria, which may still be in flight.
func (c *Controller) Criteria() FilterCriteria {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested
}

func (c *Controller) beginFetchLocked() uint64 {
	generation := c.store.NextGeneration()
	c.transitionLocked(StateFetching)
	c.view.State = c.state
	return generation
}

func (c *Controller) fetch(ctx context.Context, generation uint64, criteria FilterCriteria) error {
	raws, err := c.fetcher.FetchReports(ctx, criteria)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.IsCurrent(generation) {
		c.log.Debug("discarding superseded report fetch",
			"generation", generation,
			"current_generation", c.store.Generation(),
			"failed", err != nil,
		)
		return nil
	}

	c.transitionLocked(StateReady)
	if err != nil {
		c.log.Warn("report fetch failed, keeping previous view", "generation", generation, "err", err)
		c.view.State = c.state
		c.view.Err = err
		c.view.Retryable = true
		c.renderLocked()
		return fmt.Errorf("fetch reports: %w", err)
	}

	reports := c.normalizer.NormalizeAll(raws)
	c.store.Replace(generation, reports)
	c.shown = criteria
	if c.resetPage {
		c.page = 1
		c.resetPage = false
	}
	c.view.Generation = generation
	c.view.FetchedAt = c.now()
	c.view.Err = nil
	c.view.Retryable = false
	c.recomputeLocked()
	c.renderLocked()

	c.log.Debug("report view updated",
		"generation", generation,
		"fetched", len(raws),
		"kept", len(reports),
		"matched", c.view.Page.TotalItems,
	)
	return nil
}

func (c *Controller) recomputeLocked() {
	filtered := Filter(c.store.Reports(), c.shown)
	c.ordered = Sort(filtered, c.shown.Sort)
	c.repaginateLocked()
	if c.mapSync != nil {
		c.mapSync.Sync(c.ordered)
	}
}

func (c *Controller) repaginateLocked() {
	c.view.Page = Paginate(c.ordered, c.page, c.pageSize)
	c.page = c.view.Page.Page
	c.view.Criteria = c.shown
	c.view.State = c.state
}

func (c *Controller) renderLocked() {
	if c.renderer != nil {
		c.renderer.Render(c.view)
	}
}

func (c *Controller) transitionLocked(next State) {
	if !containsState(stateTransitions[c.state], next) {
		c.log.Warn("invalid view state transition", "from", c.state, "to", next)
		return
	}
	c.state = next
}

func (c *Controller) withDefaults(criteria FilterCriteria) FilterCriteria {
	if criteria.DateMode == "" {
		criteria.DateMode = c.dateMode
	}
	if criteria.Zone == nil {
		criteria.Zone = c.zone
	}
	return criteria.WithArea(criteria.Area)
}

func containsState(list []State, value State) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}
