package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/logging"
	"github.com/abelbrown/staffproof/internal/mutate"
	"github.com/abelbrown/staffproof/internal/otel"
	"github.com/abelbrown/staffproof/internal/paging"
	"github.com/abelbrown/staffproof/internal/query"
)

const comp = "controller"

// ErrReadOnly is returned by Mutate on a List built without a Backend.
var ErrReadOnly = errors.New("list has no mutation backend")

// ErrClosed is returned by Mutate after Close.
var ErrClosed = errors.New("list is closed")

// Options configures a List.
type Options[T any] struct {
	Resource string         // collection name for events and logs
	PageSize int            // snapped to query.PageSizes
	Debounce time.Duration  // search quiet period; 0 means DefaultDebounce, negative disables
	Filters  map[string]any // initial raw filters
	Search   string         // initial search text
	Retry    Retry
	Events   *otel.Logger // optional

	// Backend and Identity enable Mutate.
	Backend  mutate.Backend[T]
	Identity mutate.Identity[T]
}

// List is the controller behind one list screen. Safe for concurrent use.
type List[T any] struct {
	name     string
	fetcher  Fetcher[T]
	applier  *mutate.Applier[T]
	events   chan Event[T]
	otel     *otel.Logger
	retry    Retry
	debounce time.Duration

	// lifetime
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	filters  map[string]any
	search   string
	pager    *paging.Pager
	status   Status
	page     fetch.Page[T]
	err      *fetch.Error
	loaded   bool
	gen      uint64 // bumped whenever page is replaced or patched
	seq      uint64 // latest issued fetch
	inflight context.CancelFunc
	timer    *time.Timer
	timerTok uint64
	started  bool
	closed   bool
}

// New creates an idle List. Call Start to issue the first fetch.
func New[T any](f Fetcher[T], opts Options[T]) *List[T] {
	size := query.NormalizePageSize(opts.PageSize)
	debounce := opts.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	filters := make(map[string]any, len(opts.Filters))
	for k, v := range opts.Filters {
		filters[k] = v
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &List[T]{
		name:     opts.Resource,
		fetcher:  f,
		events:   make(chan Event[T], eventBuffer),
		otel:     opts.Events,
		retry:    opts.Retry,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
		filters:  filters,
		search:   strings.TrimSpace(opts.Search),
		pager:    paging.New(size),
		status:   StatusIdle,
		page:     fetch.EmptyPage[T](size),
	}

	if opts.Backend != nil && opts.Identity.Key != nil {
		c.applier = mutate.NewApplier(opts.Backend, opts.Identity)
		c.applier.OnPending(func(key string, pending bool) {
			c.send(Event[T]{Type: EventPending, Key: key})
		})
	}
	return c
}

// Resource returns the collection name.
func (c *List[T]) Resource() string { return c.name }

// Subscribe returns the event channel. It is never closed.
func (c *List[T]) Subscribe() <-chan Event[T] { return c.events }

// Start issues the first fetch. Later calls are no-ops.
func (c *List[T]) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	c.issueLocked()
}

// Close cancels in-flight work and waits for fetch goroutines to exit.
// Results that arrive afterwards are discarded.
func (c *List[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopDebounceLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// State returns a snapshot of the screen.
func (c *List[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State[T]{
		Status:    c.status,
		Page:      c.page.Clone(),
		Query:     c.queryLocked(),
		Err:       c.err,
		Loaded:    c.loaded,
		Searching: c.timer != nil,
	}
	if c.applier != nil {
		s.Pending = c.applier.Pending()
	}
	return s
}

// SetFilter sets one filter and returns to page 1. Empty values (nil, "",
// nil pointers, zero date ranges) clear the filter. Setting a filter to its
// current value does nothing.
func (c *List[T]) SetFilter(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	prev, had := c.filters[key]
	before := c.queryLocked().Filter(key)
	c.filters[key] = value
	after := c.queryLocked().Filter(key)
	if after == "" {
		delete(c.filters, key)
	}
	if before == after {
		if had {
			c.filters[key] = prev
		}
		return
	}

	c.pager.Reset()
	c.changedLocked()
}

// ClearFilters drops every filter and returns to page 1.
func (c *List[T]) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queryLocked().Filters) == 0 {
		return
	}
	c.filters = make(map[string]any)
	c.pager.Reset()
	c.changedLocked()
}

// SetSearch updates the search text and returns to page 1. The fetch is
// issued once no further SetSearch arrives for the debounce period.
func (c *List[T]) SetSearch(text string) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (text == c.search && c.timer == nil) {
		return
	}
	c.search = text
	c.pager.Reset()
	if !c.started {
		return
	}
	if c.debounce < 0 {
		c.issueLocked()
		return
	}

	c.stopDebounceLocked()
	tok := c.timerTok
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A later SetSearch or an immediate fetch may have won the lock first.
		if tok != c.timerTok || c.closed {
			return
		}
		c.timer = nil
		c.issueLocked()
	})
}

// SetPage moves to page n, clamped to the known page count.
func (c *List[T]) SetPage(n int) {
	c.navigate(func(p *paging.Pager) { p.GoTo(n) })
}

// Next moves one page forward. A no-op on the last page.
func (c *List[T]) Next() {
	c.navigate(func(p *paging.Pager) { p.Next() })
}

// Previous moves one page back. A no-op on page 1.
func (c *List[T]) Previous() {
	c.navigate(func(p *paging.Pager) { p.Previous() })
}

func (c *List[T]) navigate(move func(*paging.Pager)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	before := c.pager.Page()
	move(c.pager)
	if c.pager.Page() == before && c.timer == nil && c.status != StatusError {
		return
	}
	c.changedLocked()
}

// SetPageSize changes density and returns to page 1. Sizes outside
// query.PageSizes snap to the default.
func (c *List[T]) SetPageSize(n int) {
	n = query.NormalizePageSize(n)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || n == c.pager.PageSize() {
		return
	}
	c.pager.SetPageSize(n)
	c.changedLocked()
}

// Refresh re-runs the current query, including any search still waiting out
// its debounce.
func (c *List[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.started = true
	c.issueLocked()
}

// Retry is Refresh, offered from the error state.
func (c *List[T]) Retry() { c.Refresh() }

// Refetch re-runs the current query after a mutation.
func (c *List[T]) Refetch() { c.Refresh() }

// Mutate performs req and reconciles the result into the page. It returns
// the server's representation of the item for create and update.
func (c *List[T]) Mutate(ctx context.Context, req mutate.Request[T]) (T, error) {
	if c.applier == nil {
		var zero T
		return zero, ErrReadOnly
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		var zero T
		return zero, ErrClosed
	}

	// Close cancels writes still in flight.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	c.otel.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindMutateStart, Comp: comp, Resource: c.name,
		Key: req.TargetID, Action: mutateAction(req), Policy: req.Policy.String(),
	})

	start := time.Now()
	res, err := c.applier.Apply(ctx, req, c)
	dur := time.Since(start)

	if err != nil {
		kind := otel.KindListError
		if res.RolledBack {
			kind = otel.KindMutateRollback
		}
		ev := otel.Event{
			Level: otel.LevelWarn, Kind: kind, Comp: comp, Resource: c.name,
			Key: res.Key, Action: mutateAction(req), Policy: res.Policy.String(),
			Err: err.Error(), Dur: dur,
		}
		if fe := fetch.AsError(err); fe != nil && !errors.Is(err, mutate.ErrBusy) && !errors.Is(err, mutate.ErrInvalid) {
			ev.ErrKind = string(fe.Kind)
			ev.Status = fe.Status
		}
		c.otel.Emit(ev)
		c.send(Event[T]{Type: EventError, Err: err, Key: res.Key})
		return res.Item, err
	}

	c.otel.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindMutateComplete, Comp: comp, Resource: c.name,
		Key: res.Key, Action: mutateAction(req), Policy: res.Policy.String(),
		Count: res.Affected, Dur: dur,
	})
	return res.Item, nil
}

func mutateAction[T any](req mutate.Request[T]) string {
	if req.Action != "" {
		return string(req.Kind) + ":" + req.Action
	}
	return string(req.Kind)
}

// Patch applies fn to the page atomically. Part of mutate.Target.
func (c *List[T]) Patch(fn func(fetch.Page[T]) fetch.Page[T]) (fetch.Page[T], uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.page.Clone()
	if c.closed {
		return before, c.gen
	}
	c.page = fn(c.page.Clone())
	c.gen++
	// A removal may have clamped the page; keep the pager in step.
	c.pager.SetTotal(c.page.Total)
	c.send(Event[T]{Type: EventPatched, Page: c.page.Clone()})
	return before, c.gen
}

// Restore undoes a patch unless the page changed since gen. Part of
// mutate.Target.
func (c *List[T]) Restore(before fetch.Page[T], gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != gen {
		return false
	}

	patched := c.page
	c.page = before
	c.gen++
	c.pager.SetTotal(before.Total)
	if c.pager.Page() == patched.Page {
		c.pager.GoTo(before.Page)
	}
	c.send(Event[T]{Type: EventPatched, Page: c.page.Clone()})
	return true
}

// queryLocked builds the query for the current inputs. Caller holds c.mu.
func (c *List[T]) queryLocked() query.Query {
	return query.Build(query.Raw{
		Filters:  c.filters,
		Search:   c.search,
		Page:     c.pager.Page(),
		PageSize: c.pager.PageSize(),
	})
}

// changedLocked fetches for a changed query once the List has started.
func (c *List[T]) changedLocked() {
	if c.started {
		c.issueLocked()
	}
}

func (c *List[T]) stopDebounceLocked() {
	c.timerTok++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// issueLocked supersedes any active fetch with one for the current query.
// Caller holds c.mu.
func (c *List[T]) issueLocked() {
	if c.closed {
		return
	}
	c.stopDebounceLocked()
	if c.inflight != nil {
		c.inflight()
	}

	c.seq++
	seq := c.seq
	q := c.queryLocked()
	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight = cancel
	c.status = StatusLoading

	c.send(Event[T]{Type: EventStarted, Seq: seq})
	c.otel.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindFetchStart, Comp: comp, Resource: c.name,
		QueryKey: q.Key(), Seq: seq, Page: q.Page,
	})
	logging.Debug("list fetch", "resource", c.name, "seq", seq, "query", q.Key())

	c.wg.Add(1)
	go c.run(ctx, cancel, seq, q)
}

func (c *List[T]) run(ctx context.Context, cancel context.CancelFunc, seq uint64, q query.Query) {
	defer c.wg.Done()
	defer cancel()

	start := time.Now()
	page, err := fetchWithRetry(ctx, c.fetcher, q, c.retry)
	dur := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.seq {
		c.otel.Emit(otel.Event{
			Level: otel.LevelDebug, Kind: otel.KindFetchStale, Comp: comp, Resource: c.name,
			QueryKey: q.Key(), Seq: seq, Dur: dur,
		})
		return
	}
	c.inflight = nil

	if err != nil {
		if fetch.IsCanceled(err) {
			return
		}
		fe := fetch.AsError(err)
		c.status = StatusError
		c.err = fe
		c.send(Event[T]{Type: EventError, Seq: seq, Err: fe})
		c.otel.Emit(otel.Event{
			Level: otel.LevelError, Kind: otel.KindListError, Comp: comp, Resource: c.name,
			QueryKey: q.Key(), Seq: seq, ErrKind: string(fe.Kind), Status: fe.Status,
			Err: fe.Error(), Dur: dur,
		})
		logging.Warn("list fetch failed", "resource", c.name, "seq", seq, "error", fe)
		return
	}

	c.pager.SetTotal(page.Total)
	if q.Page > page.TotalPages {
		// The collection shrank below the requested page; the pager has
		// already clamped, so fetch the page that exists.
		logging.Debug("list page out of range", "resource", c.name, "page", q.Page, "total_pages", page.TotalPages)
		c.issueLocked()
		return
	}

	c.page = page
	c.gen++
	c.status = StatusReady
	c.err = nil
	c.loaded = true

	c.send(Event[T]{Type: EventCompleted, Seq: seq, Page: page.Clone()})
	c.otel.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindFetchComplete, Comp: comp, Resource: c.name,
		QueryKey: q.Key(), Seq: seq, Page: page.Page, Count: len(page.Items), Total: page.Total, Dur: dur,
	})
}

// send delivers e without blocking; a full channel drops it.
func (c *List[T]) send(e Event[T]) {
	select {
	case c.events <- e:
	default:
	}
}
