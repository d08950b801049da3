package trino

import (
	"context"
	"sync"
	"time"

	"github.com/trinodb/trino-go-client/internal/wire"
)

// oneShotSignal is closed exactly once, letting any number of waiters
// observe the transition with a select on its channel instead of
// polling a condition variable. Grounded on the teacher's use of plain
// channels for one-time readiness signals in chunk_downloader.go.
type oneShotSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newOneShotSignal() *oneShotSignal {
	return &oneShotSignal{ch: make(chan struct{})}
}

func (s *oneShotSignal) fire() {
	s.once.Do(func() { close(s.ch) })
}

func (s *oneShotSignal) wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PageQueue is the background producer half of the pipeline from spec
// §4.2: a single fetch loop advances the StatementClient and enqueues
// pages into a FIFO up to a soft byte budget, while a consumer
// (PageStream) dequeues them independently. Grounded on the teacher's
// chunk_downloader.go, which runs the same shape — a background fetch
// loop feeding a bounded, mutex-guarded queue that the row scanner
// drains concurrently — generalized from a fixed download list to an
// open-ended nextUri chain.
type PageQueue struct {
	stmt    *StatementClient
	budget  int64
	discard bool

	mu      sync.Mutex
	queue   []*wire.Page
	queued  int64 // approximate bytes queued, for the soft budget
	columns []wire.Column
	stopped bool
	started bool

	errs *errorBag

	newPage       chan struct{} // buffered(1) counting signal: a page was enqueued
	columnsReady  *oneShotSignal
	firstDataSeen *oneShotSignal

	onStatusChange func(QueryState)

	wg sync.WaitGroup
}

// NewPageQueue constructs a queue bound to stmt with the given soft
// byte budget (see Config.BufferSize / DefaultBufferSize). Per spec
// §4.2/§7, the budget must be strictly positive; a non-positive value
// is a caller error, not silently substituted.
func NewPageQueue(stmt *StatementClient, budget int64) (*PageQueue, error) {
	if budget <= 0 {
		return nil, newProgrammingError("trino: PageQueue buffer budget must be strictly positive")
	}
	return &PageQueue{
		stmt:          stmt,
		budget:        budget,
		errs:          newErrorBag(),
		newPage:       make(chan struct{}, 1),
		columnsReady:  newOneShotSignal(),
		firstDataSeen: newOneShotSignal(),
	}, nil
}

// OnStatusChange registers a callback invoked (from the fetch
// goroutine) each time the fetch loop receives a page, with the
// underlying StatementClient's state at that moment. It is not invoked
// for the transition Finish makes. Must be called before StartReadAhead.
func (q *PageQueue) OnStatusChange(fn func(QueryState)) {
	q.onStatusChange = fn
}

// DiscardResults switches the queue into discard-result mode: the fetch
// loop still drains the continuation chain to a terminal state, but
// never buffers row data. Meant for statements that produce no result
// set a caller cares about (e.g. SET SESSION, DDL). Must be called
// before StartReadAhead.
func (q *PageQueue) DiscardResults() {
	q.mu.Lock()
	q.discard = true
	q.mu.Unlock()
}

// IsDiscardResults reports whether the queue is running in
// discard-result mode.
func (q *PageQueue) IsDiscardResults() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.discard
}

// Columns returns the column metadata observed so far, independent of
// whether any carrying page was actually buffered (discard mode never
// buffers, and a row-producing query's columns-only page may not carry
// data either).
func (q *PageQueue) Columns() []wire.Column {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.columns
}

// StartReadAhead launches the background fetch loop with the initial
// SQL text and any extra headers the caller needs attached only to the
// initial POST (e.g. RequestPreparedStatement for a parameterized
// EXECUTE). Idempotent: a second call is a no-op, since a PageQueue is
// bound to exactly one statement submission.
func (q *PageQueue) StartReadAhead(ctx context.Context, sql string, extraHeaders map[string]string) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.fetchLoop(ctx, sql, extraHeaders)
}

// ShouldReadAhead reports whether the fetch loop should keep pulling
// pages: not stopped, and either in discard-result mode (where the
// budget never applies, since nothing is buffered) or the budget is
// not yet exhausted.
func (q *PageQueue) ShouldReadAhead() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	if q.discard {
		return true
	}
	return q.queued < q.budget
}

// ShouldStop reports whether the fetch loop must stop immediately
// (explicit Dispose or a terminal, non-running statement state).
func (q *PageQueue) ShouldStop() bool {
	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	return stopped || q.stmt.State() != StateRunning
}

// Dispose stops the fetch loop and cancels the underlying statement.
// Safe to call multiple times and from any goroutine.
func (q *PageQueue) Dispose(reason string) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	_ = q.stmt.Cancel(reason)
	q.wg.Wait()
}

// fetchLoop is the single background goroutine that owns the
// StatementClient continuation chain. It applies the adaptive
// read-pacing rule from spec §4.2: start at DefaultReadDelay, and after
// ReadDelayGraceCount consecutive empty pages multiply the delay by
// ReadDelayMultiplier, capped at MaxReadDelay; any page carrying rows
// resets the delay.
func (q *PageQueue) fetchLoop(ctx context.Context, sql string, extraHeaders map[string]string) {
	defer q.wg.Done()
	defer close(q.newPage)

	page, err := q.stmt.SubmitInitial(ctx, sql, extraHeaders)
	if page != nil {
		q.enqueue(page)
	}
	if err != nil {
		// A *ServerError means the coordinator reported a query failure
		// inside a well-formed page; it was already enqueued above so
		// PageStream.Next can surface page.Error to the caller with full
		// context, but the failure still ends the fetch loop.
		q.errs.add(err)
		q.stmt.Finish()
		q.notify()
		return
	}

	delay := DefaultReadDelay
	emptyStreak := 0

	for {
		if q.ShouldStop() {
			return
		}
		for !q.ShouldReadAhead() {
			select {
			case <-ctx.Done():
				q.onExternalCancel()
				return
			case <-time.After(minDequeueWait):
			}
			if q.ShouldStop() {
				return
			}
		}

		next, err := q.stmt.Advance(ctx)
		if next != nil {
			q.enqueue(next)
		}
		if err != nil {
			q.errs.add(err)
			q.stmt.Finish()
			q.notify()
			return
		}
		if next == nil {
			q.stmt.Finish()
			q.notify()
			return
		}

		if len(next.Data) == 0 {
			emptyStreak++
			if emptyStreak >= ReadDelayGraceCount {
				delay = scaledDelay(delay)
			}
		} else {
			emptyStreak = 0
			delay = DefaultReadDelay
		}

		if next.NextURI == "" {
			q.stmt.Finish()
			q.notify()
			return
		}

		select {
		case <-ctx.Done():
			q.onExternalCancel()
			return
		case <-time.After(delay):
		}
	}
}

// onExternalCancel handles the caller's ctx being done: it cancels the
// underlying statement (issuing the DELETE over a detached context, per
// spec §5, regardless of the triggering token's own state) and records
// a *CancellationError rather than the raw context error, per spec §7's
// "cancellation surfaces as the cancellation error kind".
func (q *PageQueue) onExternalCancel() {
	_ = q.stmt.Cancel("context canceled")
	q.errs.add(newCancellationError("context canceled"))
	q.notify()
}

func scaledDelay(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * ReadDelayMultiplier)
	if next > MaxReadDelay {
		return MaxReadDelay
	}
	return next
}

// enqueue applies spec §4.2's fetch-loop steps 3/4: column metadata is
// tracked and signaled unconditionally, but the page itself is only
// buffered for the consumer when it carries an error, or when the
// statement is row-producing and the page actually carries data. In
// discard-result mode, or for an empty page without an error, only the
// latest-columns bookkeeping happens.
func (q *PageQueue) enqueue(page *wire.Page) {
	if page == nil {
		return
	}
	q.mu.Lock()
	if len(page.Columns) > 0 {
		q.columns = page.Columns
	}
	discard := q.discard
	hasData := len(page.Data) > 0
	buffer := page.Error != nil || (!discard && hasData)
	if buffer {
		q.queue = append(q.queue, page)
		q.queued += estimatePageSize(page)
	}
	q.mu.Unlock()

	if len(page.Columns) > 0 {
		q.columnsReady.fire()
	}
	if !discard && hasData {
		q.firstDataSeen.fire()
	}
	if q.onStatusChange != nil {
		q.onStatusChange(q.stmt.State())
	}
	q.notify()
}

func (q *PageQueue) notify() {
	select {
	case q.newPage <- struct{}{}:
	default:
	}
}

// estimatePageSize is a cheap proxy for a page's wire size: counting
// cells rather than JSON-encoding the page again, since the budget is
// a soft backpressure knob and not an exact accounting requirement.
func estimatePageSize(page *wire.Page) int64 {
	var n int64
	for _, row := range page.Data {
		n += int64(len(row))*64 + 32
	}
	return n
}

// DequeueOrNull removes and returns the oldest buffered page, or nil if
// none is currently available. It never blocks.
func (q *PageQueue) DequeueOrNull() *wire.Page {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return nil
	}
	page := q.queue[0]
	q.queue = q.queue[1:]
	q.queued -= estimatePageSize(page)
	if q.queued < 0 {
		q.queued = 0
	}
	return page
}

// WaitForPage blocks until a page is available to dequeue, the queue's
// fetch loop has finished (queue permanently empty), or ctx is done.
// It returns immediately if a page is already buffered.
func (q *PageQueue) WaitForPage(ctx context.Context) error {
	wait := minDequeueWait
	for {
		q.mu.Lock()
		hasPage := len(q.queue) > 0
		q.mu.Unlock()
		if hasPage {
			return nil
		}
		if q.stmt.State() != StateRunning {
			return nil
		}
		select {
		case <-q.newPage:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			if wait < maxDequeueWait {
				wait += dequeueWaitStep
			}
		}
	}
}

// WaitForColumns blocks until the first page carrying column metadata
// has been enqueued, or ctx is done.
func (q *PageQueue) WaitForColumns(ctx context.Context) error {
	return q.columnsReady.wait(ctx)
}

// HasSeenData reports whether any enqueued page has carried at least
// one row.
func (q *PageQueue) HasSeenData() bool {
	select {
	case <-q.firstDataSeen.ch:
		return true
	default:
		return false
	}
}

// ThrowIfErrors returns the aggregated error captured by the fetch
// loop, if any.
func (q *PageQueue) ThrowIfErrors() error {
	return q.errs.throwIfErrors()
}

// HasBufferedPage reports whether a page is currently queued, without
// dequeuing it.
func (q *PageQueue) HasBufferedPage() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue) > 0
}
