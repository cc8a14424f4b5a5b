// Package coordinator arbitrates concurrent fetch requests keyed by entity
// id. Concurrent identical requests collapse into one underlying fetch
// (single-flight), rapid repeats can be debounced, and user-initiated or
// high-priority requests preempt lower-priority in-flight work for the same
// key. Keys are independent: operations on different keys never wait on each
// other.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Kind distinguishes background sync fetches from user-initiated ones.
type Kind string

const (
	KindBackground Kind = "background"
	KindIndividual Kind = "individual"
)

// Priority orders requests of the same kind.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// FetchFunc performs the underlying work for a key. The context is cancelled
// when the operation is preempted, timed out, or shut down; the work may keep
// running past that point but its result is discarded.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// Options parameterizes a single Request call.
type Options struct {
	Kind     Kind
	Priority Priority
	// Timeout bounds the operation once it becomes active. Zero means no
	// timeout.
	Timeout time.Duration
	// Debounce collapses rapid repeated calls for the same key; each new
	// call resets the timer and only the last call's parameters execute.
	// Zero dispatches immediately.
	Debounce time.Duration
}

func (o Options) samePriorityClass(op operationMeta) bool {
	return o.Kind == op.kind && o.Priority == op.priority
}

type operationMeta struct {
	kind     Kind
	priority Priority
}

type operation[T any] struct {
	operationMeta
	key       string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	// Guarded by the coordinator mutex until done is closed.
	cancelled    bool
	cancelReason CancelReason
	value        T
	err          error
}

type queuedRequest[T any] struct {
	opts Options
	// started receives the operation launched for this request, or nil when
	// the queue was cleared before the request could run.
	started chan *operation[T]
}

type debounceState[T any] struct {
	timer   *time.Timer
	opts    Options
	waiters []chan *operation[T]
}

// Coordinator deduplicates and arbitrates fetches per key. Safe for
// concurrent use.
type Coordinator[T any] struct {
	fetch  FetchFunc[T]
	logger *slog.Logger

	mu      sync.Mutex
	active  map[string]*operation[T]
	pending map[string]*debounceState[T]
	queues  map[string][]*queuedRequest[T]
}

// New creates a coordinator around the given fetch function.
func New[T any](fetch FetchFunc[T], logger *slog.Logger) *Coordinator[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator[T]{
		fetch:   fetch,
		logger:  logger,
		active:  make(map[string]*operation[T]),
		pending: make(map[string]*debounceState[T]),
		queues:  make(map[string][]*queuedRequest[T]),
	}
}

// Request fetches the value for key, sharing, queueing or preempting other
// in-flight requests for the same key according to opts.
func (c *Coordinator[T]) Request(ctx context.Context, key string, opts Options) (T, error) {
	if opts.Kind == "" {
		opts.Kind = KindBackground
	}
	if opts.Priority == "" {
		opts.Priority = PriorityNormal
	}
	if opts.Debounce > 0 {
		return c.debounced(ctx, key, opts)
	}
	return c.dispatch(ctx, key, opts)
}

// IsKeyActive reports whether an operation is currently in flight for key.
func (c *Coordinator[T]) IsKeyActive(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[key]
	return ok
}

// Stats snapshots the active and queued request counts by kind. Read-only.
func (c *Coordinator[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		ActiveByKind: map[Kind]int{},
		QueuedByKind: map[Kind]int{},
	}
	for _, op := range c.active {
		s.Active++
		s.ActiveByKind[op.kind]++
	}
	for _, q := range c.queues {
		for _, req := range q {
			s.Queued++
			s.QueuedByKind[req.opts.Kind]++
		}
	}
	s.Debouncing = len(c.pending)
	return s
}

// CancelAll cancels every active operation and clears every debounce timer
// and queue. Idempotent; safe to call with nothing active.
func (c *Coordinator[T]) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, op := range c.active {
		c.cancelLocked(op, ReasonShutdown)
	}
	for key, st := range c.pending {
		st.timer.Stop()
		for _, ch := range st.waiters {
			ch <- nil
		}
		delete(c.pending, key)
	}
	for key, q := range c.queues {
		for _, req := range q {
			req.started <- nil
		}
		delete(c.queues, key)
	}
}

func (c *Coordinator[T]) dispatch(ctx context.Context, key string, opts Options) (T, error) {
	c.mu.Lock()
	if op, ok := c.active[key]; ok {
		if preempts(opts, op.operationMeta) {
			c.cancelLocked(op, ReasonPreempted)
			started := c.startLocked(key, opts)
			c.mu.Unlock()
			return c.await(ctx, started, opts, false)
		}
		c.mu.Unlock()
		return c.await(ctx, op, opts, true)
	}
	started := c.startLocked(key, opts)
	c.mu.Unlock()
	return c.await(ctx, started, opts, false)
}

// await blocks until op completes. A joined caller whose parameters differ
// from the failing operation's does not inherit the stale failure; it defers
// a fresh attempt with its own parameters instead.
func (c *Coordinator[T]) await(ctx context.Context, op *operation[T], opts Options, joined bool) (T, error) {
	select {
	case <-op.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	if op.err != nil && joined && !opts.samePriorityClass(op.operationMeta) {
		return c.deferFresh(ctx, op.key, opts)
	}
	return op.value, op.err
}

// deferFresh runs a fresh attempt for a joined caller after the shared
// operation failed. If the key became busy again in the meantime the request
// is queued and started when the key goes idle.
func (c *Coordinator[T]) deferFresh(ctx context.Context, key string, opts Options) (T, error) {
	c.mu.Lock()
	if _, busy := c.active[key]; !busy {
		started := c.startLocked(key, opts)
		c.mu.Unlock()
		return c.await(ctx, started, opts, false)
	}

	req := &queuedRequest[T]{opts: opts, started: make(chan *operation[T], 1)}
	c.queues[key] = append(c.queues[key], req)
	c.mu.Unlock()

	select {
	case op := <-req.started:
		if op == nil {
			var zero T
			return zero, &CancellationError{Key: key, Reason: ReasonShutdown}
		}
		return c.await(ctx, op, opts, false)
	case <-ctx.Done():
		c.removeQueued(key, req)
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Coordinator[T]) removeQueued(key string, req *queuedRequest[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queues[key]
	for i, r := range q {
		if r == req {
			c.queues[key] = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(c.queues[key]) == 0 {
		delete(c.queues, key)
	}
}

func (c *Coordinator[T]) debounced(ctx context.Context, key string, opts Options) (T, error) {
	c.mu.Lock()
	st, ok := c.pending[key]
	if ok {
		st.timer.Stop()
	} else {
		st = &debounceState[T]{}
		c.pending[key] = st
	}
	// The last caller's parameters win.
	st.opts = opts
	ch := make(chan *operation[T], 1)
	st.waiters = append(st.waiters, ch)
	st.timer = time.AfterFunc(opts.Debounce, func() { c.fireDebounce(key) })
	c.mu.Unlock()

	select {
	case op := <-ch:
		if op == nil {
			var zero T
			return zero, &CancellationError{Key: key, Reason: ReasonShutdown}
		}
		// The fired operation may be a joined pre-existing one, or carry a
		// later caller's parameters; awaiting as joined keeps the
		// fresh-attempt rule in force either way. For an operation started
		// with this caller's own parameters it changes nothing.
		return c.await(ctx, op, opts, true)
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Coordinator[T]) fireDebounce(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.pending[key]
	if !ok {
		return
	}
	delete(c.pending, key)

	var op *operation[T]
	if active, ok := c.active[key]; ok {
		if preempts(st.opts, active.operationMeta) {
			c.cancelLocked(active, ReasonPreempted)
			op = c.startLocked(key, st.opts)
		} else {
			op = active
		}
	} else {
		op = c.startLocked(key, st.opts)
	}

	for _, ch := range st.waiters {
		ch <- op
	}
}

// startLocked launches a new active operation for key. Caller holds c.mu.
func (c *Coordinator[T]) startLocked(key string, opts Options) *operation[T] {
	ctx, cancel := context.WithCancel(context.Background())
	op := &operation[T]{
		operationMeta: operationMeta{kind: opts.Kind, priority: opts.Priority},
		key:           key,
		startedAt:     time.Now(),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	c.active[key] = op
	go c.run(ctx, op, opts.Timeout)
	return op
}

func (c *Coordinator[T]) run(ctx context.Context, op *operation[T], timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := c.fetch(ctx, op.key)
		ch <- result{v, err}
	}()

	var value T
	var err error
	select {
	case r := <-ch:
		value, err = r.value, r.err
	case <-ctx.Done():
		reason := ReasonPreempted
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		err = &CancellationError{Key: op.key, Reason: reason}
	}

	c.finish(op, value, err)
}

// finish records the outcome, returns the key to idle and starts the next
// queued request for the key, if any, without blocking the completing caller.
func (c *Coordinator[T]) finish(op *operation[T], value T, err error) {
	c.mu.Lock()

	// Liveness gate: a result arriving after cancellation is discarded and
	// must never be observed as a success.
	if op.cancelled {
		var zero T
		value = zero
		if err == nil || !IsCancellation(err) {
			err = &CancellationError{Key: op.key, Reason: op.cancelReason}
		}
	}
	op.value = value
	op.err = err
	close(op.done)

	var next *queuedRequest[T]
	if c.active[op.key] == op {
		delete(c.active, op.key)
		if q := c.queues[op.key]; len(q) > 0 {
			next = q[0]
			c.queues[op.key] = q[1:]
			if len(c.queues[op.key]) == 0 {
				delete(c.queues, op.key)
			}
		}
	}
	c.mu.Unlock()

	if next != nil {
		go func() {
			c.mu.Lock()
			started := c.startLocked(op.key, next.opts)
			c.mu.Unlock()
			next.started <- started
		}()
	}
}

// cancelLocked marks an operation cancelled and releases its key. The
// underlying work keeps running until it observes the context; its eventual
// result is discarded by the liveness gate in finish. Caller holds c.mu.
func (c *Coordinator[T]) cancelLocked(op *operation[T], reason CancelReason) {
	if op.cancelled {
		return
	}
	op.cancelled = true
	op.cancelReason = reason
	if c.active[op.key] == op {
		delete(c.active, op.key)
	}
	op.cancel()
	c.logger.Debug("operation cancelled",
		"key", op.key, "kind", string(op.kind), "reason", string(reason))
}

// preempts implements the arbitration rule: an individual request always
// preempts a background one for the same key; a high-priority request
// preempts a normal-priority request of the same kind.
func preempts(opts Options, active operationMeta) bool {
	if opts.Kind == KindIndividual && active.kind == KindBackground {
		return true
	}
	if opts.Kind == active.kind && opts.Priority == PriorityHigh && active.priority == PriorityNormal {
		return true
	}
	return false
}
