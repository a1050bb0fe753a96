// Package upstream implements the two coalescing, backoff-aware caches the
// relay consults on the hot path (project state, relay public keys) and the
// aorta HTTP client they share, per spec.md §4.6.
package upstream

import (
	"context"
	"time"

	"github.com/getsentry/relay-go/infrastructure/logging"
)

// State is the per-entry state machine of spec.md §4.6.
type State int

const (
	StateAbsent State = iota
	StatePending
	StateFreshExists
	StateStaleExists
	StateFreshAbsent
	StateStaleAbsent
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "Absent"
	case StatePending:
		return "Pending"
	case StateFreshExists:
		return "FreshExists"
	case StateStaleExists:
		return "StaleExists"
	case StateFreshAbsent:
		return "FreshAbsent"
	case StateStaleAbsent:
		return "StaleAbsent"
	default:
		return "Unknown"
	}
}

// Config holds TTLs and batching tunables, named after spec.md §6's
// tunable-configuration list.
type Config struct {
	TTL              time.Duration // project_expiry / relay_expiry
	MissTTL          time.Duration // miss_expiry
	GracePeriod      time.Duration // project_grace_period
	BatchInterval    time.Duration
	BatchSize        int
	HTTPMaxRetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = time.Minute
	}
	if c.MissTTL <= 0 {
		c.MissTTL = 30 * time.Second
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 10 * time.Second
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 100 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.HTTPMaxRetryInterval <= 0 {
		c.HTTPMaxRetryInterval = 30 * time.Second
	}
	return c
}

type entry[T any] struct {
	exists    bool
	value     T
	checkedAt time.Time
	pending   bool
}

func (e *entry[T]) state(cfg Config) State {
	if e == nil {
		return StateAbsent
	}
	if e.pending && e.checkedAt.IsZero() {
		return StatePending
	}
	age := time.Since(e.checkedAt)
	if e.exists {
		if age <= cfg.TTL {
			return StateFreshExists
		}
		return StateStaleExists
	}
	if age <= cfg.MissTTL {
		return StateFreshAbsent
	}
	return StateStaleAbsent
}

// Result is what Get returns: whether the id exists upstream, its value if
// so, and an error. Err is set only when the caller's ctx ends before a
// fetch resolves; fetch failures are re-queued with backoff and are not
// delivered to callers.
type Result[T any] struct {
	Exists bool
	Value  T
	Err    error
}

// Fetcher performs one batched upstream query for ids, returning a map
// keyed by id. A nil *T value for a present key means the id was resolved
// explicitly absent upstream; a missing key means "not returned" (also
// treated as absent, per spec.md §4.6's batched-fetch rule).
type Fetcher[T any] func(ctx context.Context, ids []string) (map[string]*T, error)

type waiter[T any] chan Result[T]

// Cache is the generic coalescing, backoff-aware cache shared by the
// project-state and relay-info caches (spec.md §4.6). Grounded on
// infrastructure/cache.Cache's TTL-map shape plus
// infrastructure/fallback.Handler's backoff, generalized to the batched
// fan-in-fan-out actor spec.md describes: a single in-flight fetch batch
// drains pending waiters and no second batch is scheduled while one is in
// flight.
type Cache[T any] struct {
	cfg     Config
	fetch   Fetcher[T]
	backoff *backoff
	log     *logging.Logger
	name    string

	cmd chan func(*cacheState[T])
}

type cacheState[T any] struct {
	entries   map[string]*entry[T]
	waiters   map[string][]waiter[T]
	scheduled bool
}

// New starts the cache's single-threaded mailbox goroutine (the "actor" of
// spec.md §5's scheduling model) and returns a handle to it.
func New[T any](name string, cfg Config, fetch Fetcher[T], log *logging.Logger) *Cache[T] {
	c := &Cache[T]{
		cfg:     cfg.withDefaults(),
		fetch:   fetch,
		backoff: newBackoff(100*time.Millisecond, cfg.withDefaults().HTTPMaxRetryInterval),
		log:     log,
		name:    name,
		cmd:     make(chan func(*cacheState[T]), 64),
	}
	go c.run()
	return c
}

func (c *Cache[T]) run() {
	st := &cacheState[T]{
		entries: make(map[string]*entry[T]),
		waiters: make(map[string][]waiter[T]),
	}
	for fn := range c.cmd {
		fn(st)
	}
}

// Get implements the get(id) contract: a synchronous fast path for fresh
// entries, and a suspension (future) that resolves once a batched fetch
// completes otherwise.
func (c *Cache[T]) Get(ctx context.Context, id string) Result[T] {
	done := make(chan Result[T], 1)
	fast := make(chan bool, 1)

	c.cmd <- func(st *cacheState[T]) {
		e := st.entries[id]
		switch e.state(c.cfg) {
		case StateFreshExists, StateFreshAbsent:
			done <- Result[T]{Exists: e.exists, Value: e.value}
			fast <- true
			return
		case StateStaleExists:
			// grace period: continue serving stale while a fetch is
			// pending, scheduling one if none is yet in flight.
			done <- Result[T]{Exists: e.exists, Value: e.value}
			fast <- true
			c.registerWaiter(st, id, nil)
			return
		}

		w := make(waiter[T], 1)
		fast <- false
		c.registerWaiter(st, id, w)
		go func() {
			select {
			case r := <-w:
				done <- r
			case <-ctx.Done():
				done <- Result[T]{Err: ctx.Err()}
			}
		}()
	}

	<-fast
	return <-done
}

// registerWaiter must be called with the cache's mailbox goroutine as
// caller (i.e. from inside a c.cmd closure). w may be nil when the caller
// only wants a background refresh scheduled, not a response delivered.
func (c *Cache[T]) registerWaiter(st *cacheState[T], id string, w waiter[T]) {
	if e, ok := st.entries[id]; ok {
		e.pending = true
	} else {
		st.entries[id] = &entry[T]{pending: true}
	}
	if w != nil {
		st.waiters[id] = append(st.waiters[id], w)
	} else if _, ok := st.waiters[id]; !ok {
		st.waiters[id] = nil
	}

	if !st.scheduled {
		st.scheduled = true
		delay := c.cfg.BatchInterval + c.backoff.Next()
		time.AfterFunc(delay, c.tick)
	}
}

// tick drains the in-flight waiter map into a single batched upstream
// query (spec.md §4.6 "Batched fetch").
func (c *Cache[T]) tick() {
	type drained struct {
		ids     []string
		waiters map[string][]waiter[T]
	}
	drainedCh := make(chan drained, 1)

	c.cmd <- func(st *cacheState[T]) {
		ids := make([]string, 0, len(st.waiters))
		for id := range st.waiters {
			ids = append(ids, id)
		}
		w := st.waiters
		st.waiters = make(map[string][]waiter[T])
		st.scheduled = false
		drainedCh <- drained{ids: ids, waiters: w}
	}
	d := <-drainedCh
	if len(d.ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HTTPMaxRetryInterval)
	defer cancel()
	resp, err := c.fetch(ctx, d.ids)

	if err != nil {
		if c.log != nil {
			c.log.WithError(err).Warnf("%s: batched fetch failed for %d ids", c.name, len(d.ids))
		}
		c.cmd <- func(st *cacheState[T]) {
			for id, ws := range d.waiters {
				st.waiters[id] = append(st.waiters[id], ws...)
			}
			if !st.scheduled {
				st.scheduled = true
				delay := c.cfg.BatchInterval + c.backoff.Next()
				time.AfterFunc(delay, c.tick)
			}
		}
		return
	}

	c.backoff.Reset()
	now := time.Now()
	c.cmd <- func(st *cacheState[T]) {
		for _, id := range d.ids {
			v, ok := resp[id]
			e := &entry[T]{checkedAt: now}
			if ok && v != nil {
				e.exists = true
				e.value = *v
			}
			st.entries[id] = e

			var res Result[T]
			if e.exists {
				res = Result[T]{Exists: true, Value: e.value}
			}
			for _, w := range d.waiters[id] {
				w <- res
			}
		}
	}
}

// Evict runs one eviction sweep: entries whose checked_at is older than
// 2×TTL (and that have no pending fetch) are removed entirely, reverting
// them to the Absent state (spec.md §4.6 "Eviction").
func (c *Cache[T]) Evict() {
	done := make(chan struct{})
	c.cmd <- func(st *cacheState[T]) {
		cutoff := 2 * c.cfg.TTL
		for id, e := range st.entries {
			if e.pending {
				continue
			}
			if time.Since(e.checkedAt) > cutoff {
				delete(st.entries, id)
			}
		}
		close(done)
	}
	<-done
}

// Stats reports counts per state, for the admin cache-stats endpoint.
func (c *Cache[T]) Stats() map[string]int {
	done := make(chan map[string]int, 1)
	c.cmd <- func(st *cacheState[T]) {
		out := map[string]int{}
		for _, e := range st.entries {
			out[e.state(c.cfg).String()]++
		}
		done <- out
	}
	return <-done
}
