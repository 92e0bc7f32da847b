package registry

import (
	"context"
	"sync"
	"time"

	"github.com/aceeric/imgpreload/impl/fetch"
	"github.com/aceeric/imgpreload/impl/metrics"

	log "github.com/sirupsen/logrus"
)

// Fetcher is the fetch capability the registry drives. Fetch blocks until the resource
// identified by 'identifier' is available or the fetch fails.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) error
}

// State is the state of one registry entry
type State int

const (
	Fetching State = iota
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Status is a point-in-time copy of a registry entry
type Status struct {
	State    State
	Err      error
	Started  time.Time
	Finished time.Time
	Waiters  int
}

// entry is the registry entry for one identifier. 'pending' is only ever non-empty
// while 'done' is false.
type entry struct {
	done     bool
	err      error
	started  time.Time
	finished time.Time
	pending  []func()
}

// Registry deduplicates fetches by identifier. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	fetcher Fetcher
	ctx     context.Context
	timeout time.Duration
	wg      sync.WaitGroup
}

// Option configures a Registry
type Option func(*Registry)

// WithTimeout bounds each fetch. Zero (the default) means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Registry) { r.timeout = timeout }
}

// WithContext sets the base context that every fetch runs under.
func WithContext(ctx context.Context) Option {
	return func(r *Registry) { r.ctx = ctx }
}

var (
	defaultMu  sync.Mutex
	defaultReg *Registry
)

// New returns a Registry that uses the passed fetcher to fetch resources.
func New(fetcher Fetcher, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		fetcher: fetcher,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns the shared process registry. Unless SetDefault was called first, it
// is built on first use with a fetcher that supports http(s), file, and oci identifiers
// and discards what it fetches.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultReg == nil {
		defaultReg = New(fetch.NewMux(fetch.NewHTTP(nil), fetch.NewFile(nil), fetch.NewOCI(nil)))
	}
	return defaultReg
}

// SetDefault replaces the shared process registry.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defaultReg = r
	defaultMu.Unlock()
}

// Register registers interest in the resource identified by 'identifier' becoming
// available:
//
//  1. never seen: the fetch is started and 'onDone' is its only pending callback
//  2. fetch in progress: 'onDone' is queued behind the other pending callbacks
//  3. fetch complete: 'onDone' is called before Register returns
//
// Callbacks run on the goroutine that completed the fetch, in registration order, and
// never while the registry lock is held, so a callback may call Register.
func (r *Registry) Register(identifier string, onDone func()) {
	r.mu.Lock()
	e, exists := r.entries[identifier]
	switch {
	case !exists:
		e = &entry{
			started: time.Now(),
			pending: []func(){onDone},
		}
		r.entries[identifier] = e
		r.wg.Add(1)
		r.mu.Unlock()
		go r.fetch(identifier, e)
	case !e.done:
		e.pending = append(e.pending, onDone)
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		onDone()
	}
}

// fetch runs the underlying fetch for one entry and then fans out to the entry's
// pending callbacks. The callback list is swapped out under the lock before any
// callback runs.
func (r *Registry) fetch(identifier string, e *entry) {
	defer r.wg.Done()
	metrics.IncFetchesStarted()
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	log.Debugf("fetch %s", identifier)
	err := r.fetcher.Fetch(ctx, identifier)

	r.mu.Lock()
	e.finished = time.Now()
	if err != nil {
		e.err = err
		waiters := len(e.pending)
		r.mu.Unlock()
		metrics.IncFetchErrors()
		log.Errorf("fetch of %s failed, %d waiter(s) will not be notified: %s", identifier, waiters, err)
		return
	}
	e.done = true
	callbacks := e.pending
	e.pending = nil
	elapsed := e.finished.Sub(e.started)
	r.mu.Unlock()

	metrics.IncFetchesCompleted()
	log.Debugf("fetched %s in %s, notifying %d waiter(s)", identifier, elapsed, len(callbacks))
	for _, cb := range callbacks {
		cb()
	}
}

// Status returns the status of the entry for the passed identifier, and false if
// the identifier was never registered.
func (r *Registry) Status(identifier string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[identifier]
	if !exists {
		return Status{}, false
	}
	s := Status{
		State:    Fetching,
		Started:  e.started,
		Finished: e.finished,
		Waiters:  len(e.pending),
	}
	switch {
	case e.done:
		s.State = Done
	case e.err != nil:
		s.State = Failed
		s.Err = e.err
	}
	return s, true
}

// Len returns the number of identifiers ever registered
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Wait blocks until every fetch started so far has returned and its callbacks have run.
func (r *Registry) Wait() {
	r.wg.Wait()
}
