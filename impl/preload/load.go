package preload

import (
	"context"
	"sync"
	"time"
)

// Load is the handle for one call to Preloader.Load. It settles with the number of
// completed resources when every resource the load selected is available.
type Load struct {
	id       uint64
	total    int
	selector string
	started  time.Time
	done     chan struct{}

	mu        sync.Mutex
	completed int
	finished  time.Time
}

// LoadStatus is a point-in-time copy of a load's progress
type LoadStatus struct {
	ID        uint64    `json:"id"`
	Selector  string    `json:"selector"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Done      bool      `json:"done"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

func newLoad(id uint64, total int, selector string) *Load {
	return &Load{
		id:       id,
		total:    total,
		selector: selector,
		started:  time.Now(),
		done:     make(chan struct{}),
	}
}

// ID returns the load id, which is unique within the Preloader that created the load.
func (l *Load) ID() uint64 {
	return l.id
}

// Total returns the number of resources the load selected
func (l *Load) Total() int {
	return l.total
}

// Done returns a channel that is closed when the load completes.
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the load completes or the context is done. Giving up on the wait
// has no effect on the load itself.
func (l *Load) Wait(ctx context.Context) (int, error) {
	select {
	case <-l.done:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.completed, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Completed returns the most recently reported completed count and whether the load
// has completed.
func (l *Load) Completed() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.done:
		return l.completed, true
	default:
		return l.completed, false
	}
}

// Status returns a snapshot of the load
func (l *Load) Status() LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoadStatus{
		ID:        l.id,
		Selector:  l.selector,
		Total:     l.total,
		Completed: l.completed,
		Done:      !l.finished.IsZero(),
		Started:   l.started,
		Finished:  l.finished,
	}
}

func (l *Load) setProgress(completed int) {
	l.mu.Lock()
	l.completed = completed
	l.mu.Unlock()
}

// settle is only ever called once per load, on the dispatcher.
func (l *Load) settle(completed int) {
	l.mu.Lock()
	l.completed = completed
	l.finished = time.Now()
	close(l.done)
	l.mu.Unlock()
}

// LoadOpt configures a call to Preloader.Load
type LoadOpt func(*loadOpts)

type loadOpts struct {
	progress   func(completed, total int)
	completion func(completed int)
}

// WithProgress sets a function that is called each time a resource selected by the
// load becomes available, with the number of selected resources that are available so far
// and the total number selected. The final call has completed == total.
func WithProgress(fn func(completed, total int)) LoadOpt {
	return func(o *loadOpts) { o.progress = fn }
}

// WithCompletion sets a function that is called once, when the load completes.
func WithCompletion(fn func(completed int)) LoadOpt {
	return func(o *loadOpts) { o.completion = fn }
}
