package preload

import (
	"sort"
	"sync"
	"time"

	"github.com/aceeric/imgpreload/impl/catalog"
	"github.com/aceeric/imgpreload/impl/metrics"
	"github.com/aceeric/imgpreload/impl/registry"

	log "github.com/sirupsen/logrus"
)

// Registry is what the Preloader needs from a fetch registry: a way to be told, once,
// when the resource with an identifier is available. The callback may run on any
// goroutine, including the caller's.
type Registry interface {
	Register(identifier string, onDone func())
}

// Status is the load status of one catalog resource. It only ever moves forward.
type Status int

const (
	Pending Status = iota
	Fetching
	Done
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fetching:
		return "fetching"
	case Done:
		return "done"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// resource is one catalog entry. 'members' holds the ids of the loads that are
// currently waiting on the resource, in the order the loads were started.
type resource struct {
	catalog.Descriptor
	status  Status
	members []uint64
}

// request is an active load
type request struct {
	load      *Load
	resources []*resource
	opts      loadOpts
}

// Resource is a snapshot of one catalog resource
type Resource struct {
	Identifier string   `json:"identifier"`
	Weight     *float64 `json:"weight,omitempty"`
	Scene      *string  `json:"scene,omitempty"`
	Status     Status   `json:"status"`
	Loads      []uint64 `json:"loads,omitempty"`
}

// Preloader holds a catalog of resources and schedules loads against it. It is safe
// for concurrent use.
type Preloader struct {
	mu        sync.Mutex
	reg       Registry
	resources []*resource
	discarded []catalog.Discard
	loads     map[uint64]*request
	handles   map[uint64]*Load
	lastID    uint64
	d         *dispatcher
}

// New creates a Preloader that fetches through the passed registry and adds the passed
// items to its catalog with the passed tag. If 'reg' is nil the process default registry
// is used. Call Close when the Preloader is no longer needed.
func New(reg Registry, items []catalog.Item, tag catalog.Tag) *Preloader {
	if reg == nil {
		reg = registry.Default()
	}
	p := &Preloader{
		reg:     reg,
		loads:   make(map[uint64]*request),
		handles: make(map[uint64]*Load),
		d:       newDispatcher(),
	}
	return p.Add(items, tag)
}

// Add appends the passed items to the catalog. An item that does not set its own scene
// or weight gets the one from the tag. Items without an identifier are logged and
// dropped (see Discarded). Items are never merged with items already in the catalog,
// even if they have the same identifier. Add returns the receiver so calls can be
// chained.
func (p *Preloader) Add(items []catalog.Item, tag catalog.Tag) *Preloader {
	p.AddItems(items, tag)
	return p
}

// AddItems is Add for callers that need the outcome: it returns the number of
// resources added and the items dropped by this call.
func (p *Preloader) AddItems(items []catalog.Item, tag catalog.Tag) (int, []catalog.Discard) {
	entries, discarded := catalog.Normalize(items, tag)
	for _, d := range discarded {
		log.Warnf("discarding catalog item %d (%v): %s", d.Index, d.Item, d.Err)
		metrics.IncItemsDiscarded()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		p.resources = append(p.resources, &resource{Descriptor: e})
	}
	p.discarded = append(p.discarded, discarded...)
	metrics.DeltaCatalogResources(float64(len(entries)))
	if len(entries) != 0 {
		log.Debugf("added %d resource(s) to the catalog, catalog size: %d", len(entries), len(p.resources))
	}
	return len(entries), discarded
}

// Discarded returns every item dropped by Add so far. The Index of each is relative to the
// Add call that dropped it.
func (p *Preloader) Discarded() []catalog.Discard {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]catalog.Discard(nil), p.discarded...)
}

// Load starts loading the catalog resources picked by the passed selector and returns
// a handle to the load. Resources that were never requested before are registered with
// the registry, resources already being fetched are just waited on, and resources that
// are already available are counted on the dispatcher. The handle is never completed on
// the caller's goroutine, even if there is nothing to wait for. A load that selects nothing
// completes with zero.
func (p *Preloader) Load(sel catalog.Selector, opts ...LoadOpt) *Load {
	var o loadOpts
	for _, opt := range opts {
		opt(&o)
	}

	p.mu.Lock()
	p.lastID++
	id := p.lastID
	var subset []*resource
	for _, r := range p.resources {
		if sel.Matches(r.Descriptor) {
			subset = append(subset, r)
			r.members = append(r.members, id)
		}
	}
	l := newLoad(id, len(subset), sel.String())
	p.handles[id] = l
	metrics.IncLoadsStarted()
	log.Debugf("load %d (%s) selected %d resource(s)", id, sel, len(subset))

	if len(subset) == 0 {
		p.post(func() { p.complete(l, o, 0) })
		p.mu.Unlock()
		return l
	}
	p.loads[id] = &request{load: l, resources: subset, opts: o}
	metrics.DeltaActiveLoads(1)

	var toRegister []*resource
	for _, r := range subset {
		switch r.status {
		case Pending:
			r.status = Fetching
			toRegister = append(toRegister, r)
		case Done:
			p.post(func() { p.resourceDone(r) })
		}
	}
	p.mu.Unlock()

	// the registry can call back before Register returns
	for _, r := range toRegister {
		p.reg.Register(r.Identifier, func() { p.resourceDone(r) })
	}
	return l
}

// resourceDone marks the resource as available and notifies every load that was
// waiting on it.
func (p *Preloader) resourceDone(r *resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.status = Done
	members := r.members
	r.members = nil
	for _, id := range members {
		if req, ok := p.loads[id]; ok {
			p.notify(id, req)
		}
	}
}

// notify queues a progress notification for the load. If every resource the load selected
// is available then the load is unregistered and its completion is queued behind the
// progress notification. Must be called with the lock held.
func (p *Preloader) notify(id uint64, req *request) {
	completed := 0
	for _, r := range req.resources {
		if r.status == Done {
			completed++
		}
	}
	total := len(req.resources)
	l := req.load
	p.post(func() {
		l.setProgress(completed)
		if req.opts.progress != nil {
			req.opts.progress(completed, total)
		}
	})
	if completed != total {
		return
	}
	delete(p.loads, id)
	for _, r := range req.resources {
		r.members = without(r.members, id)
	}
	metrics.DeltaActiveLoads(-1)
	p.post(func() { p.complete(l, req.opts, completed) })
}

// complete runs on the dispatcher
func (p *Preloader) complete(l *Load, o loadOpts, completed int) {
	if o.completion != nil {
		o.completion(completed)
	}
	l.settle(completed)
	metrics.IncLoadsCompleted()
	log.Infof("load %d complete: %d/%d resource(s) in %s", l.id, completed, l.total, time.Since(l.started))
}

func (p *Preloader) post(fn func()) {
	if !p.d.post(fn) {
		log.Warn("preloader is closed, dropping notification")
	}
}

func without(ids []uint64, id uint64) []uint64 {
	kept := ids[:0]
	for _, i := range ids {
		if i != id {
			kept = append(kept, i)
		}
	}
	return kept
}

// Resources returns a snapshot of the catalog in the order resources were added.
func (p *Preloader) Resources() []Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := make([]Resource, 0, len(p.resources))
	for _, r := range p.resources {
		snap = append(snap, Resource{
			Identifier: r.Identifier,
			Weight:     r.Weight,
			Scene:      r.Scene,
			Status:     r.status,
			Loads:      append([]uint64(nil), r.members...),
		})
	}
	return snap
}

// Active returns the status of every load that has not completed, ordered by id.
func (p *Preloader) Active() []LoadStatus {
	p.mu.Lock()
	active := make([]*Load, 0, len(p.loads))
	for _, req := range p.loads {
		active = append(active, req.load)
	}
	p.mu.Unlock()
	sort.Slice(active, func(i, j int) bool { return active[i].id < active[j].id })
	statuses := make([]LoadStatus, 0, len(active))
	for _, l := range active {
		statuses = append(statuses, l.Status())
	}
	return statuses
}

// Get returns the handle for the load with the passed id, completed or not.
func (p *Preloader) Get(id uint64) (*Load, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.handles[id]
	return l, ok
}

// Close waits for queued notifications to be delivered and stops the dispatcher.
// Notifications for resources that become available after Close are dropped, so
// any load still active will never complete. Close must not be called from a
// progress or completion callback.
func (p *Preloader) Close() {
	p.d.close()
}
