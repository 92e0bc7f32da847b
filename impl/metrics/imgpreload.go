package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// These are the metrics functions exposed by the package. By default they are all
// NOP functions to minimize overhead when metrics are not enabled. The 'addPreloadMetrics'
// function initializes these with functions having implementations if metrics are
// enabled.

var IncFetchesStarted noLabel = func() {}
var IncFetchesCompleted noLabel = func() {}
var IncFetchErrors noLabel = func() {}
var IncFetchesByScheme withLabel = func(string) {}
var AddBytesFetched delta = func(float64) {}
var IncLoadsStarted noLabel = func() {}
var IncLoadsCompleted noLabel = func() {}
var DeltaActiveLoads delta = func(float64) {}
var DeltaCatalogResources delta = func(float64) {}
var IncItemsDiscarded noLabel = func() {}

type withLabel func(string)
type noLabel func()
type delta func(float64)

const (
	namespace               = "imgpreload"
	fetches_started_total   = "fetches_started_total"
	fetches_completed_total = "fetches_completed_total"
	fetch_errors_total      = "fetch_errors_total"
	fetches_by_scheme_total = "fetches_by_scheme_total"
	bytes_fetched_total     = "bytes_fetched_total"
	loads_started_total     = "loads_started_total"
	loads_completed_total   = "loads_completed_total"
	active_loads            = "active_loads"
	catalog_resources       = "catalog_resources"
	items_discarded_total   = "items_discarded_total"
	scheme_label            = "scheme"
)

var once sync.Once

// addPreloadMetrics creates all the imgpreload metrics and registers them with the
// prometheus library. It also assigns a function to actually implement the metric.
// Unless this function is called, all the metric functions exposed by the package
// will be NOP functions. Calling it more than once has no further effect.
func addPreloadMetrics() {
	once.Do(func() {
		fetchesStarted := promauto.NewCounter(prometheus.CounterOpts{
			Name:      fetches_started_total,
			Namespace: namespace,
			Help:      "Total underlying fetches started (at most one per identifier)",
		})
		IncFetchesStarted = func() { fetchesStarted.Inc() }

		fetchesCompleted := promauto.NewCounter(prometheus.CounterOpts{
			Name:      fetches_completed_total,
			Namespace: namespace,
			Help:      "Total underlying fetches that completed successfully",
		})
		IncFetchesCompleted = func() { fetchesCompleted.Inc() }

		fetchErrors := promauto.NewCounter(prometheus.CounterOpts{
			Name:      fetch_errors_total,
			Namespace: namespace,
			Help:      "Total underlying fetches that failed. Waiters on these are never notified",
		})
		IncFetchErrors = func() { fetchErrors.Inc() }

		fetchesByScheme := promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      fetches_by_scheme_total,
			Namespace: namespace,
			Help:      "Total fetches by identifier scheme (http, https, file, oci)",
		}, []string{scheme_label})
		IncFetchesByScheme = func(scheme string) {
			fetchesByScheme.With(prometheus.Labels{scheme_label: scheme}).Inc()
		}

		bytesFetched := promauto.NewCounter(prometheus.CounterOpts{
			Name:      bytes_fetched_total,
			Namespace: namespace,
			Help:      "Total bytes fetched",
		})
		AddBytesFetched = func(delta float64) { bytesFetched.Add(delta) }

		loadsStarted := promauto.NewCounter(prometheus.CounterOpts{
			Name:      loads_started_total,
			Namespace: namespace,
			Help:      "Total load requests",
		})
		IncLoadsStarted = func() { loadsStarted.Inc() }

		loadsCompleted := promauto.NewCounter(prometheus.CounterOpts{
			Name:      loads_completed_total,
			Namespace: namespace,
			Help:      "Total load requests that completed",
		})
		IncLoadsCompleted = func() { loadsCompleted.Inc() }

		activeLoads := promauto.NewGauge(prometheus.GaugeOpts{
			Name:      active_loads,
			Namespace: namespace,
			Help:      "Load requests still waiting on at least one resource",
		})
		DeltaActiveLoads = func(delta float64) { activeLoads.Add(delta) }

		catalogResources := promauto.NewGauge(prometheus.GaugeOpts{
			Name:      catalog_resources,
			Namespace: namespace,
			Help:      "Resources in all catalogs",
		})
		DeltaCatalogResources = func(delta float64) { catalogResources.Add(delta) }

		itemsDiscarded := promauto.NewCounter(prometheus.CounterOpts{
			Name:      items_discarded_total,
			Namespace: namespace,
			Help:      "Catalog items dropped because they had no identifier",
		})
		IncItemsDiscarded = func() { itemsDiscarded.Inc() }
	})
}
