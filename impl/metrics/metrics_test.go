package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNopBeforeInit(t *testing.T) {
	// none of these should panic before the metrics are created
	IncFetchesStarted()
	IncFetchesByScheme("https")
	DeltaActiveLoads(1)
}

func TestPreloadMetrics(t *testing.T) {
	addPreloadMetrics()
	addPreloadMetrics()
	IncLoadsStarted()
	IncLoadsStarted()
	IncFetchesByScheme("oci")
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.FailNow()
	}
	found := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		found[mf.GetName()] = mf
	}
	mf, ok := found["imgpreload_loads_started_total"]
	if !ok {
		t.FailNow()
	}
	if mf.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fail()
	}
	if _, ok := found["imgpreload_fetches_by_scheme_total"]; !ok {
		t.Fail()
	}
}
