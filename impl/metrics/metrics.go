package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// InitMetrics initializes metrics. If the passed port is zero, no action is taken. Otherwise,
// the function creates all the imgpreload metrics and registers them for availability
// at the passed port number under the '/metrics' path. Then it starts an HTTP server to
// serve the metrics. Go runtime and process metrics come from the collectors that the
// prometheus default registry already carries.
func InitMetrics(port int64) {
	if port == 0 {
		return
	}
	addPreloadMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Errorf("metrics server stopped: %s", err)
		}
	}()
}
