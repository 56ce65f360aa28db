// Package monitoring exposes the Prometheus scrape endpoint for VIGIL-CORE.
// All pipeline and HTTP metrics register themselves on the default registry
// (see internal/metrics); this package only wires the handler and build info.
package monitoring

import (
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Version = "v1.2.0"

// SetupPrometheusMetrics mounts the scrape endpoint and registers build info.
func SetupPrometheusMetrics(router gin.IRoutes, metricsPath string) {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// Ignore duplicate registration so tests can build multiple servers.
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "vigil_core_build_info",
		Help: "Build information for VIGIL-CORE",
		ConstLabels: prometheus.Labels{
			"version":    Version,
			"component":  "vigil-core",
			"go_version": runtime.Version(),
		},
	}, func() float64 { return 1 }))

	router.GET(metricsPath, gin.WrapH(promhttp.Handler()))
}
