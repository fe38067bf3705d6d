package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

// SetupPrometheus creates the service registry with the runtime collectors, a
// fit45_build_info gauge carrying the version, and any extra collectors.
func SetupPrometheus(versionInfo string, extra ...prometheus.Collector) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "fit45",
		Name:        "build_info",
		Help:        "Build version of the running service.",
		ConstLabels: prometheus.Labels{"version": versionInfo},
	})
	buildInfo.Set(1)

	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
	)
	promRegistry.MustRegister(extra...)

	return promRegistry
}

// PushToGateway sends everything in reg to a Prometheus Pushgateway under the given job.
// One-shot commands use it, they exit before any scrape could happen.
func PushToGateway(ctx context.Context, url, job string, reg *prometheus.Registry) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
