package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"clusterproxy/internal/cluster"
)

// Metrics holds the Prometheus collectors exported for the cluster topology.
type Metrics struct {
	NodesTotal           prometheus.Gauge
	SlotsMapped          prometheus.Gauge
	ReprocessQueueLength prometheus.Gauge
	Updating             prometheus.Gauge
	Broken               prometheus.Gauge
	DuplicatesTotal      prometheus.Gauge
}

// NewMetrics creates and registers the Prometheus collectors.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		NodesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nodes_total",
				Help:      "Number of nodes known to the cluster topology.",
			},
		),
		SlotsMapped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "slots_mapped",
				Help:      "Number of slot index entries currently mapped.",
			},
		),
		ReprocessQueueLength: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reprocess_queue_length",
				Help:      "Number of requests parked awaiting reconfiguration completion.",
			},
		),
		Updating: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "updating",
				Help:      "1 if a reconfiguration is in progress, 0 otherwise.",
			},
		),
		Broken: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "broken",
				Help:      "1 if the cluster is broken and requires operator intervention, 0 otherwise.",
			},
		),
		DuplicatesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "duplicates_total",
				Help:      "Number of worker-owned duplicates of this cluster.",
			},
		),
	}
}

// Observe refreshes the gauges from the current state of cl.
func (m *Metrics) Observe(cl *cluster.Cluster) {
	m.NodesTotal.Set(float64(len(cl.Nodes)))
	m.SlotsMapped.Set(float64(cl.SlotIndex.Len()))
	m.ReprocessQueueLength.Set(float64(cl.ReprocessLen()))
	m.Updating.Set(boolToFloat(cl.Updating))
	m.Broken.Set(boolToFloat(cl.Broken))
	m.DuplicatesTotal.Set(float64(len(cl.Duplicates)))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
