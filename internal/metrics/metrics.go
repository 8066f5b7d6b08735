package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "provgraph"

// Record outcomes.
const (
	ResultAccepted  = "accepted"
	ResultMalformed = "malformed"
	ResultDiscarded = "discarded"
)

// Metrics holds the run counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Records        *prometheus.CounterVec
	TaggedRecords  prometheus.Counter
	Nodes          *prometheus.GaugeVec
	Edges          prometheus.Gauge
	RaceCandidates prometheus.Gauge
	Seeds          prometheus.Gauge
	PrunedNodes    prometheus.Gauge
	Layers         prometheus.Gauge
}

// New creates and registers the run metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Audit records read, by outcome.",
		}, []string{"result"}),
		TaggedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tagged_records_total",
			Help:      "Records matched by at least one Sigma rule.",
		}),
		Nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the filtered provenance graph, by kind.",
		}, []string{"kind"}),
		Edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the filtered provenance graph.",
		}),
		RaceCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "race_candidates",
			Help:      "Processes flagged as race-condition candidates.",
		}),
		Seeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relevance_seeds",
			Help:      "Seed nodes selected by the relevance filter.",
		}),
		PrunedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pruned_nodes",
			Help:      "Idle shell nodes removed after filtering.",
		}),
		Layers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layers",
			Help:      "Temporal layers in the layout.",
		}),
	}
	m.registry.MustRegister(
		m.Records,
		m.TaggedRecords,
		m.Nodes,
		m.Edges,
		m.RaceCandidates,
		m.Seeds,
		m.PrunedNodes,
		m.Layers,
	)
	return m
}

// WriteTextfile writes the registry in text exposition format for the
// node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
