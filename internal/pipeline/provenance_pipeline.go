package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"provgraph/internal/analyzer"
	"provgraph/internal/graph/provenance"
	"provgraph/internal/logger"
	"provgraph/internal/metrics"
	"provgraph/internal/rules"
	"provgraph/internal/transform/auditbeat"
	"provgraph/pkg/models"
)

// Options tunes graph construction and analysis.
type Options struct {
	Store     provenance.StoreOptions
	Race      analyzer.RaceConfig
	Relevance analyzer.RelevanceConfig
}

// DefaultOptions returns the built-in detection settings.
func DefaultOptions() Options {
	return Options{
		Race:      analyzer.DefaultRaceConfig(),
		Relevance: analyzer.DefaultRelevanceConfig(),
	}
}

// Stats counts records by outcome.
type Stats struct {
	Records   int
	Accepted  int
	Malformed int
	Discarded int
	Tagged    int
}

// Result is the outcome of one run.
type Result struct {
	Document *models.RenderDocument
	Stats    Stats
}

// ProvenancePipeline reads one audit log, builds the provenance graph and
// writes the render document.
type ProvenancePipeline struct {
	source    Source
	engine    rules.Engine
	writer    DocumentWriter
	ioaWriter IOAWriter
	metrics   *metrics.Metrics
	opts      Options

	now   func() time.Time
	runID func() string
}

// NewProvenancePipeline creates a pipeline. A nil engine disables tagging.
func NewProvenancePipeline(source Source, engine rules.Engine, writer DocumentWriter, opts Options) *ProvenancePipeline {
	if engine == nil {
		engine = &rules.NoopEngine{}
	}
	return &ProvenancePipeline{
		source: source,
		engine: engine,
		writer: writer,
		opts:   opts,
		now:    time.Now,
		runID:  func() string { return uuid.NewString() },
	}
}

// WithIOAWriter sets a sink for rule-matched records.
func (p *ProvenancePipeline) WithIOAWriter(w IOAWriter) *ProvenancePipeline {
	p.ioaWriter = w
	return p
}

// WithMetrics records run metrics into m.
func (p *ProvenancePipeline) WithMetrics(m *metrics.Metrics) *ProvenancePipeline {
	p.metrics = m
	return p
}

// Run executes the pipeline once. A load failure aborts before anything is
// written.
func (p *ProvenancePipeline) Run(ctx context.Context) (*Result, error) {
	logger.Infof("Provenance pipeline started: source=%s", p.source.Source())

	lines, err := p.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load input: %w", err)
	}

	events, stats := p.parse(lines)
	logger.Infof("Parsed records: total=%d accepted=%d malformed=%d discarded=%d tagged=%d",
		stats.Records, stats.Accepted, stats.Malformed, stats.Discarded, stats.Tagged)

	doc := Analyze(events, p.opts)
	doc.RunID = p.runID()
	doc.GeneratedAt = p.now().UTC()

	if err := p.writer.WriteDocument(doc); err != nil {
		return nil, fmt.Errorf("write render document: %w", err)
	}
	if p.ioaWriter != nil {
		if err := p.ioaWriter.WriteEvents(ioaEvents(events)); err != nil {
			return nil, fmt.Errorf("write ioa events: %w", err)
		}
	}

	p.observe(doc, stats)
	logger.Infof("Provenance pipeline finished: nodes=%d edges=%d races=%d",
		len(doc.Nodes), len(doc.Edges), len(doc.RaceCandidates))
	return &Result{Document: doc, Stats: stats}, nil
}

func (p *ProvenancePipeline) parse(lines [][]byte) ([]*models.Event, Stats) {
	stats := Stats{Records: len(lines)}
	events := make([]*models.Event, 0, len(lines))
	for i, line := range lines {
		ev, err := auditbeat.Parse(line)
		if err != nil {
			if errors.Is(err, auditbeat.ErrMalformed) {
				stats.Malformed++
			} else {
				stats.Discarded++
			}
			logger.Debugf("Skipping record %d: %v", i+1, err)
			continue
		}
		if tags := p.engine.Apply(ev); len(tags) > 0 {
			ev.IoaTags = tags
			stats.Tagged++
		}
		events = append(events, ev)
	}
	stats.Accepted = len(events)
	return events, stats
}

func (p *ProvenancePipeline) observe(doc *models.RenderDocument, stats Stats) {
	m := p.metrics
	if m == nil {
		return
	}
	m.Records.WithLabelValues(metrics.ResultAccepted).Add(float64(stats.Accepted))
	m.Records.WithLabelValues(metrics.ResultMalformed).Add(float64(stats.Malformed))
	m.Records.WithLabelValues(metrics.ResultDiscarded).Add(float64(stats.Discarded))
	m.TaggedRecords.Add(float64(stats.Tagged))

	kinds := map[models.NodeKind]int{models.NodeProcess: 0, models.NodeFile: 0, models.NodeMemory: 0}
	for _, n := range doc.Nodes {
		kinds[n.Kind]++
	}
	for kind, n := range kinds {
		m.Nodes.WithLabelValues(string(kind)).Set(float64(n))
	}
	m.Edges.Set(float64(len(doc.Edges)))
	m.RaceCandidates.Set(float64(len(doc.RaceCandidates)))
	m.Seeds.Set(float64(len(doc.Seeds)))
	m.PrunedNodes.Set(float64(len(doc.PrunedNodes)))
	m.Layers.Set(float64(len(doc.Layers)))
}

// Analyze builds the render document for a set of normalized events. It
// sorts events in place. RunID and GeneratedAt are left for the caller.
func Analyze(events []*models.Event, opts Options) *models.RenderDocument {
	store := provenance.NewStore(opts.Store)
	store.RecordAll(events)

	races := analyzer.DetectRaces(store, opts.Race)
	raceSet := analyzer.RaceSet(races)

	full := provenance.Build(store)
	logger.Debugf("Distinct actions: %v", distinctActions(full))

	filtered := analyzer.FilterRelevant(full, opts.Relevance)
	layout := analyzer.AssignLayers(filtered.Graph, store)
	logger.Debugf("Relevance filter: seeds=%d kept=%d pruned=%d layers=%d",
		len(filtered.Seeds), filtered.Graph.NodeCount(), len(filtered.Pruned), len(layout.Layers))

	doc := &models.RenderDocument{
		Nodes:          make([]models.RenderNode, 0, filtered.Graph.NodeCount()),
		Edges:          make([]models.RenderEdge, 0, filtered.Graph.EdgeCount()),
		Layers:         layout.Layers,
		RaceCandidates: races,
		Highlights:     models.DefaultHighlights(),
		Seeds:          filtered.Seeds,
		PrunedNodes:    filtered.Pruned,
	}
	if doc.Layers == nil {
		doc.Layers = [][]string{}
	}
	if doc.RaceCandidates == nil {
		doc.RaceCandidates = []models.RaceCandidate{}
	}

	for _, n := range filtered.Graph.Nodes() {
		rn := models.RenderNode{
			ID:        n.ID,
			Kind:      n.Kind,
			Label:     n.Label,
			Layer:     layout.Index[n.ID],
			Highlight: models.HighlightFor(n.ID),
			IoaTags:   n.IoaTags,
		}
		if !n.Earliest.IsZero() {
			ts := n.Earliest
			rn.Earliest = &ts
		}
		if _, ok := raceSet[n.ID]; ok {
			rn.RaceCandidate = true
		}
		doc.Nodes = append(doc.Nodes, rn)
	}

	for _, e := range filtered.Graph.Edges() {
		re := models.RenderEdge{
			From:   e.From,
			To:     e.To,
			Action: e.Action,
			Label:  e.Label,
			Count:  e.Count,
		}
		if !e.Timestamp.IsZero() {
			ts := e.Timestamp
			re.Timestamp = &ts
		}
		doc.Edges = append(doc.Edges, re)
	}

	return doc
}

func distinctActions(g *provenance.Graph) []string {
	seen := make(map[string]struct{})
	for _, e := range g.Edges() {
		seen[e.Action] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func ioaEvents(events []*models.Event) []*models.IOAEvent {
	var out []*models.IOAEvent
	for _, ev := range events {
		if len(ev.IoaTags) == 0 {
			continue
		}
		item := &models.IOAEvent{
			Actor:  ev.ActorID(),
			Action: ev.Action,
			Target: ev.FilePath,
			Tags:   ev.IoaTags,
		}
		if ev.HasTimestamp() {
			ts := ev.Timestamp
			item.Timestamp = &ts
		}
		out = append(out, item)
	}
	return out
}
