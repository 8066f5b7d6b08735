package provenance

import (
	"fmt"
	"time"

	"provgraph/internal/logger"
	"provgraph/internal/timeutil"
	"provgraph/pkg/models"
)

// Build materializes the store into a graph: one node per id, one edge per
// aggregated (actor, resource, action) key and one edge per spawn fact.
func Build(s *Store) *Graph {
	g := NewGraph()
	for _, id := range s.NodeIDs() {
		info := s.nodes[id]
		n := Node{
			ID:      id,
			Kind:    info.kind,
			Label:   displayLabel(info),
			IoaTags: append([]models.IoaTag(nil), s.tags[id]...),
		}
		if ts, ok := s.Earliest(id); ok {
			n.Earliest = ts
		}
		g.AddNode(n)
	}

	for _, key := range s.EdgeKeys() {
		count := s.counts[key]
		// The timestamp is the actor's global last activity, not this edge's.
		last, _ := s.LastSeen(key.From)
		edge := Edge{
			From:      key.From,
			To:        key.To,
			Action:    key.Action,
			Label:     ActionLabel(key.Action, count, last),
			Count:     count,
			Timestamp: last,
		}
		if err := g.AddEdge(edge); err != nil {
			logger.Errorf("Dropping action edge: %v", err)
		}
	}

	for _, key := range s.SpawnKeys() {
		edge := Edge{
			From:      key.Parent,
			To:        key.Child,
			Action:    models.ActionSpawned,
			Label:     SpawnLabel(key.At),
			Timestamp: key.At,
		}
		if err := g.AddEdge(edge); err != nil {
			logger.Errorf("Dropping spawn edge: %v", err)
		}
	}

	logger.Debugf("Built graph: nodes=%d edges=%d", g.NodeCount(), g.EdgeCount())
	return g
}

// displayLabel wraps long resource paths; process names are kept whole.
func displayLabel(info nodeInfo) string {
	if info.kind == models.NodeProcess {
		return info.label
	}
	return models.WrapLabel(info.label, 0)
}

// ActionLabel renders "action×count" plus the millisecond time when known.
func ActionLabel(action string, count int, last time.Time) string {
	return withTime(fmt.Sprintf("%s×%d", action, count), last)
}

// SpawnLabel renders "spawned" plus the millisecond time when known.
func SpawnLabel(at time.Time) string {
	return withTime(models.ActionSpawned, at)
}

func withTime(label string, ts time.Time) string {
	if ts.IsZero() {
		return label
	}
	return label + "\n" + timeutil.FormatMillis(ts)
}
