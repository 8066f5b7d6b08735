package analyzer

import (
	"sort"
	"time"

	"provgraph/internal/graph/provenance"
	"provgraph/internal/timeutil"
)

// EarliestSource resolves a node's earliest reference time.
type EarliestSource interface {
	Earliest(id string) (time.Time, bool)
}

// Layout is the vertical-timeline assignment of a graph.
type Layout struct {
	Layers [][]string
	Index  map[string]int
}

// AssignLayers groups nodes by the one-second bucket of their earliest
// timestamp, earliest bucket first. Nodes with no known time join layer 0.
func AssignLayers(g *provenance.Graph, earliest EarliestSource) Layout {
	type entry struct {
		id     string
		bucket time.Time
		known  bool
	}

	nodes := g.Nodes()
	entries := make([]entry, 0, len(nodes))
	for _, n := range nodes {
		e := entry{id: n.ID}
		if ts, ok := earliest.Earliest(n.ID); ok {
			e.bucket, e.known = timeutil.Bucket(ts)
		}
		entries = append(entries, e)
	}
	// Unknown sorts last here and is moved to layer 0 below.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].known != entries[j].known {
			return entries[i].known
		}
		return entries[i].known && entries[i].bucket.Before(entries[j].bucket)
	})

	var layers [][]string
	var unknown []string
	var last time.Time
	for _, e := range entries {
		if !e.known {
			unknown = append(unknown, e.id)
			continue
		}
		if len(layers) == 0 || !e.bucket.Equal(last) {
			layers = append(layers, nil)
			last = e.bucket
		}
		layers[len(layers)-1] = append(layers[len(layers)-1], e.id)
	}
	if len(unknown) > 0 {
		if len(layers) == 0 {
			layers = append(layers, nil)
		}
		layers[0] = append(layers[0], unknown...)
	}

	index := make(map[string]int, len(entries))
	for i, layer := range layers {
		for _, id := range layer {
			index[id] = i
		}
	}
	return Layout{Layers: layers, Index: index}
}
