package analyzer

import (
	"sort"
	"strings"

	"provgraph/internal/graph/provenance"
)

// RelevanceConfig controls seed selection and noise pruning.
type RelevanceConfig struct {
	SeedKeywords    []string
	CriticalActions []string
	ShellKeyword    string
	// SeedOnTags also seeds every node carrying a rule match.
	SeedOnTags bool
}

// DefaultRelevanceConfig returns the Dirty COW oriented keyword lists.
func DefaultRelevanceConfig() RelevanceConfig {
	return RelevanceConfig{
		SeedKeywords:    []string{"dirty", "cow", "passwd", "shadow", "bash", "mem"},
		CriticalActions: []string{"madvise", "mmap", "write", "pwrite"},
		ShellKeyword:    "bash",
		SeedOnTags:      true,
	}
}

// FilterResult is the relevant subgraph and how it was derived.
type FilterResult struct {
	Graph  *provenance.Graph
	Seeds  []string
	Pruned []string
}

// FilterRelevant keeps every seed together with all of its ancestors and
// descendants, then drops idle shell nodes left without edges.
func FilterRelevant(g *provenance.Graph, cfg RelevanceConfig) FilterResult {
	seeds := selectSeeds(g, cfg)

	keep := make(map[string]struct{}, len(seeds)*4)
	for id := range reachable(g, seeds, true) {
		keep[id] = struct{}{}
	}
	for id := range reachable(g, seeds, false) {
		keep[id] = struct{}{}
	}
	sub := g.Subgraph(keep)

	shell := strings.ToLower(strings.TrimSpace(cfg.ShellKeyword))
	drop := make(map[string]struct{})
	var pruned []string
	if shell != "" {
		for _, n := range sub.Nodes() {
			if sub.Degree(n.ID) == 0 && strings.Contains(strings.ToLower(n.ID), shell) {
				drop[n.ID] = struct{}{}
				pruned = append(pruned, n.ID)
			}
		}
	}
	if len(drop) > 0 {
		sub = sub.Without(drop)
	}

	return FilterResult{
		Graph:  sub,
		Seeds:  sortedKeys(seeds),
		Pruned: pruned,
	}
}

func selectSeeds(g *provenance.Graph, cfg RelevanceConfig) map[string]struct{} {
	keywords := lowerAll(cfg.SeedKeywords)
	critical := lowerAll(cfg.CriticalActions)

	seeds := make(map[string]struct{})
	for _, n := range g.Nodes() {
		if containsSubstring(strings.ToLower(n.ID), keywords) {
			seeds[n.ID] = struct{}{}
			continue
		}
		if cfg.SeedOnTags && len(n.IoaTags) > 0 {
			seeds[n.ID] = struct{}{}
		}
	}
	for _, e := range g.Edges() {
		if containsSubstring(strings.ToLower(e.Action), critical) {
			seeds[e.From] = struct{}{}
			seeds[e.To] = struct{}{}
		}
	}
	return seeds
}

// reachable runs a multi-source BFS over out-edges (forward) or in-edges.
// The sources themselves are included.
func reachable(g *provenance.Graph, sources map[string]struct{}, forward bool) map[string]struct{} {
	visited := make(map[string]struct{}, len(sources)*2)
	queue := make([]string, 0, len(sources))
	for id := range sources {
		visited[id] = struct{}{}
		queue = append(queue, id)
	}

	head := 0
	for head < len(queue) {
		cur := queue[head]
		head++
		edges := g.OutEdges(cur)
		if !forward {
			edges = g.InEdges(cur)
		}
		for _, e := range edges {
			next := e.To
			if !forward {
				next = e.From
			}
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return visited
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func containsSubstring(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
