package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"provgraph/pkg/models"
)

// Summary is the console overview of a run.
type Summary struct {
	NodesByKind    map[models.NodeKind]int
	Edges          int
	EdgesByAction  map[string]int
	RaceCandidates []string
	Pruned         int
	Layers         int
	TaggedNodes    int
}

// Summarize counts the render document.
func Summarize(doc *models.RenderDocument) Summary {
	s := Summary{
		NodesByKind:   make(map[models.NodeKind]int),
		EdgesByAction: make(map[string]int),
	}
	if doc == nil {
		return s
	}
	for _, n := range doc.Nodes {
		s.NodesByKind[n.Kind]++
		if len(n.IoaTags) > 0 {
			s.TaggedNodes++
		}
	}
	for _, e := range doc.Edges {
		s.Edges++
		s.EdgesByAction[e.Action]++
	}
	seen := make(map[string]struct{}, len(doc.RaceCandidates))
	for _, rc := range doc.RaceCandidates {
		if _, ok := seen[rc.ActorID]; ok {
			continue
		}
		seen[rc.ActorID] = struct{}{}
		s.RaceCandidates = append(s.RaceCandidates, rc.ActorID)
	}
	sort.Strings(s.RaceCandidates)
	s.Pruned = len(doc.PrunedNodes)
	s.Layers = len(doc.Layers)
	return s
}

// Write prints the summary to w.
func Write(w io.Writer, s Summary) error {
	r := lipgloss.NewRenderer(w)
	heading := r.NewStyle().Bold(true)
	alert := r.NewStyle().Foreground(lipgloss.Color("9"))

	var b strings.Builder
	total := 0
	for _, n := range s.NodesByKind {
		total += n
	}

	fmt.Fprintln(&b, heading.Render("Provenance graph"))
	fmt.Fprintf(&b, "  nodes: %d\n", total)
	for _, kind := range []models.NodeKind{models.NodeProcess, models.NodeFile, models.NodeMemory} {
		fmt.Fprintf(&b, "    %-8s %d\n", kind, s.NodesByKind[kind])
	}
	fmt.Fprintf(&b, "  edges: %d\n", s.Edges)
	for _, action := range sortedActions(s.EdgesByAction) {
		fmt.Fprintf(&b, "    %-16s %d\n", action, s.EdgesByAction[action])
	}
	fmt.Fprintf(&b, "  layers: %d\n", s.Layers)
	fmt.Fprintf(&b, "  pruned idle shells: %d\n", s.Pruned)
	if s.TaggedNodes > 0 {
		fmt.Fprintf(&b, "  rule-tagged nodes: %d\n", s.TaggedNodes)
	}

	fmt.Fprintln(&b, heading.Render("Race candidates"))
	if len(s.RaceCandidates) == 0 {
		fmt.Fprintln(&b, "  none")
	}
	for _, id := range s.RaceCandidates {
		fmt.Fprintf(&b, "  %s\n", alert.Render(id))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// sortedActions orders actions by edge count, then name.
func sortedActions(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for action := range counts {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
