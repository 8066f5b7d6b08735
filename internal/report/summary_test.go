package report

import (
	"bytes"
	"strings"
	"testing"

	"provgraph/pkg/models"
)

func sampleDocument() *models.RenderDocument {
	return &models.RenderDocument{
		Nodes: []models.RenderNode{
			{ID: "bash(10)", Kind: models.NodeProcess},
			{ID: "dirtycow(20)", Kind: models.NodeProcess, IoaTags: []models.IoaTag{{ID: "r1"}}},
			{ID: "/etc/passwd", Kind: models.NodeFile},
			{ID: "[memory:0x7f000000...]", Kind: models.NodeMemory},
		},
		Edges: []models.RenderEdge{
			{From: "bash(10)", To: "dirtycow(20)", Action: models.ActionSpawned},
			{From: "dirtycow(20)", To: "/etc/passwd", Action: "write"},
			{From: "dirtycow(20)", To: "/etc/passwd", Action: "open"},
			{From: "dirtycow(20)", To: "[memory:0x7f000000...]", Action: "madvise"},
			{From: "dirtycow(20)", To: "/etc/passwd", Action: "write"},
		},
		Layers: [][]string{{"bash(10)"}, {"dirtycow(20)"}},
		RaceCandidates: []models.RaceCandidate{
			{ActorID: "dirtycow(20)"},
			{ActorID: "dirtycow(20)"},
		},
		PrunedNodes: []string{"bash(99)"},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleDocument())
	if s.NodesByKind[models.NodeProcess] != 2 || s.NodesByKind[models.NodeFile] != 1 || s.NodesByKind[models.NodeMemory] != 1 {
		t.Fatalf("unexpected node counts %v", s.NodesByKind)
	}
	if s.Edges != 5 || s.EdgesByAction["write"] != 2 {
		t.Fatalf("unexpected edge counts %d %v", s.Edges, s.EdgesByAction)
	}
	if len(s.RaceCandidates) != 1 || s.RaceCandidates[0] != "dirtycow(20)" {
		t.Fatalf("expected deduplicated race candidates, got %v", s.RaceCandidates)
	}
	if s.Pruned != 1 || s.Layers != 2 || s.TaggedNodes != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Summarize(sampleDocument())); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"nodes: 4", "edges: 5", "write", "dirtycow(20)", "pruned idle shells: 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Index(out, "write") > strings.Index(out, "madvise") {
		t.Fatalf("expected actions ordered by count:\n%s", out)
	}
}

func TestWriteSummaryNoRaces(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Summarize(nil)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "none") {
		t.Fatalf("expected 'none' for empty race set:\n%s", buf.String())
	}
}
