package provenance

import (
	"testing"
	"time"

	"provgraph/pkg/models"
)

func TestBuildLabelsActionEdgesWithActorLastSeen(t *testing.T) {
	s := NewStore(StoreOptions{})
	w := event("p", "1", "write", t0.Add(471*time.Millisecond))
	w.FilePath = models.PasswdFile
	r := event("p", "1", "read", t0.Add(2*time.Second))
	r.FilePath = "/etc/hosts"
	s.RecordAll([]*models.Event{w, r})

	g := Build(s)
	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Fatalf("unexpected graph size nodes=%d edges=%d", g.NodeCount(), g.EdgeCount())
	}
	var write *Edge
	for _, e := range g.Edges() {
		if e.Action == "write" {
			write = e
		}
	}
	if write == nil {
		t.Fatalf("missing write edge")
	}
	if write.Label != "write×1\n11:11:37.000" {
		t.Fatalf("expected actor last-seen in label, got %q", write.Label)
	}
}

func TestBuildKeepsDistinctActionsOnSamePair(t *testing.T) {
	s := NewStore(StoreOptions{})
	for _, action := range []string{"open", "write", "write"} {
		ev := event("p", "1", action, t0)
		ev.FilePath = models.ProcSelfMem
		s.Record(ev)
	}
	g := Build(s)
	if g.EdgeCount() != 2 {
		t.Fatalf("expected 2 edges on the same pair, got %d", g.EdgeCount())
	}
	if g.Degree(models.ProcSelfMem) != 2 {
		t.Fatalf("unexpected degree %d", g.Degree(models.ProcSelfMem))
	}
}

func TestBuildAddsSpawnEdgesParentToChild(t *testing.T) {
	s := NewStore(StoreOptions{})
	ev := event("child", "11", "execve", t0)
	ev.Parent = &models.Parent{Name: "bash", PID: "10"}
	s.Record(ev)
	noTime := event("child", "11", "execve", time.Time{})
	noTime.Parent = &models.Parent{Name: "bash", PID: "10"}
	s.Record(noTime)

	g := Build(s)
	out := g.OutEdges("bash(10)")
	if len(out) != 2 {
		t.Fatalf("expected 2 spawn edges, got %d", len(out))
	}
	if out[0].Label != "spawned" || out[1].Label != "spawned\n11:11:35.000" {
		t.Fatalf("unexpected spawn labels %q %q", out[0].Label, out[1].Label)
	}
	if len(g.InEdges("bash(10)")) != 0 {
		t.Fatalf("spawn edges must not point back at the parent")
	}
}

func TestSubgraphAndWithout(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(Node{ID: id, Kind: models.NodeProcess})
	}
	if err := g.AddEdge(Edge{From: "a", To: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEdge(Edge{From: "b", To: "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEdge(Edge{From: "a", To: "missing"}); err == nil {
		t.Fatalf("expected error for edge to unknown node")
	}

	sub := g.Subgraph(map[string]struct{}{"a": {}, "b": {}})
	if sub.NodeCount() != 2 || sub.EdgeCount() != 1 {
		t.Fatalf("unexpected subgraph nodes=%d edges=%d", sub.NodeCount(), sub.EdgeCount())
	}
	rest := g.Without(map[string]struct{}{"b": {}})
	if rest.EdgeCount() != 0 || rest.NodeCount() != 2 {
		t.Fatalf("unexpected graph after removal nodes=%d edges=%d", rest.NodeCount(), rest.EdgeCount())
	}
}

func TestBuildLabelsProcessNodesWithNameOnly(t *testing.T) {
	s := NewStore(StoreOptions{})
	ev := event("p", "1", "write", t0)
	ev.FilePath = "/usr/lib/x86_64-linux-gnu/libc.so.6"
	ev.Parent = &models.Parent{Name: "bash", PID: "10"}
	s.Record(ev)

	g := Build(s)
	cases := map[string]string{
		"p(1)":      "p",
		"bash(10)":  "bash",
		ev.FilePath: "/usr/lib\n/x86_64-linux-gnu\n/libc.so.6",
	}
	for id, want := range cases {
		n, ok := g.Node(id)
		if !ok {
			t.Fatalf("missing node %s", id)
		}
		if n.Label != want {
			t.Fatalf("node %s label=%q want %q", id, n.Label, want)
		}
	}
}
