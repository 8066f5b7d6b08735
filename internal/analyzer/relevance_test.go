package analyzer

import (
	"testing"

	"provgraph/internal/graph/provenance"
	"provgraph/pkg/models"
)

func buildGraph(t *testing.T, events ...*models.Event) *provenance.Graph {
	t.Helper()
	s := provenance.NewStore(provenance.StoreOptions{})
	s.RecordAll(events)
	return provenance.Build(s)
}

func TestFilterRelevantKeepsAncestorsAndDescendantsOfSeeds(t *testing.T) {
	spawn := &models.Event{ProcessName: "exploit", PID: "20", Action: "execve", Timestamp: base,
		Parent: &models.Parent{Name: "sshd", PID: "5"}}
	write := &models.Event{ProcessName: "exploit", PID: "20", Action: "write", FilePath: "/tmp/out", Timestamp: base}
	child := &models.Event{ProcessName: "helper", PID: "21", Action: "execve", Timestamp: base,
		Parent: &models.Parent{Name: "exploit", PID: "20"}}
	unrelated := &models.Event{ProcessName: "cron", PID: "7", Action: "open", FilePath: "/var/log/syslog", Timestamp: base}

	res := FilterRelevant(buildGraph(t, spawn, write, child, unrelated), DefaultRelevanceConfig())
	for _, id := range []string{"sshd(5)", "exploit(20)", "helper(21)", "/tmp/out"} {
		if !res.Graph.HasNode(id) {
			t.Fatalf("expected %s to be kept", id)
		}
	}
	for _, id := range []string{"cron(7)", "/var/log/syslog"} {
		if res.Graph.HasNode(id) {
			t.Fatalf("did not expect %s to be kept", id)
		}
	}
}

func TestFilterRelevantSeedsOnKeywordCaseInsensitive(t *testing.T) {
	ev := &models.Event{ProcessName: "DirtyCow", PID: "9", Action: "open", FilePath: "/tmp/foo", Timestamp: base}
	res := FilterRelevant(buildGraph(t, ev), DefaultRelevanceConfig())
	if !res.Graph.HasNode("DirtyCow(9)") || !res.Graph.HasNode("/tmp/foo") {
		t.Fatalf("expected keyword seed and its descendant, got %v", res.Seeds)
	}
}

func TestFilterRelevantPrunesIdleShell(t *testing.T) {
	idle := &models.Event{ProcessName: "bash", PID: "10", Action: "execve", Timestamp: base}
	res := FilterRelevant(buildGraph(t, idle), DefaultRelevanceConfig())
	if res.Graph.HasNode("bash(10)") {
		t.Fatalf("expected idle bash(10) to be pruned")
	}
	if len(res.Pruned) != 1 || res.Pruned[0] != "bash(10)" {
		t.Fatalf("unexpected pruned list %v", res.Pruned)
	}
}

func TestFilterRelevantKeepsShellWithSurvivingEdge(t *testing.T) {
	spawn := &models.Event{ProcessName: "exploit", PID: "20", Action: "execve", Timestamp: base,
		Parent: &models.Parent{Name: "bash", PID: "10"}}
	res := FilterRelevant(buildGraph(t, spawn), DefaultRelevanceConfig())
	if !res.Graph.HasNode("bash(10)") {
		t.Fatalf("expected bash(10) with a spawn edge to be kept")
	}
	if len(res.Pruned) != 0 {
		t.Fatalf("unexpected pruned list %v", res.Pruned)
	}
}

func TestFilterRelevantSeedsOnCriticalActionSubstring(t *testing.T) {
	ev := &models.Event{ProcessName: "worker", PID: "3", Action: "syscall-pwrite64", FilePath: "/data/blob", Timestamp: base}
	res := FilterRelevant(buildGraph(t, ev), DefaultRelevanceConfig())
	if !res.Graph.HasNode("worker(3)") || !res.Graph.HasNode("/data/blob") {
		t.Fatalf("expected critical-action endpoints to be seeds, got %v", res.Seeds)
	}
}

func TestFilterRelevantSeedsOnRuleTags(t *testing.T) {
	ev := &models.Event{ProcessName: "worker", PID: "3", Action: "open", FilePath: "/data/blob", Timestamp: base,
		IoaTags: []models.IoaTag{{ID: "r1", Name: "suspicious open"}}}

	res := FilterRelevant(buildGraph(t, ev), DefaultRelevanceConfig())
	if !res.Graph.HasNode("worker(3)") {
		t.Fatalf("expected tagged node to be kept")
	}

	cfg := DefaultRelevanceConfig()
	cfg.SeedOnTags = false
	res = FilterRelevant(buildGraph(t, ev), cfg)
	if res.Graph.NodeCount() != 0 {
		t.Fatalf("expected empty graph without tag seeding, got %d nodes", res.Graph.NodeCount())
	}
}
