package rules

import (
	"os"
	"path/filepath"
	"testing"

	sigma "github.com/bradleyjkemp/sigma-go"

	"provgraph/pkg/models"
)

const madviseRule = `title: Madvise From Untrusted Binary
id: 6f1d2c3a-0001-4d1e-9a55-000000000001
status: experimental
logsource:
  product: linux
  service: auditd
detection:
  selection:
    SYSCALL: madvise
    comm: dirtycow
  condition: selection
level: high
tags:
  - attack.privilege_escalation
  - attack.t1068
`

const windowsRule = `title: Windows Only
id: 6f1d2c3a-0002-4d1e-9a55-000000000002
logsource:
  product: windows
  service: sysmon
detection:
  selection:
    EventID: 1
  condition: selection
`

const nestedFieldRule = `title: Shadow Read
id: 6f1d2c3a-0003-4d1e-9a55-000000000003
logsource:
  product: linux
detection:
  selection:
    file.path: /etc/shadow
  condition: selection
level: medium
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write rule %s: %v", name, err)
	}
}

func TestSigmaEngineLoadsLinuxRulesOnly(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "madvise.yml", madviseRule)
	writeRule(t, dir, "windows.yaml", windowsRule)
	writeRule(t, dir, "broken.yml", "title: [unterminated\n")
	writeRule(t, dir, "README.md", "not a rule")

	_, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if stats.Files != 3 {
		t.Fatalf("expected 3 yaml files, got %d", stats.Files)
	}
	if stats.Loaded != 1 || stats.SkippedLogsource != 1 || stats.SkippedInvalid != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSigmaEngineTagsMatchingEvent(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "madvise.yml", madviseRule)

	engine, _, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}

	hit := &models.Event{ProcessName: "dirtycow", PID: "42", Action: "madvise"}
	tags := engine.Apply(hit)
	if len(tags) != 1 {
		t.Fatalf("expected one tag, got %v", tags)
	}
	if tags[0].Severity != "high" || tags[0].Tactic != "privilege-escalation" || tags[0].Technique != "T1068" {
		t.Fatalf("unexpected tag %+v", tags[0])
	}

	miss := &models.Event{ProcessName: "dirtycow", PID: "42", Action: "write"}
	if tags := engine.Apply(miss); len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
}

func TestSigmaEngineMatchesFlattenedRawFields(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "shadow.yml", nestedFieldRule)

	engine, _, err := NewSigmaEngine(filepath.Join(dir, "shadow.yml"))
	if err != nil {
		t.Fatalf("load rule: %v", err)
	}

	ev := &models.Event{
		ProcessName: "cat",
		PID:         "7",
		Action:      "open",
		FilePath:    "/etc/shadow",
		Raw: map[string]interface{}{
			"file": map[string]interface{}{"path": "/etc/shadow"},
		},
	}
	tags := engine.Apply(ev)
	if len(tags) != 1 || tags[0].Severity != "medium" {
		t.Fatalf("expected medium tag, got %v", tags)
	}
}

func TestNewSigmaEngineRejectsNonYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.txt")
	if err := os.WriteFile(path, []byte(madviseRule), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := NewSigmaEngine(path); err == nil {
		t.Fatalf("expected error for non-yaml rule file")
	}
}

func TestNoopEngine(t *testing.T) {
	var e Engine = &NoopEngine{}
	if tags := e.Apply(&models.Event{Action: "write"}); tags != nil {
		t.Fatalf("expected nil tags, got %v", tags)
	}
}

const keywordRule = `title: Raw Line Keyword
id: 6f1d2c3a-0004-4d1e-9a55-000000000004
logsource:
  product: linux
  service: auditd
detection:
  keywords:
    - dirtycow
  condition: keywords
`

func TestSigmaEngineSkipsKeywordSearches(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "keyword.yml", keywordRule)

	_, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if stats.Loaded != 0 || stats.SkippedCorrelation != 1 {
		t.Fatalf("expected keyword rule to be skipped, got %+v", stats)
	}
}

func TestTagFromRuleParsesAttackTags(t *testing.T) {
	rule := sigma.Rule{
		Title: "Sub Technique",
		Tags:  []string{"attack.g0032", "attack.defense_evasion", "attack.t1055.009", "attack.t1068"},
	}
	tag := tagFromRule(rule)
	if tag.ID != "Sub Technique" || tag.Severity != "medium" {
		t.Fatalf("unexpected defaults %+v", tag)
	}
	if tag.Tactic != "defense-evasion" || tag.Technique != "T1055/009" {
		t.Fatalf("unexpected attack mapping %+v", tag)
	}
}
