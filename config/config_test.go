package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesDefaultsAroundOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provgraph.yml")
	body := `provgraph:
  input:
    file:
      path: /var/log/audit.jsonl
  detection:
    seed_keywords: [exploit]
  rules:
    seed_on_match: false
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ApplyDefaults(cfg)

	pg := cfg.ProvGraph
	if pg.Input.Mode != "file" || pg.Input.File.Path != "/var/log/audit.jsonl" {
		t.Fatalf("unexpected input config: %+v", pg.Input)
	}
	if len(pg.Detection.SeedKeywords) != 1 || pg.Detection.SeedKeywords[0] != "exploit" {
		t.Fatalf("expected overridden seed keywords, got %v", pg.Detection.SeedKeywords)
	}
	if len(pg.Detection.CriticalActions) != 4 {
		t.Fatalf("expected default critical actions, got %v", pg.Detection.CriticalActions)
	}
	if pg.Rules.SeedOnMatch == nil || *pg.Rules.SeedOnMatch {
		t.Fatalf("expected seed_on_match=false to survive defaults")
	}
	if pg.Output.File.Path != "output/provenance_graph.json" {
		t.Fatalf("unexpected output path %q", pg.Output.File.Path)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyEnvOverridesPaths(t *testing.T) {
	t.Setenv("PROVGRAPH_INPUT", "/tmp/in.log")
	t.Setenv("PROVGRAPH_OUTPUT", "/tmp/out.json")
	t.Setenv("PROVGRAPH_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ProvGraph.Input.Mode = "redis"
	if ApplyEnv(cfg, filepath.Join(t.TempDir(), "absent.env")) {
		t.Fatalf("expected missing .env to report false")
	}
	pg := cfg.ProvGraph
	if pg.Input.Mode != "file" || pg.Input.File.Path != "/tmp/in.log" {
		t.Fatalf("unexpected input %+v", pg.Input)
	}
	if pg.Output.File.Path != "/tmp/out.json" || pg.Logging.Level != "debug" {
		t.Fatalf("unexpected overrides %+v %+v", pg.Output, pg.Logging)
	}
}

func TestApplyEnvReadsDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PROVGRAPH_REDIS_ADDR=10.0.0.5:6379\n"), 0644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("PROVGRAPH_REDIS_ADDR", "")
	os.Unsetenv("PROVGRAPH_REDIS_ADDR")

	cfg := Default()
	if !ApplyEnv(cfg, path) {
		t.Fatalf("expected .env to load")
	}
	if cfg.ProvGraph.Input.Redis.Addr != "10.0.0.5:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.ProvGraph.Input.Redis.Addr)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("PROVGRAPH_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lg := cfg.ProvGraph.Logging
	if !lg.Enabled || !lg.Console || lg.Level != "warn" {
		t.Fatalf("unexpected logging config %+v", lg)
	}
	if cfg.ProvGraph.Input.File.Path != "auditbeat-report.log" {
		t.Fatalf("unexpected input path %q", cfg.ProvGraph.Input.File.Path)
	}
}

func TestLoadFileKeepsExplicitLogging(t *testing.T) {
	t.Setenv("PROVGRAPH_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "provgraph.yml")
	if err := os.WriteFile(path, []byte("provgraph:\n  logging:\n    enabled: false\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProvGraph.Logging.Enabled {
		t.Fatalf("expected logging disabled from file")
	}
	if cfg.ProvGraph.Logging.Level != "info" || cfg.ProvGraph.Output.Mode != "file" {
		t.Fatalf("expected defaults applied, got %+v", cfg.ProvGraph)
	}
}
