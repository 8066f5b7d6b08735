package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"provgraph/config"
	"provgraph/internal/analyzer"
	"provgraph/internal/graph/provenance"
	inputfile "provgraph/internal/input/file"
	inputredis "provgraph/internal/input/redis"
	"provgraph/internal/logger"
	"provgraph/internal/metrics"
	"provgraph/internal/output/graphhttp"
	"provgraph/internal/output/graphjson"
	"provgraph/internal/output/ioajson"
	"provgraph/internal/pipeline"
	"provgraph/internal/report"
	"provgraph/internal/rules"
	"provgraph/pkg/models"
)

const defaultConfigName = "provgraph.yml"

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadConfig reads the config file when one exists and applies defaults and
// environment overrides. A missing file is not an error.
func loadConfig(configArg string) (*config.Config, string, error) {
	path := findConfigFile(configArg)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	d := cfg.ProvGraph.Detection
	seedOnTags := cfg.ProvGraph.Rules.SeedOnMatch == nil || *cfg.ProvGraph.Rules.SeedOnMatch
	return pipeline.Options{
		Store: provenance.StoreOptions{
			MemoryActions:       d.MemoryActions,
			MemoryAddressPrefix: d.MemoryAddressPrefix,
		},
		Race: analyzer.RaceConfig{
			AdvisoryActions:        d.AdvisoryActions,
			WriteActions:           d.WriteActions,
			PositionalWriteActions: d.PositionalWriteActions,
		},
		Relevance: analyzer.RelevanceConfig{
			SeedKeywords:    d.SeedKeywords,
			CriticalActions: d.CriticalActions,
			ShellKeyword:    d.ShellKeyword,
			SeedOnTags:      seedOnTags,
		},
	}
}

func newSource(cfg *config.Config) (pipeline.Source, func() error, error) {
	in := cfg.ProvGraph.Input
	switch in.Mode {
	case "file":
		return inputfile.NewReader(in.File.Path), func() error { return nil }, nil
	case "redis":
		r, err := inputredis.NewReader(inputredis.Config{
			Addr:     in.Redis.Addr,
			Password: in.Redis.Password,
			DB:       in.Redis.DB,
			Key:      in.Redis.Key,
			Timeout:  in.Redis.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown input mode: %s", in.Mode)
	}
}

func newWriter(cfg *config.Config) (pipeline.DocumentWriter, error) {
	out := cfg.ProvGraph.Output
	switch out.Mode {
	case "file":
		return graphjson.NewWriter(out.File.Path)
	case "http":
		return graphhttp.NewWriter(graphhttp.Config{
			URL:     out.HTTP.URL,
			Timeout: out.HTTP.Timeout,
			Headers: out.HTTP.Headers,
		})
	default:
		return nil, fmt.Errorf("unknown output mode: %s", out.Mode)
	}
}

func newEngine(cfg *config.Config) (rules.Engine, error) {
	rc := cfg.ProvGraph.Rules
	if !rc.Enabled {
		return &rules.NoopEngine{}, nil
	}
	if strings.TrimSpace(rc.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; IOA tagging disabled")
		return &rules.NoopEngine{}, nil
	}
	sigmaEngine, stats, err := rules.NewSigmaEngine(rc.Path)
	if err != nil {
		return nil, fmt.Errorf("load sigma rules from %s: %w", rc.Path, err)
	}
	logger.Infof("Auditd Sigma rules loaded: loaded=%d skipped_logsource=%d skipped_correlation=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedLogsource,
		stats.SkippedCorrelation,
		stats.SkippedInvalid,
		stats.Files,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No linux/auditd Sigma rules loaded; auditbeat records will not be tagged")
	}
	return sigmaEngine, nil
}

func runBuild(args []string) int {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	cfg, configPath, err := loadConfig(configArg)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	lc := cfg.ProvGraph.Logging
	if err := logger.Init(lc.Enabled, lc.Level, lc.File, lc.Console); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}

	logger.Infof("provgraph starting")
	if configPath != "" {
		logger.Infof("Config loaded from: %s", configPath)
	} else {
		logger.Infof("No config file found; using defaults")
	}

	source, closeSource, err := newSource(cfg)
	if err != nil {
		logger.Errorf("Failed to create input: %v", err)
		return 1
	}
	defer closeSource()

	engine, err := newEngine(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load before any writer exists so an unreadable input leaves no output behind.
	lines, err := source.Load(ctx)
	if err != nil {
		logger.Errorf("Failed to read input %s: %v", source.Source(), err)
		return 1
	}

	writer, err := newWriter(cfg)
	if err != nil {
		logger.Errorf("Failed to create output writer: %v", err)
		return 1
	}
	defer writer.Close()

	m := metrics.New()
	pipe := pipeline.NewProvenancePipeline(preloaded{source: source.Source(), lines: lines}, engine, writer, pipelineOptions(cfg)).
		WithMetrics(m)

	if path := strings.TrimSpace(cfg.ProvGraph.Rules.MatchesOutput); path != "" {
		w, err := ioajson.NewWriter(path)
		if err != nil {
			logger.Errorf("Failed to create IOA file writer: %v", err)
			return 1
		}
		defer w.Close()
		pipe.WithIOAWriter(w)
	}

	res, err := pipe.Run(ctx)
	if err != nil {
		logger.Errorf("Pipeline error: %v", err)
		return 1
	}

	if err := report.Write(os.Stdout, report.Summarize(res.Document)); err != nil {
		logger.Warnf("Failed to print summary: %v", err)
	}
	if err := m.WriteTextfile(cfg.ProvGraph.Metrics.Textfile); err != nil {
		logger.Warnf("%v", err)
	}

	logger.Infof("provgraph finished")
	return 0
}

// preloaded replays lines that were already read.
type preloaded struct {
	source string
	lines  [][]byte
}

func (p preloaded) Load(ctx context.Context) ([][]byte, error) { return p.lines, nil }
func (p preloaded) Source() string                             { return p.source }

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	input := fs.String("input", "output/provenance_graph.json", "Render document to summarize")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	doc, err := readDocument(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read render document: %v\n", err)
		return 1
	}
	if err := report.Write(os.Stdout, report.Summarize(doc)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to print summary: %v\n", err)
		return 1
	}
	return 0
}

func readDocument(path string) (*models.RenderDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc models.RenderDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc.RunID == "" {
		return nil, errors.New("document has no run_id")
	}
	return &doc, nil
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "build":
			os.Exit(runBuild(os.Args[2:]))
		case "inspect":
			os.Exit(runInspect(os.Args[2:]))
		default:
			// A bare argument is the config path.
			os.Exit(runBuild(os.Args[1:]))
		}
	}

	os.Exit(runBuild(nil))
}
