package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	ProvGraph ProvGraphConfig `yaml:"provgraph"`
}

// ProvGraphConfig is the project configuration.
type ProvGraphConfig struct {
	Input     InputConfig     `yaml:"input"`
	Detection DetectionConfig `yaml:"detection"`
	Rules     RulesConfig     `yaml:"rules"`
	Output    OutputConfig    `yaml:"output"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InputConfig selects where the audit log is read from.
type InputConfig struct {
	Mode  string          `yaml:"mode"` // file|redis
	File  FileInputConfig `yaml:"file"`
	Redis RedisConfig     `yaml:"redis"`
}

// FileInputConfig points at a newline-delimited JSON log.
type FileInputConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig controls the Redis list snapshot input.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DetectionConfig holds the keyword and action lists. The defaults follow
// the Dirty COW investigation; other investigations override them here.
type DetectionConfig struct {
	SeedKeywords           []string `yaml:"seed_keywords"`
	ShellKeyword           string   `yaml:"shell_keyword"`
	CriticalActions        []string `yaml:"critical_actions"`
	AdvisoryActions        []string `yaml:"advisory_actions"`
	WriteActions           []string `yaml:"write_actions"`
	PositionalWriteActions []string `yaml:"positional_write_actions"`
	MemoryActions          []string `yaml:"memory_actions"`
	MemoryAddressPrefix    int      `yaml:"memory_address_prefix"`
}

// RulesConfig controls optional Sigma tagging.
type RulesConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	SeedOnMatch *bool  `yaml:"seed_on_match"`
	// MatchesOutput, when set, receives one JSON line per tagged record.
	MatchesOutput string `yaml:"matches_output"`
}

// OutputConfig controls where the render document goes.
type OutputConfig struct {
	Mode string           `yaml:"mode"` // file|http
	File FileOutputConfig `yaml:"file"`
	HTTP HTTPOutputConfig `yaml:"http"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// MetricsConfig controls run metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with only defaults applied. Logging is
// on and goes to the console.
func Default() *Config {
	cfg := &Config{}
	cfg.ProvGraph.Logging.Enabled = true
	cfg.ProvGraph.Logging.Console = true
	ApplyDefaults(cfg)
	return cfg
}

// Load builds the run configuration: the file at path (or the defaults when
// path is empty), then defaults for unset fields, then .env and PROVGRAPH_*
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		ApplyDefaults(loaded)
		cfg = loaded
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	pg := &cfg.ProvGraph

	if pg.Input.Mode == "" {
		pg.Input.Mode = "file"
	}
	if pg.Input.File.Path == "" {
		pg.Input.File.Path = "auditbeat-report.log"
	}
	if pg.Input.Redis.Addr == "" {
		pg.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if pg.Input.Redis.Key == "" {
		pg.Input.Redis.Key = "auditbeat_events"
	}
	if pg.Input.Redis.Timeout <= 0 {
		pg.Input.Redis.Timeout = 10 * time.Second
	}

	d := &pg.Detection
	if len(d.SeedKeywords) == 0 {
		d.SeedKeywords = []string{"dirty", "cow", "passwd", "shadow", "bash", "mem"}
	}
	if d.ShellKeyword == "" {
		d.ShellKeyword = "bash"
	}
	if len(d.CriticalActions) == 0 {
		d.CriticalActions = []string{"madvise", "mmap", "write", "pwrite"}
	}
	if len(d.AdvisoryActions) == 0 {
		d.AdvisoryActions = []string{"madvise"}
	}
	if len(d.WriteActions) == 0 {
		d.WriteActions = []string{"write"}
	}
	if len(d.PositionalWriteActions) == 0 {
		d.PositionalWriteActions = []string{"pwrite"}
	}
	if len(d.MemoryActions) == 0 {
		d.MemoryActions = []string{"madvise", "mmap", "munmap", "mprotect"}
	}
	if d.MemoryAddressPrefix <= 0 {
		d.MemoryAddressPrefix = 10
	}

	if pg.Rules.SeedOnMatch == nil {
		seed := true
		pg.Rules.SeedOnMatch = &seed
	}

	if pg.Output.Mode == "" {
		pg.Output.Mode = "file"
	}
	if pg.Output.File.Path == "" {
		pg.Output.File.Path = "output/provenance_graph.json"
	}
	if pg.Output.HTTP.Timeout <= 0 {
		pg.Output.HTTP.Timeout = 5 * time.Second
	}

	if pg.Logging.Level == "" {
		pg.Logging.Level = "info"
	}
}

// ApplyEnv loads an optional .env file and applies PROVGRAPH_* overrides.
// It returns false when no .env file was found.
func ApplyEnv(cfg *Config, files ...string) bool {
	loaded := godotenv.Load(files...) == nil

	pg := &cfg.ProvGraph
	if v := getenv("PROVGRAPH_INPUT"); v != "" {
		pg.Input.Mode = "file"
		pg.Input.File.Path = v
	}
	if v := getenv("PROVGRAPH_REDIS_ADDR"); v != "" {
		pg.Input.Redis.Addr = v
	}
	if v := getenv("PROVGRAPH_OUTPUT"); v != "" {
		pg.Output.Mode = "file"
		pg.Output.File.Path = v
	}
	if v := getenv("PROVGRAPH_LOG_LEVEL"); v != "" {
		pg.Logging.Level = v
	}
	return loaded
}

func getenv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
