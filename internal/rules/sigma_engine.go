package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"provgraph/pkg/models"
)

// RuleLoadStats counts rule files by load outcome.
type RuleLoadStats struct {
	Files              int
	Loaded             int
	SkippedLogsource   int
	SkippedCorrelation int
	SkippedInvalid     int
}

type auditRule struct {
	eval *sigmaevaluator.RuleEvaluator
	tag  models.IoaTag
}

// SigmaEngine evaluates Linux auditd Sigma rules against single auditbeat records.
type SigmaEngine struct {
	rules []auditRule
}

// NewSigmaEngine compiles every auditd-compatible rule under path, which
// may be a single .yml/.yaml file or a directory tree.
func NewSigmaEngine(path string) (*SigmaEngine, RuleLoadStats, error) {
	var stats RuleLoadStats

	files, err := ruleFiles(path)
	if err != nil {
		return nil, stats, err
	}
	stats.Files = len(files)

	engine := &SigmaEngine{}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		rule, err := sigma.ParseRule(raw)
		switch {
		case err != nil:
			stats.SkippedInvalid++
		case !isAuditCompatible(rule):
			stats.SkippedLogsource++
		case !singleRecordRule(rule):
			stats.SkippedCorrelation++
		default:
			engine.rules = append(engine.rules, auditRule{
				eval: sigmaevaluator.ForRule(rule),
				tag:  tagFromRule(rule),
			})
			stats.Loaded++
		}
	}
	return engine, stats, nil
}

// Apply returns the tags of every rule the record matches.
func (e *SigmaEngine) Apply(event *models.Event) []models.IoaTag {
	if e == nil || event == nil || len(e.rules) == 0 {
		return nil
	}

	fields := sigmaEventFrom(event)
	var out []models.IoaTag
	for _, r := range e.rules {
		res, err := r.eval.Matches(context.Background(), fields)
		if err == nil && res.Match {
			out = append(out, r.tag)
		}
	}
	return out
}

func ruleFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}
	if !info.IsDir() {
		if !isYAMLFile(path) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAMLFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	return files, nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func isAuditCompatible(rule sigma.Rule) bool {
	product := strings.ToLower(strings.TrimSpace(rule.Logsource.Product))
	service := strings.ToLower(strings.TrimSpace(rule.Logsource.Service))

	if product != "" && product != "linux" {
		return false
	}
	switch service {
	case "", "auditd", "auditbeat":
		return true
	default:
		return false
	}
}

// singleRecordRule rejects correlation rules (timeframes, aggregations) and
// raw-line keyword searches, none of which can be decided from one record.
func singleRecordRule(rule sigma.Rule) bool {
	if rule.Detection.Timeframe > 0 {
		return false
	}
	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil || !fieldExpr(cond.Search) {
			return false
		}
	}
	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 || len(search.EventMatchers) == 0 {
			return false
		}
	}
	return true
}

func fieldExpr(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.Not:
		return fieldExpr(e.Expr)
	case sigma.And:
		return allFieldExprs(e)
	case sigma.Or:
		return allFieldExprs(e)
	default:
		return false
	}
}

func allFieldExprs(exprs []sigma.SearchExpr) bool {
	for _, child := range exprs {
		if !fieldExpr(child) {
			return false
		}
	}
	return true
}

func sigmaEventFrom(event *models.Event) map[string]interface{} {
	buf := make(map[string]interface{}, 32)
	flatten("", event.Raw, buf)

	buf["SYSCALL"] = event.Action
	buf["comm"] = event.ProcessName
	if event.PID != "" {
		buf["pid"] = event.PID
	}
	if event.Parent != nil {
		buf["ppid"] = event.Parent.PID
	}
	if event.FilePath != "" {
		buf["name"] = event.FilePath
	}
	if event.Address != "" {
		buf["a0"] = event.Address
	}
	return buf
}

func flatten(prefix string, value interface{}, out map[string]interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, child, out)
		}
	case []interface{}:
		if len(v) > 0 {
			flatten(prefix, v[0], out)
		}
	case nil:
		if prefix != "" {
			out[prefix] = nil
		}
	default:
		if prefix != "" {
			out[prefix] = fmt.Sprint(v)
		}
	}
}

func tagFromRule(rule sigma.Rule) models.IoaTag {
	tag := models.IoaTag{
		ID:       strings.TrimSpace(rule.ID),
		Name:     strings.TrimSpace(rule.Title),
		Severity: strings.ToLower(strings.TrimSpace(rule.Level)),
	}
	if tag.ID == "" {
		tag.ID = tag.Name
	}
	if tag.Severity == "" {
		tag.Severity = "medium"
	}

	for _, raw := range rule.Tags {
		name, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(raw)), "attack.")
		if !ok || name == "" {
			continue
		}
		if isTechniqueID(name) {
			if tag.Technique == "" {
				tag.Technique = strings.ToUpper(strings.ReplaceAll(name, ".", "/"))
			}
			continue
		}
		// g1234 and s1234 are group and software ids; no tactic starts with g or s.
		if tag.Tactic == "" && !strings.HasPrefix(name, "g") && !strings.HasPrefix(name, "s") {
			tag.Tactic = strings.ReplaceAll(name, "_", "-")
		}
	}
	return tag
}

// isTechniqueID matches t1234 and t1234.001.
func isTechniqueID(name string) bool {
	id, sub, hasSub := strings.Cut(name, ".")
	if len(id) != 5 || id[0] != 't' || !allDigits(id[1:]) {
		return false
	}
	return !hasSub || (len(sub) == 3 && allDigits(sub))
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
