package models

import (
	"strings"
	"time"
)

// NodeKind classifies graph nodes.
type NodeKind string

const (
	NodeProcess NodeKind = "process"
	NodeFile    NodeKind = "file"
	NodeMemory  NodeKind = "memory"
)

// ActionSpawned is the action name carried by parent -> child edges.
const ActionSpawned = "spawned"

// Highlight targets the renderer color-codes.
const (
	PasswdFile  = "/etc/passwd"
	ShadowFile  = "/etc/shadow"
	ProcSelfMem = "/proc/self/mem"

	HighlightTargetFile  = "target_file"
	HighlightProcSelfMem = "proc_self_mem"
)

// TargetFiles are the sensitive files an exploit is expected to modify.
var TargetFiles = []string{PasswdFile, ShadowFile}

// HighlightFor classifies a node id against the highlight targets.
func HighlightFor(id string) string {
	switch id {
	case PasswdFile, ShadowFile:
		return HighlightTargetFile
	case ProcSelfMem:
		return HighlightProcSelfMem
	default:
		return ""
	}
}

// RenderDocument is everything the external renderer consumes.
type RenderDocument struct {
	RunID          string          `json:"run_id"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Nodes          []RenderNode    `json:"nodes"`
	Edges          []RenderEdge    `json:"edges"`
	Layers         [][]string      `json:"layers"`
	RaceCandidates []RaceCandidate `json:"race_candidates"`
	Highlights     Highlights      `json:"highlights"`
	Seeds          []string        `json:"seeds,omitempty"`
	PrunedNodes    []string        `json:"pruned_nodes,omitempty"`
}

// RenderNode is a node with its display attributes.
type RenderNode struct {
	ID            string     `json:"id"`
	Kind          NodeKind   `json:"kind"`
	Label         string     `json:"label"`
	Layer         int        `json:"layer"`
	Earliest      *time.Time `json:"earliest,omitempty"`
	RaceCandidate bool       `json:"race_candidate,omitempty"`
	Highlight     string     `json:"highlight,omitempty"`
	IoaTags       []IoaTag   `json:"ioa_tags,omitempty"`
}

// RenderEdge is an aggregated action edge or a spawn edge.
type RenderEdge struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	Action    string     `json:"action"`
	Label     string     `json:"label"`
	Count     int        `json:"count,omitempty"`
	Timestamp *time.Time `json:"ts,omitempty"`
}

// Highlights exposes the fixed highlight-target identifiers.
type Highlights struct {
	TargetFiles []string `json:"target_files"`
	ProcSelfMem string   `json:"proc_self_mem"`
}

// DefaultHighlights returns the fixed highlight targets.
func DefaultHighlights() Highlights {
	return Highlights{
		TargetFiles: append([]string(nil), TargetFiles...),
		ProcSelfMem: ProcSelfMem,
	}
}

// WrapLabel word-wraps long node ids for compact labels, preferring to
// break paths at "/" boundaries.
func WrapLabel(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 16
	}
	if text == "" || len(text) <= maxLen {
		return text
	}
	if strings.Contains(text, "/") {
		var out []string
		line := ""
		for i, part := range strings.Split(text, "/") {
			if i == 0 {
				line = part
				continue
			}
			if line == "" || len(line)+len(part)+1 <= maxLen {
				line += "/" + part
				continue
			}
			out = append(out, line)
			line = "/" + part
		}
		out = append(out, line)
		return strings.Join(out, "\n")
	}
	var out []string
	for i := 0; i < len(text); i += maxLen {
		end := i + maxLen
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[i:end])
	}
	return strings.Join(out, "\n")
}
