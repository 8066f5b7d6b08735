package models

import "time"

// IoaTag represents a rule match annotation.
type IoaTag struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}

// IOAEvent is an audit record that matched at least one rule.
type IOAEvent struct {
	Timestamp *time.Time `json:"ts,omitempty"`
	Actor     string     `json:"actor"`
	Action    string     `json:"action"`
	Target    string     `json:"target,omitempty"`
	Tags      []IoaTag   `json:"tags"`
}
