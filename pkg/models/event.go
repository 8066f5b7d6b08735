package models

import (
	"fmt"
	"time"
)

// Event is a normalized audit record.
type Event struct {
	Timestamp   time.Time `json:"@timestamp"`
	ProcessName string    `json:"process_name"`
	PID         string    `json:"pid,omitempty"`
	Parent      *Parent   `json:"parent,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	Action      string    `json:"action"`
	Address     string    `json:"address,omitempty"`
	IoaTags     []IoaTag  `json:"ioa_tags,omitempty"`

	Raw map[string]interface{} `json:"-"`
}

// Parent identifies the process that spawned the event's actor.
type Parent struct {
	Name string `json:"name"`
	PID  string `json:"pid"`
}

// HasTimestamp reports whether the record carried a parseable timestamp.
func (e *Event) HasTimestamp() bool {
	return e != nil && !e.Timestamp.IsZero()
}

// ActorID returns the process node id of the event's actor.
func (e *Event) ActorID() string {
	return ProcessNodeID(e.ProcessName, e.PID)
}

// ParentID returns the process node id of the parent, or "" when absent.
func (e *Event) ParentID() string {
	if e.Parent == nil {
		return ""
	}
	return ProcessNodeID(e.Parent.Name, e.Parent.PID)
}

// ProcessNodeID formats the "{name}({pid})" identity of a process node.
func ProcessNodeID(name, pid string) string {
	if pid == "" {
		pid = "?"
	}
	return fmt.Sprintf("%s(%s)", name, pid)
}
