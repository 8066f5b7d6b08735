package auditbeat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"provgraph/internal/timeutil"
	"provgraph/pkg/models"
)

var (
	// ErrMalformed marks a record that is not a JSON object.
	ErrMalformed = errors.New("malformed record")
	// ErrNoActor marks a record without process.name.
	ErrNoActor = errors.New("record has no actor")
	// ErrNoAction marks a record where no action source resolved.
	ErrNoAction = errors.New("record has no action")
)

// extractor resolves one optional value from a raw record.
type extractor func(raw map[string]interface{}) (string, bool)

// actionChain is tried in order; the first present value wins.
var actionChain = []extractor{
	field("event.action"),
	field("auditd.data.syscall"),
	field("event.type"),
}

func field(path string) extractor {
	return func(raw map[string]interface{}) (string, bool) {
		v := getString(raw, path)
		return v, v != ""
	}
}

// Parse decodes one auditbeat JSON line into a normalized Event.
func Parse(data []byte) (*models.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrMalformed
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, ErrMalformed
	}
	return Normalize(raw)
}

// Normalize converts an already decoded record. Records without an actor
// name or a resolvable action are rejected; a bad timestamp is not.
func Normalize(raw map[string]interface{}) (*models.Event, error) {
	name := getString(raw, "process.name")
	if name == "" {
		return nil, ErrNoActor
	}

	action := ""
	for _, extract := range actionChain {
		if v, ok := extract(raw); ok {
			action = v
			break
		}
	}
	if action == "" {
		return nil, ErrNoAction
	}

	event := &models.Event{
		ProcessName: name,
		PID:         getString(raw, "process.pid"),
		FilePath:    getString(raw, "file.path"),
		Action:      action,
		Address:     getString(raw, "auditd.data.a0"),
		Raw:         raw,
	}
	if t, ok := timeutil.Parse(getString(raw, "@timestamp")); ok {
		event.Timestamp = t
	}

	parentName := getString(raw, "process.parent.name")
	parentPID := getString(raw, "process.parent.pid")
	if parentName != "" && parentPID != "" && parentPID != "0" {
		event.Parent = &models.Parent{Name: parentName, PID: parentPID}
	}

	return event, nil
}

func getString(root map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			if s := stringValue(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%f", val)
	case []interface{}:
		// ECS list fields such as event.type: first non-empty entry.
		for _, item := range val {
			if s := strings.TrimSpace(stringValue(item)); s != "" {
				return s
			}
		}
	}
	return ""
}

func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
