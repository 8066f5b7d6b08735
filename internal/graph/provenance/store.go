package provenance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"provgraph/internal/logger"
	"provgraph/internal/timeutil"
	"provgraph/pkg/models"
)

// DefaultMemoryActions are the mapping-class calls that get a synthesized
// memory node when no file path is present.
var DefaultMemoryActions = []string{"madvise", "mmap", "munmap", "mprotect"}

// DefaultMemoryAddressPrefix is the number of address characters kept in
// a memory node id.
const DefaultMemoryAddressPrefix = 10

// StoreOptions controls memory-node synthesis.
type StoreOptions struct {
	MemoryActions       []string
	MemoryAddressPrefix int
}

// EdgeKey identifies an aggregated action edge.
type EdgeKey struct {
	From   string
	To     string
	Action string
}

// SpawnKey identifies one spawn fact. The timestamp is part of the identity.
type SpawnKey struct {
	Parent string
	Child  string
	At     time.Time
}

// ActionBucket is the set of distinct actions an actor issued in one second.
type ActionBucket struct {
	Second  time.Time
	Actions []string
}

type nodeInfo struct {
	kind  models.NodeKind
	label string
}

// Store accumulates per-(actor, resource, action) counts, per-actor
// per-second action sets and spawn facts for a single run.
type Store struct {
	memoryActions map[string]struct{}
	addressPrefix int

	nodes    map[string]nodeInfo
	earliest map[string]time.Time
	lastSeen map[string]time.Time
	bySecond map[string]map[time.Time]map[string]struct{}
	counts   map[EdgeKey]int
	spawns   map[SpawnKey]struct{}
	tags     map[string][]models.IoaTag
}

// NewStore creates an empty store.
func NewStore(opts StoreOptions) *Store {
	actions := opts.MemoryActions
	if len(actions) == 0 {
		actions = DefaultMemoryActions
	}
	prefix := opts.MemoryAddressPrefix
	if prefix <= 0 {
		prefix = DefaultMemoryAddressPrefix
	}
	mem := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		mem[strings.TrimSpace(a)] = struct{}{}
	}
	return &Store{
		memoryActions: mem,
		addressPrefix: prefix,
		nodes:         make(map[string]nodeInfo),
		earliest:      make(map[string]time.Time),
		lastSeen:      make(map[string]time.Time),
		bySecond:      make(map[string]map[time.Time]map[string]struct{}),
		counts:        make(map[EdgeKey]int),
		spawns:        make(map[SpawnKey]struct{}),
		tags:          make(map[string][]models.IoaTag),
	}
}

// SortEvents orders events chronologically; events without a timestamp
// come first. The sort is stable so equal instants keep log order.
func SortEvents(events []*models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.HasTimestamp() {
			return b.HasTimestamp()
		}
		if !b.HasTimestamp() {
			return false
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

// RecordAll sorts events chronologically and records each of them.
func (s *Store) RecordAll(events []*models.Event) {
	SortEvents(events)
	for _, ev := range events {
		s.Record(ev)
	}
}

// Record folds one normalized event into the store. Events without an
// actor name or action are ignored.
func (s *Store) Record(ev *models.Event) {
	if ev == nil || ev.ProcessName == "" || ev.Action == "" {
		return
	}

	actor := ev.ActorID()
	s.addNode(actor, models.NodeProcess, ev.ProcessName)
	s.touch(actor, ev.Timestamp)
	if ev.HasTimestamp() {
		s.lastSeen[actor] = ev.Timestamp
	}
	s.addTags(actor, ev.IoaTags)

	if sec, ok := timeutil.Bucket(ev.Timestamp); ok {
		secs := s.bySecond[actor]
		if secs == nil {
			secs = make(map[time.Time]map[string]struct{})
			s.bySecond[actor] = secs
		}
		acts := secs[sec]
		if acts == nil {
			acts = make(map[string]struct{})
			secs[sec] = acts
		}
		acts[ev.Action] = struct{}{}
	}

	if parent := ev.ParentID(); parent != "" {
		s.addNode(parent, models.NodeProcess, ev.Parent.Name)
		s.touch(parent, ev.Timestamp)
		s.spawns[SpawnKey{Parent: parent, Child: actor, At: ev.Timestamp}] = struct{}{}
	}

	switch {
	case ev.FilePath != "":
		s.addNode(ev.FilePath, models.NodeFile, ev.FilePath)
		s.touch(ev.FilePath, ev.Timestamp)
		s.addTags(ev.FilePath, ev.IoaTags)
		s.counts[EdgeKey{From: actor, To: ev.FilePath, Action: ev.Action}]++
	case s.isMemoryAction(ev.Action) && ev.Address != "":
		mem := s.memoryNodeID(ev.Address)
		s.addNode(mem, models.NodeMemory, mem)
		s.touch(mem, ev.Timestamp)
		s.addTags(mem, ev.IoaTags)
		s.counts[EdgeKey{From: actor, To: mem, Action: ev.Action}]++
	default:
		logger.Debugf("No resource for %s action=%s", actor, ev.Action)
	}
}

// addNode registers id on first reference. Processes are labeled with their
// name only; resources with their id.
func (s *Store) addNode(id string, kind models.NodeKind, label string) {
	if _, ok := s.nodes[id]; ok {
		return
	}
	s.nodes[id] = nodeInfo{kind: kind, label: label}
}

// touch keeps the minimum known timestamp for id.
func (s *Store) touch(id string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	if cur, ok := s.earliest[id]; !ok || ts.Before(cur) {
		s.earliest[id] = ts
	}
}

func (s *Store) addTags(id string, tags []models.IoaTag) {
	if len(tags) == 0 {
		return
	}
	existing := s.tags[id]
	for _, tag := range tags {
		dup := false
		for _, have := range existing {
			if have.ID == tag.ID && have.Name == tag.Name {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, tag)
		}
	}
	s.tags[id] = existing
}

func (s *Store) isMemoryAction(action string) bool {
	_, ok := s.memoryActions[action]
	return ok
}

func (s *Store) memoryNodeID(addr string) string {
	if len(addr) > s.addressPrefix {
		addr = addr[:s.addressPrefix]
	}
	return fmt.Sprintf("[memory:%s...]", addr)
}

// NodeIDs returns every node id ordered lexically.
func (s *Store) NodeIDs() []string {
	out := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of distinct nodes.
func (s *Store) NodeCount() int { return len(s.nodes) }

// Earliest returns the earliest timestamp at which id was referenced.
func (s *Store) Earliest(id string) (time.Time, bool) {
	ts, ok := s.earliest[id]
	return ts, ok
}

// LastSeen returns the actor's latest known timestamp.
func (s *Store) LastSeen(actor string) (time.Time, bool) {
	ts, ok := s.lastSeen[actor]
	return ts, ok
}

// Count returns the aggregated count for one (actor, resource, action).
func (s *Store) Count(key EdgeKey) int { return s.counts[key] }

// EdgeKeys returns aggregated keys ordered by (from, to, action).
func (s *Store) EdgeKeys() []EdgeKey {
	out := make([]EdgeKey, 0, len(s.counts))
	for k := range s.counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// SpawnKeys returns spawn facts ordered by (parent, child, time).
func (s *Store) SpawnKeys() []SpawnKey {
	out := make([]SpawnKey, 0, len(s.spawns))
	for k := range s.spawns {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Parent != out[j].Parent {
			return out[i].Parent < out[j].Parent
		}
		if out[i].Child != out[j].Child {
			return out[i].Child < out[j].Child
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Actors returns every actor with at least one bucketed action, ordered.
func (s *Store) Actors() []string {
	out := make([]string, 0, len(s.bySecond))
	for actor := range s.bySecond {
		out = append(out, actor)
	}
	sort.Strings(out)
	return out
}

// ActionBuckets returns the actor's per-second action sets in time order.
func (s *Store) ActionBuckets(actor string) []ActionBucket {
	secs := s.bySecond[actor]
	out := make([]ActionBucket, 0, len(secs))
	for sec, acts := range secs {
		names := make([]string, 0, len(acts))
		for a := range acts {
			names = append(names, a)
		}
		sort.Strings(names)
		out = append(out, ActionBucket{Second: sec, Actions: names})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Second.Before(out[j].Second) })
	return out
}
