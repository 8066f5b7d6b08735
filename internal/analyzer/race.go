package analyzer

import (
	"strings"

	"provgraph/internal/graph/provenance"
	"provgraph/pkg/models"
)

// RaceConfig names the action classes of the race signature.
type RaceConfig struct {
	AdvisoryActions        []string
	WriteActions           []string
	PositionalWriteActions []string
}

// DefaultRaceConfig returns madvise against write/pwrite.
func DefaultRaceConfig() RaceConfig {
	return RaceConfig{
		AdvisoryActions:        []string{"madvise"},
		WriteActions:           []string{"write"},
		PositionalWriteActions: []string{"pwrite"},
	}
}

// ActionBucketSource exposes per-actor per-second action sets.
type ActionBucketSource interface {
	Actors() []string
	ActionBuckets(actor string) []provenance.ActionBucket
}

// DetectRaces flags every actor that, in some one-second bucket, issued a
// memory-advisory action together with a write or positional-write action.
// This is a same-second co-occurrence heuristic: writes that merely share
// the second are flagged and races straddling a second boundary are not.
// The first matching bucket is reported as evidence.
func DetectRaces(src ActionBucketSource, cfg RaceConfig) []models.RaceCandidate {
	advisory := toSet(cfg.AdvisoryActions)
	writes := toSet(append(append([]string(nil), cfg.WriteActions...), cfg.PositionalWriteActions...))
	if len(advisory) == 0 || len(writes) == 0 {
		return nil
	}

	var out []models.RaceCandidate
	for _, actor := range src.Actors() {
		for _, bucket := range src.ActionBuckets(actor) {
			if !containsAny(bucket.Actions, advisory) || !containsAny(bucket.Actions, writes) {
				continue
			}
			out = append(out, models.RaceCandidate{
				ActorID: actor,
				Window:  bucket.Second,
				Actions: append([]string(nil), bucket.Actions...),
			})
			break
		}
	}
	return out
}

// RaceSet returns the actor ids of the candidates.
func RaceSet(candidates []models.RaceCandidate) map[string]struct{} {
	out := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		out[c.ActorID] = struct{}{}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

func containsAny(actions []string, set map[string]struct{}) bool {
	for _, a := range actions {
		if _, ok := set[a]; ok {
			return true
		}
	}
	return false
}
