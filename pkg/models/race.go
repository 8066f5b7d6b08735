package models

import "time"

// RaceCandidate is an actor that issued a memory-advisory call and a
// write-class call inside the same one-second bucket.
type RaceCandidate struct {
	ActorID string    `json:"actor_id"`
	Window  time.Time `json:"window"`
	Actions []string  `json:"actions"`
}
