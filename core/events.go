package core

import (
	"encoding/json"
	"time"
)

// Snapshot is the membership of a category's queue at read time.
// Score carries the timestamp that triggered it; nil after a clear.
type Snapshot struct {
	Category Category   `json:"category"`
	Members  []MemberID `json:"members"`
	Score    *float64   `json:"score,omitempty"`
	Time     time.Time  `json:"time"`
}

// NewSnapshot builds a snapshot stamped with the current time.
func NewSnapshot(c Category, members []MemberID, score *float64) Snapshot {
	if members == nil {
		members = []MemberID{}
	}
	return Snapshot{Category: c, Members: members, Score: score, Time: time.Now().UTC()}
}

// Clone returns a copy that shares no slices or pointers with s.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.Members = append([]MemberID{}, s.Members...)
	if s.Score != nil {
		v := *s.Score
		cp.Score = &v
	}
	return cp
}

// MarshalMessage renders the fan-out payload: {"<category>": ["m1", "m2"]}.
func (s Snapshot) MarshalMessage() ([]byte, error) {
	members := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		members = append(members, string(m))
	}
	return json.Marshal(map[string][]string{string(s.Category): members})
}

// Float64 returns a pointer to v, for optional scores.
func Float64(v float64) *float64 { return &v }
