package service

import (
	"sync/atomic"
	"time"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/snapshot"
)

// State is one published dataset together with the communities scoping it.
type State struct {
	Snapshot               *snapshot.Snapshot
	Communities            community.Map
	SynthesizedCommunities bool
	LoadedAt               time.Time
}

// SnapshotStore publishes immutable states. Readers never block; a reload
// builds a complete State and swaps it in.
type SnapshotStore struct {
	current atomic.Pointer[State]
}

// Load returns the current state or domain.ErrNoSnapshot.
func (s *SnapshotStore) Load() (*State, error) {
	st := s.current.Load()
	if st == nil {
		return nil, domain.ErrNoSnapshot
	}
	return st, nil
}

// Publish replaces the current state.
func (s *SnapshotStore) Publish(st *State) {
	s.current.Store(st)
}
