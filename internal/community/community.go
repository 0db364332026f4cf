// Package community loads the groups of identifiers that scope pattern
// detection, falling back to a synthetic group when none are available.
package community

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// FallbackID names the community synthesized when no source is available.
const FallbackID = "1"

// FallbackSize caps the membership of the synthesized community.
const FallbackSize = 20

// Map indexes communities by id.
type Map map[string]domain.Community

// Source supplies persisted communities. Implementations return
// domain.ErrCommunitiesNotFound when they hold no data.
type Source interface {
	LoadCommunities(ctx context.Context) (Map, error)
}

// IDs returns community ids in natural order: numeric ids ascending by
// value first, then the rest lexically.
func (m Map) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			if a != b {
				return a < b
			}
			return ids[i] < ids[j]
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Load reads communities from src. A nil source or one reporting
// domain.ErrCommunitiesNotFound yields the synthesized fallback.
func Load(ctx context.Context, src Source, records []domain.NormalizedRecord) (Map, bool, error) {
	if src == nil {
		return Synthesize(records), true, nil
	}
	m, err := src.LoadCommunities(ctx)
	if errors.Is(err, domain.ErrCommunitiesNotFound) || (err == nil && len(m) == 0) {
		return Synthesize(records), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load communities: %w", err)
	}
	return m, false, nil
}

// Synthesize builds the single fallback community: identifiers in the order
// first observed (sender before receiver within a record), deduplicated and
// truncated to FallbackSize. It is not a clustering algorithm.
func Synthesize(records []domain.NormalizedRecord) Map {
	seen := make(map[string]struct{}, FallbackSize)
	members := make([]string, 0, FallbackSize)

	add := func(id string) bool {
		if id == "" {
			return false
		}
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
		members = append(members, id)
		return len(members) == FallbackSize
	}

	for _, rec := range records {
		if add(rec.SenderID) || add(rec.ReceiverID) {
			break
		}
	}

	return Map{FallbackID: {ID: FallbackID, Members: members}}
}
