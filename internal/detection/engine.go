// Package detection implements the community-scoped fan-in and fan-out
// detectors, the behavioural scorer and the result aggregator.
package detection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/graph"
)

// DefaultWorkers bounds community-level parallelism when none is configured.
const DefaultWorkers = 4

// Dataset is the read-only view detection runs over.
type Dataset interface {
	Records() []domain.NormalizedRecord
	Graph() graph.View
}

// Options control DetectAll.
type Options struct {
	FanIn   FanInParams
	FanOut  FanOutParams
	Workers int
}

// DefaultOptions returns the production thresholds with DefaultWorkers.
func DefaultOptions() Options {
	return Options{
		FanIn:   DefaultFanInParams(),
		FanOut:  DefaultFanOutParams(),
		Workers: DefaultWorkers,
	}
}

// DetectAll runs both detectors for every community. Results follow
// communities.IDs() order regardless of scheduling.
func DetectAll(ctx context.Context, data Dataset, communities community.Map, opts Options) ([]domain.CommunityResult, error) {
	if err := opts.FanIn.Validate(); err != nil {
		return nil, err
	}
	if err := opts.FanOut.Validate(); err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	ids := communities.IDs()
	results := make([]domain.CommunityResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		i, c := i, communities[id]
		if c.ID == "" {
			c.ID = id
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = DetectCommunity(data, c, opts.FanIn, opts.FanOut)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("detect communities: %w", err)
	}
	return results, nil
}

// DetectCommunity restricts the dataset to c and runs both detectors.
func DetectCommunity(data Dataset, c domain.Community, fanIn FanInParams, fanOut FanOutParams) domain.CommunityResult {
	members := uniqueMembers(c.Members)
	scoped := restrict(data.Records(), members)

	fanInCases := DetectFanIn(scoped, fanIn)
	fanOutCases, diags := DetectFanOut(data.Graph(), members, fanOut)

	return domain.CommunityResult{
		CommunityID: c.ID,
		FanInCases:  nonNil(fanInCases),
		FanOutCases: nonNil(fanOutCases),
		MemberCount: len(c.Members),
		RecordCount: len(scoped),
		Diagnostics: diags,
	}
}

func uniqueMembers(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func restrict(records []domain.NormalizedRecord, members []string) []domain.NormalizedRecord {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	var out []domain.NormalizedRecord
	for _, rec := range records {
		_, s := set[rec.SenderID]
		_, r := set[rec.ReceiverID]
		if s || r {
			out = append(out, rec)
		}
	}
	return out
}

func nonNil(cases []domain.DetectionCase) []domain.DetectionCase {
	if cases == nil {
		return []domain.DetectionCase{}
	}
	return cases
}
