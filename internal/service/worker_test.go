package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/snapshot"
)

type stubWriter struct {
	mu          sync.Mutex
	nodes       []domain.Node
	edges       []domain.Edge
	communities []domain.Community
	cases       []string
	edgeErr     error
}

func (s *stubWriter) UpsertNode(_ context.Context, node domain.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, node)
	return nil
}

func (s *stubWriter) UpsertTransfer(_ context.Context, edge domain.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edgeErr != nil {
		return s.edgeErr
	}
	s.edges = append(s.edges, edge)
	return nil
}

func (s *stubWriter) SaveCommunity(_ context.Context, c domain.Community) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communities = append(s.communities, c)
	return nil
}

func (s *stubWriter) SaveCase(_ context.Context, communityID string, c domain.DetectionCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = append(s.cases, communityID+"/"+c.Principal)
	return nil
}

func projectionSnapshot() *snapshot.Snapshot {
	ts := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	return snapshot.FromRecords([]domain.NormalizedRecord{
		{SenderID: "A", ReceiverID: "M1", Amount: decimal.NewFromInt(10), Timestamp: ts},
		{SenderID: "A", ReceiverID: "M2", Amount: decimal.NewFromInt(20), Timestamp: ts},
		{SenderID: "B", ReceiverID: "M1", Amount: decimal.NewFromInt(30), Timestamp: ts},
	})
}

func TestGraphProjector_ProjectSnapshot(t *testing.T) {
	w := &stubWriter{}
	gp := NewGraphProjector(w, 2)

	require.NoError(t, gp.ProjectSnapshot(context.Background(), projectionSnapshot()))

	assert.Len(t, w.nodes, 4)
	assert.Len(t, w.edges, 3)
}

func TestGraphProjector_AggregatesErrors(t *testing.T) {
	w := &stubWriter{edgeErr: errors.New("write failed")}
	gp := NewGraphProjector(w, 3)

	err := gp.ProjectSnapshot(context.Background(), projectionSnapshot())

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Len(t, taskErr.Errors, 3)
	assert.Contains(t, err.Error(), "multiple errors")
}

func TestGraphProjector_RejectsOverlayViews(t *testing.T) {
	gp := NewGraphProjector(&stubWriter{}, 1)
	view := projectionSnapshot().WithCandidate(domain.NormalizedRecord{SenderID: "C", ReceiverID: "M9"})

	assert.Error(t, gp.ProjectSnapshot(context.Background(), view))
}

func TestGraphProjector_ProjectCommunitiesAndCases(t *testing.T) {
	w := &stubWriter{}
	gp := NewGraphProjector(w, 0)

	require.NoError(t, gp.ProjectCommunities(context.Background(), community.Map{
		"1": {Members: []string{"A"}},
		"2": {ID: "2", Members: []string{"B"}},
	}))
	require.NoError(t, gp.ProjectCases(context.Background(), []domain.CommunityResult{
		{
			CommunityID: "1",
			FanInCases:  []domain.DetectionCase{{Principal: "M1"}},
			FanOutCases: []domain.DetectionCase{{Principal: "A"}},
		},
	}))

	require.Len(t, w.communities, 2)
	for _, c := range w.communities {
		assert.NotEmpty(t, c.ID)
	}
	assert.ElementsMatch(t, []string{"1/M1", "1/A"}, w.cases)
}

func TestGraphProjector_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewGraphProjector(&stubWriter{}, 1).ProjectSnapshot(ctx, projectionSnapshot())

	assert.ErrorIs(t, err, context.Canceled)
}
