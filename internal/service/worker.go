package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/snapshot"
)

// TaskError accumulates multiple errors produced during a projection.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) Unwrap() []error { return e.Errors }

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// GraphWriter is the storage contract required by the projector.
type GraphWriter interface {
	UpsertNode(ctx context.Context, node domain.Node) error
	UpsertTransfer(ctx context.Context, edge domain.Edge) error
	SaveCommunity(ctx context.Context, c domain.Community) error
	SaveCase(ctx context.Context, communityID string, c domain.DetectionCase) error
}

type projectableGraph interface {
	Nodes() []domain.Node
	Edges() []domain.Edge
}

// GraphProjector mirrors a snapshot and its detection results into the
// graph database using a worker pool.
type GraphProjector struct {
	repo    GraphWriter
	workers int
}

// NewGraphProjector creates a GraphProjector with the provided concurrency.
func NewGraphProjector(repo GraphWriter, workers int) *GraphProjector {
	if workers <= 0 {
		workers = 4
	}
	return &GraphProjector{
		repo:    repo,
		workers: workers,
	}
}

// ProjectSnapshot writes every node, then every transfer edge, of snap.
func (gp *GraphProjector) ProjectSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	g, ok := snap.Graph().(projectableGraph)
	if !ok {
		return errors.New("snapshot graph cannot be enumerated")
	}

	nodes := g.Nodes()
	if err := gp.run(ctx, len(nodes), func(idx int) error {
		return gp.repo.UpsertNode(ctx, nodes[idx])
	}); err != nil {
		return fmt.Errorf("project nodes: %w", err)
	}

	edges := g.Edges()
	if err := gp.run(ctx, len(edges), func(idx int) error {
		return gp.repo.UpsertTransfer(ctx, edges[idx])
	}); err != nil {
		return fmt.Errorf("project transfers: %w", err)
	}
	return nil
}

// ProjectCommunities stores the membership of every community.
func (gp *GraphProjector) ProjectCommunities(ctx context.Context, communities community.Map) error {
	ids := communities.IDs()
	return gp.run(ctx, len(ids), func(idx int) error {
		c := communities[ids[idx]]
		if c.ID == "" {
			c.ID = ids[idx]
		}
		return gp.repo.SaveCommunity(ctx, c)
	})
}

// ProjectCases stores every detection case found in results.
func (gp *GraphProjector) ProjectCases(ctx context.Context, results []domain.CommunityResult) error {
	type item struct {
		communityID string
		c           domain.DetectionCase
	}
	var items []item
	for _, r := range results {
		for _, c := range r.FanInCases {
			items = append(items, item{r.CommunityID, c})
		}
		for _, c := range r.FanOutCases {
			items = append(items, item{r.CommunityID, c})
		}
	}
	return gp.run(ctx, len(items), func(idx int) error {
		return gp.repo.SaveCase(ctx, items[idx].communityID, items[idx].c)
	})
}

func (gp *GraphProjector) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < gp.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
