package server

import (
	"context"
	"errors"

	"github.com/vanshika/fintrace/amlwatch/internal/graph"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// GraphHealthService verifies graph connectivity as part of health checks.
type GraphHealthService struct {
	Client graph.Client
}

// Probe implements the HealthService interface.
func (s GraphHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.VerifyConnectivity(ctx)
}

// SnapshotHealthService reports degraded until a dataset has been published.
type SnapshotHealthService struct {
	State interface {
		Loaded() bool
	}
}

func (s SnapshotHealthService) Probe(context.Context) error {
	if s.State == nil || !s.State.Loaded() {
		return errors.New("no dataset loaded")
	}
	return nil
}

// HealthServices probes each service in order and returns the first failure.
type HealthServices []HealthService

func (hs HealthServices) Probe(ctx context.Context) error {
	for _, s := range hs {
		if s == nil {
			continue
		}
		if err := s.Probe(ctx); err != nil {
			return err
		}
	}
	return nil
}
