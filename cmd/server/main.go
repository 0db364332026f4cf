package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/config"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/graph"
	"github.com/vanshika/fintrace/amlwatch/internal/logging"
	"github.com/vanshika/fintrace/amlwatch/internal/metrics"
	"github.com/vanshika/fintrace/amlwatch/internal/repository"
	"github.com/vanshika/fintrace/amlwatch/internal/server"
	"github.com/vanshika/fintrace/amlwatch/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("AML_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	// Amounts are emitted as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	graphClient, err := buildGraphClient(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if graphClient != nil {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}
	}()

	var communities community.Source = community.FileSource{Path: cfg.Data.CommunitiesPath}
	if cfg.Data.CommunitiesFromGraph {
		if graphClient == nil {
			logger.Error("communities_from_graph requires graph.uri")
			os.Exit(1)
		}
		communities = repository.New(graphClient)
	}

	var (
		m              *metrics.Metrics
		metricsHandler http.Handler
	)
	if cfg.HTTP.MetricsEnabled {
		m, err = metrics.New()
		if err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
		metricsHandler = m.Handler()
	}

	// No Scorer or Extractor backend ships with this binary; /predict and
	// /extract_id report 503.
	analyzer := service.NewAnalyzer(service.Options{
		Dataset:          service.CSVDataset{Path: cfg.Data.DatasetPath},
		Communities:      communities,
		Detection:        service.DetectionOptions(cfg.Detection),
		Rules:            service.RuleConfig(cfg.Risk),
		HighRiskKeywords: cfg.Detection.HighRiskKeywords,
		Metrics:          m,
		Logger:           logger,
	})

	if err := analyzer.Reload(ctx); err != nil {
		if errors.Is(err, domain.ErrDatasetNotFound) {
			logger.Error("dataset not found", "path", cfg.Data.DatasetPath, "error", err)
			os.Exit(1)
		}
		// The server still starts; /admin/reload can publish once the data is fixed.
		logger.Warn("initial dataset load failed", "error", err)
	}

	health := server.HealthServices{server.SnapshotHealthService{State: analyzer}}
	if graphClient != nil {
		health = append(health, server.GraphHealthService{Client: graphClient})
	}

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:         health,
		API:            server.NewAPIHandlers(logger, analyzer),
		Metrics:        metricsHandler,
		RateLimit:      cfg.HTTP.RateLimit,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	srv := server.New(logger, cfg.HTTP, router)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildGraphClient returns nil when no graph URI is configured.
func buildGraphClient(ctx context.Context, logger *slog.Logger, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, nil
	}

	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	client, err := graph.NewNeo4jClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("graph client configured", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return client, nil
}
