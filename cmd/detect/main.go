package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/config"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/graph"
	"github.com/vanshika/fintrace/amlwatch/internal/logging"
	"github.com/vanshika/fintrace/amlwatch/internal/repository"
	"github.com/vanshika/fintrace/amlwatch/internal/service"
)

func main() {
	var (
		configPath  = flag.String("config", os.Getenv("AML_CONFIG"), "Path to a YAML config file")
		dataset     = flag.String("dataset", "", "Path to the transaction CSV (overrides config)")
		communities = flag.String("communities", "", "Path to the community JSON/YAML file (overrides config)")
		workers     = flag.Int("workers", 0, "Concurrent community workers (overrides config)")
		project     = flag.Bool("project", false, "Mirror the snapshot, communities and cases into the graph database")
		asJSON      = flag.Bool("json", false, "Print results as JSON instead of a table")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataset != "" {
		cfg.Data.DatasetPath = *dataset
	}
	if *communities != "" {
		cfg.Data.CommunitiesPath = *communities
	}
	if *workers > 0 {
		cfg.Detection.Workers = *workers
	}

	logger := logging.New(cfg.Logging).With("component", "detect")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	analyzer := service.NewAnalyzer(service.Options{
		Dataset:          service.CSVDataset{Path: cfg.Data.DatasetPath},
		Communities:      community.FileSource{Path: cfg.Data.CommunitiesPath},
		Detection:        service.DetectionOptions(cfg.Detection),
		Rules:            service.RuleConfig(cfg.Risk),
		HighRiskKeywords: cfg.Detection.HighRiskKeywords,
		Logger:           logger,
	})

	start := time.Now()
	if err := analyzer.Reload(ctx); err != nil {
		logger.Error("failed to load dataset", "error", err, "path", cfg.Data.DatasetPath)
		os.Exit(1)
	}
	res, err := analyzer.DetectAll(ctx)
	if err != nil {
		logger.Error("detection failed", "error", err)
		os.Exit(1)
	}
	logger.Info("detection complete",
		"duration", time.Since(start).String(),
		"communities", len(res.Results),
		"synthesized_communities", res.SynthesizedCommunities,
	)

	if *asJSON {
		decimal.MarshalJSONWithoutQuotes = true
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			logger.Error("failed to encode results", "error", err)
			os.Exit(1)
		}
	} else {
		renderCases(os.Stdout, res.Results)
	}

	if !*project {
		return
	}
	if err := projectResults(ctx, logger, cfg, analyzer, res.Results); err != nil {
		logger.Error("graph projection failed", "error", err)
		os.Exit(1)
	}
}

func renderCases(w io.Writer, results []domain.CommunityResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Community", "Pattern", "Principal", "Counterparties", "Txns", "Total", "Window (h)", "Score"})
	table.SetAutoWrapText(false)

	rows := 0
	for _, r := range results {
		for _, c := range append(append([]domain.DetectionCase{}, r.FanInCases...), r.FanOutCases...) {
			table.Append([]string{
				r.CommunityID,
				string(c.Pattern),
				c.Principal,
				strconv.Itoa(len(c.Counterparties)),
				strconv.Itoa(c.TransactionCount),
				c.TotalAmount.StringFixed(2),
				strconv.FormatFloat(c.TimeWindowHours, 'f', 2, 64),
				strconv.Itoa(c.SuspicionScore),
			})
			rows++
		}
	}
	if rows == 0 {
		fmt.Fprintln(w, "no smurfing or structuring cases found")
		return
	}
	table.Render()
}

func projectResults(ctx context.Context, logger *slog.Logger, cfg config.Config, analyzer *service.Analyzer, results []domain.CommunityResult) error {
	graphClient, err := buildGraphClient(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := graphClient.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	st, err := analyzer.State()
	if err != nil {
		return err
	}

	repo := repository.New(graphClient)
	if err := repo.EnsureConstraints(ctx); err != nil {
		return fmt.Errorf("ensure constraints: %w", err)
	}

	projector := service.NewGraphProjector(repo, cfg.Detection.Workers)
	start := time.Now()
	if err := projector.ProjectSnapshot(ctx, st.Snapshot); err != nil {
		return err
	}
	if err := projector.ProjectCommunities(ctx, st.Communities); err != nil {
		return fmt.Errorf("project communities: %w", err)
	}
	if err := projector.ProjectCases(ctx, results); err != nil {
		return fmt.Errorf("project cases: %w", err)
	}
	logger.Info("projection complete",
		"duration", time.Since(start).String(),
		"records", st.Snapshot.RecordCount(),
		"communities", len(st.Communities),
	)
	return nil
}

func buildGraphClient(ctx context.Context, logger *slog.Logger, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, fmt.Errorf("%w for projection", graph.ErrMissingURI)
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
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return client, nil
}
