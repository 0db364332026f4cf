package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vanshika/fintrace/amlwatch/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		cards        = flag.Int("cards", cfg.NumCards, "number of background cards")
		merchants    = flag.Int("merchants", cfg.NumMerchants, "number of background merchants")
		transactions = flag.Int("transactions", cfg.NumTransactions, "number of background transactions")
		fanIn        = flag.Int("fan-in", cfg.FanInClusters, "number of injected smurfing clusters")
		fanOut       = flag.Int("fan-out", cfg.FanOutClusters, "number of injected structuring clusters")
		days         = flag.Int("days", cfg.Days, "days covered by background traffic")
		start        = flag.String("start", cfg.Start.Format(time.DateOnly), "first day of the dataset (YYYY-MM-DD)")
		seed         = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir    = flag.String("output-dir", "data", "directory to write transactions.csv and fraud_community.json")
		writeStdout  = flag.Bool("stdout", false, "write the transactions CSV to stdout instead of files")
	)
	flag.Parse()

	startDay, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start %q: %v\n", *start, err)
		os.Exit(1)
	}

	genCfg := generator.Config{
		NumCards:        *cards,
		NumMerchants:    *merchants,
		NumTransactions: *transactions,
		FanInClusters:   *fanIn,
		FanOutClusters:  *fanOut,
		Days:            *days,
		Start:           startDay,
		Seed:            *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := generator.WriteCSV(os.Stdout, dataset.Rows); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d transactions and %d communities into %s\n", len(dataset.Rows), len(dataset.Communities), *outputDir)
}
