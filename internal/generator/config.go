package generator

import "time"

// Config drives the synthetic data generator.
type Config struct {
	NumCards        int
	NumMerchants    int
	NumTransactions int
	FanInClusters   int
	FanOutClusters  int
	Days            int
	Start           time.Time
	Seed            int64
}

// DefaultConfig returns a small dataset with a handful of injected patterns.
func DefaultConfig() Config {
	return Config{
		NumCards:        500,
		NumMerchants:    80,
		NumTransactions: 20000,
		FanInClusters:   5,
		FanOutClusters:  5,
		Days:            30,
		Start:           time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Seed:            42,
	}
}
