package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. AML_HTTP__PORT or AML_DETECTION__WORKERS.
const EnvPrefix = "AML_"

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Graph     GraphConfig     `koanf:"graph"`
	Logging   LoggingConfig   `koanf:"logging"`
	Data      DataConfig      `koanf:"data"`
	Detection DetectionConfig `koanf:"detection"`
	Risk      RiskConfig      `koanf:"risk"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string          `koanf:"host"`
	Port            int             `koanf:"port"`
	ReadTimeout     time.Duration   `koanf:"read_timeout"`
	WriteTimeout    time.Duration   `koanf:"write_timeout"`
	IdleTimeout     time.Duration   `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout"`
	MetricsEnabled  bool            `koanf:"metrics_enabled"`
	AllowedOrigins  []string        `koanf:"allowed_origins"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig bounds request throughput. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// GraphConfig describes connectivity to the graph database. An empty URI
// disables projection and graph-backed communities.
type GraphConfig struct {
	URI            string `koanf:"uri"`
	Database       string `koanf:"database"`
	Username       string `koanf:"username"`
	Password       string `koanf:"password"`
	MaxConnections int    `koanf:"max_connections"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `koanf:"level"`
	Format        string `koanf:"format"` // text|json
	IncludeCaller bool   `koanf:"include_caller"`
}

// DataConfig locates the transaction dataset and community memberships.
type DataConfig struct {
	DatasetPath          string `koanf:"dataset_path"`
	CommunitiesPath      string `koanf:"communities_path"`
	CommunitiesFromGraph bool   `koanf:"communities_from_graph"`
}

// DetectionConfig holds the laundering detector thresholds.
type DetectionConfig struct {
	FanIn            FanInConfig  `koanf:"fan_in"`
	FanOut           FanOutConfig `koanf:"fan_out"`
	HighRiskKeywords []string     `koanf:"high_risk_keywords"`
	Workers          int          `koanf:"workers"`
}

type FanInConfig struct {
	MinTransactions    int     `koanf:"min_transactions"`
	MaxAmount          float64 `koanf:"max_amount"`
	MaxTimeWindowHours float64 `koanf:"max_time_window_hours"`
	MinSenders         int     `koanf:"min_senders"`
}

type FanOutConfig struct {
	MinSplit           int     `koanf:"min_split"`
	MaxTimeWindowHours float64 `koanf:"max_time_window_hours"`
	AmountVariation    float64 `koanf:"amount_variation"`
	MinTotalAmount     float64 `koanf:"min_total_amount"`
}

// RiskConfig holds the thresholds of the unified transaction analysis.
type RiskConfig struct {
	FraudThreshold        float64  `koanf:"fraud_threshold"`
	SmurfingThreshold     float64  `koanf:"smurfing_threshold"`
	GeoDistanceAlertMiles float64  `koanf:"geo_distance_alert_miles"`
	HighAmountThreshold   float64  `koanf:"high_amount_threshold"`
	NightStartHour        int      `koanf:"night_start_hour"`
	NightEndHour          int      `koanf:"night_end_hour"`
	MerchantKeywords      []string `koanf:"merchant_keywords"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       RateLimitConfig{RequestsPerSecond: 50, Burst: 100},
		},
		Graph: GraphConfig{
			MaxConnections: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Data: DataConfig{
			DatasetPath:     "data/transactions.csv",
			CommunitiesPath: "data/fraud_community.json",
		},
		Detection: DetectionConfig{
			FanIn: FanInConfig{
				MinTransactions:    3,
				MaxAmount:          10000,
				MaxTimeWindowHours: 24,
				MinSenders:         2,
			},
			FanOut: FanOutConfig{
				MinSplit:           2,
				MaxTimeWindowHours: 12,
				AmountVariation:    3,
				MinTotalAmount:     3000,
			},
			HighRiskKeywords: []string{"electronics", "jewelry", "crypto"},
			Workers:          4,
		},
		Risk: RiskConfig{
			FraudThreshold:        0.7,
			SmurfingThreshold:     0.5,
			GeoDistanceAlertMiles: 200,
			HighAmountThreshold:   1000,
			NightStartHour:        0,
			NightEndHour:          6,
			MerchantKeywords:      []string{"highrisk", "fraud", "electronics"},
		},
	}
}

// Load layers defaults, the optional YAML file at path and AML_ environment
// overrides, then validates the result.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks ranges the rest of the application relies on.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d is out of range", c.HTTP.Port))
	}
	if c.HTTP.RateLimit.RequestsPerSecond < 0 || c.HTTP.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("http.rate_limit values must not be negative"))
	}
	if c.Detection.FanIn.MaxAmount <= 0 {
		errs = append(errs, errors.New("detection.fan_in.max_amount must be positive"))
	}
	if c.Detection.FanOut.MinTotalAmount <= 0 {
		errs = append(errs, errors.New("detection.fan_out.min_total_amount must be positive"))
	}
	if c.Detection.FanOut.AmountVariation <= 0 {
		errs = append(errs, errors.New("detection.fan_out.amount_variation must be positive"))
	}
	if c.Detection.Workers < 0 {
		errs = append(errs, errors.New("detection.workers must not be negative"))
	}
	if c.Risk.FraudThreshold < 0 || c.Risk.FraudThreshold > 1 {
		errs = append(errs, errors.New("risk.fraud_threshold must be within [0,1]"))
	}
	if c.Risk.NightStartHour < 0 || c.Risk.NightEndHour > 24 || c.Risk.NightStartHour > c.Risk.NightEndHour {
		errs = append(errs, errors.New("risk night hours must satisfy 0 <= start <= end <= 24"))
	}
	return errors.Join(errs...)
}

// Address returns the host:port the HTTP server listens on.
func (h HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}
