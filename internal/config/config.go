// Package config provides configuration loading and validation for edgegc.
// Supports YAML files with environment variable overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dray-io/edgegc/internal/gc"
	"github.com/dray-io/edgegc/internal/logging"
)

// PathEnv names the environment variable Load reads the config path from.
const PathEnv = "EDGEGC_CONFIG"

// ErrInvalidConfig is returned by Validate and wraps every field error.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all configuration for the collector and its simulator.
type Config struct {
	Collector     CollectorConfig     `yaml:"collector"`
	Simulation    SimulationConfig    `yaml:"simulation"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type CollectorConfig struct {
	Name            string  `yaml:"name" env:"EDGEGC_COLLECTOR_NAME"`
	IntervalSeconds float64 `yaml:"intervalSeconds" env:"EDGEGC_INTERVAL_SECONDS"`
	Trigger         string  `yaml:"trigger" env:"EDGEGC_TRIGGER"`
	KeyThreshold    int     `yaml:"keyThreshold" env:"EDGEGC_KEY_THRESHOLD"`
	EdgeThreshold   int     `yaml:"edgeThreshold" env:"EDGEGC_EDGE_THRESHOLD"`
	ValidateEdges   bool    `yaml:"validateEdges" env:"EDGEGC_VALIDATE_EDGES"`
	Granularity     string  `yaml:"granularity" env:"EDGEGC_GRANULARITY"`
}

type SimulationConfig struct {
	Workers           int   `yaml:"workers" env:"EDGEGC_SIM_WORKERS"`
	Procedures        int   `yaml:"procedures" env:"EDGEGC_SIM_PROCEDURES"`
	FactsPerProcedure int   `yaml:"factsPerProcedure" env:"EDGEGC_SIM_FACTS"`
	EdgesPerTask      int   `yaml:"edgesPerTask" env:"EDGEGC_SIM_EDGES_PER_TASK"`
	Tasks             int   `yaml:"tasks" env:"EDGEGC_SIM_TASKS"`
	Seed              int64 `yaml:"seed" env:"EDGEGC_SIM_SEED"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"EDGEGC_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"EDGEGC_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"EDGEGC_LOG_FORMAT"`
}

// Granularities accepted in CollectorConfig.Granularity.
const (
	GranularityContext   = "context"
	GranularityProcedure = "procedure"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Collector: CollectorConfig{
			Name:            "default",
			IntervalSeconds: 1,
			Trigger:         gc.TriggerImmediate.String(),
			Granularity:     GranularityContext,
		},
		Simulation: SimulationConfig{
			Workers:           4,
			Procedures:        32,
			FactsPerProcedure: 8,
			EdgesPerTask:      16,
			Tasks:             10000,
			Seed:              1,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "",
			LogLevel:    "info",
			LogFormat:   "text",
		},
	}
}

// Load reads the file named by EDGEGC_CONFIG, or starts from the defaults
// when it is unset, then applies environment overrides.
func Load() (*Config, error) {
	if path := os.Getenv(PathEnv); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML file on top of the defaults, then applies
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides every field carrying an env tag whose variable is set.
func (c *Config) applyEnv() error {
	return applyEnv(reflect.ValueOf(c).Elem())
}

func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("config: %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

// Validate reports every invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	if c.Collector.IntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("collector.intervalSeconds must be >= 0, got %v", c.Collector.IntervalSeconds))
	}
	if _, err := gc.ParseTrigger(c.Collector.Trigger); err != nil {
		errs = append(errs, fmt.Errorf("collector.trigger: %w", err))
	}
	if c.Collector.KeyThreshold < 0 {
		errs = append(errs, fmt.Errorf("collector.keyThreshold must be >= 0, got %d", c.Collector.KeyThreshold))
	}
	if c.Collector.EdgeThreshold < 0 {
		errs = append(errs, fmt.Errorf("collector.edgeThreshold must be >= 0, got %d", c.Collector.EdgeThreshold))
	}
	switch c.Collector.Granularity {
	case GranularityContext, GranularityProcedure:
	default:
		errs = append(errs, fmt.Errorf("collector.granularity must be %q or %q, got %q", GranularityContext, GranularityProcedure, c.Collector.Granularity))
	}

	s := c.Simulation
	for name, n := range map[string]int{
		"workers":           s.Workers,
		"procedures":        s.Procedures,
		"factsPerProcedure": s.FactsPerProcedure,
		"edgesPerTask":      s.EdgesPerTask,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("simulation.%s must be > 0, got %d", name, n))
		}
	}
	if s.Tasks < 0 {
		errs = append(errs, fmt.Errorf("simulation.tasks must be >= 0, got %d", s.Tasks))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Interval returns the collector interval as a duration.
func (c CollectorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

// GCConfig converts the collector section into a gc.Config. Validate must
// have succeeded.
func (c CollectorConfig) GCConfig() gc.Config {
	trigger, _ := gc.ParseTrigger(c.Trigger)
	cfg := gc.DefaultConfig()
	cfg.Name = c.Name
	cfg.Interval = c.Interval()
	cfg.Trigger = trigger
	cfg.KeyThreshold = c.KeyThreshold
	cfg.EdgeThreshold = c.EdgeThreshold
	cfg.ValidateEdges = c.ValidateEdges
	return cfg
}

// Logger builds the logger described by the observability section and
// installs it as the global logger.
func (o ObservabilityConfig) Logger() *logging.Logger {
	return logging.Configure(o.LogLevel, o.LogFormat)
}
