package sched

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
)

// ReportMode selects per-task or aggregated counters in reports.
type ReportMode string

const (
	ReportDetail ReportMode = "detail"
	ReportTotal  ReportMode = "total"
)

// Config mirrors wcrt.yml
type Config struct {
	Methods           []string   `yaml:"methods"`              // all six (by default)
	Ceil              string     `yaml:"ceil"`                 // int | float
	RTA4Check         string     `yaml:"rta4_check"`           // update | scan
	RTA4RawCeil       bool       `yaml:"rta4_raw_ceil"`        // false
	RTA4NoMinValidity bool       `yaml:"rta4_no_min_validity"` // false
	HET2SeedWCET      bool       `yaml:"het2_seed_wcet"`       // false
	Capacity          int        `yaml:"capacity"`             // 100
	Report            ReportMode `yaml:"report"`               // detail | total
	Workers           int        `yaml:"workers"`              // 4
	CSV               string     `yaml:"csv"`                  // empty = no CSV output
	LogLevel          string     `yaml:"log_level"`            // info
	NATS              NATSConfig `yaml:"nats"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// If no config file is given, we use default values
func DefaultConfig() Config {
	return Config{
		Methods:  []string{"RTA", "RTA2", "RTA3", "RTA4", "HET", "HET2"},
		Ceil:     "int",
		Capacity: DefaultCapacity,
		Report:   ReportDetail,
		Workers:  4,
		LogLevel: "info",
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "wcrt.analyze",
			Queue:   "wcrt",
		},
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
// Unlike a missing optional file, a file that was named but cannot be read
// or parsed is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.clamp()
	return cfg, cfg.Validate()
}

// sanity clamps
func (c *Config) clamp() {
	if len(c.Methods) == 0 {
		c.Methods = DefaultConfig().Methods
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Report == "" {
		c.Report = ReportDetail
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	var result *multierror.Error
	if _, err := ParseMethods(c.Methods); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := ParseCeilMode(c.Ceil); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := ParseDeadlineCheck(c.RTA4Check); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Report != ReportDetail && c.Report != ReportTotal {
		result = multierror.Append(result, fmt.Errorf("unknown report mode %q", c.Report))
	}
	return result.ErrorOrNil()
}

// MethodList returns the enabled methods. Call Validate first.
func (c Config) MethodList() []Method {
	ms, _ := ParseMethods(c.Methods)
	return ms
}

// Options converts the configuration into analysis options. Call Validate
// first; unknown values fall back to the defaults.
func (c Config) Options() Options {
	ceil, _ := ParseCeilMode(c.Ceil)
	check, _ := ParseDeadlineCheck(c.RTA4Check)
	return Options{
		Ceil:              ceil,
		RTA4Check:         check,
		RTA4RawCeil:       c.RTA4RawCeil,
		RTA4NoMinValidity: c.RTA4NoMinValidity,
		HET2SeedWCET:      c.HET2SeedWCET,
		Capacity:          c.Capacity,
	}
}
