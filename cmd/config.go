package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/printfarm-sim/printfarm-sim/sim/ledger"
	"github.com/printfarm-sim/printfarm-sim/sim/plant"
	"github.com/printfarm-sim/printfarm-sim/sim/workload"
)

// Config is the full run configuration file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Plant    plant.Config  `yaml:"plant"`
	Workload workload.Spec `yaml:"workload"`
	Rates    ledger.Rates  `yaml:"rates"`
}

// DefaultConfig returns the stock facility, workload and rates.
func DefaultConfig() Config {
	return Config{
		Plant:    plant.DefaultConfig(),
		Workload: workload.DefaultSpec(),
		Rates:    ledger.DefaultRates(),
	}
}

// LoadConfig reads path over the defaults with strict field checking: a
// typo in any key is an error. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	// yaml.v3 merges into a non-nil map; the file's rule selection must
	// replace the default one, not join it.
	defaultRule := cfg.Plant.DispatchingRule
	cfg.Plant.DispatchingRule = nil
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Plant.DispatchingRule == nil {
		cfg.Plant.DispatchingRule = defaultRule
	}
	return cfg, nil
}

// Validate checks every section and returns the first error.
func (c *Config) Validate() error {
	if err := c.Plant.Validate(); err != nil {
		return err
	}
	if err := c.Workload.Validate(); err != nil {
		return err
	}
	return c.Rates.Validate()
}

// applyOverrides layers flag and PRINTFARM_* environment values over the
// file. Only keys the user actually set take effect.
func applyOverrides(cfg *Config, v *viper.Viper) {
	if v.IsSet("seed") {
		cfg.Workload.Seed = v.GetInt64("seed")
	}
	if v.IsSet("days") {
		cfg.Plant.Days = v.GetInt("days")
	}
	if rule := v.GetString("rule"); v.IsSet("rule") && rule != "" {
		cfg.Plant.DispatchingRule = map[string]bool{rule: true}
	}
	if v.IsSet("residual-policy") {
		cfg.Plant.Drain.ResidualPolicy = plant.ResidualPolicy(v.GetString("residual-policy"))
	}
	if v.IsSet("dry-mode") {
		cfg.Plant.Dry.Mode = plant.DryMode(v.GetString("dry-mode"))
	}
	if v.IsSet("pallets") {
		cfg.Plant.Build.Pallets = v.GetInt("pallets")
	}
	if v.IsSet("defect-rule") {
		cfg.Plant.Inspect.DefectRule = v.GetString("defect-rule")
	}
}
