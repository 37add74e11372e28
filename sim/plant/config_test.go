package plant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfarm-sim/printfarm-sim/sim"
	"github.com/printfarm-sim/printfarm-sim/sim/dispatch"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	rule, err := cfg.Rule()
	require.NoError(t, err)
	assert.Equal(t, dispatch.SPT, rule)
	assert.Equal(t, int64(2880), cfg.Horizon())
}

func TestConfig_Validate_RejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero printers", func(c *Config) { c.Build.Printers = 0 }, "build.printers"},
		{"empty wash set", func(c *Config) { c.Wash.Machines = nil }, "wash.machines"},
		{"zero dry capacity", func(c *Config) { c.Dry.Machines = []int{3, 0} }, "dry.machines[1]"},
		{"no inspectors", func(c *Config) { c.Inspect.Workers = 0 }, "inspect.workers"},
		{"no packers", func(c *Config) { c.Package.Workers = -1 }, "package.workers"},
		{"two rules", func(c *Config) { c.DispatchingRule["EDD"] = true }, "dispatching_rule"},
		{"no rule", func(c *Config) { c.DispatchingRule = map[string]bool{"SPT": false} }, "dispatching_rule"},
		{"bad dry mode", func(c *Config) { c.Dry.Mode = "spin" }, "dry.mode"},
		{"bad batch policy", func(c *Config) { c.Wash.TimePolicy = "avg" }, "wash.time_policy"},
		{"bad residual policy", func(c *Config) { c.Drain.ResidualPolicy = "drop" }, "drain.residual_policy"},
		{"zero drain step", func(c *Config) { c.Drain.Step = 0 }, "drain.step"},
		{"zero day length", func(c *Config) { c.DayLength = 0 }, "day_length"},
		{"bad defect rule", func(c *Config) { c.Inspect.DefectRule = "Item.Position %" }, "inspect.defect_rule"},
		{"negative pallets", func(c *Config) { c.Build.Pallets = -2 }, "build.pallets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *sim.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNew_InvalidConfig_NoPipeline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wash.Machines = []int{}
	pl, err := New(sim.NewSimulator(), cfg, nil)
	assert.Nil(t, pl)
	var cfgErr *sim.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
