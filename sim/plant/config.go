package plant

import (
	"fmt"
	"strings"

	"github.com/printfarm-sim/printfarm-sim/sim"
	"github.com/printfarm-sim/printfarm-sim/sim/dispatch"
)

// BatchTimePolicy turns member durations into a batch duration.
type BatchTimePolicy string

const (
	BatchTimeMax BatchTimePolicy = "max"
	BatchTimeSum BatchTimePolicy = "sum"
)

// DryMode selects how the Dry stage acquires a machine.
type DryMode string

const (
	// DryBatch forms full batches like the wash stage.
	DryBatch DryMode = "batch"
	// DryRace lets each job race for the first dryer slot that frees up.
	DryRace DryMode = "race"
)

// ResidualPolicy decides what the drain controller does with under-full
// batches and a partial rework buffer once arrivals have stopped.
type ResidualPolicy string

const (
	// ResidualForce dispatches under-full batches and flushes the rework
	// buffer when draining starts and after every drain step.
	ResidualForce ResidualPolicy = "force"
	// ResidualWait never forces; residual work ends the run as Stalled.
	ResidualWait ResidualPolicy = "wait"
)

// BuildConfig describes the printer fleet.
type BuildConfig struct {
	Printers int   `yaml:"printers"`
	Setup    int64 `yaml:"setup"`
	Closing  int64 `yaml:"closing"`
	// Pallets is the number of build pallets; 0 disables pallet tracking.
	Pallets int `yaml:"pallets"`
}

// BatchStageConfig describes a batch machine stage.
type BatchStageConfig struct {
	Machines   []int           `yaml:"machines"`
	TimePolicy BatchTimePolicy `yaml:"time_policy"`
}

// DryConfig extends BatchStageConfig with the acquisition mode. In race mode
// each entry of Machines is the capacity of one dryer.
type DryConfig struct {
	BatchStageConfig `yaml:",inline"`
	Mode             DryMode `yaml:"mode"`
}

// InspectConfig describes the inspection and post-processing stage.
type InspectConfig struct {
	Workers int `yaml:"workers"`
	// DefectRule is an expression over Item and Job; empty means no defects.
	DefectRule          string `yaml:"defect_rule"`
	DefectsPerReworkJob int    `yaml:"defects_per_rework_job"`
	// MaxReworks caps how many times one item re-enters the pipeline before
	// it is scrapped.
	MaxReworks int `yaml:"max_reworks"`
}

// PackageConfig describes the packaging stage.
type PackageConfig struct {
	Workers int `yaml:"workers"`
}

// DrainConfig controls the post-horizon drain.
type DrainConfig struct {
	Step           int64          `yaml:"step"`
	MaxSteps       int            `yaml:"max_steps"`
	ResidualPolicy ResidualPolicy `yaml:"residual_policy"`
}

// Config is the facility configuration. It is loaded once and never changes
// during a run.
type Config struct {
	// DayLength is the reporting period in ticks. It has no effect on
	// scheduling.
	DayLength int64 `yaml:"day_length"`
	// Days is the horizon in days; arrivals stop at Days*DayLength.
	Days int `yaml:"days"`

	DispatchingRule map[string]bool `yaml:"dispatching_rule"`
	BuildTimePolicy BuildTimePolicy `yaml:"build_time_policy"`

	Build   BuildConfig      `yaml:"build"`
	Wash    BatchStageConfig `yaml:"wash"`
	Dry     DryConfig        `yaml:"dry"`
	Inspect InspectConfig    `yaml:"inspect"`
	Package PackageConfig    `yaml:"package"`
	Drain   DrainConfig      `yaml:"drain"`
}

// DefaultConfig returns the reference facility: five printers, two wash and
// two dry machines of three slots, six inspectors and three packers.
func DefaultConfig() Config {
	return Config{
		DayLength:       1440,
		Days:            2,
		DispatchingRule: map[string]bool{"FIFO": false, "LIFO": false, "SPT": true, "LPT": false, "EDD": false},
		BuildTimePolicy: BuildTimeSum,
		Build:           BuildConfig{Printers: 5, Setup: 10, Closing: 30},
		Wash:            BatchStageConfig{Machines: []int{3, 3}, TimePolicy: BatchTimeMax},
		Dry: DryConfig{
			BatchStageConfig: BatchStageConfig{Machines: []int{3, 3}, TimePolicy: BatchTimeMax},
			Mode:             DryBatch,
		},
		Inspect: InspectConfig{
			Workers:             6,
			DefectRule:          "Item.Position % 5 == 0",
			DefectsPerReworkJob: 5,
			MaxReworks:          2,
		},
		Package: PackageConfig{Workers: 3},
		Drain:   DrainConfig{Step: 1440, MaxSteps: 365, ResidualPolicy: ResidualForce},
	}
}

// Horizon returns the tick at which arrivals stop.
func (c Config) Horizon() int64 {
	return int64(c.Days) * c.DayLength
}

// Rule returns the single enabled dispatching rule.
func (c Config) Rule() (dispatch.Rule, error) {
	return dispatch.Select(c.DispatchingRule)
}

// Validate reports the first invalid setting as a *sim.ConfigurationError.
func (c Config) Validate() error {
	if c.DayLength <= 0 {
		return sim.NewConfigurationError("day_length", "must be > 0, got %d", c.DayLength)
	}
	if c.Days < 0 {
		return sim.NewConfigurationError("days", "must be >= 0, got %d", c.Days)
	}
	if _, err := c.Rule(); err != nil {
		return err
	}
	if err := oneOf("build_time_policy", string(c.BuildTimePolicy), BuildTimeSum, BuildTimeMax); err != nil {
		return err
	}
	if c.Build.Printers <= 0 {
		return sim.NewConfigurationError("build.printers", "must be > 0, got %d", c.Build.Printers)
	}
	if c.Build.Setup < 0 || c.Build.Closing < 0 {
		return sim.NewConfigurationError("build", "setup and closing must be >= 0")
	}
	if c.Build.Pallets < 0 {
		return sim.NewConfigurationError("build.pallets", "must be >= 0, got %d", c.Build.Pallets)
	}
	if err := c.Wash.validate("wash"); err != nil {
		return err
	}
	if err := c.Dry.validate("dry"); err != nil {
		return err
	}
	if err := oneOf("dry.mode", string(c.Dry.Mode), DryBatch, DryRace); err != nil {
		return err
	}
	if c.Inspect.Workers <= 0 {
		return sim.NewConfigurationError("inspect.workers", "must be > 0, got %d", c.Inspect.Workers)
	}
	if c.Inspect.DefectsPerReworkJob <= 0 {
		return sim.NewConfigurationError("inspect.defects_per_rework_job", "must be > 0, got %d", c.Inspect.DefectsPerReworkJob)
	}
	if c.Inspect.MaxReworks < 0 {
		return sim.NewConfigurationError("inspect.max_reworks", "must be >= 0, got %d", c.Inspect.MaxReworks)
	}
	if _, err := NewDefectRule(c.Inspect.DefectRule); err != nil {
		return err
	}
	if c.Package.Workers <= 0 {
		return sim.NewConfigurationError("package.workers", "must be > 0, got %d", c.Package.Workers)
	}
	if c.Drain.Step <= 0 {
		return sim.NewConfigurationError("drain.step", "must be > 0, got %d", c.Drain.Step)
	}
	if c.Drain.MaxSteps <= 0 {
		return sim.NewConfigurationError("drain.max_steps", "must be > 0, got %d", c.Drain.MaxSteps)
	}
	return oneOf("drain.residual_policy", string(c.Drain.ResidualPolicy), ResidualForce, ResidualWait)
}

func (b BatchStageConfig) validate(stage string) error {
	if len(b.Machines) == 0 {
		return sim.NewConfigurationError(stage+".machines", "empty machine set")
	}
	for i, c := range b.Machines {
		if c <= 0 {
			return sim.NewConfigurationError(fmt.Sprintf("%s.machines[%d]", stage, i), "capacity must be > 0, got %d", c)
		}
	}
	return oneOf(stage+".time_policy", string(b.TimePolicy), BatchTimeMax, BatchTimeSum)
}

func oneOf[S ~string](field, got string, valid ...S) error {
	names := make([]string, len(valid))
	for i, v := range valid {
		if string(v) == got {
			return nil
		}
		names[i] = string(v)
	}
	return sim.NewConfigurationError(field, "unknown value %q (valid: %s)", got, strings.Join(names, ", "))
}
