package plant

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

// ItemFacts is the view of an item a defect rule can reference as Item.
type ItemFacts struct {
	ID       int
	JobID    int
	Position int
	Height   int
	Width    int
	Depth    int
	Volume   int
	Reworks  int
}

// JobFacts is the view of the item's job a defect rule can reference as Job.
type JobFacts struct {
	ID        int
	Items     int
	Rework    bool
	BuildTime int64
}

// DefectEnv is the environment defect rules are compiled against.
type DefectEnv struct {
	Item ItemFacts
	Job  JobFacts
	Now  int64
	// Draw is a uniform sample in [0, 1) from the inspection RNG stream, so
	// "Draw < 0.05" rejects about one item in twenty.
	Draw float64
}

// DefectRule decides at inspection whether an item is defective, e.g.
// "Item.Position % 5 == 0" rejects every fifth item of a job.
type DefectRule struct {
	source  string
	program *vm.Program
}

// NewDefectRule compiles src. An empty source yields a rule that never
// rejects anything.
func NewDefectRule(src string) (*DefectRule, error) {
	r := &DefectRule{source: src}
	if src == "" {
		return r, nil
	}
	program, err := expr.Compile(src, expr.Env(DefectEnv{}), expr.AsBool())
	if err != nil {
		return nil, sim.NewConfigurationError("inspect.defect_rule", "%v", err)
	}
	r.program = program
	return r, nil
}

// String returns the rule source.
func (r *DefectRule) String() string { return r.source }

// Defective evaluates the rule for it at tick now with the given draw.
func (r *DefectRule) Defective(it *Item, now int64, draw float64) (bool, error) {
	if r.program == nil {
		return false, nil
	}
	env := DefectEnv{
		Item: ItemFacts{
			ID:       it.ID,
			JobID:    it.JobID,
			Position: it.Position,
			Height:   it.Height,
			Width:    it.Width,
			Depth:    it.Depth,
			Volume:   it.Volume(),
			Reworks:  it.Reworks,
		},
		Now:  now,
		Draw: draw,
	}
	if j := it.Job(); j != nil {
		env.Job = JobFacts{ID: j.ID, Items: len(j.Items), Rework: j.Rework, BuildTime: j.BuildTime}
	}
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("defect rule %q on %s: %w", r.source, it.Key(), err)
	}
	return out.(bool), nil
}
