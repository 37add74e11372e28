package plant

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim"
	"github.com/printfarm-sim/printfarm-sim/sim/dispatch"
	"github.com/printfarm-sim/printfarm-sim/sim/pool"
	"github.com/printfarm-sim/printfarm-sim/sim/trace"
)

// Sequence hands out job and item IDs. The generator and the rework logic
// share one Sequence so IDs never collide.
type Sequence struct {
	jobs, items int
}

// NextJob returns the next job ID, starting at 1.
func (s *Sequence) NextJob() int { s.jobs++; return s.jobs }

// NextItem returns the next item ID, starting at 1.
func (s *Sequence) NextItem() int { s.items++; return s.items }

// Totals counts units at the pipeline boundaries.
type Totals struct {
	JobsSubmitted int
	JobsCompleted int
	// JobsEmptied counts jobs closed after inspection because every item
	// was rejected.
	JobsEmptied int
	ReworkJobs  int

	ItemsSubmitted int // first-time entries only
	ItemsShortage  int
	ItemsPacked    int
	ItemsDefective int // rejections, an item may be rejected more than once
	ItemsScrapped  int
}

// Balanced reports whether every submitted item has left the pipeline
// packed or scrapped.
func (t Totals) Balanced() bool {
	return t.ItemsSubmitted == t.ItemsPacked+t.ItemsScrapped
}

type reworkUnit struct {
	item *Item
	wash int64
	dry  int64
}

// Pipeline is the five-stage facility bound to one simulator.
type Pipeline struct {
	cfg  Config
	rule dispatch.Rule
	sim  *sim.Simulator
	seq  *Sequence

	observers []Observer
	recorder  Recorder
	recorded  map[stageVisit]bool

	buildQueue *sim.HandoffQueue[*Job]
	printers   []*Printer
	pallets    *sim.Resource

	wash *pool.BatchPool[*Job]

	dry        *pool.BatchPool[*Job] // batch mode
	dryers     []*sim.Resource       // race mode
	dryRacing  int
	dryRunning int

	inspect    *pool.WorkerPool[*Item]
	defects    *DefectRule
	inspectRNG *rand.Rand
	rework     []reworkUnit

	pack *pool.WorkerPool[*Job]

	inFlight map[int]*Job
	totals   Totals
	state    DrainState
	day      int
	ran      bool
	err      error
}

// New validates cfg and builds the facility on s. Printers and the daily
// reporter start at the current tick. rec may be nil.
func New(s *sim.Simulator, cfg Config, rec Recorder, observers ...Observer) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rule, _ := cfg.Rule()
	defects, _ := NewDefectRule(cfg.Inspect.DefectRule)
	if rec == nil {
		rec = trace.NewTrace(trace.TraceConfig{Level: trace.TraceLevelNone})
	}
	pl := &Pipeline{
		cfg:        cfg,
		rule:       rule,
		sim:        s,
		seq:        &Sequence{},
		observers:  observers,
		recorder:   rec,
		recorded:   make(map[stageVisit]bool),
		buildQueue: sim.NewHandoffQueue[*Job](s, "build"),
		defects:    defects,
		inspectRNG: sim.NewPartitionedRNG(sim.NewSimulationKey(0)).ForSubsystem(sim.SubsystemInspection),
		inFlight:   make(map[int]*Job),
		state:      Running,
	}
	if cfg.Build.Pallets > 0 {
		pallets, err := sim.NewResource(s, "pallets", cfg.Build.Pallets)
		if err != nil {
			return nil, err
		}
		pl.pallets = pallets
	}
	if err := pl.buildStages(); err != nil {
		return nil, err
	}
	for i := 0; i < cfg.Build.Printers; i++ {
		pr := &Printer{ID: i, Name: fmt.Sprintf("printer-%d", i), pl: pl, state: PrinterIdle}
		pl.printers = append(pl.printers, pr)
		s.Spawn(pr.Name, pr.loop)
	}
	pl.startReporter()
	logrus.Debugf("[tick %07d] plant: %d printers, wash %v, dry %v (%s), %d inspectors, %d packers, rule %s",
		s.Clock, cfg.Build.Printers, cfg.Wash.Machines, cfg.Dry.Machines, cfg.Dry.Mode,
		cfg.Inspect.Workers, cfg.Package.Workers, rule)
	return pl, nil
}

// UseRNG draws inspection samples from the inspection stream of rng instead
// of the default seed-0 stream. Call it before Run.
func (pl *Pipeline) UseRNG(rng *sim.PartitionedRNG) {
	pl.inspectRNG = rng.ForSubsystem(sim.SubsystemInspection)
}

// draw samples the value a defect rule sees as Draw.
func (pl *Pipeline) draw() float64 {
	if pl.defects.program == nil {
		return 0
	}
	return pl.inspectRNG.Float64()
}

// Config returns the configuration the pipeline was built with.
func (pl *Pipeline) Config() Config { return pl.cfg }

// Rule returns the active dispatching rule.
func (pl *Pipeline) Rule() dispatch.Rule { return pl.rule }

// Sim returns the simulator the pipeline runs on.
func (pl *Pipeline) Sim() *sim.Simulator { return pl.sim }

// IDs returns the shared ID sequence.
func (pl *Pipeline) IDs() *Sequence { return pl.seq }

// Totals returns the boundary counters.
func (pl *Pipeline) Totals() Totals { return pl.totals }

// Printers returns the printer fleet in ID order.
func (pl *Pipeline) Printers() []*Printer { return pl.printers }

// Submit puts a fully formed job into the Build queue. A job may enter only
// once; a second Submit of the same job is an invariant violation.
func (pl *Pipeline) Submit(j *Job) {
	if j == nil {
		panic("Submit: nil job")
	}
	for _, it := range j.Items {
		if it.Shortage {
			sim.Violate("build", len(j.Items), 0, "job %d carries shortage item %d", j.ID, it.ID)
		}
	}
	pl.totals.JobsSubmitted++
	pl.totals.ItemsSubmitted += len(j.Items)
	pl.enter(j)
}

// Release submits a group of jobs ordered by the dispatching rule.
func (pl *Pipeline) Release(jobs []*Job) {
	dispatch.Sort(pl.rule, jobs)
	for _, j := range jobs {
		pl.Submit(j)
	}
}

// Divert records an item that does not fit any printer. It never enters the
// pipeline.
func (pl *Pipeline) Divert(it *Item) {
	it.Shortage = true
	pl.totals.ItemsShortage++
	logrus.Debugf("[tick %07d] %s diverted: %dx%dx%d exceeds printer envelope",
		pl.sim.Clock, it.Key(), it.Width, it.Height, it.Depth)
	pl.emit(Event{
		Kind:      Shortage,
		Entity:    it.Key(),
		JobID:     it.JobID,
		ItemID:    it.ID,
		Time:      pl.sim.Clock,
		Volume:    it.Volume(),
		CreatedAt: it.CreatedAt,
	})
}

// enter hands j to the Build queue.
func (pl *Pipeline) enter(j *Job) {
	if _, dup := pl.inFlight[j.ID]; dup || j.Stage != StageQueued {
		sim.Violate("build", len(pl.inFlight), len(pl.inFlight), "job %d entered the pipeline twice (stage %s)", j.ID, j.Stage)
	}
	pl.inFlight[j.ID] = j
	j.readyAt = pl.sim.Clock
	pl.buildQueue.Put(j)
}

func (pl *Pipeline) emit(ev Event) {
	for _, o := range pl.observers {
		o.Observe(ev)
	}
}

type stageVisit struct {
	entity string
	stage  Stage
}

// record hands one stage record to the recorder. An entity visiting a stage
// twice, or a record whose times run backwards, means the unit was in two
// places at once.
func (pl *Pipeline) record(entity, resource string, stage Stage, ready, start, end int64, forced bool) {
	if end < start || start < ready {
		sim.Violate(resource, 1, 1, "%s record for %s is not ordered: ready=%d start=%d end=%d",
			stage, entity, ready, start, end)
	}
	v := stageVisit{entity, stage}
	if pl.recorded[v] {
		sim.Violate(resource, 2, 1, "%s visited %s twice", entity, stage)
	}
	pl.recorded[v] = true
	pl.recorder.Record(trace.StageRecord{
		EntityID:   entity,
		ResourceID: resource,
		Process:    string(stage),
		Ready:      ready,
		Start:      start,
		End:        end,
		Forced:     forced,
	})
}

func (pl *Pipeline) jobEvent(kind EventKind, j *Job, stage Stage, resource string) Event {
	return Event{
		Kind:      kind,
		Entity:    j.Key(),
		JobID:     j.ID,
		Stage:     stage,
		Resource:  resource,
		Time:      pl.sim.Clock,
		Volume:    j.Volume(),
		CreatedAt: j.CreatedAt,
	}
}
