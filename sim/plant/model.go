package plant

import (
	"fmt"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

// Stage names a pipeline step. It doubles as the process name in stage
// records and as the key of per-stage statistics.
type Stage string

const (
	StageQueued  Stage = "queued"
	StageBuild   Stage = "build"
	StageWash    Stage = "wash"
	StageDry     Stage = "dry"
	StageInspect Stage = "inspect"
	StagePackage Stage = "package"
	StageDone    Stage = "done"
)

// Stages lists the processing stages in routing order.
var Stages = []Stage{StageBuild, StageWash, StageDry, StageInspect, StagePackage}

// Timestamps holds the per-stage start and end ticks of a job. A zero value
// means the phase has not happened yet.
type Timestamps struct {
	SetupStart, SetupEnd     int64
	BuildStart, BuildEnd     int64
	ClosingStart, ClosingEnd int64
	WashStart, WashEnd       int64
	DryStart, DryEnd         int64
	PostStart, PostEnd       int64
	PackStart, PackEnd       int64
}

// Item is one printed part. It belongs to exactly one job at a time.
type Item struct {
	ID       int
	JobID    int
	Position int // 1-based index inside its job

	Height, Width, Depth int

	BuildTime int64
	PostTime  int64
	PackTime  int64

	CreatedAt int64
	Shortage  bool
	Defect    bool
	Reworks   int

	job     *Job
	readyAt int64
}

// Volume returns Height*Width*Depth.
func (it *Item) Volume() int {
	return it.Height * it.Width * it.Depth
}

// Key identifies the item in stage records. A reworked item is a new entity
// for reporting purposes, so the rework count is part of the key.
func (it *Item) Key() string {
	if it.Reworks == 0 {
		return fmt.Sprintf("item-%d", it.ID)
	}
	return fmt.Sprintf("item-%d.r%d", it.ID, it.Reworks)
}

// Job returns the job currently holding the item.
func (it *Item) Job() *Job { return it.job }

// Created, ProcessingTime and Due make *Item a dispatch.Candidate. SPT and
// LPT rank items by build time, like jobs; items inherit the due date of
// their job.
func (it *Item) Created() int64        { return it.CreatedAt }
func (it *Item) ProcessingTime() int64 { return it.BuildTime }

func (it *Item) Due() int64 {
	if it.job != nil {
		return it.job.DueDate
	}
	return it.CreatedAt + it.BuildTime + it.PostTime + it.PackTime
}

// Job is the routing unit moving through the pipeline. Exactly one stage
// owns a job at any time.
type Job struct {
	ID        int
	CreatedAt int64
	Items     []*Item

	BuildTime int64
	DueDate   int64
	WashTime  int64
	DryTime   int64

	Timestamps Timestamps
	Stage      Stage
	Rework     bool

	pallet      *sim.Request
	readyAt     int64
	uninspected int
	postStarted bool
}

// BuildTimePolicy aggregates item build times into a job build time.
type BuildTimePolicy string

const (
	BuildTimeSum BuildTimePolicy = "sum"
	BuildTimeMax BuildTimePolicy = "max"
)

// NewJob attaches items to a new job, numbering them from 1, and derives the
// job build time and due date.
func NewJob(id int, createdAt int64, items []*Item, policy BuildTimePolicy) *Job {
	j := &Job{ID: id, CreatedAt: createdAt, Items: items, Stage: StageQueued}
	for i, it := range items {
		it.JobID = id
		it.Position = i + 1
		it.job = j
	}
	j.BuildTime = aggregateBuildTime(items, policy)
	j.DueDate = createdAt + j.BuildTime
	for _, it := range items {
		j.DueDate += it.PostTime + it.PackTime
	}
	return j
}

func aggregateBuildTime(items []*Item, policy BuildTimePolicy) int64 {
	var total int64
	for _, it := range items {
		if policy == BuildTimeMax {
			total = max(total, it.BuildTime)
		} else {
			total += it.BuildTime
		}
	}
	return total
}

// Key identifies the job in stage records.
func (j *Job) Key() string { return fmt.Sprintf("job-%d", j.ID) }

// Volume returns the summed volume of the job's items.
func (j *Job) Volume() int {
	v := 0
	for _, it := range j.Items {
		v += it.Volume()
	}
	return v
}

// PackTime is the packaging duration: the sum over the job's items.
func (j *Job) PackTime() int64 {
	var d int64
	for _, it := range j.Items {
		d += it.PackTime
	}
	return d
}

// Created, ProcessingTime and Due make *Job a dispatch.Candidate.
func (j *Job) Created() int64        { return j.CreatedAt }
func (j *Job) ProcessingTime() int64 { return j.BuildTime }
func (j *Job) Due() int64            { return j.DueDate }

func (j *Job) String() string {
	return fmt.Sprintf("Job(%d items=%d stage=%s)", j.ID, len(j.Items), j.Stage)
}
