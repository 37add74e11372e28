package plant

import "github.com/printfarm-sim/printfarm-sim/sim/trace"

// EventKind classifies an Event.
type EventKind string

const (
	// StageEntry fires when a job or item starts occupying a stage resource.
	StageEntry EventKind = "stage_entry"
	// StageExit fires when it leaves; Duration is the measured processing time.
	StageExit EventKind = "stage_exit"
	// Shortage fires for an item diverted before the pipeline because it does
	// not fit the printer envelope.
	Shortage EventKind = "shortage"
	// Defect fires when inspection rejects an item.
	Defect EventKind = "defect"
	// Rework fires when rejected items are regrouped into a new job.
	Rework EventKind = "rework"
	// Scrap fires when a rejected item exhausted its rework allowance.
	Scrap EventKind = "scrap"
	// Completed fires when a job leaves packaging.
	Completed EventKind = "completed"
	// DayEnd fires at every day boundary.
	DayEnd EventKind = "day_end"
)

// Event is the record handed to observers at every transition point.
type Event struct {
	Kind     EventKind
	Entity   string // job or item key
	JobID    int
	ItemID   int
	Stage    Stage
	Resource string
	Time     int64
	// Duration is the processing time for StageExit events.
	Duration int64
	Volume   int
	// CreatedAt is the creation tick of the job or item.
	CreatedAt int64
	Day       int
}

// Observer consumes pipeline events. Observers are called synchronously from
// inside the simulation and must not block.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Recorder receives exactly one StageRecord per (entity, stage).
type Recorder interface {
	Record(rec trace.StageRecord)
}
