// Package trace records what every entity did at every stage of a run and
// summarizes it. It has no dependencies on sim/ or sim/plant/ and stores pure
// data types only.
package trace

// StageRecord captures one completed stage visit. Ready is the tick the
// entity became available to the stage; Start and End bound the time it
// occupied ResourceID.
type StageRecord struct {
	EntityID   string
	ResourceID string
	Process    string
	Ready      int64
	Start      int64
	End        int64
	// Forced marks a batch that was force-dispatched under capacity.
	Forced bool
}

// Wait returns the time spent queued before the stage started.
func (r StageRecord) Wait() int64 { return r.Start - r.Ready }

// Duration returns the time spent occupying the resource.
func (r StageRecord) Duration() int64 { return r.End - r.Start }

// DayRecord captures the daily totals published at every day boundary.
type DayRecord struct {
	Day          int
	Clock        int64
	Completed    int
	Shortages    int
	Defects      int
	Cost         float64
	Satisfaction float64
}
