package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// TraceLevel controls what a Trace keeps.
type TraceLevel string

const (
	// TraceLevelNone keeps nothing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelStages keeps every stage record.
	TraceLevelStages TraceLevel = "stages"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelStages: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

type visit struct {
	entity, process string
}

// Trace collects stage and day records during one run.
type Trace struct {
	Config TraceConfig
	Stages []StageRecord
	Days   []DayRecord

	seen map[visit]bool
}

// NewTrace creates a Trace ready for recording.
func NewTrace(config TraceConfig) *Trace {
	return &Trace{
		Config: config,
		Stages: make([]StageRecord, 0),
		Days:   make([]DayRecord, 0),
		seen:   make(map[visit]bool),
	}
}

// Record appends a stage record. A second record for the same entity and
// process means the scheduler handed one entity to a stage twice, which is a
// bug: Record panics.
func (t *Trace) Record(rec StageRecord) {
	key := visit{rec.EntityID, rec.Process}
	if t.seen[key] {
		panic(fmt.Sprintf("trace: duplicate %s record for %s", rec.Process, rec.EntityID))
	}
	if rec.End < rec.Start || rec.Start < rec.Ready {
		panic(fmt.Sprintf("trace: %s record for %s is not ordered: ready=%d start=%d end=%d",
			rec.Process, rec.EntityID, rec.Ready, rec.Start, rec.End))
	}
	t.seen[key] = true
	if t.Config.Level == TraceLevelStages {
		t.Stages = append(t.Stages, rec)
	}
}

// RecordDay appends a day record.
func (t *Trace) RecordDay(rec DayRecord) {
	t.Days = append(t.Days, rec)
}

// Visits returns the number of stage records accepted so far, kept or not.
func (t *Trace) Visits() int {
	return len(t.seen)
}

var csvHeader = []string{"entity_id", "resource_id", "process", "ready", "start", "end", "forced"}

// WriteCSV writes the stage records in recording order.
func (t *Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range t.Stages {
		row := []string{
			r.EntityID,
			r.ResourceID,
			r.Process,
			strconv.FormatInt(r.Ready, 10),
			strconv.FormatInt(r.Start, 10),
			strconv.FormatInt(r.End, 10),
			strconv.FormatBool(r.Forced),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", r.EntityID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
