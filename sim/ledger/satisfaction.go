package ledger

import (
	"slices"

	"github.com/printfarm-sim/printfarm-sim/sim/plant"
)

// Satisfaction keeps the running customer satisfaction score.
type Satisfaction struct {
	rates  SatisfactionRates
	total  float64
	scored int
	log    []float64
}

func NewSatisfaction(rates SatisfactionRates) *Satisfaction {
	return &Satisfaction{rates: rates}
}

// Score rates a job created at createdAt and finished at end. A job that
// finished the instant it was created never reached a printer and gets the
// negative score.
func (s *Satisfaction) Score(createdAt, end int64) float64 {
	if end == createdAt {
		return s.rates.Negative
	}
	return s.rates.Positive / float64(end-createdAt)
}

// Rate scores completed jobs and shortages and adds them to the total.
func (s *Satisfaction) Rate(ev plant.Event) {
	if ev.Kind != plant.Completed && ev.Kind != plant.Shortage {
		return
	}
	s.total += s.Score(ev.CreatedAt, ev.Time)
	s.scored++
}

// Total returns the running score.
func (s *Satisfaction) Total() float64 { return s.total }

// Scored returns how many outcomes were rated.
func (s *Satisfaction) Scored() int { return s.scored }

// CloseDay logs the running total.
func (s *Satisfaction) CloseDay() float64 {
	s.log = append(s.log, s.total)
	return s.total
}

// Log returns the running total at every closed day.
func (s *Satisfaction) Log() []float64 { return slices.Clone(s.log) }
