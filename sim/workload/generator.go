package workload

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim"
	"github.com/printfarm-sim/printfarm-sim/sim/plant"
)

// Sink receives generated work. *plant.Pipeline implements it.
type Sink interface {
	Release(jobs []*plant.Job)
	Divert(it *plant.Item)
	IDs() *plant.Sequence
}

// Stats counts what a Customer produced.
type Stats struct {
	Arrivals  int // arrival instants
	Releases  int // groups handed to the sink
	Jobs      int // jobs released
	Items     int // items released inside jobs
	Shortages int // items diverted for exceeding the envelope
	Dropped   int // jobs with no printable item left
}

// Customer is the order source. Every arrival it creates one job, diverts
// the items that do not fit a printer, and holds the job until
// JobsPerRelease of them have accumulated. No arrival is scheduled at or
// after the horizon; whatever is still held is released at the horizon.
//
// Deterministic given the same spec, seed and sink.
type Customer struct {
	spec    Spec
	sink    Sink
	policy  plant.BuildTimePolicy
	horizon int64
	rng     *rand.Rand

	arrivals    ArrivalSampler
	itemsPerJob IntSampler
	dims        IntSampler
	packSmall   IntSampler
	packLarge   IntSampler
	wash        IntSampler
	dry         IntSampler
	smallVolume int

	pending []*plant.Job
	stats   Stats
	done    bool
}

// NewCustomer validates spec and builds a Customer drawing from the
// workload subsystem of rng.
func NewCustomer(spec Spec, rng *sim.PartitionedRNG, sink Sink, policy plant.BuildTimePolicy, horizon int64) (*Customer, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload spec: %w", err)
	}
	if sink == nil {
		return nil, fmt.Errorf("customer: nil sink")
	}
	c := &Customer{
		spec:     spec,
		sink:     sink,
		policy:   policy,
		horizon:  horizon,
		rng:      rng.ForSubsystem(sim.SubsystemWorkload),
		arrivals: NewArrivalSampler(spec.Arrival, spec.Interval),
	}
	samplers := []struct {
		dst  *IntSampler
		dist DistSpec
		name string
	}{
		{&c.itemsPerJob, spec.ItemsPerJob, "items_per_job"},
		{&c.dims, spec.Dimensions, "dimensions"},
		{&c.packSmall, spec.PackSmall, "pack_small"},
		{&c.packLarge, spec.PackLarge, "pack_large"},
		{&c.wash, spec.Wash, "wash"},
		{&c.dry, spec.Dry, "dry"},
	}
	for _, s := range samplers {
		sampler, err := NewIntSampler(s.dist)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		*s.dst = sampler
	}
	maxDim := spec.Dimensions.Max
	c.smallVolume = maxDim * maxDim * maxDim / 2
	return c, nil
}

// Stats returns the running production counts.
func (c *Customer) Stats() Stats { return c.stats }

// Done reports whether the customer has stopped arriving.
func (c *Customer) Done() bool { return c.done }

// Start spawns the customer process on s. The first job arrives after one
// sampled gap.
func (c *Customer) Start(s *sim.Simulator) *sim.Process {
	return s.Spawn("customer", func(p *sim.Process) {
		c.next(p)
	})
}

func (c *Customer) next(p *sim.Process) {
	now := p.Sim().Now()
	gap := c.arrivals.SampleIAT(c.rng)
	if now+gap < c.horizon {
		p.Timeout(gap, func() {
			c.arrive(p)
			c.next(p)
		})
		return
	}
	if now >= c.horizon {
		c.finish(now)
		return
	}
	p.Timeout(c.horizon-now, func() {
		c.finish(p.Sim().Now())
	})
}

func (c *Customer) arrive(p *sim.Process) {
	now := p.Sim().Now()
	c.stats.Arrivals++
	if j := c.makeJob(now); j != nil {
		c.pending = append(c.pending, j)
	}
	if len(c.pending) >= c.spec.JobsPerRelease {
		c.release(now)
	}
}

func (c *Customer) finish(now int64) {
	if len(c.pending) > 0 {
		c.release(now)
	}
	c.done = true
	logrus.Infof("[tick %07d] customer: stopped after %d arrivals (%d jobs, %d items, %d shortages)",
		now, c.stats.Arrivals, c.stats.Jobs, c.stats.Items, c.stats.Shortages)
}

func (c *Customer) release(now int64) {
	jobs := c.pending
	c.pending = nil
	c.stats.Releases++
	c.stats.Jobs += len(jobs)
	for _, j := range jobs {
		c.stats.Items += len(j.Items)
	}
	logrus.Debugf("[tick %07d] customer: releasing %d jobs", now, len(jobs))
	c.sink.Release(jobs)
}

// makeJob draws one job. Items outside the envelope are diverted; a job left
// with no items is dropped and returns nil.
func (c *Customer) makeJob(now int64) *plant.Job {
	seq := c.sink.IDs()
	jobID := seq.NextJob()
	n := c.itemsPerJob.Sample(c.rng)
	items := make([]*plant.Item, 0, n)
	for i := 0; i < n; i++ {
		it := c.makeItem(seq.NextItem(), now)
		if !c.spec.Envelope.Fits(it.Width, it.Height, it.Depth) {
			it.JobID = jobID
			it.Position = i + 1
			c.stats.Shortages++
			c.sink.Divert(it)
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		c.stats.Dropped++
		logrus.Debugf("[tick %07d] customer: job %d dropped, every item exceeds the envelope", now, jobID)
		return nil
	}
	j := plant.NewJob(jobID, now, items, c.policy)
	j.WashTime = int64(c.wash.Sample(c.rng))
	j.DryTime = int64(c.dry.Sample(c.rng))
	return j
}

func (c *Customer) makeItem(id int, now int64) *plant.Item {
	it := &plant.Item{
		ID:        id,
		Width:     c.dims.Sample(c.rng),
		Height:    c.dims.Sample(c.rng),
		Depth:     c.dims.Sample(c.rng),
		CreatedAt: now,
	}
	volume := it.Volume()
	it.BuildTime = BuildTime(volume, c.spec.BuildSpeed)
	it.PostTime = PostTime(max(it.Width, it.Height, it.Depth), c.spec.Envelope, c.spec.PostCoefficient)
	if volume <= c.smallVolume {
		it.PackTime = int64(c.packSmall.Sample(c.rng))
	} else {
		it.PackTime = int64(c.packLarge.Sample(c.rng))
	}
	return it
}

// BuildTime is the printing time of volume at speed, rounded up, at least 1.
func BuildTime(volume int, speed float64) int64 {
	return max(int64(math.Ceil(float64(volume)/speed)), 1)
}

// PostTime scales coefficient by how much of the envelope's largest
// dimension the item spans.
func PostTime(largest int, env Envelope, coefficient float64) int64 {
	if coefficient == 0 {
		return 0
	}
	return max(int64(math.Round(coefficient*float64(largest)/float64(env.largest()))), 1)
}
