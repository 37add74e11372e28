package plant

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim"
	"github.com/printfarm-sim/printfarm-sim/sim/dispatch"
	"github.com/printfarm-sim/printfarm-sim/sim/pool"
)

func (pl *Pipeline) buildStages() error {
	var err error
	pl.wash, err = pool.NewBatchPool(pl.sim, "wash", pl.cfg.Wash.Machines,
		pl.batchStage(StageWash, pl.cfg.Wash.TimePolicy, func(j *Job) int64 { return j.WashTime }, pl.toDry))
	if err != nil {
		return err
	}
	switch pl.cfg.Dry.Mode {
	case DryRace:
		for i, c := range pl.cfg.Dry.Machines {
			r, err := sim.NewResource(pl.sim, fmt.Sprintf("dryer-%d", i), c)
			if err != nil {
				return err
			}
			pl.dryers = append(pl.dryers, r)
		}
	default:
		pl.dry, err = pool.NewBatchPool(pl.sim, "dry", pl.cfg.Dry.Machines,
			pl.batchStage(StageDry, pl.cfg.Dry.TimePolicy, func(j *Job) int64 { return j.DryTime }, pl.toInspect))
		if err != nil {
			return err
		}
	}
	pl.inspect, err = pool.NewWorkerPool(pl.sim, "inspect", pl.cfg.Inspect.Workers, pool.WorkerConfig[*Item]{
		Duration: func(it *Item) int64 { return it.PostTime },
		Started:  pl.inspectStarted,
		Done:     pl.inspectDone,
		Order:    dispatch.Orderer[*Item](pl.rule),
	})
	if err != nil {
		return err
	}
	pl.pack, err = pool.NewWorkerPool(pl.sim, "package", pl.cfg.Package.Workers, pool.WorkerConfig[*Job]{
		Duration: func(j *Job) int64 { return j.PackTime() },
		Started:  pl.packStarted,
		Done:     pl.packDone,
		Order:    dispatch.Orderer[*Job](pl.rule),
	})
	return err
}

// batchDuration applies policy to the member durations of a batch.
func batchDuration(batch []*Job, d func(*Job) int64, policy BatchTimePolicy) int64 {
	var total int64
	for _, j := range batch {
		if policy == BatchTimeSum {
			total += d(j)
		} else {
			total = max(total, d(j))
		}
	}
	return total
}

// batchStage wires a batch machine pool to stage bookkeeping and to the
// next hand-off.
func (pl *Pipeline) batchStage(stage Stage, policy BatchTimePolicy, d func(*Job) int64, next func(*Job)) pool.BatchConfig[*Job] {
	machine := func(m int) string { return fmt.Sprintf("%s-%d", stage, m) }
	return pool.BatchConfig[*Job]{
		Duration: func(batch []*Job) int64 { return batchDuration(batch, d, policy) },
		Started: func(m int, batch []*Job, start int64, _ bool) {
			for _, j := range batch {
				setStart(j, stage, start)
				pl.emit(pl.jobEvent(StageEntry, j, stage, machine(m)))
			}
		},
		Done: func(m int, batch []*Job, start, end int64, forced bool) {
			for _, j := range batch {
				setEnd(j, stage, end)
				ev := pl.jobEvent(StageExit, j, stage, machine(m))
				ev.Duration = end - start
				pl.emit(ev)
				pl.record(j.Key(), machine(m), stage, j.readyAt, start, end, forced)
			}
		},
		Forward: next,
		Order:   dispatch.Orderer[*Job](pl.rule),
	}
}

func setStart(j *Job, stage Stage, t int64) {
	switch stage {
	case StageWash:
		j.Timestamps.WashStart = t
	case StageDry:
		j.Timestamps.DryStart = t
	}
}

func setEnd(j *Job, stage Stage, t int64) {
	switch stage {
	case StageWash:
		j.Timestamps.WashEnd = t
	case StageDry:
		j.Timestamps.DryEnd = t
	}
}

func (pl *Pipeline) toWash(j *Job) {
	j.Stage = StageWash
	j.readyAt = pl.sim.Clock
	pl.wash.Submit(j)
}

func (pl *Pipeline) toDry(j *Job) {
	j.Stage = StageDry
	j.readyAt = pl.sim.Clock
	if pl.dry != nil {
		pl.dry.Submit(j)
		return
	}
	pl.raceDry(j)
}

// raceDry runs one job through the first dryer slot that frees up.
func (pl *Pipeline) raceDry(j *Job) {
	pl.dryRacing++
	pl.sim.Spawn("dry-"+j.Key(), func(p *sim.Process) {
		err := sim.RaceAcquire(p, pl.dryers, func(req *sim.Request) {
			pl.dryRacing--
			pl.dryRunning++
			dryer := req.Resource().ID
			start := pl.sim.Clock
			j.Timestamps.DryStart = start
			pl.emit(pl.jobEvent(StageEntry, j, StageDry, dryer))
			p.Timeout(j.DryTime, func() {
				req.Resource().Release(req)
				pl.dryRunning--
				j.Timestamps.DryEnd = pl.sim.Clock
				ev := pl.jobEvent(StageExit, j, StageDry, dryer)
				ev.Duration = pl.sim.Clock - start
				pl.emit(ev)
				pl.record(j.Key(), dryer, StageDry, j.readyAt, start, pl.sim.Clock, false)
				pl.toInspect(j)
			})
		})
		if err != nil {
			panic(fmt.Sprintf("dry race for job %d: %v", j.ID, err))
		}
	})
}

// toInspect splits the job into items for the per-item inspection workers.
func (pl *Pipeline) toInspect(j *Job) {
	j.Stage = StageInspect
	j.readyAt = pl.sim.Clock
	j.uninspected = len(j.Items)
	if j.uninspected == 0 {
		pl.inspected(j)
		return
	}
	for _, it := range j.Items {
		it.readyAt = pl.sim.Clock
	}
	for _, it := range j.Items {
		pl.inspect.Assign(it)
	}
}

func (pl *Pipeline) inspectStarted(w int, it *Item, start int64) {
	j := it.Job()
	if !j.postStarted {
		j.postStarted = true
		j.Timestamps.PostStart = start
	}
	pl.emit(Event{
		Kind:      StageEntry,
		Entity:    it.Key(),
		JobID:     j.ID,
		ItemID:    it.ID,
		Stage:     StageInspect,
		Resource:  fmt.Sprintf("inspect-%d", w),
		Time:      start,
		Volume:    it.Volume(),
		CreatedAt: it.CreatedAt,
	})
}

func (pl *Pipeline) inspectDone(w int, it *Item, start, end int64) {
	j := it.Job()
	worker := fmt.Sprintf("inspect-%d", w)
	pl.emit(Event{
		Kind:      StageExit,
		Entity:    it.Key(),
		JobID:     j.ID,
		ItemID:    it.ID,
		Stage:     StageInspect,
		Resource:  worker,
		Time:      end,
		Duration:  end - start,
		Volume:    it.Volume(),
		CreatedAt: it.CreatedAt,
	})
	pl.record(it.Key(), worker, StageInspect, it.readyAt, start, end, false)

	defective, err := pl.defects.Defective(it, end, pl.draw())
	if err != nil && pl.err == nil {
		pl.err = err
	}
	if defective {
		it.Defect = true
		pl.totals.ItemsDefective++
		pl.emit(Event{Kind: Defect, Entity: it.Key(), JobID: j.ID, ItemID: it.ID, Stage: StageInspect, Time: end, Volume: it.Volume(), CreatedAt: it.CreatedAt})
		pl.reject(it)
	}
	j.uninspected--
	if j.uninspected < 0 {
		sim.Violate("inspect", len(j.Items)-j.uninspected, len(j.Items), "job %d inspected more items than it holds", j.ID)
	}
	if j.uninspected == 0 {
		pl.inspected(j)
	}
}

// inspected closes inspection for a job: the pallet goes back, rejected
// items leave the job, and what remains moves on to packaging.
func (pl *Pipeline) inspected(j *Job) {
	j.Timestamps.PostEnd = pl.sim.Clock
	if j.pallet != nil {
		pl.pallets.Release(j.pallet)
		j.pallet = nil
	}
	// Rejected items either stay flagged or already belong to a rework job.
	good := j.Items[:0]
	for _, it := range j.Items {
		if it.Job() == j && !it.Defect {
			good = append(good, it)
		}
	}
	clear(j.Items[len(good):])
	j.Items = good
	if len(j.Items) == 0 {
		j.Stage = StageDone
		delete(pl.inFlight, j.ID)
		pl.totals.JobsEmptied++
		logrus.Debugf("[tick %07d] job %d closed after inspection: no items left", pl.sim.Clock, j.ID)
		return
	}
	j.Stage = StagePackage
	j.readyAt = pl.sim.Clock
	pl.pack.Assign(j)
}

// reject scraps the item or parks it for the next rework job.
func (pl *Pipeline) reject(it *Item) {
	j := it.Job()
	if it.Reworks >= pl.cfg.Inspect.MaxReworks {
		pl.totals.ItemsScrapped++
		logrus.Debugf("[tick %07d] %s scrapped after %d reworks", pl.sim.Clock, it.Key(), it.Reworks)
		pl.emit(Event{Kind: Scrap, Entity: it.Key(), JobID: j.ID, ItemID: it.ID, Stage: StageInspect, Time: pl.sim.Clock, Volume: it.Volume(), CreatedAt: it.CreatedAt})
		return
	}
	pl.rework = append(pl.rework, reworkUnit{item: it, wash: j.WashTime, dry: j.DryTime})
	if len(pl.rework) >= pl.cfg.Inspect.DefectsPerReworkJob {
		pl.flushRework()
	}
}

// flushRework turns the buffered rejects into a new job at the back of the
// Build queue. Returns false when the buffer was empty.
func (pl *Pipeline) flushRework() bool {
	if len(pl.rework) == 0 {
		return false
	}
	items := make([]*Item, len(pl.rework))
	var wash, dry int64
	for i, u := range pl.rework {
		u.item.Reworks++
		u.item.Defect = false
		items[i] = u.item
		wash = max(wash, u.wash)
		dry = max(dry, u.dry)
	}
	pl.rework = nil
	j := NewJob(pl.seq.NextJob(), pl.sim.Clock, items, pl.cfg.BuildTimePolicy)
	j.Rework = true
	j.WashTime = wash
	j.DryTime = dry
	pl.totals.ReworkJobs++
	logrus.Debugf("[tick %07d] rework job %d formed from %d items", pl.sim.Clock, j.ID, len(items))
	pl.emit(pl.jobEvent(Rework, j, StageInspect, ""))
	pl.enter(j)
	return true
}

func (pl *Pipeline) packStarted(w int, j *Job, start int64) {
	j.Timestamps.PackStart = start
	pl.emit(pl.jobEvent(StageEntry, j, StagePackage, fmt.Sprintf("package-%d", w)))
}

func (pl *Pipeline) packDone(w int, j *Job, start, end int64) {
	worker := fmt.Sprintf("package-%d", w)
	j.Timestamps.PackEnd = end
	ev := pl.jobEvent(StageExit, j, StagePackage, worker)
	ev.Duration = end - start
	pl.emit(ev)
	pl.record(j.Key(), worker, StagePackage, j.readyAt, start, end, false)

	j.Stage = StageDone
	delete(pl.inFlight, j.ID)
	pl.totals.JobsCompleted++
	pl.totals.ItemsPacked += len(j.Items)
	pl.emit(pl.jobEvent(Completed, j, StagePackage, worker))
	logrus.Debugf("[tick %07d] job %d completed (%d items, flow time %d)", end, j.ID, len(j.Items), end-j.CreatedAt)
}
