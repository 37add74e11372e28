package sim

import "github.com/sirupsen/logrus"

// race ties together the sibling requests issued by one RaceAcquire call.
type race struct {
	proc     *Process
	resume   func(*Request)
	requests []*Request // in set order
	winner   *Request
	pending  bool
}

// granted is called by a member that just handed a unit to one of the race's
// requests. Grants made in the same tick are settled together by resolve.
func (rc *race) granted(req *Request) {
	if rc.winner != nil {
		Violate(req.res.ID, len(req.res.users), req.res.Capacity,
			"race already won by %s", rc.winner.res.ID)
	}
	if rc.pending {
		return
	}
	rc.pending = true
	rc.proc.sim.Schedule(0, rc.proc.Name+" race", rc.resolve)
}

// resolve keeps the granted request that comes first in set order, takes the
// unit back from every other granted sibling, withdraws the rest and resumes
// the process.
func (rc *race) resolve() {
	for _, req := range rc.requests {
		if req.granted {
			rc.winner = req
			break
		}
	}
	if rc.winner == nil {
		Violate("race-acquire", 0, len(rc.requests), "race resolved without a grant")
	}
	for _, req := range rc.requests {
		switch {
		case req == rc.winner:
		case req.granted:
			req.res.revoke(req)
		default:
			req.Cancel()
		}
	}
	logrus.Debugf("[tick %07d] %s won %s", rc.proc.sim.Clock, rc.proc.Name, rc.winner.res.ID)
	winner, resume := rc.winner, rc.resume
	rc.proc.run(func() { resume(winner) })
}

// RaceAcquire requests one unit from every resource in set and commits to
// whichever grants first. If some members are free right now, the first free
// member in slice order wins and no other request is issued. Otherwise a
// request waits on every member; when several grant within the same tick the
// first in slice order wins, and the others get their unit back before the
// process resumes. Exactly one grant is honoured per call. An empty set is a
// configuration error and leaves p running.
func RaceAcquire(p *Process, set []*Resource, resume func(*Request)) error {
	if len(set) == 0 {
		return NewConfigurationError("race-acquire", "empty resource set")
	}
	if resume == nil {
		panic("RaceAcquire: resume must not be nil")
	}
	p.suspend("race-acquire")
	for _, r := range set {
		if r.available() {
			r.grant(&Request{res: r, proc: p, resume: resume})
			return nil
		}
	}
	rc := &race{proc: p, resume: resume, requests: make([]*Request, 0, len(set))}
	for _, r := range set {
		rc.requests = append(rc.requests, &Request{res: r, proc: p, resume: resume, race: rc})
	}
	for _, req := range rc.requests {
		req.res.queue = append(req.res.queue, req)
	}
	logrus.Debugf("[tick %07d] %s racing for %d resources", p.sim.Clock, p.Name, len(set))
	return nil
}
