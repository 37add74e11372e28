package sim

import (
	"fmt"
	"slices"
)

// Resource is a pool of Capacity interchangeable units acquired one per
// Request. Requests that cannot be granted wait in FIFO order.
type Resource struct {
	ID       string
	Capacity int

	sim   *Simulator
	users []*Request
	queue []*Request

	grants int64
}

// Request is a single claim on one unit of a Resource.
type Request struct {
	res    *Resource
	proc   *Process
	resume func(*Request)
	race   *race

	granted   bool
	cancelled bool
	released  bool
	grantedAt int64
}

// NewResource creates a resource with the given capacity.
func NewResource(sim *Simulator, id string, capacity int) (*Resource, error) {
	if capacity <= 0 {
		return nil, NewConfigurationError(id, "capacity must be > 0, got %d", capacity)
	}
	return &Resource{ID: id, Capacity: capacity, sim: sim}, nil
}

// Resource returns the resource the request was made against.
func (req *Request) Resource() *Resource { return req.res }

// Granted reports whether the request currently holds a unit.
func (req *Request) Granted() bool { return req.granted && !req.released }

// Cancelled reports whether the request was withdrawn before being granted.
func (req *Request) Cancelled() bool { return req.cancelled }

// GrantedAt returns the tick at which the request was granted.
func (req *Request) GrantedAt() int64 { return req.grantedAt }

// InUse returns the number of granted units.
func (r *Resource) InUse() int { return len(r.users) }

// QueueLen returns the number of requests waiting for a unit.
func (r *Resource) QueueLen() int { return len(r.queue) }

// Idle reports whether no unit is held and nobody is waiting.
func (r *Resource) Idle() bool { return len(r.users) == 0 && len(r.queue) == 0 }

// Grants returns the total number of grants made so far.
func (r *Resource) Grants() int64 { return r.grants }

// available reports whether a new request would be granted immediately.
func (r *Resource) available() bool {
	return len(r.users) < r.Capacity && len(r.queue) == 0
}

// Request suspends p until a unit is granted and resumes it with the request.
func (r *Resource) Request(p *Process, resume func(*Request)) *Request {
	if resume == nil {
		panic(fmt.Sprintf("Resource %s: Request resume must not be nil", r.ID))
	}
	p.suspend("acquire " + r.ID)
	req := &Request{res: r, proc: p, resume: resume}
	r.enqueue(req)
	return req
}

func (r *Resource) enqueue(req *Request) {
	if r.available() {
		r.grant(req)
		return
	}
	r.queue = append(r.queue, req)
}

func (r *Resource) grant(req *Request) {
	if req.granted || req.cancelled {
		Violate(r.ID, len(r.users), r.Capacity, "request granted twice or after cancellation")
	}
	r.users = append(r.users, req)
	if len(r.users) > r.Capacity {
		Violate(r.ID, len(r.users), r.Capacity, "grant exceeds capacity")
	}
	req.granted = true
	req.grantedAt = r.sim.Clock
	r.grants++
	if req.race != nil {
		req.race.granted(req)
		return
	}
	resume := req.resume
	req.proc.wake(func() { resume(req) })
}

// Release returns the unit held by req and grants waiting requests in FIFO
// order. Releasing a request that does not hold a unit is an invariant
// violation.
func (r *Resource) Release(req *Request) {
	if req.res != r || !req.granted || req.released {
		Violate(r.ID, len(r.users), r.Capacity, "release of a unit that is not held")
	}
	idx := slices.Index(r.users, req)
	if idx < 0 {
		Violate(r.ID, len(r.users), r.Capacity, "granted request missing from user list")
	}
	r.users = slices.Delete(r.users, idx, idx+1)
	req.released = true
	r.serve()
}

// revoke takes back a unit granted to a losing race request as if it had
// never been granted.
func (r *Resource) revoke(req *Request) {
	idx := slices.Index(r.users, req)
	if idx < 0 || req.race == nil {
		Violate(r.ID, len(r.users), r.Capacity, "revoke of a request that is not a held race grant")
	}
	r.users = slices.Delete(r.users, idx, idx+1)
	req.granted = false
	req.cancelled = true
	r.grants--
	r.serve()
}

// serve grants waiting requests in FIFO order while units are free.
func (r *Resource) serve() {
	for len(r.users) < r.Capacity && len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.grant(next)
	}
}

// Cancel withdraws a waiting request. Cancelling a granted request is not
// allowed (release it instead); cancelling twice is a no-op.
func (req *Request) Cancel() {
	if req.cancelled {
		return
	}
	if req.granted {
		Violate(req.res.ID, len(req.res.users), req.res.Capacity, "cancel of a granted request")
	}
	r := req.res
	if idx := slices.Index(r.queue, req); idx >= 0 {
		r.queue = slices.Delete(r.queue, idx, idx+1)
	}
	req.cancelled = true
}
