package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDryers(t *testing.T, s *Simulator, n, capacity int) []*Resource {
	t.Helper()
	set := make([]*Resource, n)
	for i := range set {
		r, err := NewResource(s, string(rune('A'+i)), capacity)
		require.NoError(t, err)
		set[i] = r
	}
	return set
}

func TestRaceAcquire_EmptySet_ConfigurationError(t *testing.T) {
	s := NewSimulator()
	var err error
	s.Spawn("job", func(p *Process) {
		err = RaceAcquire(p, nil, func(*Request) {})
	})
	s.Run()
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRaceAcquire_AllFree_FirstInIterationOrderWins(t *testing.T) {
	s := NewSimulator()
	set := newDryers(t, s, 3, 1)
	var won *Resource
	s.Spawn("job", func(p *Process) {
		require.NoError(t, RaceAcquire(p, set, func(req *Request) { won = req.Resource() }))
	})
	s.Run()

	assert.Same(t, set[0], won)
	assert.Equal(t, 1, set[0].InUse())
	for _, r := range set[1:] {
		assert.Equal(t, 0, r.InUse())
		assert.Equal(t, 0, r.QueueLen(), "no residual request on losers")
	}
}

func TestRaceAcquire_AllBusy_ExactlyOneGrantOthersCancelled(t *testing.T) {
	// GIVEN N busy dryers released at different times
	s := NewSimulator()
	set := newDryers(t, s, 3, 1)
	holds := []int64{7, 3, 5}
	for i, r := range set {
		r, d := r, holds[i]
		s.Spawn("holder", func(p *Process) {
			r.Request(p, func(req *Request) { p.Timeout(d, func() { r.Release(req) }) })
		})
	}
	s.Advance(0)

	// WHEN a job races for them
	var winner *Request
	grants := 0
	s.Spawn("job", func(p *Process) {
		require.NoError(t, RaceAcquire(p, set, func(req *Request) {
			grants++
			winner = req
		}))
	})
	s.Advance(1)
	for _, r := range set {
		assert.Equal(t, 1, r.QueueLen(), "race request must wait on every member")
	}
	s.Run()

	// THEN the dryer freed first (B at t=3) wins and the other requests are gone
	require.Equal(t, 1, grants)
	assert.Same(t, set[1], winner.Resource())
	assert.Equal(t, int64(3), winner.GrantedAt())
	assert.Equal(t, 1, set[1].InUse())
	assert.Equal(t, 0, set[0].InUse())
	assert.Equal(t, 0, set[2].InUse())
	for _, r := range set {
		assert.Equal(t, 0, r.QueueLen())
	}
}

func TestRaceAcquire_SimultaneousRelease_StableTieBreak(t *testing.T) {
	s := NewSimulator()
	set := newDryers(t, s, 2, 1)
	var reqs []*Request
	for _, r := range set {
		r := r
		s.Spawn("holder", func(p *Process) {
			r.Request(p, func(req *Request) { reqs = append(reqs, req) })
		})
	}
	s.Advance(0)

	var winner *Resource
	s.Spawn("job", func(p *Process) {
		_ = RaceAcquire(p, set, func(req *Request) { winner = req.Resource() })
	})
	s.Advance(0)
	s.Schedule(2, "release", func() {
		set[0].Release(reqs[0])
		set[1].Release(reqs[1])
	})
	s.Run()

	assert.Same(t, set[0], winner)
	assert.Equal(t, 0, set[1].InUse())
}

func TestRaceAcquire_SimultaneousReleaseReversed_FirstInSetOrderWins(t *testing.T) {
	// GIVEN two busy dryers and a job racing for both
	s := NewSimulator()
	set := newDryers(t, s, 2, 1)
	reqs := make([]*Request, len(set))
	for i, r := range set {
		i, r := i, r
		s.Spawn("holder", func(p *Process) {
			r.Request(p, func(req *Request) { reqs[i] = req })
		})
	}
	s.Advance(0)

	var winner *Request
	grants := 0
	s.Spawn("job", func(p *Process) {
		require.NoError(t, RaceAcquire(p, set, func(req *Request) {
			grants++
			winner = req
		}))
	})
	s.Advance(0)

	// WHEN both free up in the same tick, the later set member first
	s.Schedule(2, "release", func() {
		set[1].Release(reqs[1])
		set[0].Release(reqs[0])
	})
	s.Run()

	// THEN the first member in set order wins and the other keeps no grant
	require.Equal(t, 1, grants)
	assert.Same(t, set[0], winner.Resource())
	assert.Equal(t, int64(2), winner.GrantedAt())
	assert.Equal(t, 1, set[0].InUse())
	assert.Equal(t, 0, set[1].InUse())
	assert.Equal(t, 0, set[1].QueueLen())
	assert.Equal(t, int64(1), set[1].Grants(), "only the holder's grant counts")
}

func TestRaceAcquire_LosingGrant_PassesToNextWaiter(t *testing.T) {
	// GIVEN two busy dryers, a job racing for both and a job queued on B
	s := NewSimulator()
	set := newDryers(t, s, 2, 1)
	reqs := make([]*Request, len(set))
	for i, r := range set {
		i, r := i, r
		s.Spawn("holder", func(p *Process) {
			r.Request(p, func(req *Request) { reqs[i] = req })
		})
	}
	s.Advance(0)
	var raced, queued *Request
	s.Spawn("racer", func(p *Process) {
		require.NoError(t, RaceAcquire(p, set, func(req *Request) { raced = req }))
	})
	s.Spawn("waiter", func(p *Process) {
		set[1].Request(p, func(req *Request) { queued = req })
	})
	s.Advance(0)

	// WHEN B frees before A within the same tick
	s.Schedule(1, "release", func() {
		set[1].Release(reqs[1])
		set[0].Release(reqs[0])
	})
	s.Run()

	// THEN the racer takes A and B's unit goes to the queued job
	require.NotNil(t, raced)
	require.NotNil(t, queued)
	assert.Same(t, set[0], raced.Resource())
	assert.True(t, queued.Granted())
	assert.Equal(t, int64(1), queued.GrantedAt())
	assert.Equal(t, 1, set[1].InUse())
}
