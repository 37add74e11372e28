package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource_NonPositiveCapacity_ConfigurationError(t *testing.T) {
	s := NewSimulator()
	for _, c := range []int{0, -3} {
		_, err := NewResource(s, "dryer", c)
		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "capacity %d", c)
		assert.Equal(t, "dryer", cfgErr.Field)
	}
}

func TestResource_GrantsUpToCapacity_ThenQueuesFIFO(t *testing.T) {
	// GIVEN a capacity-2 resource and three users holding for 5 ticks
	s := NewSimulator()
	r, err := NewResource(s, "r", 2)
	require.NoError(t, err)
	grantedAt := map[string]int64{}
	for _, name := range []string{"u1", "u2", "u3"} {
		name := name
		s.Spawn(name, func(p *Process) {
			r.Request(p, func(req *Request) {
				grantedAt[name] = s.Now()
				assert.LessOrEqual(t, r.InUse(), r.Capacity)
				p.Timeout(5, func() { r.Release(req) })
			})
		})
	}

	// WHEN the simulation runs
	s.Run()

	// THEN two start immediately and the third when the first unit frees up
	assert.Equal(t, map[string]int64{"u1": 0, "u2": 0, "u3": 5}, grantedAt)
	assert.True(t, r.Idle())
	assert.Equal(t, int64(3), r.Grants())
}

func TestResource_ReleaseNotHeld_Violation(t *testing.T) {
	s := NewSimulator()
	r, _ := NewResource(s, "r", 1)
	var held *Request
	s.Spawn("u", func(p *Process) {
		r.Request(p, func(req *Request) { held = req })
	})
	s.Run()
	r.Release(held)

	var err error
	func() {
		defer RecoverViolation(&err)
		r.Release(held)
	}()
	var v *CapacityInvariantViolation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "r", v.Resource)
}

func TestResource_Cancel_RemovesWaiter(t *testing.T) {
	s := NewSimulator()
	r, _ := NewResource(s, "r", 1)
	var first *Request
	var second *Request
	s.Spawn("holder", func(p *Process) {
		first = r.Request(p, func(*Request) {})
	})
	s.Spawn("waiter", func(p *Process) {
		second = r.Request(p, func(*Request) { t.Error("cancelled request must never be granted") })
	})
	s.Advance(0)
	require.Equal(t, 1, r.QueueLen())

	second.Cancel()
	r.Release(first)
	s.Run()

	assert.True(t, second.Cancelled())
	assert.Equal(t, 0, r.InUse())
}

func TestRecoverViolation_RepanicsOtherValues(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		var err error
		defer RecoverViolation(&err)
		panic("boom")
	})
}
