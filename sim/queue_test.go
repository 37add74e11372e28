package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandoffQueue_SingleProducerSingleConsumer_FIFO(t *testing.T) {
	// GIVEN A then B put by one producer
	s := NewSimulator()
	q := NewHandoffQueue[string](s, "q")
	q.Put("A")
	q.Put("B")

	// WHEN a single consumer takes two items
	var got []string
	s.Spawn("consumer", func(p *Process) {
		q.Get(p, func(v string) {
			got = append(got, v)
			q.Get(p, func(v string) { got = append(got, v) })
		})
	})
	s.Run()

	// THEN A arrives before B
	assert.Equal(t, []string{"A", "B"}, got)
	assert.True(t, q.Empty())
}

func TestHandoffQueue_Put_WakesAtMostOneConsumer(t *testing.T) {
	// GIVEN three consumers blocked on an empty queue
	s := NewSimulator()
	q := NewHandoffQueue[int](s, "q")
	received := map[string][]int{}
	for _, name := range []string{"c1", "c2", "c3"} {
		name := name
		s.Spawn(name, func(p *Process) {
			q.Get(p, func(v int) { received[name] = append(received[name], v) })
		})
	}
	s.Advance(0)
	assert.Equal(t, 3, q.Waiting())

	// WHEN two items are put
	q.Put(10)
	q.Put(20)
	s.Advance(0)

	// THEN the two oldest consumers get one item each, in order; the third still waits
	assert.Equal(t, []int{10}, received["c1"])
	assert.Equal(t, []int{20}, received["c2"])
	assert.Empty(t, received["c3"])
	assert.Equal(t, 1, q.Waiting())
}

func TestHandoffQueue_NoItemDeliveredTwice(t *testing.T) {
	s := NewSimulator()
	q := NewHandoffQueue[int](s, "q")
	seen := map[int]int{}
	for i := 0; i < 4; i++ {
		s.Spawn("consumer", func(p *Process) {
			var loop func(int)
			loop = func(v int) {
				seen[v]++
				p.Timeout(1, func() { q.Get(p, loop) })
			}
			q.Get(p, loop)
		})
	}
	for i := 0; i < 50; i++ {
		q.Put(i)
	}
	s.Advance(100)

	assert.Len(t, seen, 50)
	for v, n := range seen {
		assert.Equal(t, 1, n, "item %d delivered %d times", v, n)
	}
	puts, delivered := q.Stats()
	assert.Equal(t, int64(50), puts)
	assert.Equal(t, int64(50), delivered)
}
