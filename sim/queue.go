// Implements the HandoffQueue, which connects a producing stage to a consuming stage.

package sim

import (
	"fmt"
	"strings"
)

type getter[T any] struct {
	proc   *Process
	resume func(T)
}

// HandoffQueue is an unbounded FIFO channel between two stages. Producers Put
// completed work; consumer processes Get it, suspending while it is empty.
// Waiting consumers are served in arrival order and every item is handed to
// exactly one consumer.
type HandoffQueue[T any] struct {
	Name string

	sim     *Simulator
	items   []T
	getters []getter[T]

	puts      int64
	delivered int64
}

// NewHandoffQueue creates an empty queue bound to sim.
func NewHandoffQueue[T any](sim *Simulator, name string) *HandoffQueue[T] {
	return &HandoffQueue[T]{Name: name, sim: sim}
}

// Put appends v and wakes at most one waiting consumer.
func (q *HandoffQueue[T]) Put(v T) {
	q.puts++
	if len(q.getters) > 0 {
		g := q.getters[0]
		q.getters = q.getters[1:]
		q.deliver(g, v)
		return
	}
	q.items = append(q.items, v)
}

// Get suspends p until an item is available and resumes it with that item.
// The item is reserved for p immediately, so no other consumer can take it.
func (q *HandoffQueue[T]) Get(p *Process, resume func(T)) {
	if resume == nil {
		panic(fmt.Sprintf("HandoffQueue %s: Get resume must not be nil", q.Name))
	}
	p.suspend("get " + q.Name)
	g := getter[T]{proc: p, resume: resume}
	if len(q.items) > 0 {
		v := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.deliver(g, v)
		return
	}
	q.getters = append(q.getters, g)
}

func (q *HandoffQueue[T]) deliver(g getter[T], v T) {
	q.delivered++
	g.proc.wake(func() { g.resume(v) })
}

// Len returns the number of items not yet handed to a consumer.
func (q *HandoffQueue[T]) Len() int {
	return len(q.items)
}

// Empty reports whether no item is waiting.
func (q *HandoffQueue[T]) Empty() bool {
	return len(q.items) == 0
}

// Waiting returns the number of consumers blocked on Get.
func (q *HandoffQueue[T]) Waiting() int {
	return len(q.getters)
}

// Stats returns the total number of puts and deliveries so far.
func (q *HandoffQueue[T]) Stats() (puts, delivered int64) {
	return q.puts, q.delivered
}

func (q *HandoffQueue[T]) String() string {
	var sb strings.Builder
	sb.WriteString(q.Name)
	sb.WriteString("[")
	for i, val := range q.items {
		sb.WriteString(fmt.Sprint(val))
		if i < len(q.items)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
