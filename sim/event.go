package sim

// Event is a single entry in the simulator's timeline. Events are created by
// Simulator.Schedule and carry the continuation to run at their timestamp.
type Event struct {
	time      int64  // Simulation time at which the event fires (in ticks)
	seq       uint64 // Scheduling order, breaks ties between equal timestamps
	label     string // Owner name, used only for logging
	action    func()
	cancelled bool
}

// Timestamp returns the scheduled time of the event.
func (e *Event) Timestamp() int64 {
	return e.time
}

// Label returns the name of whatever scheduled the event.
func (e *Event) Label() string {
	return e.label
}

// EventQueue implements heap.Interface and orders events by timestamp, then
// by scheduling sequence so equal timestamps resolve first-scheduled-first.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type EventQueue []*Event

func (eq EventQueue) Len() int { return len(eq) }

func (eq EventQueue) Less(i, j int) bool {
	if eq[i].time != eq[j].time {
		return eq[i].time < eq[j].time
	}
	return eq[i].seq < eq[j].seq
}

func (eq EventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(*Event))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*eq = old[0 : n-1]
	return item
}
