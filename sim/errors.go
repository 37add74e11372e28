package sim

import "fmt"

// ConfigurationError reports an invalid setting detected before a run starts:
// a non-positive capacity, an empty resource set, a dispatching rule selection
// that does not name exactly one rule, and similar.
type ConfigurationError struct {
	Field  string // offending setting, e.g. "wash.machines[1]"
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CapacityInvariantViolation signals a scheduling-logic bug: a resource holds
// more units than its capacity, or a unit is present in two places at once.
// It is raised with panic and must abort the run.
type CapacityInvariantViolation struct {
	Resource string
	Occupied int
	Capacity int
	Detail   string
}

func (e *CapacityInvariantViolation) Error() string {
	return fmt.Sprintf("capacity invariant violated on %s (occupied=%d, capacity=%d): %s",
		e.Resource, e.Occupied, e.Capacity, e.Detail)
}

// Violate panics with a CapacityInvariantViolation.
func Violate(resource string, occupied, capacity int, format string, args ...any) {
	panic(&CapacityInvariantViolation{
		Resource: resource,
		Occupied: occupied,
		Capacity: capacity,
		Detail:   fmt.Sprintf(format, args...),
	})
}

// RecoverViolation converts a CapacityInvariantViolation panic into an error
// stored in *errp. Any other panic is re-raised. Use it deferred at a run
// boundary:
//
//	defer sim.RecoverViolation(&err)
func RecoverViolation(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if v, ok := r.(*CapacityInvariantViolation); ok {
		*errp = v
		return
	}
	panic(r)
}
