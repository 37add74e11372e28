// Package dispatch implements the dispatching rules that order ready work
// before it is assigned to a printer, worker or batch machine.
package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

// Candidate is a unit of work a rule can order. Jobs and items implement it.
type Candidate interface {
	Created() int64
	ProcessingTime() int64
	Due() int64
}

// Rule names a dispatching rule.
type Rule string

const (
	FIFO Rule = "FIFO" // ascending creation time
	LIFO Rule = "LIFO" // descending creation time
	SPT  Rule = "SPT"  // ascending build time
	LPT  Rule = "LPT"  // descending build time
	EDD  Rule = "EDD"  // ascending due date
)

var validRules = map[Rule]bool{
	FIFO: true,
	LIFO: true,
	SPT:  true,
	LPT:  true,
	EDD:  true,
}

// IsValidRule returns true if name is a recognized rule (case-insensitive).
func IsValidRule(name string) bool {
	return validRules[Rule(strings.ToUpper(name))]
}

// ValidRuleNames returns the recognized rule names in a stable order.
func ValidRuleNames() []string {
	names := make([]string, 0, len(validRules))
	for r := range validRules {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return names
}

// Less reports whether a must be dispatched before b under the rule.
// Equal keys return false so a stable sort keeps the original positions.
func (r Rule) Less(a, b Candidate) bool {
	switch r {
	case FIFO:
		return a.Created() < b.Created()
	case LIFO:
		return a.Created() > b.Created()
	case SPT:
		return a.ProcessingTime() < b.ProcessingTime()
	case LPT:
		return a.ProcessingTime() > b.ProcessingTime()
	case EDD:
		return a.Due() < b.Due()
	default:
		panic(fmt.Sprintf("unhandled dispatching rule %q", string(r)))
	}
}

// Sort orders xs in place under rule. Ties keep their original list position.
func Sort[T Candidate](rule Rule, xs []T) {
	sort.SliceStable(xs, func(i, j int) bool {
		return rule.Less(xs[i], xs[j])
	})
}

// Orderer returns a function that sorts a pool waiting list under rule.
func Orderer[T Candidate](rule Rule) func([]T) {
	return func(xs []T) { Sort(rule, xs) }
}

// Select returns the single rule enabled in flags. Selecting zero rules, more
// than one, or an unknown name is a configuration error.
func Select(flags map[string]bool) (Rule, error) {
	var active []Rule
	for name, on := range flags {
		if !IsValidRule(name) {
			return "", sim.NewConfigurationError("dispatching_rule", "unknown rule %q (valid: %s)",
				name, strings.Join(ValidRuleNames(), ", "))
		}
		if on {
			active = append(active, Rule(strings.ToUpper(name)))
		}
	}
	switch len(active) {
	case 0:
		return "", sim.NewConfigurationError("dispatching_rule", "no rule is enabled")
	case 1:
		return active[0], nil
	default:
		sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
		return "", sim.NewConfigurationError("dispatching_rule", "exactly one rule must be enabled, got %v", active)
	}
}

// Parse converts a single rule name, as given on the command line.
func Parse(name string) (Rule, error) {
	if !IsValidRule(name) {
		return "", sim.NewConfigurationError("dispatching_rule", "unknown rule %q (valid: %s)",
			name, strings.Join(ValidRuleNames(), ", "))
	}
	return Rule(strings.ToUpper(name)), nil
}
