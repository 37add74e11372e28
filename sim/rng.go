package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey is the seed of a run. The same key and configuration give
// the same stage records, tick for tick.
type SimulationKey int64

// NewSimulationKey wraps seed.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// RNG streams. Each stream draws independently of the others.
const (
	// SubsystemWorkload feeds order generation and is seeded with the key
	// itself, so a workload seed means the same thing in every config.
	SubsystemWorkload = "workload"
	// SubsystemInspection feeds the Draw value of defect rules.
	SubsystemInspection = "inspection"
)

// PartitionedRNG hands out one seeded *rand.Rand per stream. A stream other
// than SubsystemWorkload is seeded with key XOR fnv1a64(name), so turning on
// random defects does not change which orders a seed produces.
// Not safe for concurrent use; the kernel is single-threaded.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream for name, creating it on first use.
// Later calls return the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	seed := int64(p.key)
	if name != SubsystemWorkload {
		seed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(seed))
	p.streams[name] = rng
	return rng
}

// Key returns the run seed.
func (p *PartitionedRNG) Key() SimulationKey { return p.key }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
