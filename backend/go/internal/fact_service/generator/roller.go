package generator

import (
	"math/rand/v2"
	"sync"
)

// Roller returns a float in [0, 1). The selector rolls once per uncached request.
type Roller interface {
	Roll() float64
}

// RollerFunc adapts a function to Roller.
type RollerFunc func() float64

// Roll implements Roller.
func (f RollerFunc) Roll() float64 { return f() }

// FixedRoller always returns the same value.
type FixedRoller float64

// Roll implements Roller.
func (r FixedRoller) Roll() float64 { return float64(r) }

// RandRoller draws from math/rand/v2.
type RandRoller struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandRoller creates a roller seeded from the global source, or from seed when non-zero.
func NewRandRoller(seed uint64) *RandRoller {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandRoller{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Roll implements Roller.
func (r *RandRoller) Roll() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}
