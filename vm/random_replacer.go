package vm

import "math/rand/v2"

// RandomReplacer evicts a uniformly chosen frame. It ignores recency and
// arrival order, so a frame filled by the previous fault can be chosen again.
type RandomReplacer struct {
	capacity uint32
	rng      *rand.Rand
}

// NewRandomReplacer creates a random replacer whose choices are fully
// determined by seed
func NewRandomReplacer(capacity uint32, seed uint64) *RandomReplacer {
	return &RandomReplacer{
		capacity: capacity,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
	}
}

func (r *RandomReplacer) Victim() (uint32, bool) {
	if r.capacity == 0 {
		return 0, false
	}
	return r.rng.Uint32N(r.capacity), true
}

func (r *RandomReplacer) Filled(frameID uint32) {}
