package vm

import (
	"fmt"
	"strings"

	"github.com/sibexico/virtmem/storage"
)

// Replacer interface for page replacement policies
type Replacer interface {
	// Victim selects a frame to evict. It is only consulted when every frame
	// is occupied. Returns the frame ID and true if a victim was found.
	Victim() (uint32, bool)

	// Filled records that frameID was just loaded with a page
	Filled(frameID uint32)
}

// Policy identifies an eviction policy. It is chosen once per run.
type Policy int

const (
	PolicyRandom Policy = iota
	PolicyFIFO
	PolicyClock
)

var policyNames = map[Policy]string{
	PolicyRandom: "rand",
	PolicyFIFO:   "fifo",
	PolicyClock:  "lru",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy maps a command-line policy name to a Policy. "clock" is
// accepted as an alias for "lru".
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "rand", "random":
		return PolicyRandom, nil
	case "fifo":
		return PolicyFIFO, nil
	case "lru", "clock":
		return PolicyClock, nil
	default:
		return 0, storage.NewStorageError(
			storage.ErrCodeUnknownPolicy,
			"ParsePolicy",
			fmt.Sprintf("unknown policy %q (must be rand, fifo or lru)", name),
			nil,
		)
	}
}

// NewReplacer creates a replacer for the given policy over frames. seed
// only affects PolicyRandom.
func NewReplacer(policy Policy, frames *FrameTable, seed uint64) (Replacer, error) {
	if frames.Len() == 0 {
		return nil, storage.ErrInvalidConfig("NewReplacer", "replacer needs at least one frame")
	}

	switch policy {
	case PolicyRandom:
		return NewRandomReplacer(frames.Len(), seed), nil
	case PolicyFIFO:
		return NewFIFOReplacer(frames.Len()), nil
	case PolicyClock:
		return NewClockReplacer(frames), nil
	default:
		return nil, storage.NewStorageError(
			storage.ErrCodeUnknownPolicy,
			"NewReplacer",
			fmt.Sprintf("unknown policy %s", policy),
			nil,
		)
	}
}
