// Package workload holds the memory access programs that drive a
// simulation. They only see a flat byte-addressed memory and know nothing
// about pages or frames.
package workload

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/sibexico/virtmem/storage"
)

// Memory is a byte-addressed memory of VirtualSize bytes
type Memory interface {
	VirtualSize() int
	LoadByte(addr int) (byte, error)
	StoreByte(addr int, b byte) error
}

// Result is the value a program reports when it finishes
type Result struct {
	Program string
	Value   uint64
}

func (r Result) String() string {
	return fmt.Sprintf("%s result is %d", r.Program, r.Value)
}

// Program runs an access pattern over mem
type Program func(mem Memory, rng *rand.Rand) (Result, error)

var programs = map[string]Program{
	"scan":  Scan,
	"sort":  Sort,
	"focus": Focus,
}

// Names returns the registered program names in sorted order
func Names() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the program registered under name
func Lookup(name string) (Program, error) {
	if p, ok := programs[strings.ToLower(name)]; ok {
		return p, nil
	}
	return nil, storage.NewStorageError(
		storage.ErrCodeUnknownProgram,
		"Lookup",
		fmt.Sprintf("unknown program %q (must be %s)", name, strings.Join(Names(), ", ")),
		nil,
	)
}

// NewRand returns the generator programs draw from for a given seed
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, ^seed))
}

// Scan writes every byte once, then reads the whole memory ten times
func Scan(mem Memory, rng *rand.Rand) (Result, error) {
	length := mem.VirtualSize()

	for i := 0; i < length; i++ {
		if err := mem.StoreByte(i, byte(i%256)); err != nil {
			return Result{}, err
		}
	}

	var total uint64
	for range 10 {
		for i := 0; i < length; i++ {
			b, err := mem.LoadByte(i)
			if err != nil {
				return Result{}, err
			}
			total += uint64(b)
		}
	}

	return Result{Program: "scan", Value: total}, nil
}

// Focus clears memory, then makes bursts of writes inside small windows at
// random places, then sums memory
func Focus(mem Memory, rng *rand.Rand) (Result, error) {
	const (
		rounds     = 100
		burst      = 100
		windowSize = 25
	)
	length := mem.VirtualSize()

	for i := 0; i < length; i++ {
		if err := mem.StoreByte(i, 0); err != nil {
			return Result{}, err
		}
	}

	for range rounds {
		start := rng.IntN(length)
		for range burst {
			addr := (start + rng.IntN(windowSize)) % length
			if err := mem.StoreByte(addr, byte(rng.Uint32())); err != nil {
				return Result{}, err
			}
		}
	}

	var total uint64
	for i := 0; i < length; i++ {
		b, err := mem.LoadByte(i)
		if err != nil {
			return Result{}, err
		}
		total += uint64(b)
	}

	return Result{Program: "focus", Value: total}, nil
}
