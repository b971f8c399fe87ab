package workload

import (
	"encoding/binary"
	"math/rand/v2"
	"sort"
)

const wordSize = 4

// wordArray views a Memory as little-endian uint32 words. sort.Interface
// cannot return errors, so the first one is kept and later calls become
// no-ops.
type wordArray struct {
	mem Memory
	n   int
	err error
}

func (w *wordArray) load(i int) uint32 {
	if w.err != nil {
		return 0
	}
	var buf [wordSize]byte
	for j := range buf {
		b, err := w.mem.LoadByte(i*wordSize + j)
		if err != nil {
			w.err = err
			return 0
		}
		buf[j] = b
	}
	return binary.LittleEndian.Uint32(buf[:])
}

func (w *wordArray) store(i int, v uint32) {
	if w.err != nil {
		return
	}
	var buf [wordSize]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for j, b := range buf {
		if err := w.mem.StoreByte(i*wordSize+j, b); err != nil {
			w.err = err
			return
		}
	}
}

func (w *wordArray) Len() int {
	return w.n
}

func (w *wordArray) Less(i, j int) bool {
	return w.load(i) < w.load(j)
}

func (w *wordArray) Swap(i, j int) {
	a, b := w.load(i), w.load(j)
	w.store(i, b)
	w.store(j, a)
}

// Sort fills memory with random words and sorts them in place
func Sort(mem Memory, rng *rand.Rand) (Result, error) {
	words := &wordArray{mem: mem, n: mem.VirtualSize() / wordSize}

	for i := 0; i < words.n; i++ {
		words.store(i, rng.Uint32())
	}
	if words.err != nil {
		return Result{}, words.err
	}

	sort.Sort(words)
	if words.err != nil {
		return Result{}, words.err
	}

	first := words.load(0)
	if words.err != nil {
		return Result{}, words.err
	}
	return Result{Program: "sort", Value: uint64(first)}, nil
}
