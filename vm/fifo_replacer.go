package vm

// arrivalRing is a bounded circular queue of frame ids in fill order. It
// holds at most one slot per frame.
type arrivalRing struct {
	slots []uint32
	head  uint32
	tail  uint32
	count uint32
}

func newArrivalRing(capacity uint32) arrivalRing {
	return arrivalRing{slots: make([]uint32, capacity)}
}

func (q *arrivalRing) push(frameID uint32) {
	n := uint32(len(q.slots))
	q.slots[q.tail] = frameID
	q.tail = (q.tail + 1) % n
	if q.count < n {
		q.count++
	} else {
		// Overwrote the oldest entry
		q.head = q.tail
	}
}

func (q *arrivalRing) pop() (uint32, bool) {
	if q.count == 0 {
		return 0, false
	}
	frameID := q.slots[q.head]
	q.head = (q.head + 1) % uint32(len(q.slots))
	q.count--
	return frameID, true
}

func (q *arrivalRing) peek() (uint32, bool) {
	if q.count == 0 {
		return 0, false
	}
	return q.slots[q.head], true
}

// rotate moves the head entry to the tail
func (q *arrivalRing) rotate() {
	if frameID, ok := q.pop(); ok {
		q.push(frameID)
	}
}

// FIFOReplacer evicts the frame that was filled longest ago
type FIFOReplacer struct {
	queue arrivalRing
}

func NewFIFOReplacer(capacity uint32) *FIFOReplacer {
	return &FIFOReplacer{queue: newArrivalRing(capacity)}
}

func (f *FIFOReplacer) Victim() (uint32, bool) {
	return f.queue.pop()
}

func (f *FIFOReplacer) Filled(frameID uint32) {
	f.queue.push(frameID)
}
