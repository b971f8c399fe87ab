package vm

// ClockReplacer approximates LRU with second-chance scanning. Frames are
// visited in arrival order starting at the hand; a referenced frame has
// its flag cleared and moves behind the others, the first unreferenced
// frame is evicted. One full sweep clears every flag, so a victim is
// always found within one more step than there are queued frames.
type ClockReplacer struct {
	frames *FrameTable
	queue  arrivalRing
}

func NewClockReplacer(frames *FrameTable) *ClockReplacer {
	return &ClockReplacer{
		frames: frames,
		queue:  newArrivalRing(frames.Len()),
	}
}

func (c *ClockReplacer) Victim() (uint32, bool) {
	for range c.queue.count + 1 {
		frameID, ok := c.queue.peek()
		if !ok {
			return 0, false
		}
		if !c.frames.Referenced(frameID) {
			c.queue.pop()
			return frameID, true
		}
		c.frames.ClearReference(frameID)
		c.queue.rotate()
	}
	return 0, false
}

func (c *ClockReplacer) Filled(frameID uint32) {
	c.queue.push(frameID)
}
