package frames

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/containers"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// DefaultFenceTimeout is the wait used when a slot is reused, in nanoseconds.
const DefaultFenceTimeout uint64 = 5_000_000_000

type FenceFactory func() (metadata.Fence, error)

type slot struct {
	fence     metadata.Fence
	submitted bool
	cleanups  *containers.RingQueue[func()]
	readbacks *containers.RingQueue[func()]
}

// Lifecycle tracks a fixed ring of frames in flight. Work queued on a slot
// runs only after the fence submitted with that slot has signaled.
type Lifecycle struct {
	slots        []*slot
	frame        uint64
	fenceTimeout uint64
}

func New(framesInFlight int, newFence FenceFactory) (*Lifecycle, error) {
	if framesInFlight < 1 {
		return nil, fmt.Errorf("%w: frames in flight must be at least 1", core.ErrInvalidConfig)
	}
	l := &Lifecycle{
		slots:        make([]*slot, framesInFlight),
		fenceTimeout: DefaultFenceTimeout,
	}
	for i := range l.slots {
		f, err := newFence()
		if err != nil {
			return nil, fmt.Errorf("failed to create frame fence %d: %w", i, err)
		}
		l.slots[i] = &slot{
			fence:     f,
			cleanups:  containers.NewGrowableRingQueue[func()](16),
			readbacks: containers.NewGrowableRingQueue[func()](4),
		}
	}
	return l, nil
}

func (l *Lifecycle) SetFenceTimeout(ns uint64) {
	l.fenceTimeout = ns
}

// Frame returns the number of the frame currently being built.
func (l *Lifecycle) Frame() uint64 {
	return l.frame
}

func (l *Lifecycle) FramesInFlight() int {
	return len(l.slots)
}

func (l *Lifecycle) current() *slot {
	return l.slots[l.frame%uint64(len(l.slots))]
}

// Fence returns the fence the current frame must be submitted with.
func (l *Lifecycle) Fence() metadata.Fence {
	return l.current().fence
}

// QueueCleanup defers fn until the current frame has finished on the GPU.
func (l *Lifecycle) QueueCleanup(fn func()) {
	l.current().cleanups.Push(fn)
}

// QueueReadback runs fn once the current frame's copies are complete.
func (l *Lifecycle) QueueReadback(fn func()) {
	l.current().readbacks.Push(fn)
}

// Submitted marks the current slot's fence as handed to the device.
func (l *Lifecycle) Submitted() {
	l.current().submitted = true
}

// Advance moves to the next frame. When the next slot still has work in
// flight its fence is waited on before its queues run and the slot is reused.
func (l *Lifecycle) Advance() error {
	l.frame++
	return l.retire(l.current())
}

// Drain waits for every slot and runs all queued work. Used on shutdown.
func (l *Lifecycle) Drain() error {
	n := uint64(len(l.slots))
	for i := uint64(1); i <= n; i++ {
		if err := l.retire(l.slots[(l.frame+i)%n]); err != nil {
			return err
		}
	}
	return nil
}

// Release drains the lifecycle and destroys the fences.
func (l *Lifecycle) Release() error {
	err := l.Drain()
	for _, s := range l.slots {
		s.fence.Release()
	}
	return err
}

func (l *Lifecycle) retire(s *slot) error {
	if s.submitted {
		if err := s.fence.Wait(l.fenceTimeout); err != nil {
			return fmt.Errorf("frame %d: %w", l.frame, err)
		}
	}
	// queued work observes the signaled fence; the slot is reset after
	s.cleanups.Drain(func(fn func()) { fn() })
	s.readbacks.Drain(func(fn func()) { fn() })
	if s.submitted {
		if err := s.fence.Reset(); err != nil {
			return err
		}
		s.submitted = false
	}
	return nil
}
