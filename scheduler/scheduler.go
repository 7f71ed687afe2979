// Package scheduler implements the virtual-time event queue: an ordered
// multiset keyed by (time, insertion-sequence), driven by a run loop
// that pops the earliest non-cancelled entry, advances the clock to its
// time, and invokes its sink.
package scheduler

import (
	"container/heap"

	"github.com/quartzsim/core/simerr"
	"github.com/quartzsim/core/vtime"
)

type entryState int

const (
	stateScheduled entryState = iota
	stateRunning
	stateDone
	stateCancelled
)

// entry is one queued sink, ordered by (time, seq).
type entry struct {
	time  vtime.Instant
	seq   uint64
	sink  func() error
	state entryState
	index int // heap.Interface bookkeeping
}

// Handle is the caller's receipt for a scheduled entry; its only use is
// Scheduler.Cancel.
type Handle struct {
	e *entry
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time.Before(h[j].time)
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler is the ordered event queue plus the clock it drives. There
// is no mutex: all operations run from the single thread that owns the
// simulator.
type Scheduler struct {
	clock *vtime.Clock
	queue entryHeap
	seq   uint64
}

// New returns a scheduler driving clock, starting empty.
func New(clock *vtime.Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Now returns the scheduler's clock's current time.
func (s *Scheduler) Now() vtime.Instant { return s.clock.Now() }

// ScheduleNow is ScheduleAt(s.Now(), sink).
func (s *Scheduler) ScheduleNow(sink func() error) (Handle, error) {
	return s.ScheduleAt(s.clock.Now(), sink)
}

// ScheduleIn is ScheduleAt(s.Now()+dt, sink). dt must be non-negative.
func (s *Scheduler) ScheduleIn(dt vtime.Duration, sink func() error) (Handle, error) {
	if dt < 0 {
		return Handle{}, simerr.New("Scheduler.ScheduleIn", simerr.CodeInvalidArgument, "negative duration")
	}
	return s.ScheduleAt(s.clock.Now().Add(dt), sink)
}

// ScheduleAt queues sink to run at t, which must be >= now, and returns
// a handle that may later be passed to Cancel.
func (s *Scheduler) ScheduleAt(t vtime.Instant, sink func() error) (Handle, error) {
	if sink == nil {
		return Handle{}, simerr.New("Scheduler.ScheduleAt", simerr.CodeInvalidArgument, "nil sink")
	}
	if t.Before(s.clock.Now()) {
		return Handle{}, simerr.New("Scheduler.ScheduleAt", simerr.CodeInvalidArgument, "time in the past")
	}
	e := &entry{time: t, seq: s.seq, sink: sink, state: stateScheduled}
	s.seq++
	heap.Push(&s.queue, e)
	return Handle{e: e}, nil
}

// Cancel marks h's entry CANCELLED. Unknown or already-completed
// handles are a silent no-op, the one scheduler operation that
// deliberately never fails.
func (s *Scheduler) Cancel(h Handle) {
	if h.e == nil || h.e.state != stateScheduled {
		return
	}
	h.e.state = stateCancelled
}

// Len reports the number of entries still in the queue, cancelled or
// not, intended for tests and diagnostics.
func (s *Scheduler) Len() int { return len(s.queue) }

// RunFor runs until the queue drains or the clock would pass
// s.Now()+dt, whichever comes first.
func (s *Scheduler) RunFor(dt vtime.Duration) error {
	return s.RunUntil(s.clock.Now().Add(dt))
}

// StepResult reports what one call to Step did.
type StepResult int

const (
	// StepRan reports that one entry was popped and its sink invoked.
	StepRan StepResult = iota
	// StepIdle reports that the queue was empty, or the next entry's
	// time exceeded the deadline; the clock was advanced to deadline.
	StepIdle
)

// Step discards any cancelled entries at the head of the queue, then
// either runs the next non-cancelled entry (advancing the clock to its
// time first) or, if none remains within deadline, advances the clock
// to deadline and reports StepIdle. Simulator drives its pausable run
// loop with this rather than RunUntil so it can recheck its pause flag
// between entries.
func (s *Scheduler) Step(deadline vtime.Instant) (StepResult, error) {
	for {
		if len(s.queue) == 0 {
			s.clock.Advance(deadline)
			return StepIdle, nil
		}
		next := s.queue[0]
		if next.state == stateCancelled {
			heap.Pop(&s.queue)
			continue
		}
		if next.time.After(deadline) {
			s.clock.Advance(deadline)
			return StepIdle, nil
		}
		heap.Pop(&s.queue)
		next.state = stateRunning
		s.clock.Advance(next.time)
		err := next.sink()
		next.state = stateDone
		return StepRan, err
	}
}

// RunUntil repeatedly pops the earliest non-cancelled entry, advances
// the clock to its time, and invokes its sink. Cancelled entries are
// discarded without invoking their sinks. It
// stops when the queue is empty or the next entry's time would exceed
// deadline, in which case the clock is advanced to deadline. An error
// returned by a sink propagates immediately; the entry that caused it
// is still marked DONE and the clock is left at its time, not rewound.
func (s *Scheduler) RunUntil(deadline vtime.Instant) error {
	for {
		res, err := s.Step(deadline)
		if err != nil {
			return err
		}
		if res == StepIdle {
			return nil
		}
	}
}
