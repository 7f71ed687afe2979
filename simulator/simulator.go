// Package simulator provides the top-level façade: a clock and
// scheduler pair, a run/pause/resume surface, and a lifecycle event
// source firing begin/pause/resume/end synchronously at each observable
// transition.
package simulator

import (
	"math"

	"github.com/quartzsim/core/event"
	"github.com/quartzsim/core/scheduler"
	"github.com/quartzsim/core/vtime"
)

// Phase names the lifecycle transition a Simulator just made.
type Phase int

const (
	PhaseBegin Phase = iota
	PhasePause
	PhaseResume
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhasePause:
		return "pause"
	case PhaseResume:
		return "resume"
	case PhaseEnd:
		return "end"
	default:
		return "unknown"
	}
}

// forever is a deadline far enough in the future that Run effectively
// never stops on account of it; only queue drain does.
const forever = vtime.Instant(math.MaxInt64)

// Simulator ties a virtual clock to a scheduler and exposes the
// run/pause/resume surface plus lifecycle events. There is no mutex:
// every method here and on the scheduler it owns is meant to be called
// from the single thread driving the simulation.
type Simulator struct {
	clock     *vtime.Clock
	scheduler *scheduler.Scheduler
	lifecycle *event.Source[func(Phase) event.Void]
	paused    bool
	everBegun bool
}

// New returns a Simulator with its own clock and scheduler, starting
// at vtime.Zero.
func New() *Simulator {
	clock := vtime.NewClock()
	return &Simulator{
		clock:     clock,
		scheduler: scheduler.New(clock),
		lifecycle: event.NewSource[func(Phase) event.Void](0),
	}
}

// Clock returns the simulator's virtual clock.
func (s *Simulator) Clock() *vtime.Clock { return s.clock }

// Scheduler returns the simulator's event scheduler, the surface
// models use to schedule and cancel events.
func (s *Simulator) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Lifecycle is the event-source models connect to in order to observe
// begin/pause/resume/end transitions.
func (s *Simulator) Lifecycle() *event.Source[func(Phase) event.Void] { return s.lifecycle }

func (s *Simulator) fire(p Phase) { event.Fire1(s.lifecycle, p) }

// Pause sets the flag the run loop checks at the top of each
// iteration; it does not interrupt a sink already running. Pausing an
// already-paused simulator is a no-op.
func (s *Simulator) Pause() {
	if s.paused {
		return
	}
	s.paused = true
	s.fire(PhasePause)
}

// Resume clears the pause flag, firing PhaseResume. Resuming a
// simulator that was not paused is a no-op.
func (s *Simulator) Resume() {
	if !s.paused {
		return
	}
	s.paused = false
	s.fire(PhaseResume)
}

// Paused reports whether the simulator is currently paused.
func (s *Simulator) Paused() bool { return s.paused }

// Run drives the scheduler until its queue drains (or the simulator is
// paused), firing begin on first entry into any run and end when the
// queue actually drains. Pausing mid-run does not fire end; Resume
// followed by another Run/RunFor/RunUntil call continues the same
// lifecycle.
func (s *Simulator) Run() error { return s.runLoop(forever) }

// RunFor drives the scheduler for at most dt of simulated time from
// now, or until the queue drains, whichever comes first.
func (s *Simulator) RunFor(dt vtime.Duration) error {
	return s.runLoop(s.clock.Now().Add(dt))
}

// RunUntil drives the scheduler up to simulated time t, or until the
// queue drains, whichever comes first.
func (s *Simulator) RunUntil(t vtime.Instant) error {
	return s.runLoop(t)
}

func (s *Simulator) runLoop(deadline vtime.Instant) error {
	if !s.everBegun {
		s.everBegun = true
		s.fire(PhaseBegin)
	}
	for {
		if s.paused {
			return nil
		}
		res, err := s.scheduler.Step(deadline)
		if err != nil {
			return err
		}
		if res == scheduler.StepIdle {
			s.fire(PhaseEnd)
			return nil
		}
	}
}
