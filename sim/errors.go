package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrPastTick is reported when an event is scheduled at a tick and phase
	// that the scheduler has already passed.
	ErrPastTick = errors.New("sim: scheduling into the past")

	// ErrSamePhaseZeroDelay is reported when a handler schedules an event into
	// its own tick and phase without a precedence path to that event.
	ErrSamePhaseZeroDelay = errors.New(
		"sim: zero-delay scheduling into the current phase")

	// ErrPrecedenceCycle is reported by Finalize when the precedence edges
	// form a cycle.
	ErrPrecedenceCycle = errors.New("sim: precedence cycle")

	// ErrBackwardPrecedence is reported when an edge asks a later phase to
	// fire before an earlier phase.
	ErrBackwardPrecedence = errors.New(
		"sim: precedence from a later phase to an earlier phase")

	// ErrDAGFinalized is reported when edges are added after finalization.
	ErrDAGFinalized = errors.New("sim: precedence graph is finalized")

	// ErrTickOverflow is reported when a target tick does not fit in a Tick.
	ErrTickOverflow = errors.New("sim: tick overflow")
)

// A ScheduleError describes an illegal scheduling request. The scheduler
// panics with a *ScheduleError on illegal requests and returns one from
// Finalize.
type ScheduleError struct {
	Reason error
	Event  string
	Tick   Tick
	Phase  SchedulingPhase
	Detail string
}

func (e *ScheduleError) Error() string {
	msg := e.Reason.Error()

	if e.Event != "" {
		msg += fmt.Sprintf(", event %s @ %d (%s)", e.Event, e.Tick, e.Phase)
	}

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	return msg
}

// Unwrap exposes the reason so that errors.Is works with the sentinel errors.
func (e *ScheduleError) Unwrap() error {
	return e.Reason
}
