// Package tracing collects what the scheduler fires.
package tracing

import (
	"strings"

	"github.com/sarchlab/sparta/sim"
)

// A Firing describes one event instance that the scheduler fires.
type Firing struct {
	Tick     sim.Tick
	Phase    sim.SchedulingPhase
	Rank     int
	Event    string
	Clock    string
	Location string
}

// A Tracer is told about every event that fires.
type Tracer interface {
	BeforeEvent(f Firing)
	AfterEvent(f Firing)
}

// locationOf strips the last dotted element of an event name, so that
// "top.core.alu.tick" belongs to "top.core.alu".
func locationOf(event string) string {
	i := strings.LastIndexByte(event, '.')
	if i < 0 {
		return ""
	}

	return event[:i]
}
