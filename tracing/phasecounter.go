package tracing

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sarchlab/sparta/sim"
)

// PhaseCounter counts how many handlers fire in each phase and for each
// event name.
type PhaseCounter struct {
	perPhase [sim.NumPhases]uint64
	perEvent map[string]uint64
}

// NewPhaseCounter creates a PhaseCounter.
func NewPhaseCounter() *PhaseCounter {
	return &PhaseCounter{perEvent: make(map[string]uint64)}
}

// BeforeEvent counts the firing.
func (c *PhaseCounter) BeforeEvent(f Firing) {
	c.perPhase[f.Phase]++
	c.perEvent[f.Event]++
}

// AfterEvent does nothing.
func (c *PhaseCounter) AfterEvent(Firing) {}

// Count returns the number of firings in a phase.
func (c *PhaseCounter) Count(p sim.SchedulingPhase) uint64 {
	return c.perPhase[p]
}

// EventCount returns the number of firings of an event.
func (c *PhaseCounter) EventCount(name string) uint64 {
	return c.perEvent[name]
}

// Total returns the number of firings counted.
func (c *PhaseCounter) Total() uint64 {
	var n uint64
	for _, v := range c.perPhase {
		n += v
	}

	return n
}

// Report writes the per-phase counts, then the per-event counts by name.
func (c *PhaseCounter) Report(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "PHASE\tFIRED")

	for p := sim.PhaseUpdate; p <= sim.PhasePostTick; p++ {
		fmt.Fprintf(tw, "%s\t%d\n", p, c.perPhase[p])
	}

	names := make([]string, 0, len(c.perEvent))
	for n := range c.perEvent {
		names = append(names, n)
	}

	sort.Strings(names)

	fmt.Fprintln(tw, "\nEVENT\tFIRED")

	for _, n := range names {
		fmt.Fprintf(tw, "%s\t%d\n", n, c.perEvent[n])
	}

	return tw.Flush()
}
