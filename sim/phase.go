package sim

import (
	"fmt"
	"strings"
)

// SchedulingPhase names a slot inside a tick. All events due at the same tick
// fire phase by phase, in the order the phases are declared here.
type SchedulingPhase int

// The scheduling phases, in firing order.
const (
	PhaseUpdate SchedulingPhase = iota
	PhasePortUpdate
	PhaseFlush
	PhaseCollection
	PhaseTick
	PhasePostTick
)

// NumPhases is the number of scheduling phases in a tick.
const NumPhases = int(PhasePostTick) + 1

// phaseNone is used as the "nothing fired yet" phase of a tick.
const phaseNone SchedulingPhase = -1

var phaseNames = [NumPhases]string{
	"Update",
	"PortUpdate",
	"Flush",
	"Collection",
	"Tick",
	"PostTick",
}

// String returns the name of the phase.
func (p SchedulingPhase) String() string {
	if !p.IsValid() {
		return fmt.Sprintf("Phase(%d)", int(p))
	}

	return phaseNames[p]
}

// IsValid tells if the phase is one of the declared scheduling phases.
func (p SchedulingPhase) IsValid() bool {
	return p >= PhaseUpdate && p <= PhasePostTick
}

// ParsePhase converts a phase name (case insensitive) to a SchedulingPhase.
func ParsePhase(name string) (SchedulingPhase, error) {
	for i, n := range phaseNames {
		if strings.EqualFold(n, name) {
			return SchedulingPhase(i), nil
		}
	}

	return phaseNone, fmt.Errorf("sim: unknown scheduling phase %q", name)
}
