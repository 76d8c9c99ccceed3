// Package scoreboard tracks which registers hold ready values and forwards
// readiness from producer units to consumer units with per-pair latencies.
package scoreboard

import (
	"fmt"

	"github.com/sarchlab/sparta/sim"
)

// An update is a readiness change on its way to a view.
type update struct {
	bits     BitMask
	producer int
}

type consumerLink struct {
	view    *View
	latency sim.Cycle
}

// A Scoreboard is the master copy of the ready registers of one register
// file. Views are the per-unit mirrors.
type Scoreboard struct {
	name      string
	matrix    *LatencyMatrix
	ready     BitMask
	views     []*View
	consumers [][]consumerLink
}

// New creates a scoreboard. Every register starts not ready.
func New(name string, matrix *LatencyMatrix) *Scoreboard {
	return &Scoreboard{
		name:      name,
		matrix:    matrix,
		consumers: make([][]consumerLink, len(matrix.units)),
	}
}

// Name returns the name of the scoreboard.
func (s *Scoreboard) Name() string { return s.name }

// Matrix returns the latency matrix.
func (s *Scoreboard) Matrix() *LatencyMatrix { return s.matrix }

// Ready returns the global ready mask.
func (s *Scoreboard) Ready() BitMask { return s.ready }

// Views returns the registered views in registration order.
func (s *Scoreboard) Views() []*View { return s.views }

// Set marks registers ready and updates every view right away.
func (s *Scoreboard) Set(bits BitMask) {
	s.ready = s.ready.Or(bits)

	for _, v := range s.views {
		v.receive(update{bits: bits, producer: -1})
	}
}

// SetFrom marks registers ready as produced by a unit. Every view that the
// unit forwards to sees the change after the tabulated latency, counted in
// cycles of the view clock. A zero latency updates the view right away.
// Positive latencies are delivered in the Update phase of a later cycle, so
// SetFrom may be called from any phase.
func (s *Scoreboard) SetFrom(bits BitMask, producer string) error {
	p, found := s.matrix.index[producer]
	if !found {
		return &ScoreboardError{
			Kind:       UnknownUnit,
			Scoreboard: s.name,
			Detail:     "producer " + producer,
		}
	}

	s.ready = s.ready.Or(bits)

	for _, link := range s.consumers[p] {
		u := update{bits: bits, producer: p}

		if link.latency == 0 {
			link.view.receive(u)
			continue
		}

		link.view.event.ScheduleIn(u, link.latency)
	}

	return nil
}

// Clear marks registers not ready in the master and in every view. Updates
// that are still on their way are not affected.
func (s *Scoreboard) Clear(bits BitMask) {
	s.ready = s.ready.AndNot(bits)

	for _, v := range s.views {
		v.ready = v.ready.AndNot(bits)
	}
}

// RegisterView attaches a view that mirrors the scoreboard for a consumer
// unit. The view starts with the current ready mask.
func (s *Scoreboard) RegisterView(v *View) error {
	c, found := s.matrix.index[v.unit]
	if !found {
		return &ScoreboardError{
			Kind:       UnknownUnit,
			Scoreboard: s.name,
			Detail:     "consumer " + v.unit,
		}
	}

	if v.sb != nil {
		return &ScoreboardError{
			Kind:       WrongScoreboard,
			Scoreboard: s.name,
			Detail:     fmt.Sprintf("view %d is already registered", v.id),
		}
	}

	v.sb = s
	v.id = len(s.views)
	v.ready = s.ready
	s.views = append(s.views, v)

	for p := range s.matrix.units {
		l := s.matrix.lat[p][c]
		if l == NoForwarding {
			continue
		}

		s.consumers[p] = append(s.consumers[p], consumerLink{view: v, latency: l})
	}

	return nil
}
