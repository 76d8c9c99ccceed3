package scoreboard

import (
	"github.com/sarchlab/sparta/sim"
)

type readyCallback struct {
	needed  BitMask
	instID  uint64
	handler func(BitMask)
	dropped bool
}

// A View is the copy of a scoreboard that a consumer unit sees.
type View struct {
	sb        *Scoreboard
	unit      string
	id        int
	ready     BitMask
	event     *sim.PayloadEvent[update]
	callbacks []*readyCallback

	// Satisfied callbacks that receive has not called yet.
	firing []*readyCallback
}

// NewView creates a view for a unit and registers it. Delayed updates are
// delivered in the Update phase on the clock.
func NewView(sb *Scoreboard, unit string, clk *sim.Clock) (*View, error) {
	v := &View{unit: unit, id: -1}
	v.event = sim.NewPayloadEvent(clk, sb.name+"."+unit+".update",
		sim.PhaseUpdate, func(u update) error {
			v.receive(u)
			return nil
		})

	if err := sb.RegisterView(v); err != nil {
		return nil, err
	}

	return v, nil
}

// Unit returns the consumer unit of the view.
func (v *View) Unit() string { return v.unit }

// ID returns the consumer id given by the scoreboard.
func (v *View) ID() int { return v.id }

// Scoreboard returns the master scoreboard.
func (v *View) Scoreboard() *Scoreboard { return v.sb }

// Ready returns the registers the view sees as ready.
func (v *View) Ready() BitMask { return v.ready }

// IsSet tells if every register of bits is ready in the view.
func (v *View) IsSet(bits BitMask) bool {
	return v.ready.Contains(bits)
}

// SetReady marks registers ready in this view only.
func (v *View) SetReady(bits BitMask) {
	v.receive(update{bits: bits, producer: -1})
}

// RegisterReadyCallback calls the handler once every register of needed has
// become ready through a later update. The handler gets the ready mask.
// The callback is not called for registers that are already ready; check
// IsSet first.
func (v *View) RegisterReadyCallback(needed BitMask, instID uint64, handler func(BitMask)) {
	v.callbacks = append(v.callbacks, &readyCallback{
		needed:  needed,
		instID:  instID,
		handler: handler,
	})
}

// ClearCallbacks drops the callbacks of an instruction and returns how many
// were dropped. Called from a ready handler, it also stops the satisfied
// callbacks of the instruction that have not run yet.
func (v *View) ClearCallbacks(instID uint64) int {
	n := 0
	kept := v.callbacks[:0]

	for _, cb := range v.callbacks {
		if cb.instID != instID {
			kept = append(kept, cb)
			continue
		}

		cb.dropped = true
		n++
	}

	clear(v.callbacks[len(kept):])
	v.callbacks = kept

	for _, cb := range v.firing {
		if cb.instID == instID && !cb.dropped {
			cb.dropped = true
			n++
		}
	}

	return n
}

// NumCallbacks returns the number of waiting callbacks.
func (v *View) NumCallbacks() int { return len(v.callbacks) }

// NumPendingUpdates returns the number of delayed updates not delivered yet.
func (v *View) NumPendingUpdates() int { return v.event.NumOutstanding() }

// receive applies an update and fires the satisfied callbacks in
// registration order.
func (v *View) receive(u update) {
	v.ready = v.ready.Or(u.bits)

	if len(v.callbacks) == 0 {
		return
	}

	base := len(v.firing)
	kept := v.callbacks[:0]

	for _, cb := range v.callbacks {
		if v.ready.Contains(cb.needed) {
			v.firing = append(v.firing, cb)
		} else {
			kept = append(kept, cb)
		}
	}

	clear(v.callbacks[len(kept):])
	v.callbacks = kept

	// Handlers may set registers again, so the batch is indexed from base.
	for i := base; i < len(v.firing); i++ {
		cb := v.firing[i]
		if cb.dropped {
			continue
		}

		cb.dropped = true
		cb.handler(v.ready)
	}

	clear(v.firing[base:])
	v.firing = v.firing[:base]
}

// CancelPending drops the delayed updates that have not arrived yet.
func (v *View) CancelPending() int {
	return v.event.CancelAll()
}
