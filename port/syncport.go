package port

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tree"
)

// ArrivalTick returns the tick at which a payload sent on source cycle
// sendCycle with a delay of d source cycles reaches the destination. It is
// the first destination rising edge at or after (sendCycle+d)*srcPeriod +
// dstPeriod.
func ArrivalTick(srcPeriod, dstPeriod sim.Tick, sendCycle, d sim.Cycle) sim.Tick {
	launch := sim.Tick(sendCycle+d) * srcPeriod
	return sim.CeilMultiple(dstPeriod, launch+dstPeriod)
}

// NextSendTick returns the first source rising edge at or after an arrival.
func NextSendTick(srcPeriod, arrival sim.Tick) sim.Tick {
	return sim.CeilMultiple(srcPeriod, arrival)
}

// A SyncInPort receives payloads from a SyncOutPort that runs on another
// clock. The handler fires in PortUpdate on a rising edge of the unit clock.
type SyncInPort[T any] struct {
	*sim.HookableBase

	name     string
	set      *PortSet
	event    *sim.PayloadEvent[T]
	handler  func(T) error
	producer *SyncOutPort[T]
	autoPrec bool
}

// NewSyncInPort adds a sync in-port to a port set.
func NewSyncInPort[T any](ps *PortSet, name string, opts ...InPortOption) *SyncInPort[T] {
	cfg := inPortConfig{phase: sim.PhasePortUpdate, autoPrecedence: true}
	for _, o := range opts {
		o(&cfg)
	}

	p := &SyncInPort[T]{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		set:          ps,
		autoPrec:     cfg.autoPrecedence,
	}

	p.event = sim.NewPayloadEvent(ps.unit.Clock(), ps.location(name),
		cfg.phase, p.receive)

	ps.add(p)
	ps.unit.RegisterSchedulable(tree.RoleInPort, p)

	return p
}

// RegisterHandler sets the function that consumes the payloads.
func (p *SyncInPort[T]) RegisterHandler(h func(T) error) {
	if p.handler != nil {
		panic(fmt.Sprintf("port: %s already has a handler", p.Location()))
	}

	p.handler = h
}

// Name returns the name of the port.
func (p *SyncInPort[T]) Name() string { return p.name }

// Location returns the dotted path of the port.
func (p *SyncInPort[T]) Location() string { return p.set.location(p.name) }

// Direction returns In.
func (p *SyncInPort[T]) Direction() Direction { return In }

// PayloadType returns the type of T.
func (p *SyncInPort[T]) PayloadType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// IsBound tells if a producer is bound.
func (p *SyncInPort[T]) IsBound() bool { return p.producer != nil }

// Clock returns the destination clock.
func (p *SyncInPort[T]) Clock() *sim.Clock { return p.event.Clock() }

// Vertex returns the vertex of the handler.
func (p *SyncInPort[T]) Vertex() *sim.Vertex { return p.event.Vertex() }

// AutoPrecedenceEnabled tells if the handler takes part in auto-precedence.
func (p *SyncInPort[T]) AutoPrecedenceEnabled() bool { return p.autoPrec }

func (p *SyncInPort[T]) receive(v T) error {
	if p.handler == nil {
		return &PortError{
			Kind:   Unbound,
			Port:   p.Location(),
			Detail: "no handler registered",
		}
	}

	if p.NumHooks() > 0 {
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosPortReceive, Item: v})
	}

	return p.handler(v)
}

func (p *SyncInPort[T]) bindTo(Port) error {
	panic("port: in-ports are bound from their producer")
}

// A SyncOutPort sends payloads to a single SyncInPort whose clock may have an
// unrelated period. A send occupies the port until the source rising edge
// that follows the arrival, so at most one payload is on the wire.
type SyncOutPort[T any] struct {
	*sim.HookableBase

	name     string
	set      *PortSet
	clock    *sim.Clock
	peer     *SyncInPort[T]
	nextFree sim.Tick
	pending  []*sim.Payload[T]
}

// NewSyncOutPort adds a sync out-port to a port set. The unit clock is the
// source clock.
func NewSyncOutPort[T any](ps *PortSet, name string) *SyncOutPort[T] {
	p := &SyncOutPort[T]{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		set:          ps,
		clock:        ps.unit.Clock(),
	}

	ps.add(p)

	return p
}

// Name returns the name of the port.
func (p *SyncOutPort[T]) Name() string { return p.name }

// Location returns the dotted path of the port.
func (p *SyncOutPort[T]) Location() string { return p.set.location(p.name) }

// Direction returns Out.
func (p *SyncOutPort[T]) Direction() Direction { return Out }

// PayloadType returns the type of T.
func (p *SyncOutPort[T]) PayloadType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// IsBound tells if the peer is bound.
func (p *SyncOutPort[T]) IsBound() bool { return p.peer != nil }

// Clock returns the source clock.
func (p *SyncOutPort[T]) Clock() *sim.Clock { return p.clock }

func (p *SyncOutPort[T]) bindTo(peer Port) error {
	in, ok := peer.(*SyncInPort[T])
	if !ok {
		return &PortError{
			Kind:   TypeMismatch,
			Port:   p.Location(),
			Detail: fmt.Sprintf("%s is not a sync in-port", peer.Location()),
		}
	}

	if p.peer == in {
		return nil
	}

	if p.peer != nil || in.producer != nil {
		return &PortError{Kind: AlreadyBound, Port: p.Location(),
			Detail: "sync ports bind one to one"}
	}

	p.peer = in
	in.producer = p

	return nil
}

// sendCycle is the source cycle a send issued now goes out on, including the
// delay.
func (p *SyncOutPort[T]) sendCycle(d sim.Cycle) sim.Cycle {
	now := p.clock.CurrentTick()
	return p.clock.TickToCycle(p.clock.ThisTick(now)) + d
}

// IsDriven tells if a send with the given delay would collide with a payload
// that is still occupying the port.
func (p *SyncOutPort[T]) IsDriven(d sim.Cycle) bool {
	return p.clock.CycleToTick(p.sendCycle(d)) < p.nextFree
}

// ComputeNextAvailableCycleForSend returns the earliest source cycle on which
// a send with the given delay is accepted. It does not change the port.
func (p *SyncOutPort[T]) ComputeNextAvailableCycleForSend(d sim.Cycle) sim.Cycle {
	current := p.sendCycle(0)
	free := p.clock.TickToCycle(p.clock.ThisTick(p.nextFree))

	if free <= current+d {
		return current
	}

	return free - d
}

// NextFreeTick returns the first source tick on which the port can launch a
// payload again.
func (p *SyncOutPort[T]) NextFreeTick() sim.Tick {
	return p.nextFree
}

// Send launches a payload. It fails if the port is unbound or if the launch
// cycle comes before the next available cycle.
func (p *SyncOutPort[T]) Send(v T, d sim.Cycle) error {
	if p.peer == nil {
		return &PortError{Kind: Unbound, Port: p.Location()}
	}

	cycle := p.sendCycle(d)
	launch := p.clock.CycleToTick(cycle)

	if launch < p.nextFree {
		return &PortError{
			Kind: SendTooEarly,
			Port: p.Location(),
			Detail: fmt.Sprintf("launch at tick %d, port free at tick %d",
				launch, p.nextFree),
		}
	}

	arrival := ArrivalTick(p.clock.Period(), p.peer.Clock().Period(), cycle, 0)
	p.nextFree = NextSendTick(p.clock.Period(), arrival)

	if p.NumHooks() > 0 {
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosPortSend, Item: v})
	}

	p.prune()
	p.pending = append(p.pending, p.peer.event.ScheduleAt(v, arrival))

	return nil
}

// Cancel withdraws the undelivered payloads and frees the port.
func (p *SyncOutPort[T]) Cancel() int {
	n := 0

	for _, pl := range p.pending {
		if pl.Cancel() {
			n++
		}
	}

	p.pending = p.pending[:0]
	p.nextFree = 0

	return n
}

func (p *SyncOutPort[T]) prune() {
	kept := p.pending[:0]

	for _, pl := range p.pending {
		if pl.IsScheduled() {
			kept = append(kept, pl)
		}
	}

	clear(p.pending[len(kept):])
	p.pending = kept
}
