package port

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tree"
)

// InPortOption configures an InPort.
type InPortOption func(*inPortConfig)

type inPortConfig struct {
	phase          sim.SchedulingPhase
	autoPrecedence bool
}

// WithPhase makes the in-port handler fire in the given phase instead of
// PortUpdate. Receivers of zero-cycle ports use PhaseTick.
func WithPhase(p sim.SchedulingPhase) InPortOption {
	return func(c *inPortConfig) { c.phase = p }
}

// WithoutAutoPrecedence keeps the in-port out of the unit's auto-precedence.
func WithoutAutoPrecedence() InPortOption {
	return func(c *inPortConfig) { c.autoPrecedence = false }
}

// An InPort receives payloads of type T. Every payload reaches the handler
// after the port delay, counted in cycles of the unit clock.
type InPort[T any] struct {
	*sim.HookableBase

	name     string
	set      *PortSet
	delay    sim.Cycle
	event    *sim.PayloadEvent[T]
	handler  func(T) error
	producer Port
	autoPrec bool

	numReceived uint64
}

// NewInPort adds an in-port to a port set.
func NewInPort[T any](
	ps *PortSet,
	name string,
	delay sim.Cycle,
	opts ...InPortOption,
) *InPort[T] {
	cfg := inPortConfig{phase: sim.PhasePortUpdate, autoPrecedence: true}
	for _, o := range opts {
		o(&cfg)
	}

	p := &InPort[T]{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		set:          ps,
		delay:        delay,
		autoPrec:     cfg.autoPrecedence,
	}

	p.event = sim.NewPayloadEvent(ps.unit.Clock(), ps.location(name),
		cfg.phase, p.receive)
	p.event.SetDelay(delay)

	ps.add(p)
	ps.unit.RegisterSchedulable(tree.RoleInPort, p)

	return p
}

// RegisterHandler sets the function that consumes the payloads.
func (p *InPort[T]) RegisterHandler(h func(T) error) {
	if p.handler != nil {
		panic(fmt.Sprintf("port: %s already has a handler", p.Location()))
	}

	p.handler = h
}

// Name returns the name of the port.
func (p *InPort[T]) Name() string { return p.name }

// Location returns the dotted path of the port.
func (p *InPort[T]) Location() string { return p.set.location(p.name) }

// Direction returns In.
func (p *InPort[T]) Direction() Direction { return In }

// PayloadType returns the type of T.
func (p *InPort[T]) PayloadType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// IsBound tells if a producer is bound.
func (p *InPort[T]) IsBound() bool { return p.producer != nil }

// Delay returns the port delay in cycles.
func (p *InPort[T]) Delay() sim.Cycle { return p.delay }

// Clock returns the clock that the delay is counted on.
func (p *InPort[T]) Clock() *sim.Clock { return p.event.Clock() }

// Vertex returns the vertex of the handler in the precedence graph.
func (p *InPort[T]) Vertex() *sim.Vertex { return p.event.Vertex() }

// AutoPrecedenceEnabled tells if the handler is ordered before the unit's
// Tick-phase events.
func (p *InPort[T]) AutoPrecedenceEnabled() bool { return p.autoPrec }

// DisableAutoPrecedence keeps the port out of the unit's auto-precedence.
func (p *InPort[T]) DisableAutoPrecedence() { p.autoPrec = false }

// NumReceived returns the number of payloads handed to the handler.
func (p *InPort[T]) NumReceived() uint64 { return p.numReceived }

// NumPending returns the number of payloads in flight to the port.
func (p *InPort[T]) NumPending() int { return p.event.NumOutstanding() }

func (p *InPort[T]) deliver(v T, extra sim.Cycle) *sim.Payload[T] {
	return p.event.ScheduleIn(v, p.delay+extra)
}

func (p *InPort[T]) receive(v T) error {
	if p.handler == nil {
		return &PortError{
			Kind:   Unbound,
			Port:   p.Location(),
			Detail: "no handler registered",
		}
	}

	p.numReceived++

	if p.NumHooks() > 0 {
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosPortReceive, Item: v})
	}

	return p.handler(v)
}

func (p *InPort[T]) bindTo(Port) error {
	panic("port: in-ports are bound from their producer")
}

// OutPortOption configures an OutPort.
type OutPortOption func(*outPortConfig)

type outPortConfig struct {
	zeroCycle bool
}

// AssumeZeroCycle declares that the port may deliver in the same cycle. Such
// a port is ordered after the unit's Tick-phase events and before the
// handlers of its peers.
func AssumeZeroCycle() OutPortOption {
	return func(c *outPortConfig) { c.zeroCycle = true }
}

// An OutPort sends payloads of type T to every bound in-port.
type OutPort[T any] struct {
	*sim.HookableBase

	name      string
	set       *PortSet
	peers     []*InPort[T]
	vertex    *sim.Vertex
	zeroCycle bool
	pending   []*sim.Payload[T]

	numSent uint64
}

// NewOutPort adds an out-port to a port set.
func NewOutPort[T any](ps *PortSet, name string, opts ...OutPortOption) *OutPort[T] {
	cfg := outPortConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	p := &OutPort[T]{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		set:          ps,
		zeroCycle:    cfg.zeroCycle,
	}

	p.vertex = ps.unit.Scheduler().DAG().NewVertex(p.Location(), sim.PhaseTick)

	ps.add(p)
	ps.unit.RegisterSchedulable(tree.RoleOutPort, p)

	return p
}

// Name returns the name of the port.
func (p *OutPort[T]) Name() string { return p.name }

// Location returns the dotted path of the port.
func (p *OutPort[T]) Location() string { return p.set.location(p.name) }

// Direction returns Out.
func (p *OutPort[T]) Direction() Direction { return Out }

// PayloadType returns the type of T.
func (p *OutPort[T]) PayloadType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// IsBound tells if at least one in-port is bound.
func (p *OutPort[T]) IsBound() bool { return len(p.peers) > 0 }

// Peers returns the bound in-ports.
func (p *OutPort[T]) Peers() []*InPort[T] { return p.peers }

// Vertex returns the vertex that orders zero-cycle sends.
func (p *OutPort[T]) Vertex() *sim.Vertex { return p.vertex }

// AutoPrecedenceEnabled tells if the port is a zero-cycle port.
func (p *OutPort[T]) AutoPrecedenceEnabled() bool { return p.zeroCycle }

// NumSent returns the number of Send calls that succeeded.
func (p *OutPort[T]) NumSent() uint64 { return p.numSent }

func (p *OutPort[T]) bindTo(peer Port) error {
	in, ok := peer.(*InPort[T])
	if !ok {
		return &PortError{
			Kind:   TypeMismatch,
			Port:   p.Location(),
			Detail: fmt.Sprintf("%s is not a data in-port", peer.Location()),
		}
	}

	if in.producer != nil {
		if in.producer == Port(p) {
			return nil
		}

		return &PortError{
			Kind:   AlreadyBound,
			Port:   in.Location(),
			Detail: "bound to " + in.producer.Location(),
		}
	}

	if p.zeroCycle && in.event.Phase() >= sim.PhaseTick {
		dag := p.set.unit.Scheduler().DAG()
		if err := dag.Link(p.vertex, in.Vertex()); err != nil {
			return err
		}
	}

	in.producer = p
	p.peers = append(p.peers, in)

	return nil
}

// Send sends a payload to every peer. Each peer receives it after its port
// delay plus the extra delay, counted on the peer's clock.
func (p *OutPort[T]) Send(v T, extra sim.Cycle) error {
	if len(p.peers) == 0 {
		return &PortError{Kind: Unbound, Port: p.Location()}
	}

	if p.NumHooks() > 0 {
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosPortSend, Item: v})
	}

	p.prune()

	for _, in := range p.peers {
		p.pending = append(p.pending, in.deliver(v, extra))
	}

	p.numSent++

	return nil
}

// Cancel withdraws every payload that has not been delivered yet and returns
// how many were withdrawn.
func (p *OutPort[T]) Cancel() int {
	n := 0

	for _, pl := range p.pending {
		if pl.Cancel() {
			n++
		}
	}

	p.pending = p.pending[:0]

	return n
}

// CancelIf withdraws the undelivered payloads that match the predicate.
func (p *OutPort[T]) CancelIf(pred func(T) bool) int {
	n := 0

	for _, pl := range p.pending {
		if pl.IsScheduled() && pred(pl.Value()) && pl.Cancel() {
			n++
		}
	}

	p.prune()

	return n
}

func (p *OutPort[T]) prune() {
	kept := p.pending[:0]

	for _, pl := range p.pending {
		if pl.IsScheduled() {
			kept = append(kept, pl)
		}
	}

	clear(p.pending[len(kept):])
	p.pending = kept
}
