package sim

import "fmt"

// A Schedulable is an event that Scheduler.Schedule accepts. The set of
// schedulable events is closed: Event, UniqueEvent and SingleCycleUniqueEvent.
type Schedulable interface {
	Precedable
	scheduleAt(t Tick)
}

// A Scheduleable carries what all events share: a name, a phase, a clock, a
// default delay, a continuing flag and a vertex in the precedence graph.
type Scheduleable struct {
	name       string
	scheduler  *Scheduler
	clock      *Clock
	phase      SchedulingPhase
	vertex     *Vertex
	continuing bool
	delay      Cycle
}

func newScheduleable(
	clk *Clock,
	name string,
	phase SchedulingPhase,
) *Scheduleable {
	if clk == nil {
		panic("sim: event " + name + " needs a clock")
	}

	s := clk.Scheduler()

	return &Scheduleable{
		name:       name,
		scheduler:  s,
		clock:      clk,
		phase:      phase,
		vertex:     s.dag.NewVertex(name, phase),
		continuing: true,
	}
}

// Name returns the name of the event.
func (sc *Scheduleable) Name() string {
	return sc.name
}

func (sc *Scheduleable) String() string {
	return fmt.Sprintf("%s[%s]", sc.name, sc.phase)
}

// Phase returns the phase that the event fires in.
func (sc *Scheduleable) Phase() SchedulingPhase {
	return sc.phase
}

// Clock returns the clock that cycle delays are counted on.
func (sc *Scheduleable) Clock() *Clock {
	return sc.clock
}

// Scheduler returns the scheduler that fires the event.
func (sc *Scheduleable) Scheduler() *Scheduler {
	return sc.scheduler
}

// Vertex returns the vertex of the event in the precedence graph.
func (sc *Scheduleable) Vertex() *Vertex {
	return sc.vertex
}

// IsContinuing tells if a pending instance of the event keeps Run going.
func (sc *Scheduleable) IsContinuing() bool {
	return sc.continuing
}

// SetContinuing changes the continuing flag. Already queued instances keep the
// flag they were queued with.
func (sc *Scheduleable) SetContinuing(continuing bool) {
	sc.continuing = continuing
}

// Delay returns the default delay in cycles.
func (sc *Scheduleable) Delay() Cycle {
	return sc.delay
}

// SetDelay sets the default delay in cycles.
func (sc *Scheduleable) SetDelay(d Cycle) {
	sc.delay = d
}

// Precedes makes the event fire before the others when they are due in the
// same tick and phase.
func (sc *Scheduleable) Precedes(others ...Precedable) {
	for _, o := range others {
		sc.scheduler.Precedes(sc, o)
	}
}

// tickIn returns the tick that is the given number of cycles later on the
// event's clock, aligned to a rising edge.
func (sc *Scheduleable) tickIn(cycles Cycle) Tick {
	return sc.clock.NCyclesLater(sc.scheduler.CurrentTick(), cycles)
}

func (sc *Scheduleable) tickAfter(delay Tick) Tick {
	return sc.scheduler.targetTick(sc.name, delay, nil)
}

// An Event is a one-shot event. It can be scheduled any number of times, and
// each scheduling fires the handler once.
type Event struct {
	*Scheduleable
	handler func() error
}

// NewEvent creates a one-shot event.
func NewEvent(
	clk *Clock,
	name string,
	phase SchedulingPhase,
	handler func() error,
) *Event {
	return &Event{
		Scheduleable: newScheduleable(clk, name, phase),
		handler:      handler,
	}
}

// Schedule schedules the event after its default delay.
func (e *Event) Schedule() {
	e.ScheduleIn(e.delay)
}

// ScheduleIn schedules the event the given number of cycles later.
func (e *Event) ScheduleIn(cycles Cycle) {
	e.scheduleAt(e.tickIn(cycles))
}

// ScheduleRelativeTick schedules the event a number of ticks later, without
// aligning to the clock.
func (e *Event) ScheduleRelativeTick(delay Tick) {
	e.scheduleAt(e.tickAfter(delay))
}

func (e *Event) scheduleAt(t Tick) {
	e.scheduler.insert(e.Scheduleable, e, t)
}

func (e *Event) fire(*entry) error {
	return e.handler()
}

func (e *Event) discard(*entry) {}

// A UniqueEvent fires at most once per tick. Scheduling it again for a tick
// at which it is already pending has no effect.
type UniqueEvent struct {
	*Scheduleable
	handler func() error
	pending map[Tick]*entry
}

// NewUniqueEvent creates a unique event.
func NewUniqueEvent(
	clk *Clock,
	name string,
	phase SchedulingPhase,
	handler func() error,
) *UniqueEvent {
	return &UniqueEvent{
		Scheduleable: newScheduleable(clk, name, phase),
		handler:      handler,
		pending:      make(map[Tick]*entry),
	}
}

// Schedule schedules the event after its default delay.
func (e *UniqueEvent) Schedule() {
	e.ScheduleIn(e.delay)
}

// ScheduleIn schedules the event the given number of cycles later.
func (e *UniqueEvent) ScheduleIn(cycles Cycle) {
	e.scheduleAt(e.tickIn(cycles))
}

// ScheduleRelativeTick schedules the event a number of ticks later.
func (e *UniqueEvent) ScheduleRelativeTick(delay Tick) {
	e.scheduleAt(e.tickAfter(delay))
}

// IsScheduledAt tells if the event is pending at the given tick.
func (e *UniqueEvent) IsScheduledAt(t Tick) bool {
	_, found := e.pending[t]
	return found
}

// IsScheduled tells if the event is pending at any tick.
func (e *UniqueEvent) IsScheduled() bool {
	return len(e.pending) > 0
}

// Cancel removes every pending instance and returns how many were removed.
func (e *UniqueEvent) Cancel() int {
	n := 0

	for t, en := range e.pending {
		if e.scheduler.remove(en) {
			n++
		}

		delete(e.pending, t)
	}

	return n
}

func (e *UniqueEvent) scheduleAt(t Tick) {
	if _, found := e.pending[t]; found {
		return
	}

	e.pending[t] = e.scheduler.insert(e.Scheduleable, e, t)
}

func (e *UniqueEvent) fire(en *entry) error {
	delete(e.pending, en.tick)
	return e.handler()
}

func (e *UniqueEvent) discard(en *entry) {
	delete(e.pending, en.tick)
}

// A SingleCycleUniqueEvent is a unique event that always fires on the next
// cycle of its clock.
type SingleCycleUniqueEvent struct {
	UniqueEvent
}

// NewSingleCycleUniqueEvent creates a single-cycle unique event.
func NewSingleCycleUniqueEvent(
	clk *Clock,
	name string,
	phase SchedulingPhase,
	handler func() error,
) *SingleCycleUniqueEvent {
	e := &SingleCycleUniqueEvent{
		UniqueEvent: *NewUniqueEvent(clk, name, phase, handler),
	}
	e.delay = 1

	return e
}

// Schedule schedules the event on the next cycle.
func (e *SingleCycleUniqueEvent) Schedule() {
	e.UniqueEvent.ScheduleIn(1)
}

// SetDelay panics. The delay of a single-cycle event is always one cycle.
func (e *SingleCycleUniqueEvent) SetDelay(d Cycle) {
	if d != 1 {
		panic("sim: the delay of single-cycle event " + e.name + " is fixed")
	}
}

// A StartupEvent fires once, when the scheduler runs for the first time. It
// does not take part in phase ordering.
type StartupEvent struct {
	name    string
	handler func() error
}

// NewStartupEvent registers a startup handler on the scheduler.
func NewStartupEvent(
	s *Scheduler,
	name string,
	handler func() error,
) *StartupEvent {
	e := &StartupEvent{name: name, handler: handler}
	s.registerStartup(e)

	return e
}

// Name returns the name of the startup event.
func (e *StartupEvent) Name() string {
	return e.name
}

// A Payload is a handle to a value scheduled on a PayloadEvent.
type Payload[T any] struct {
	id    string
	value T
	ev    *PayloadEvent[T]
	entry *entry
}

// ID returns the identifier of the scheduled instance.
func (p *Payload[T]) ID() string {
	return p.id
}

// Value returns the carried value.
func (p *Payload[T]) Value() T {
	return p.value
}

// Tick returns the tick the payload is due at.
func (p *Payload[T]) Tick() Tick {
	if p.entry == nil {
		return 0
	}

	return p.entry.tick
}

// IsScheduled tells if the payload is still waiting to be delivered.
func (p *Payload[T]) IsScheduled() bool {
	return p.entry != nil
}

// Cancel withdraws the payload. It returns false if the payload has already
// been delivered or cancelled.
func (p *Payload[T]) Cancel() bool {
	if p.entry == nil {
		return false
	}

	p.ev.scheduler.remove(p.entry)
	p.ev.forget(p)

	return true
}

// A PayloadEvent delivers typed values to its handler. Every scheduling
// creates a separate instance that can be cancelled until it fires.
type PayloadEvent[T any] struct {
	*Scheduleable
	handler     func(T) error
	outstanding map[*entry]*Payload[T]
}

// NewPayloadEvent creates a payload event.
func NewPayloadEvent[T any](
	clk *Clock,
	name string,
	phase SchedulingPhase,
	handler func(T) error,
) *PayloadEvent[T] {
	return &PayloadEvent[T]{
		Scheduleable: newScheduleable(clk, name, phase),
		handler:      handler,
		outstanding:  make(map[*entry]*Payload[T]),
	}
}

// Schedule schedules a value after the default delay.
func (e *PayloadEvent[T]) Schedule(v T) *Payload[T] {
	return e.ScheduleIn(v, e.delay)
}

// ScheduleIn schedules a value the given number of cycles later.
func (e *PayloadEvent[T]) ScheduleIn(v T, cycles Cycle) *Payload[T] {
	return e.ScheduleAt(v, e.tickIn(cycles))
}

// ScheduleRelativeTick schedules a value a number of ticks later.
func (e *PayloadEvent[T]) ScheduleRelativeTick(v T, delay Tick) *Payload[T] {
	return e.ScheduleAt(v, e.tickAfter(delay))
}

// ScheduleAt schedules a value at an absolute tick.
func (e *PayloadEvent[T]) ScheduleAt(v T, t Tick) *Payload[T] {
	p := &Payload[T]{
		id:    e.scheduler.idGen.Generate(),
		value: v,
		ev:    e,
	}

	p.entry = e.scheduler.insert(e.Scheduleable, e, t)
	e.outstanding[p.entry] = p

	return p
}

// NumOutstanding returns the number of values waiting to be delivered.
func (e *PayloadEvent[T]) NumOutstanding() int {
	return len(e.outstanding)
}

// CancelIf cancels the waiting values that match the predicate and returns how
// many were cancelled.
func (e *PayloadEvent[T]) CancelIf(pred func(T) bool) int {
	n := 0

	for _, p := range e.outstanding {
		if pred(p.value) && p.Cancel() {
			n++
		}
	}

	return n
}

// CancelAll cancels every waiting value.
func (e *PayloadEvent[T]) CancelAll() int {
	return e.CancelIf(func(T) bool { return true })
}

func (e *PayloadEvent[T]) forget(p *Payload[T]) {
	delete(e.outstanding, p.entry)
	p.entry = nil
}

func (e *PayloadEvent[T]) fire(en *entry) error {
	p, found := e.outstanding[en]
	if !found {
		return nil
	}

	e.forget(p)

	return e.handler(p.value)
}

func (e *PayloadEvent[T]) discard(en *entry) {
	if p, found := e.outstanding[en]; found {
		e.forget(p)
	}
}
