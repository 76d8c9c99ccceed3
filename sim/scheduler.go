package sim

import (
	"container/heap"
	"sync"
)

// HookPosBeforeEvent is a hook position that triggers before an event fires.
// The hook item is the *Scheduleable that fires.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after an event fires.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// firable is what the scheduler keeps in its queue on behalf of an event.
type firable interface {
	fire(e *entry) error
	discard(e *entry)
}

type entry struct {
	tick       Tick
	phase      SchedulingPhase
	seq        uint64
	sc         *Scheduleable
	target     firable
	continuing bool
	index      int
}

// A Scheduler executes events in tick order. Inside a tick, events fire phase
// by phase; inside a phase, they fire in the order of the precedence graph,
// and events of the same vertex fire in insertion order.
//
// The scheduler is single threaded. Only CurrentTick, Pause and Continue may
// be called from other goroutines, which is what a monitor needs.
type Scheduler struct {
	*HookableBase

	timeLock sync.RWMutex
	now      Tick

	lastPhase SchedulingPhase
	lastRank  int

	queue entryQueue
	seq   uint64
	dag   *DAG
	idGen IDGenerator

	firing        *entry
	numContinuing int
	numFired      uint64

	startups     []*StartupEvent
	startupFired bool

	stopRequested bool

	isPaused      bool
	isPausedLock  sync.Mutex
	pauseLock     sync.Mutex
	singleRunLock sync.Mutex
}

// NewScheduler creates a scheduler at tick 0.
func NewScheduler() *Scheduler {
	return &Scheduler{
		HookableBase: NewHookableBase(),
		lastPhase:    phaseNone,
		dag:          NewDAG(),
		idGen:        NewSequentialIDGenerator(),
	}
}

// DAG returns the precedence graph of the scheduler.
func (s *Scheduler) DAG() *DAG {
	return s.dag
}

// IDGenerator returns the generator used for payload IDs.
func (s *Scheduler) IDGenerator() IDGenerator {
	return s.idGen
}

// UseIDGenerator replaces the payload ID generator.
func (s *Scheduler) UseIDGenerator(g IDGenerator) {
	s.idGen = g
}

// CurrentTick returns the tick of the most recently fired event, or the tick
// that the scheduler was advanced or restarted to.
func (s *Scheduler) CurrentTick() Tick {
	s.timeLock.RLock()
	t := s.now
	s.timeLock.RUnlock()

	return t
}

func (s *Scheduler) writeNow(t Tick) {
	s.timeLock.Lock()
	s.now = t
	s.timeLock.Unlock()
}

// CurrentPhase returns the phase that is firing, or the last phase fired in
// the current tick. It returns PhaseUpdate when nothing has fired in the
// current tick yet.
func (s *Scheduler) CurrentPhase() SchedulingPhase {
	if s.lastPhase == phaseNone {
		return PhaseUpdate
	}

	return s.lastPhase
}

// IsFiring tells if the scheduler is inside an event handler.
func (s *Scheduler) IsFiring() bool {
	return s.firing != nil
}

// NumFired returns the number of handlers fired so far.
func (s *Scheduler) NumFired() uint64 {
	return s.numFired
}

// NumPending returns the number of queued event instances.
func (s *Scheduler) NumPending() int {
	return s.queue.Len()
}

// NumContinuingPending returns the number of queued instances that keep the
// simulation alive.
func (s *Scheduler) NumContinuingPending() int {
	return s.numContinuing
}

// NextEventTick returns the tick of the earliest queued event.
func (s *Scheduler) NextEventTick() (Tick, bool) {
	if s.queue.Len() == 0 {
		return 0, false
	}

	return s.queue[0].tick, true
}

// Precedes records that a must fire before b when both are due in the same
// tick and phase. It panics if the graph is finalized or if a fires in a later
// phase than b.
func (s *Scheduler) Precedes(a, b Precedable) {
	if err := s.dag.Link(a.Vertex(), b.Vertex()); err != nil {
		panic(err)
	}
}

// Finalize freezes the precedence graph and orders the queue accordingly. It
// is called by the first Run if the owner has not called it.
func (s *Scheduler) Finalize() error {
	if s.dag.IsFinalized() {
		return nil
	}

	if err := s.dag.Finalize(); err != nil {
		return err
	}

	heap.Init(&s.queue)

	return nil
}

// IsFinalized tells if the precedence graph is frozen.
func (s *Scheduler) IsFinalized() bool {
	return s.dag.IsFinalized()
}

// Schedule schedules an event delay ticks from now. If clk is not nil, the
// delay counts cycles of clk and the target tick is aligned to clk.
func (s *Scheduler) Schedule(ev Schedulable, delay Tick, clk *Clock) {
	ev.scheduleAt(s.targetTick(ev.Vertex().name, delay, clk))
}

func (s *Scheduler) targetTick(name string, delay Tick, clk *Clock) Tick {
	now := s.CurrentTick()

	if clk != nil {
		return clk.NCyclesLater(now, Cycle(delay))
	}

	t, ok := addTicks(now, delay)
	if !ok {
		panic(&ScheduleError{
			Reason: ErrTickOverflow,
			Event:  name,
			Tick:   now,
		})
	}

	return t
}

// insert validates and queues one instance of an event.
func (s *Scheduler) insert(sc *Scheduleable, target firable, tick Tick) *entry {
	s.mustBeLegalTarget(sc, tick)

	s.seq++
	e := &entry{
		tick:       tick,
		phase:      sc.phase,
		seq:        s.seq,
		sc:         sc,
		target:     target,
		continuing: sc.continuing,
	}

	heap.Push(&s.queue, e)

	if e.continuing {
		s.numContinuing++
	}

	return e
}

func (s *Scheduler) mustBeLegalTarget(sc *Scheduleable, tick Tick) {
	now := s.CurrentTick()

	switch {
	case tick > now:
		return
	case tick < now:
		s.panicPast(sc, tick, "target tick has passed")
	}

	if s.lastPhase == phaseNone || sc.phase > s.lastPhase {
		return
	}

	if sc.phase < s.lastPhase {
		s.panicPast(sc, tick, "target phase has passed, current phase is "+
			s.lastPhase.String())
	}

	if s.firing != nil {
		if s.dag.Reaches(s.firing.sc.vertex, sc.vertex) {
			return
		}

		panic(&ScheduleError{
			Reason: ErrSamePhaseZeroDelay,
			Event:  sc.name,
			Tick:   tick,
			Phase:  sc.phase,
			Detail: "scheduled by " + s.firing.sc.name +
				" which does not precede it",
		})
	}

	if sc.vertex.rank > s.lastRank {
		return
	}

	s.panicPast(sc, tick, "target vertex already passed in this phase")
}

func (s *Scheduler) panicPast(sc *Scheduleable, tick Tick, detail string) {
	panic(&ScheduleError{
		Reason: ErrPastTick,
		Event:  sc.name,
		Tick:   tick,
		Phase:  sc.phase,
		Detail: detail,
	})
}

// remove takes a queued instance out of the queue without firing it.
func (s *Scheduler) remove(e *entry) bool {
	if e.index < 0 || e.index >= s.queue.Len() || s.queue[e.index] != e {
		return false
	}

	heap.Remove(&s.queue, e.index)

	if e.continuing {
		s.numContinuing--
	}

	return true
}

func (s *Scheduler) registerStartup(e *StartupEvent) {
	if s.startupFired {
		panic("sim: startup event " + e.name + " registered after start")
	}

	s.startups = append(s.startups, e)
}

// Run fires events until no continuing event is pending, until maxTicks ticks
// have elapsed from the current tick, or until StopRunning is called. Pass
// MaxTick to run without a tick limit.
//
// When exacting is set and maxTicks is bounded, every event due in the window
// fires, continuing or not, and the scheduler ends exactly maxTicks ticks
// later.
//
// A handler error stops the run and is returned. Non-continuing events due at
// the tick of the last continuing event still fire before Run returns.
func (s *Scheduler) Run(maxTicks Tick, exacting bool) error {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	if err := s.Finalize(); err != nil {
		return err
	}

	s.stopRequested = false

	start := s.CurrentTick()
	end, ok := addTicks(start, maxTicks)
	bounded := maxTicks != MaxTick && ok

	if err := s.fireStartups(); err != nil {
		return err
	}

	for !s.stopRequested {
		next, found := s.NextEventTick()
		if !found {
			break
		}

		if bounded && next >= end {
			break
		}

		if !(exacting && bounded) &&
			s.numContinuing == 0 &&
			(next > s.CurrentTick() || s.lastPhase == phaseNone) {
			break
		}

		if err := s.fireNext(); err != nil {
			return err
		}
	}

	if exacting && bounded && !s.stopRequested {
		s.advanceTo(end)
	}

	return nil
}

// RunUntilDone runs until no continuing event remains.
func (s *Scheduler) RunUntilDone() error {
	return s.Run(MaxTick, false)
}

func (s *Scheduler) fireStartups() error {
	if s.startupFired {
		return nil
	}

	s.startupFired = true

	for _, e := range s.startups {
		if err := e.handler(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scheduler) fireNext() error {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	e := heap.Pop(&s.queue).(*entry)
	if e.continuing {
		s.numContinuing--
	}

	if e.tick != s.CurrentTick() {
		s.writeNow(e.tick)
	}

	s.lastPhase = e.phase
	s.lastRank = e.sc.vertex.rank

	hookCtx := HookCtx{
		Domain: s,
		Pos:    HookPosBeforeEvent,
		Item:   e.sc,
	}

	if s.NumHooks() > 0 {
		s.InvokeHook(hookCtx)
	}

	s.firing = e
	err := e.target.fire(e)
	s.firing = nil
	s.numFired++

	if s.NumHooks() > 0 {
		hookCtx.Pos = HookPosAfterEvent
		s.InvokeHook(hookCtx)
	}

	return err
}

// advanceTo moves time forward to t with nothing fired at t yet.
func (s *Scheduler) advanceTo(t Tick) {
	if t == s.CurrentTick() {
		return
	}

	s.writeNow(t)
	s.lastPhase = phaseNone
	s.lastRank = -1
}

func (s *Scheduler) resetTickProgress() {
	s.lastPhase = phaseNone
	s.lastRank = -1
}

// StopRunning makes Run return after the handler that is currently firing.
func (s *Scheduler) StopRunning() {
	s.stopRequested = true
}

// RestartAt drops every pending event and moves time to t. Startup events are
// not fired again.
func (s *Scheduler) RestartAt(t Tick) {
	pending := s.queue
	s.queue = nil
	s.numContinuing = 0

	for _, e := range pending {
		e.index = -1
		e.target.discard(e)
	}

	s.writeNow(t)
	s.resetTickProgress()
	s.stopRequested = false
}

// Pause blocks the scheduler before the next event until Continue is called.
func (s *Scheduler) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue resumes a paused scheduler.
func (s *Scheduler) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// IsPaused tells if Pause is in effect.
func (s *Scheduler) IsPaused() bool {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	return s.isPaused
}

type entryQueue []*entry

func (q entryQueue) Len() int {
	return len(q)
}

func (q entryQueue) Less(i, j int) bool {
	a, b := q[i], q[j]

	if a.tick != b.tick {
		return a.tick < b.tick
	}

	if a.phase != b.phase {
		return a.phase < b.phase
	}

	if a.sc.vertex.rank != b.sc.vertex.rank {
		return a.sc.vertex.rank < b.sc.vertex.rank
	}

	return a.seq < b.seq
}

func (q entryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *entryQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *entryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]

	return e
}
