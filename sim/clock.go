package sim

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Tick is the base integer time unit of the scheduler. When clocks are made
// from frequencies, one tick is one picosecond.
type Tick uint64

// Cycle is a cycle count on a particular clock.
type Cycle uint64

// MaxTick is the largest representable tick. It is used as "never" and as the
// saturation value of tick arithmetic.
const MaxTick = Tick(math.MaxUint64)

var (
	// ErrZeroRatio indicates that a clock was created with a zero ratio term.
	ErrZeroRatio = errors.New("sim: clock ratio terms must be greater than zero")

	// ErrZeroPeriod indicates that a clock was created with a zero period or
	// a non-positive frequency.
	ErrZeroPeriod = errors.New("sim: clock period must be greater than zero")

	// ErrPeriodOverflow indicates that normalizing the clock tree produced a
	// period that does not fit into a Tick.
	ErrPeriodOverflow = errors.New("sim: normalized clock period overflow")

	// ErrDuplicateClock indicates that a clock name is already taken.
	ErrDuplicateClock = errors.New("sim: duplicated clock name")

	// ErrNoRootClock indicates that a clock was requested before a root
	// clock exists.
	ErrNoRootClock = errors.New("sim: root clock has not been made")

	// ErrClocksNormalized indicates a change to the clock tree after
	// Normalize has fixed all periods.
	ErrClocksNormalized = errors.New("sim: clock tree is already normalized")
)

type clockKind int

const (
	clockRoot clockKind = iota
	clockRatio
	clockFixed
)

// A Clock converts between cycles and scheduler ticks. Clocks form a tree
// under a ClockManager. A clock's period is only known after the manager has
// been normalized.
type Clock struct {
	name     string
	manager  *ClockManager
	parent   *Clock
	children []*Clock

	kind        clockKind
	ratioNum    uint64
	ratioDen    uint64
	fixedPeriod uint64

	period Tick
}

// Name returns the name of the clock.
func (c *Clock) Name() string {
	return c.name
}

// String returns a description of the clock.
func (c *Clock) String() string {
	return fmt.Sprintf("Clock(%s, period=%d)", c.name, c.period)
}

// Parent returns the parent clock. The root clock has no parent.
func (c *Clock) Parent() *Clock {
	return c.parent
}

// Children returns the clocks derived from this clock.
func (c *Clock) Children() []*Clock {
	return c.children
}

// Ratio returns the period ratio of the clock to its parent. Fixed-period and
// root clocks report 1/1.
func (c *Clock) Ratio() (num, den uint64) {
	if c.kind != clockRatio {
		return 1, 1
	}

	return c.ratioNum, c.ratioDen
}

// Period returns the number of ticks in one cycle of the clock. It is zero
// until the manager is normalized.
func (c *Clock) Period() Tick {
	return c.period
}

// FrequencyMHz returns the frequency of the clock, assuming that one tick is
// one picosecond.
func (c *Clock) FrequencyMHz() float64 {
	if c.period == 0 {
		return 0
	}

	return 1e6 / float64(c.period)
}

// Scheduler returns the scheduler that the clock drives.
func (c *Clock) Scheduler() *Scheduler {
	return c.manager.scheduler
}

// CurrentTick returns the current tick of the scheduler.
func (c *Clock) CurrentTick() Tick {
	return c.manager.scheduler.CurrentTick()
}

// CurrentCycle returns the cycle of this clock that the scheduler is in.
func (c *Clock) CurrentCycle() Cycle {
	return c.TickToCycle(c.CurrentTick())
}

// TickToCycle converts a tick to a cycle count on this clock, truncating.
func (c *Clock) TickToCycle(t Tick) Cycle {
	c.mustBeNormalized()
	return Cycle(t / c.period)
}

// CycleToTick returns the tick at which the given cycle begins.
func (c *Clock) CycleToTick(cycle Cycle) Tick {
	c.mustBeNormalized()

	t, ok := mulTicks(Tick(cycle), c.period)
	if !ok {
		return MaxTick
	}

	return t
}

// IsPosedge tells if the tick lands on a rising edge of the clock.
func (c *Clock) IsPosedge(t Tick) bool {
	c.mustBeNormalized()
	return t%c.period == 0
}

// ThisTick aligns a tick to the earliest rising edge that is not earlier than
// the input.
//
//	           Input
//	           (          ]
//	|----------|----------|----------|----->
//	                      |
//	                      Output
func (c *Clock) ThisTick(now Tick) Tick {
	c.mustBeNormalized()

	t, ok := roundUpToPeriod(now, c.period)
	if !ok {
		return MaxTick
	}

	return t
}

// NextTick returns the first rising edge strictly after the input.
//
//	           Input
//	           [          )
//	|----------|----------|----------|----->
//	                      |
//	                      Output
func (c *Clock) NextTick(now Tick) Tick {
	t := c.ThisTick(now)
	if t != now {
		return t
	}

	next, ok := addTicks(now, c.period)
	if !ok {
		return MaxTick
	}

	return next
}

// NCyclesLater returns the rising edge that is n cycles after the given tick.
// The result is always aligned to the clock.
func (c *Clock) NCyclesLater(now Tick, n Cycle) Tick {
	c.mustBeNormalized()

	if n == 0 {
		return c.ThisTick(now)
	}

	offset, ok := mulTicks(Tick(n), c.period)
	if !ok {
		return MaxTick
	}

	future, ok := addTicks(now, offset)
	if !ok {
		return MaxTick
	}

	t, ok := roundUpToPeriod(future, c.period)
	if !ok {
		return MaxTick
	}

	return t
}

func (c *Clock) mustBeNormalized() {
	if c.period == 0 {
		panic(fmt.Sprintf("sim: clock %s is used before normalization", c.name))
	}
}

// A ClockManager owns a tree of clocks and fixes their periods so that all of
// them are integers in a single tick domain.
type ClockManager struct {
	scheduler  *Scheduler
	root       *Clock
	clocks     []*Clock
	byName     map[string]*Clock
	normalized bool
}

// NewClockManager creates a manager whose clocks drive the given scheduler.
func NewClockManager(s *Scheduler) *ClockManager {
	return &ClockManager{
		scheduler: s,
		byName:    make(map[string]*Clock),
	}
}

// Root returns the root clock, or nil if it has not been made.
func (m *ClockManager) Root() *Clock {
	return m.root
}

// Clocks returns all clocks in creation order.
func (m *ClockManager) Clocks() []*Clock {
	return m.clocks
}

// Clock finds a clock by name.
func (m *ClockManager) Clock(name string) (*Clock, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// IsNormalized tells if clock periods have been fixed.
func (m *ClockManager) IsNormalized() bool {
	return m.normalized
}

// MakeRoot creates the root clock. Its period is decided by Normalize so that
// all ratio clocks get integer periods.
func (m *ClockManager) MakeRoot(name string) (*Clock, error) {
	return m.makeRoot(name, 1)
}

// MakeRootWithPeriod creates a root clock with a minimum period. Normalize may
// scale the period (and every other period) up to keep all periods integer.
func (m *ClockManager) MakeRootWithPeriod(name string, period Tick) (*Clock, error) {
	if period == 0 {
		return nil, ErrZeroPeriod
	}

	return m.makeRoot(name, uint64(period))
}

func (m *ClockManager) makeRoot(name string, period uint64) (*Clock, error) {
	if m.root != nil {
		return nil, fmt.Errorf("%w: root clock %s already exists",
			ErrDuplicateClock, m.root.name)
	}

	c := &Clock{name: name, kind: clockRoot, fixedPeriod: period}
	if err := m.add(c, nil); err != nil {
		return nil, err
	}

	m.root = c

	return c, nil
}

// MakeClock derives a clock from a parent clock. The child period is
// parent-period * num / den, so a 2/1 ratio makes a clock running at half the
// parent frequency. A nil parent means the root clock.
func (m *ClockManager) MakeClock(
	name string,
	parent *Clock,
	num, den uint64,
) (*Clock, error) {
	if num == 0 || den == 0 {
		return nil, ErrZeroRatio
	}

	g := gcd(num, den)
	c := &Clock{
		name:     name,
		kind:     clockRatio,
		ratioNum: num / g,
		ratioDen: den / g,
	}

	if err := m.add(c, parent); err != nil {
		return nil, err
	}

	return c, nil
}

// MakeClockWithPeriod creates a clock with a fixed period in ticks. The parent
// only places the clock in the tree.
func (m *ClockManager) MakeClockWithPeriod(
	name string,
	parent *Clock,
	period Tick,
) (*Clock, error) {
	if period == 0 {
		return nil, ErrZeroPeriod
	}

	c := &Clock{name: name, kind: clockFixed, fixedPeriod: uint64(period)}
	if err := m.add(c, parent); err != nil {
		return nil, err
	}

	return c, nil
}

// MakeClockWithFrequency creates a fixed-period clock from a frequency in MHz,
// with one tick being one picosecond. 400 MHz gives a 2500-tick period and
// 333.333 MHz gives 3000.
func (m *ClockManager) MakeClockWithFrequency(
	name string,
	parent *Clock,
	mhz float64,
) (*Clock, error) {
	if mhz <= 0 || math.IsNaN(mhz) || math.IsInf(mhz, 0) {
		return nil, ErrZeroPeriod
	}

	period := math.Round(1e6 / mhz)
	if period < 1 {
		return nil, fmt.Errorf("%w: %g MHz is faster than one tick",
			ErrZeroPeriod, mhz)
	}

	return m.MakeClockWithPeriod(name, parent, Tick(period))
}

func (m *ClockManager) add(c *Clock, parent *Clock) error {
	if m.normalized {
		return ErrClocksNormalized
	}

	if _, exists := m.byName[c.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateClock, c.name)
	}

	if c.kind != clockRoot {
		if parent == nil {
			parent = m.root
		}

		if parent == nil {
			return ErrNoRootClock
		}

		if parent.manager != m {
			return fmt.Errorf("sim: parent clock %s belongs to another manager",
				parent.name)
		}

		c.parent = parent
		parent.children = append(parent.children, c)
	}

	c.manager = m
	m.clocks = append(m.clocks, c)
	m.byName[c.name] = c

	return nil
}

// Normalize computes integer periods for all clocks. Every period is first
// expressed as a rational number of root-period units, then all periods are
// scaled by the LCM of the denominators.
func (m *ClockManager) Normalize() error {
	if m.normalized {
		return nil
	}

	if m.root == nil {
		return ErrNoRootClock
	}

	periods := make(map[*Clock]ratio, len(m.clocks))
	scale := uint64(1)

	for _, c := range m.clocks {
		var r ratio

		switch c.kind {
		case clockRoot, clockFixed:
			r = ratio{num: c.fixedPeriod, den: 1}
		case clockRatio:
			var ok bool
			r, ok = periods[c.parent].mul(ratio{num: c.ratioNum, den: c.ratioDen})
			if !ok {
				return fmt.Errorf("%w: clock %s", ErrPeriodOverflow, c.name)
			}
		}

		periods[c] = r

		var ok bool
		scale, ok = lcm(scale, r.den)
		if !ok {
			return fmt.Errorf("%w: clock %s", ErrPeriodOverflow, c.name)
		}
	}

	for _, c := range m.clocks {
		r := periods[c]

		hi, lo := bits.Mul64(r.num, scale/r.den)
		if hi != 0 {
			return fmt.Errorf("%w: clock %s", ErrPeriodOverflow, c.name)
		}

		c.period = Tick(lo)
	}

	m.normalized = true

	return nil
}

type ratio struct {
	num, den uint64
}

func (a ratio) mul(b ratio) (ratio, bool) {
	g1 := gcd(a.num, b.den)
	g2 := gcd(b.num, a.den)

	hiN, num := bits.Mul64(a.num/g1, b.num/g2)
	hiD, den := bits.Mul64(a.den/g2, b.den/g1)

	if hiN != 0 || hiD != 0 {
		return ratio{}, false
	}

	return ratio{num: num, den: den}, true
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

func lcm(a, b uint64) (uint64, bool) {
	g := gcd(a, b)
	if g == 0 {
		return 0, false
	}

	hi, lo := bits.Mul64(a/g, b)
	if hi != 0 {
		return 0, false
	}

	return lo, true
}

func roundUpToPeriod(value, period Tick) (Tick, bool) {
	remainder := value % period
	if remainder == 0 {
		return value, true
	}

	return addTicks(value, period-remainder)
}

func addTicks(a, b Tick) (Tick, bool) {
	if uint64(a) > math.MaxUint64-uint64(b) {
		return MaxTick, false
	}

	return a + b, true
}

func mulTicks(a, b Tick) (Tick, bool) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 {
		return MaxTick, false
	}

	return Tick(lo), true
}

// CeilMultiple returns the smallest multiple of period that is not smaller
// than value.
func CeilMultiple(period, value Tick) Tick {
	t, ok := roundUpToPeriod(value, period)
	if !ok {
		return MaxTick
	}

	return t
}
