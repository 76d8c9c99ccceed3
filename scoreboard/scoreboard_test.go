package scoreboard_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sparta/param"
	"github.com/sarchlab/sparta/scoreboard"
	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tree"
)

var forwarding = [][]string{
	{"", "ALU0", "ALU1", "FPU"},
	{"ALU0", "0", "1", "3"},
	{"ALU1", "1", "0", "3"},
	{"FPU", "3", "3", "none"},
}

type readyAt struct {
	unit string
	tick sim.Tick
}

var _ = Describe("Scoreboard", func() {
	var (
		sched      *sim.Scheduler
		clk        *sim.Clock
		sb         *scoreboard.Scoreboard
		alu0, alu1 *scoreboard.View
		fpu        *scoreboard.View
		fired      []readyAt
		r5, r6, r7 scoreboard.BitMask
		issueAt    func(cycle sim.Cycle, fn func())
	)

	BeforeEach(func() {
		sched = sim.NewScheduler()
		clocks := sim.NewClockManager(sched)
		clk, _ = clocks.MakeRoot("core")
		Expect(clocks.Normalize()).To(Succeed())

		m, err := scoreboard.ParseTable(forwarding)
		Expect(err).NotTo(HaveOccurred())
		sb = scoreboard.New("int_rf", m)

		alu0, err = scoreboard.NewView(sb, "ALU0", clk)
		Expect(err).NotTo(HaveOccurred())
		alu1, err = scoreboard.NewView(sb, "ALU1", clk)
		Expect(err).NotTo(HaveOccurred())
		fpu, err = scoreboard.NewView(sb, "FPU", clk)
		Expect(err).NotTo(HaveOccurred())

		fired = nil
		r5 = scoreboard.MaskOf(5)
		r6 = scoreboard.MaskOf(6)
		r7 = scoreboard.MaskOf(7)

		issueAt = func(cycle sim.Cycle, fn func()) {
			sim.NewEvent(clk, "issue", sim.PhaseTick, func() error {
				fn()
				return nil
			}).ScheduleIn(cycle)
		}
	})

	record := func(unit string) func(scoreboard.BitMask) {
		return func(scoreboard.BitMask) {
			fired = append(fired, readyAt{unit, sched.CurrentTick()})
		}
	}

	It("should forward with the tabulated latencies", func() {
		alu0.RegisterReadyCallback(r5, 1, record("ALU0"))
		alu1.RegisterReadyCallback(r5, 1, record("ALU1"))
		fpu.RegisterReadyCallback(r5, 2, record("FPU"))

		issueAt(100, func() {
			Expect(sb.SetFrom(r5, "ALU0")).To(Succeed())
			Expect(alu0.IsSet(r5)).To(BeTrue())
			Expect(alu1.IsSet(r5)).To(BeFalse())
		})

		Expect(sched.Run(sim.MaxTick, false)).To(Succeed())

		Expect(fired).To(Equal([]readyAt{
			{"ALU0", 100}, {"ALU1", 101}, {"FPU", 103},
		}))
		Expect(sb.Ready().Has(5)).To(BeTrue())
		Expect(fpu.NumCallbacks()).To(BeZero())
	})

	It("should not forward without a path", func() {
		Expect(sb.SetFrom(r6, "FPU")).To(Succeed())
		Expect(sched.Run(sim.MaxTick, false)).To(Succeed())

		Expect(fpu.IsSet(r6)).To(BeFalse())
		Expect(alu0.IsSet(r6)).To(BeTrue())
		Expect(sb.Ready().Has(6)).To(BeTrue())
	})

	It("should set every view right away", func() {
		alu1.RegisterReadyCallback(r5.Or(r6), 1, record("ALU1"))

		sb.Set(r5)
		Expect(fired).To(BeEmpty())

		sb.Set(r6)
		Expect(fired).To(HaveLen(1))
		Expect(fpu.IsSet(r5.Or(r6))).To(BeTrue())
	})

	It("should fire callbacks in registration order", func() {
		var order []uint64
		for id := uint64(1); id <= 3; id++ {
			id := id
			alu0.RegisterReadyCallback(r7, id, func(scoreboard.BitMask) {
				order = append(order, id)
			})
		}

		alu0.RegisterReadyCallback(r5, 9, func(scoreboard.BitMask) {
			order = append(order, 9)
		})

		alu0.SetReady(r7)

		Expect(order).To(Equal([]uint64{1, 2, 3}))
		Expect(alu0.NumCallbacks()).To(Equal(1))
		Expect(alu1.IsSet(r7)).To(BeFalse())
	})

	It("should drop the callbacks of flushed instructions", func() {
		alu0.RegisterReadyCallback(r5, 1, record("a"))
		alu0.RegisterReadyCallback(r6, 2, record("b"))
		alu0.RegisterReadyCallback(r7, 1, record("c"))

		Expect(alu0.ClearCallbacks(1)).To(Equal(2))

		sb.Set(r5.Or(r6).Or(r7))
		Expect(fired).To(Equal([]readyAt{{"b", 0}}))
	})

	It("should skip ready callbacks cleared by an earlier handler", func() {
		alu0.RegisterReadyCallback(r5, 1, func(scoreboard.BitMask) {
			fired = append(fired, readyAt{"flush", sched.CurrentTick()})
			Expect(alu0.ClearCallbacks(2)).To(Equal(2))
		})
		alu0.RegisterReadyCallback(r5, 2, record("younger"))
		alu0.RegisterReadyCallback(r6, 2, record("never"))
		alu0.RegisterReadyCallback(r5, 3, record("other"))

		alu0.SetReady(r5)
		alu0.SetReady(r6)

		Expect(fired).To(Equal([]readyAt{{"flush", 0}, {"other", 0}}))
		Expect(alu0.NumCallbacks()).To(BeZero())
	})

	It("should clear registers everywhere", func() {
		sb.Set(r5.Or(r6))
		sb.Clear(r5)

		Expect(sb.Ready().Has(5)).To(BeFalse())
		Expect(alu0.IsSet(r5)).To(BeFalse())
		Expect(fpu.IsSet(r6)).To(BeTrue())
	})

	It("should seed new views with the ready registers", func() {
		sb.Set(r6)

		late, err := scoreboard.NewView(sb, "FPU", clk)
		Expect(err).NotTo(HaveOccurred())
		Expect(late.IsSet(r6)).To(BeTrue())
		Expect(late.ID()).To(Equal(3))
	})

	It("should reject unknown units", func() {
		_, err := scoreboard.NewView(sb, "LSU", clk)
		Expect(err).To(MatchError(scoreboard.ErrUnknownUnit))

		Expect(sb.SetFrom(r5, "LSU")).To(MatchError(scoreboard.ErrUnknownUnit))
	})

	It("should cancel updates in flight", func() {
		issueAt(1, func() {
			Expect(sb.SetFrom(r5, "ALU0")).To(Succeed())
			Expect(fpu.NumPendingUpdates()).To(Equal(1))
			Expect(fpu.CancelPending()).To(Equal(1))
		})

		Expect(sched.Run(sim.MaxTick, false)).To(Succeed())
		Expect(fpu.IsSet(r5)).To(BeFalse())
		Expect(alu1.IsSet(r5)).To(BeTrue())
	})
})

var _ = Describe("Scoreboard factory", func() {
	It("should build the scoreboard from parameters", func() {
		root := tree.NewRoot("top")
		_, err := root.Clocks().MakeRoot("clk")
		Expect(err).NotTo(HaveOccurred())
		Expect(root.RegisterFactory(scoreboard.Factory)).To(Succeed())

		_, err = tree.NewResourceNode(root.Node, "sb", "scoreboard", "")
		Expect(err).NotTo(HaveOccurred())

		overlay := param.NewTree()
		overlay.Set("top.sb.latency_matrix", "[[, A, B], [A, 0, 2], [B, 1, -]]")
		Expect(root.SetOverlay(overlay)).To(Succeed())

		Expect(root.EnterConfiguring()).To(Succeed())
		Expect(root.Finalize()).To(Succeed())

		n, _ := root.GetChild("sb")
		sb, ok := tree.ResourceAs[*scoreboard.Scoreboard](n)
		Expect(ok).To(BeTrue())

		l, ok := sb.Matrix().Latency("A", "B")
		Expect(ok).To(BeTrue())
		Expect(l).To(Equal(sim.Cycle(2)))

		_, ok = sb.Matrix().Latency("B", "B")
		Expect(ok).To(BeFalse())
	})

	It("should reject a matrix with mismatched axes", func() {
		root := tree.NewRoot("top")
		Expect(root.RegisterFactory(scoreboard.Factory)).To(Succeed())
		_, err := tree.NewResourceNode(root.Node, "sb", "scoreboard", "")
		Expect(err).NotTo(HaveOccurred())

		overlay := param.NewTree()
		overlay.Set("top.sb.latency_matrix", "[[, A, B], [B, 0, 2], [A, 1, 0]]")
		Expect(root.SetOverlay(overlay)).To(Succeed())

		Expect(root.EnterConfiguring()).To(MatchError(param.ErrValidation))
	})
})
