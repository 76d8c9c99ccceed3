package tracing

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sparta/datarecording"
	"github.com/sarchlab/sparta/sim"
)

var _ = Describe("Reading recorded events", func() {
	var (
		clk    *sim.Clock
		reader *datarecording.Reader
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		sched := sim.NewScheduler()
		clocks := sim.NewClockManager(sched)
		clk, _ = clocks.MakeRoot("core_clk")
		Expect(clocks.Normalize()).To(Succeed())

		name := filepath.Join(GinkgoT().TempDir(), "trace")
		recorder := datarecording.NewWithDriver(name, datarecording.DriverPureGo)
		tracer := NewEventTracer(recorder)
		CollectTrace(sched, tracer)

		noop := func() error { return nil }
		alu := sim.NewEvent(clk, "top.alu.complete", sim.PhaseTick, noop)
		lsu := sim.NewEvent(clk, "top.lsu.commit", sim.PhaseUpdate, noop)
		for c := sim.Cycle(1); c <= 4; c++ {
			alu.ScheduleIn(c)
		}
		lsu.ScheduleIn(2)

		Expect(sched.RunUntilDone()).To(Succeed())
		tracer.Terminate()
		Expect(recorder.Close()).To(Succeed())

		var err error
		reader, err = datarecording.OpenReaderWithDriver(
			name+datarecording.FileExtension, datarecording.DriverPureGo)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(reader.Close)
	})

	It("should read every firing in firing order", func() {
		recs, total, err := ReadEvents(ctx, reader, EventQuery{})

		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(5))
		Expect(recs[1].Event).To(Equal("top.lsu.commit"))
		Expect(recs[1].Phase).To(Equal("Update"))
		Expect(recs[2].Event).To(Equal("top.alu.complete"))
		Expect(recs[2].Tick).To(Equal(uint64(clk.CycleToTick(2))))
	})

	It("should filter by name, phase and tick", func() {
		recs, total, err := ReadEvents(ctx, reader, EventQuery{
			Event: "*.alu.*",
			From:  clk.CycleToTick(2),
			To:    clk.CycleToTick(4),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))
		Expect(recs[0].Tick).To(Equal(uint64(clk.CycleToTick(2))))
		Expect(recs[1].Tick).To(Equal(uint64(clk.CycleToTick(3))))

		recs, _, err = ReadEvents(ctx, reader, EventQuery{
			Phase:    "update",
			Location: "top.lsu",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))

		_, _, err = ReadEvents(ctx, reader, EventQuery{Phase: "Decode"})
		Expect(err).To(HaveOccurred())
	})

	It("should page through the firings", func() {
		recs, total, err := ReadEvents(ctx, reader,
			EventQuery{Event: "top.alu.complete", Limit: 2, Offset: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(4))
		Expect(recs).To(HaveLen(2))
		Expect(recs[0].Tick).To(Equal(uint64(clk.CycleToTick(2))))
	})

	It("should replay firings into a counter", func() {
		recs, _, err := ReadEvents(ctx, reader, EventQuery{})
		Expect(err).NotTo(HaveOccurred())

		c := NewPhaseCounter()
		Expect(Replay(recs, c)).To(Succeed())

		Expect(c.Count(sim.PhaseTick)).To(Equal(uint64(4)))
		Expect(c.Count(sim.PhaseUpdate)).To(Equal(uint64(1)))
		Expect(c.EventCount("top.lsu.commit")).To(Equal(uint64(1)))
	})
})
