package port_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sparta/port"
	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tree"
)

type arrival struct {
	value int
	tick  sim.Tick
}

var _ = Describe("Data ports", func() {
	var (
		root               *tree.Root
		producer, consumer *tree.Node
		sched              *sim.Scheduler
		prodPorts, conPort *port.PortSet
		received           []arrival
	)

	BeforeEach(func() {
		root = tree.NewRoot("top")
		_, err := root.Clocks().MakeRootWithPeriod("clk", 10)
		Expect(err).NotTo(HaveOccurred())
		sched = root.Scheduler()

		producer, err = tree.NewNode(root.Node, "producer", "")
		Expect(err).NotTo(HaveOccurred())
		consumer, err = tree.NewNode(root.Node, "consumer", "")
		Expect(err).NotTo(HaveOccurred())

		Expect(root.EnterConfiguring()).To(Succeed())

		prodPorts = port.NewPortSet(producer)
		conPort = port.NewPortSet(consumer)
		received = nil
	})

	record := func(v int) error {
		received = append(received, arrival{v, sched.CurrentTick()})
		return nil
	}

	It("should deliver after the port delay", func() {
		out := port.NewOutPort[int](prodPorts, "out_data")
		in := port.NewInPort[int](conPort, "in_data", 2)
		in.RegisterHandler(record)
		Expect(port.Bind(out, in)).To(Succeed())
		Expect(root.Finalize()).To(Succeed())

		Expect(out.Send(7, 0)).To(Succeed())
		Expect(out.Send(8, 1)).To(Succeed())
		Expect(in.NumPending()).To(Equal(2))

		Expect(root.Run(sim.MaxTick, false)).To(Succeed())
		Expect(received).To(Equal([]arrival{{7, 20}, {8, 30}}))
		Expect(in.NumReceived()).To(Equal(uint64(2)))
		Expect(out.NumSent()).To(Equal(uint64(2)))
	})

	It("should fan out to every peer", func() {
		out := port.NewOutPort[int](prodPorts, "out_data")
		in1 := port.NewInPort[int](conPort, "in_a", 1)
		in2 := port.NewInPort[int](conPort, "in_b", 3)
		in1.RegisterHandler(record)
		in2.RegisterHandler(record)
		Expect(port.Bind(in1, out)).To(Succeed())
		Expect(port.Bind(out, in2)).To(Succeed())
		Expect(root.Finalize()).To(Succeed())

		Expect(out.Send(1, 0)).To(Succeed())
		Expect(root.Run(sim.MaxTick, false)).To(Succeed())

		Expect(received).To(Equal([]arrival{{1, 10}, {1, 30}}))
	})

	It("should cancel undelivered payloads", func() {
		out := port.NewOutPort[int](prodPorts, "out_data")
		in := port.NewInPort[int](conPort, "in_data", 1)
		in.RegisterHandler(record)
		Expect(port.Bind(out, in)).To(Succeed())
		Expect(root.Finalize()).To(Succeed())

		for i := 0; i < 4; i++ {
			Expect(out.Send(i, sim.Cycle(i))).To(Succeed())
		}

		Expect(out.CancelIf(func(v int) bool { return v == 3 })).To(Equal(1))
		Expect(root.Run(25, false)).To(Succeed())
		Expect(out.Cancel()).To(Equal(1))
		Expect(root.Run(sim.MaxTick, false)).To(Succeed())

		Expect(received).To(Equal([]arrival{{0, 10}, {1, 20}}))
	})

	It("should refuse to send on an unbound port", func() {
		out := port.NewOutPort[int](prodPorts, "out_data")

		Expect(out.Send(1, 0)).To(MatchError(port.ErrUnbound))
	})

	It("should fail a delivery without handler", func() {
		out := port.NewOutPort[int](prodPorts, "out_data")
		in := port.NewInPort[int](conPort, "in_data", 1)
		Expect(port.Bind(out, in)).To(Succeed())
		Expect(root.Finalize()).To(Succeed())

		Expect(out.Send(1, 0)).To(Succeed())
		Expect(root.Run(sim.MaxTick, false)).To(MatchError(port.ErrUnbound))
	})

	It("should check binding rules", func() {
		out := port.NewOutPort[int](prodPorts, "out_data")
		out2 := port.NewOutPort[int](prodPorts, "out_more")
		strOut := port.NewOutPort[string](prodPorts, "out_text")
		in := port.NewInPort[int](conPort, "in_data", 1)
		in2 := port.NewInPort[int](conPort, "in_more", 1)

		Expect(port.Bind(strOut, in)).To(MatchError(port.ErrTypeMismatch))
		Expect(port.Bind(in, in2)).To(MatchError(port.ErrDirectionMismatch))
		Expect(port.Bind(out, in)).To(Succeed())
		Expect(port.Bind(out, in)).To(Succeed())
		Expect(port.Bind(out2, in)).To(MatchError(port.ErrAlreadyBound))
		Expect(out.Peers()).To(HaveLen(1))
		Expect(in.IsBound()).To(BeTrue())
		Expect(in2.IsBound()).To(BeFalse())
	})

	It("should find ports by location", func() {
		port.NewOutPort[int](prodPorts, "out_data")
		in := port.NewInPort[int](conPort, "in_data", 1)

		Expect(in.Location()).To(Equal("top.consumer.ports.in_data"))

		p, err := port.FindPort(root.Node, "top.consumer.ports.in_data")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeIdenticalTo(in))

		_, err = port.FindPort(root.Node, "top.consumer.ports.nothing")
		Expect(err).To(MatchError(port.ErrNotFound))

		Expect(port.BindByLocation(root.Node,
			"top.producer.ports.out_data", "top.consumer.ports.in_data")).
			To(Succeed())
		Expect(in.IsBound()).To(BeTrue())
	})

	It("should deliver zero-cycle payloads in the same tick", func() {
		out := port.NewOutPort[int](prodPorts, "out_data", port.AssumeZeroCycle())
		in := port.NewInPort[int](conPort, "in_data", 0,
			port.WithPhase(sim.PhaseTick))
		in.RegisterHandler(record)

		// The consumer tick event is registered before the producer tick
		// event, so only precedence can put the producer first.
		conTick := sim.NewEvent(consumer.Clock(), "consumer.tick", sim.PhaseTick,
			func() error { return nil })
		consumer.RegisterSchedulable(tree.RoleEvent, conTick)

		value := 0
		prodTick := sim.NewEvent(producer.Clock(), "producer.tick", sim.PhaseTick,
			func() error {
				value++
				return out.Send(value, 0)
			})
		producer.RegisterSchedulable(tree.RoleEvent, prodTick)

		Expect(port.Bind(out, in)).To(Succeed())
		Expect(root.Finalize()).To(Succeed())

		prodTick.ScheduleIn(1)
		conTick.ScheduleIn(1)
		Expect(root.Run(sim.MaxTick, false)).To(Succeed())

		Expect(received).To(Equal([]arrival{{1, 10}}))
	})
})

var _ = Describe("Sync ports", func() {
	var (
		root     *tree.Root
		src, dst *tree.Node
		srcPorts *port.PortSet
		dstPorts *port.PortSet
		out      *port.SyncOutPort[string]
		in       *port.SyncInPort[string]
		got      []sim.Tick
	)

	setup := func(srcMHz, dstMHz float64) {
		root = tree.NewRoot("top")
		clocks := root.Clocks()
		_, err := clocks.MakeRootWithPeriod("root", 1)
		Expect(err).NotTo(HaveOccurred())
		srcClk, err := clocks.MakeClockWithFrequency("core", nil, srcMHz)
		Expect(err).NotTo(HaveOccurred())
		dstClk, err := clocks.MakeClockWithFrequency("bus", nil, dstMHz)
		Expect(err).NotTo(HaveOccurred())

		src, _ = tree.NewNode(root.Node, "core", "")
		dst, _ = tree.NewNode(root.Node, "bus", "")
		src.SetClock(srcClk)
		dst.SetClock(dstClk)
		Expect(root.EnterConfiguring()).To(Succeed())

		srcPorts = port.NewPortSet(src)
		dstPorts = port.NewPortSet(dst)
		out = port.NewSyncOutPort[string](srcPorts, "out_req")
		in = port.NewSyncInPort[string](dstPorts, "in_req")
		in.RegisterHandler(func(string) error {
			got = append(got, root.Scheduler().CurrentTick())
			return nil
		})
		Expect(port.Bind(out, in)).To(Succeed())

		got = nil
	}

	It("should compute arrival ticks", func() {
		Expect(port.ArrivalTick(2500, 3000, 0, 0)).To(Equal(sim.Tick(3000)))
		Expect(port.NextSendTick(2500, 3000)).To(Equal(sim.Tick(5000)))
		Expect(port.ArrivalTick(2500, 3000, 2, 0)).To(Equal(sim.Tick(9000)))
		Expect(port.ArrivalTick(2500, 3000, 1, 1)).To(Equal(sim.Tick(9000)))
		Expect(port.ArrivalTick(10, 10, 3, 0)).To(Equal(sim.Tick(40)))
	})

	It("should cross from 400 MHz to 333.333 MHz", func() {
		setup(400, 333.333)
		Expect(root.Finalize()).To(Succeed())

		Expect(out.Send("a", 0)).To(Succeed())
		Expect(out.NextFreeTick()).To(Equal(sim.Tick(5000)))
		Expect(out.IsDriven(0)).To(BeTrue())
		Expect(out.IsDriven(2)).To(BeFalse())
		Expect(out.ComputeNextAvailableCycleForSend(0)).To(Equal(sim.Cycle(2)))
		Expect(out.ComputeNextAvailableCycleForSend(0)).To(Equal(sim.Cycle(2)))
		Expect(out.ComputeNextAvailableCycleForSend(1)).To(Equal(sim.Cycle(1)))

		var sendErrs []error
		clk := src.Clock()
		sender := sim.NewEvent(clk, "sender", sim.PhaseTick, func() error {
			sendErrs = append(sendErrs, out.Send("b", 0))
			return nil
		})
		sender.ScheduleIn(1)
		sender.ScheduleIn(2)

		Expect(root.Run(sim.MaxTick, false)).To(Succeed())

		Expect(sendErrs).To(HaveLen(2))
		Expect(sendErrs[0]).To(MatchError(port.ErrSendTooEarly))
		Expect(sendErrs[1]).NotTo(HaveOccurred())
		Expect(got).To(Equal([]sim.Tick{3000, 9000}))
	})

	It("should behave like a one-cycle port on equal clocks", func() {
		setup(1000, 1000)
		Expect(root.Finalize()).To(Succeed())

		Expect(out.Send("a", 0)).To(Succeed())
		Expect(out.ComputeNextAvailableCycleForSend(0)).To(Equal(sim.Cycle(1)))
		Expect(root.Run(sim.MaxTick, false)).To(Succeed())

		Expect(got).To(Equal([]sim.Tick{1000}))
	})

	It("should free the port on cancel", func() {
		setup(400, 333.333)
		Expect(root.Finalize()).To(Succeed())

		Expect(out.Send("a", 0)).To(Succeed())
		Expect(out.Cancel()).To(Equal(1))
		Expect(out.IsDriven(0)).To(BeFalse())
		Expect(root.Run(sim.MaxTick, false)).To(Succeed())
		Expect(got).To(BeEmpty())
	})

	It("should reject data in-ports", func() {
		setup(400, 333.333)
		dataIn := port.NewInPort[string](dstPorts, "in_data", 1)

		Expect(port.Bind(out, dataIn)).To(MatchError(port.ErrTypeMismatch))
	})
})
