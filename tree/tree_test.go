package tree_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sparta/param"
	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tree"
)

type alu struct {
	latency int64
	tick    *sim.Event
	bound   bool
}

func aluFactory(log *[]string) *tree.Factory {
	return &tree.Factory{
		TypeName: "alu",
		ParamsFunc: func(location string) *param.Set {
			s := param.NewSet(location)
			param.New(s, "latency", int64(1), "result latency").Lock()
			return s
		},
		CreateFunc: func(n *tree.Node) (any, error) {
			p, _ := param.Lookup[int64](n.Params(), "latency")
			a := &alu{latency: p.Get()}
			a.tick = sim.NewEvent(n.Clock(), n.Location()+".tick", sim.PhaseTick,
				func() error { return nil })
			n.RegisterSchedulable(tree.RoleEvent, a.tick)
			*log = append(*log, "create "+n.Location())
			return a, nil
		},
		EarlyFunc: func(n *tree.Node) error {
			*log = append(*log, "early "+n.Location())
			return nil
		},
		LateFunc: func(n *tree.Node) error {
			a, _ := tree.ResourceAs[*alu](n)
			a.bound = true
			*log = append(*log, "late "+n.Location())
			return nil
		},
		DestroyFunc: func(n *tree.Node) error {
			*log = append(*log, "destroy "+n.Location())
			return nil
		},
	}
}

var _ = Describe("Tree", func() {
	var (
		root *tree.Root
		cpu  *tree.Node
		log  []string
	)

	BeforeEach(func() {
		log = nil
		root = tree.NewRoot("top")
		_, err := root.Clocks().MakeRoot("root_clk")
		Expect(err).NotTo(HaveOccurred())
		Expect(root.RegisterFactory(aluFactory(&log))).To(Succeed())

		cpu, err = tree.NewNode(root.Node, "cpu", "the processor")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should build dotted locations", func() {
		core, err := tree.NewNode(cpu, "core0", "")
		Expect(err).NotTo(HaveOccurred())

		lsu, err := tree.NewNode(core, "lsu", "")
		Expect(err).NotTo(HaveOccurred())

		Expect(lsu.Location()).To(Equal("top.cpu.core0.lsu"))
		Expect(lsu.Root()).To(BeIdenticalTo(root))
		Expect(lsu.Parent()).To(BeIdenticalTo(core))
	})

	It("should reject duplicated children", func() {
		_, err := tree.NewNode(root.Node, "cpu", "")

		Expect(err).To(MatchError(tree.ErrDuplicateChild))
	})

	It("should reject invalid names", func() {
		_, err := tree.NewNode(cpu, "a.b", "")

		Expect(err).To(HaveOccurred())
	})

	It("should look up children", func() {
		for _, name := range []string{"core0", "core1", "l2"} {
			n, err := tree.NewNode(cpu, name, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = tree.NewNode(n, "lsu", "")
			Expect(err).NotTo(HaveOccurred())
		}

		lsu, err := root.GetChild("cpu.core1.lsu")
		Expect(err).NotTo(HaveOccurred())
		Expect(lsu.Location()).To(Equal("top.cpu.core1.lsu"))

		_, err = root.GetChild("cpu.core2")
		Expect(err).To(MatchError(tree.ErrMissingChild))

		found, err := root.FindChildren("cpu.core*.lsu")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))
		Expect(found[0].Location()).To(Equal("top.cpu.core0.lsu"))

		_, err = root.FindChildren("cpu.gpu*")
		Expect(err).To(MatchError(tree.ErrNoMatch))
	})

	It("should find nodes by tag", func() {
		a, _ := tree.NewNode(cpu, "a", "")
		b, _ := tree.NewNode(a, "b", "")
		Expect(a.AddTag("mem")).To(Succeed())
		Expect(b.AddTag("mem")).To(Succeed())
		Expect(b.AddTag("cache")).To(Succeed())

		Expect(root.FindByTag("mem")).To(Equal([]*tree.Node{a, b}))
		Expect(b.Tags()).To(Equal([]string{"cache", "mem"}))
	})

	It("should inherit clocks", func() {
		fast, err := root.Clocks().MakeClock("fast", nil, 1, 2)
		Expect(err).NotTo(HaveOccurred())
		core, _ := tree.NewNode(cpu, "core", "")
		cpu.SetClock(fast)

		Expect(core.Clock()).To(BeIdenticalTo(fast))
		Expect(root.Clock()).To(BeIdenticalTo(root.Clocks().Root()))
	})

	It("should reject cyclic reparenting", func() {
		a, _ := tree.NewNode(cpu, "a", "")
		b, _ := tree.NewNode(a, "b", "")

		Expect(a.Reparent(b)).To(MatchError(tree.ErrCyclicReparent))

		other, _ := tree.NewNode(root.Node, "other", "")
		Expect(b.Reparent(other)).To(Succeed())
		Expect(b.Location()).To(Equal("top.other.b"))
		Expect(a.Children()).To(BeEmpty())
	})

	It("should enforce phases", func() {
		Expect(root.EnterConfiguring()).To(Succeed())

		_, err := tree.NewNode(cpu, "late", "")

		var phaseErr *tree.PhaseError
		Expect(errors.As(err, &phaseErr)).To(BeTrue())
		Expect(phaseErr.Phase).To(Equal(tree.Configuring))
		Expect(root.Run(10, false)).To(HaveOccurred())
	})

	It("should reject unknown factories", func() {
		_, err := tree.NewResourceNode(cpu, "fpu", "fpu", "")

		Expect(err).To(MatchError(tree.ErrUnknownFactory))
	})

	Context("with resources", func() {
		var alu0, alu1 *tree.Node

		BeforeEach(func() {
			var err error
			alu0, err = tree.NewResourceNode(cpu, "alu0", "alu", "")
			Expect(err).NotTo(HaveOccurred())
			alu1, err = tree.NewResourceNode(cpu, "alu1", "alu", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should run the lifecycle in order", func() {
			arch := param.NewTree()
			arch.Set("top.cpu.alu*.latency", "3")
			config := param.NewTree()
			config.Set("top.cpu.alu1.latency", "5")
			Expect(root.SetOverlay(param.NewLayeredTree(arch, config))).
				To(Succeed())

			Expect(root.EnterConfiguring()).To(Succeed())
			Expect(root.Finalize()).To(Succeed())
			Expect(root.Phase()).To(Equal(tree.Finalized))

			a0, ok := tree.ResourceAs[*alu](alu0)
			Expect(ok).To(BeTrue())
			Expect(a0.latency).To(Equal(int64(3)))
			Expect(a0.bound).To(BeTrue())

			a1, _ := tree.ResourceAs[*alu](alu1)
			Expect(a1.latency).To(Equal(int64(5)))
			Expect(tree.FindResources[*alu](root.Node)).To(HaveLen(2))

			Expect(root.EnterTeardown()).To(Succeed())
			Expect(log).To(Equal([]string{
				"create top.cpu.alu0", "create top.cpu.alu1",
				"early top.cpu.alu0", "early top.cpu.alu1",
				"late top.cpu.alu0", "late top.cpu.alu1",
				"destroy top.cpu.alu1", "destroy top.cpu.alu0",
			}))
		})

		It("should accept a key overridden from the command line", func() {
			config := param.NewTree()
			config.Set("top.cpu.alu0.latency", "2")
			Expect(config.SetAssignment("top.cpu.alu0.latency=5")).To(Succeed())
			Expect(root.SetOverlay(config)).To(Succeed())

			Expect(root.EnterConfiguring()).To(Succeed())
			Expect(root.Finalize()).To(Succeed())

			a0, _ := tree.ResourceAs[*alu](alu0)
			Expect(a0.latency).To(Equal(int64(5)))
		})

		It("should lock parameters once configuring starts", func() {
			Expect(root.EnterConfiguring()).To(Succeed())

			latency, ok := param.Lookup[int64](alu0.Params(), "latency")
			Expect(ok).To(BeTrue())
			Expect(latency.Set(7)).To(MatchError(param.ErrLocked))
			Expect(latency.Peek()).To(Equal(int64(1)))
		})

		It("should report unknown overlay keys", func() {
			config := param.NewTree()
			config.Set("top.cpu.alu0.latncy", "2")
			Expect(root.SetOverlay(config)).To(Succeed())

			Expect(root.EnterConfiguring()).To(Succeed())
			Expect(root.Finalize()).To(MatchError(param.ErrUnknownKey))
		})

		It("should report unread parameters", func() {
			n, err := tree.NewNode(cpu, "plain", "")
			Expect(err).NotTo(HaveOccurred())
			param.New(n.Params(), "forgotten", true, "")

			Expect(root.EnterConfiguring()).To(Succeed())
			err = root.Finalize()
			Expect(err).To(MatchError(param.ErrUnread))
			Expect(err.Error()).To(ContainSubstring("top.cpu.plain.forgotten"))
		})

		It("should dump parameters", func() {
			Expect(root.EnterConfiguring()).To(Succeed())
			Expect(root.Finalize()).To(Succeed())

			buf := new(bytes.Buffer)
			Expect(root.DumpParameters(buf)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("top.cpu.alu1.latency"))
		})
	})

	It("should wrap factory errors with the node location", func() {
		boom := errors.New("boom")
		Expect(root.RegisterFactory(&tree.Factory{
			TypeName:   "broken",
			CreateFunc: func(*tree.Node) (any, error) { return nil, boom },
		})).To(Succeed())
		_, err := tree.NewResourceNode(cpu, "bad", "broken", "")
		Expect(err).NotTo(HaveOccurred())

		Expect(root.EnterConfiguring()).To(Succeed())
		err = root.Finalize()

		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("top.cpu.bad"))
	})

	It("should order in-ports, tick events and out-ports", func() {
		Expect(root.EnterConfiguring()).To(Succeed())
		clk := root.Clocks().Root()
		Expect(root.Clocks().Normalize()).To(Succeed())

		var order []string
		rec := func(s string) func() error {
			return func() error { order = append(order, s); return nil }
		}

		out := sim.NewEvent(clk, "out", sim.PhaseTick, rec("out"))
		tick := sim.NewEvent(clk, "tick", sim.PhaseTick, rec("tick"))
		in := sim.NewEvent(clk, "in", sim.PhaseTick, rec("in"))
		cpu.RegisterSchedulable(tree.RoleOutPort, out)
		cpu.RegisterSchedulable(tree.RoleEvent, tick)
		cpu.RegisterSchedulable(tree.RoleInPort, in)

		Expect(root.Finalize()).To(Succeed())

		out.ScheduleIn(1)
		tick.ScheduleIn(1)
		in.ScheduleIn(1)
		Expect(root.Run(sim.MaxTick, false)).To(Succeed())
		Expect(order).To(Equal([]string{"in", "tick", "out"}))
	})
})
