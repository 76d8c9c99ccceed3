package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sparta/mem"
	"github.com/sarchlab/sparta/param"
	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tree"
)

var _ = Describe("Monitor", func() {
	var (
		root *tree.Root
		m    *Monitor
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		root = tree.NewRoot("top")
		_, err := root.Clocks().MakeRoot("clk")
		Expect(err).NotTo(HaveOccurred())
		Expect(root.RegisterFactory(mem.MemoryObjectFactory)).To(Succeed())

		memNode, err := tree.NewNode(root.Node, "mem", "memories")
		Expect(err).NotTo(HaveOccurred())
		_, err = tree.NewResourceNode(memNode, "dram", "memory_object", "main memory")
		Expect(err).NotTo(HaveOccurred())

		overlay := param.NewTree()
		overlay.Set("top.mem.dram.size", "0x1000")
		Expect(root.SetOverlay(overlay)).To(Succeed())
		Expect(root.EnterConfiguring()).To(Succeed())
		Expect(root.Finalize()).To(Succeed())

		m = NewMonitor()
		m.RegisterRoot(root)
	})

	It("should report the current tick", func() {
		clk := root.Clocks().Root()
		ev := sim.NewEvent(clk, "top.step", sim.PhaseTick, func() error {
			return nil
		})
		ev.ScheduleIn(3)
		Expect(root.Run(sim.MaxTick, false)).To(Succeed())

		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		rsp := nowRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Now).To(Equal(clk.CycleToTick(3)))
		Expect(rsp.Fired).To(Equal(uint64(1)))
		Expect(rsp.Paused).To(BeFalse())
	})

	It("should pause and continue the scheduler", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(root.Scheduler().IsPaused()).To(BeTrue())

		rsp := nowRsp{}
		Expect(json.Unmarshal(get("/api/now").Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Paused).To(BeTrue())

		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
		Expect(root.Scheduler().IsPaused()).To(BeFalse())
	})

	It("should list the device tree", func() {
		rec := get("/api/tree")

		rsp := treeNodeRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Name).To(Equal("top"))
		Expect(rsp.Children).To(HaveLen(1))

		dram := rsp.Children[0].Children[0]
		Expect(dram.Location).To(Equal("top.mem.dram"))
		Expect(dram.Factory).To(Equal("memory_object"))
		Expect(dram.Clock).To(Equal("clk"))
	})

	It("should list the parameters of a node", func() {
		rec := get("/api/params/top.mem.dram")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var rsp []paramRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		byName := map[string]paramRsp{}
		for _, p := range rsp {
			byName[p.Location] = p
		}

		Expect(byName).To(HaveKey("top.mem.dram.size"))
		Expect(byName["top.mem.dram.size"].Value).To(Equal("4096"))
		Expect(byName["top.mem.dram.size"].Reads).To(BeNumerically(">", 0))
	})

	It("should return 404 for unknown nodes", func() {
		Expect(get("/api/params/top.mem.flash").Code).
			To(Equal(http.StatusNotFound))
		Expect(get("/api/node/elsewhere.dram").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should serialize the resource of a node", func() {
		rec := get("/api/node/top.mem.dram")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should reject a malformed field request", func() {
		rec := get("/api/field/" + url.PathEscape("{not json"))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("instructions", 10)
		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)

		var rsp []progressBarRsp
		Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &rsp)).
			To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("instructions"))
		Expect(rsp[0].Finished).To(Equal(uint64(3)))
		Expect(rsp[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(Equal("[]"))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Sparta Monitor"))
	})

	It("should serve on a random port", func() {
		u, err := m.WithPortNumber(80).StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer m.StopServer()

		Expect(u).To(HavePrefix("http://localhost:"))

		rsp, err := http.Get(u + "/api/tree")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
