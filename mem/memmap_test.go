package mem_test

import (
	"bytes"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/sparta/mem"
)

func mustObject(name string, size uint64) *mem.MemoryObject {
	o, err := mem.NewMemoryObject(name, 64, size, 0, 1)
	Expect(err).NotTo(HaveOccurred())

	return o
}

var _ = Describe("SimpleMemoryMap", func() {
	var (
		m                  *mem.SimpleMemoryMap
		m1, m2, m3, m4, m5 *mem.MemoryObject
	)

	BeforeEach(func() {
		m = mem.NewSimpleMemoryMap(64)
		m1 = mustObject("m1", 0x1000)
		m2 = mustObject("m2", 0x1000)
		m3 = mustObject("m3", 0x1000)
		m4 = mustObject("m4", 0x1000)
		m5 = mustObject("m5", 0x1000)
	})

	It("should reject overlaps and accept shared edges", func() {
		Expect(m.AddMapping(0x100, 0x200, m1, 0)).To(Succeed())
		Expect(m.AddMapping(0x500, 0x700, m2, 0)).To(Succeed())
		Expect(m.AddMapping(0x600, 0x640, m3, 0)).To(MatchError(mem.ErrOverlap))
		Expect(m.AddMapping(0x400, 0x500, m5, 0)).To(Succeed())

		Expect(m.FindInterface(0x3ff)).To(BeNil())
		Expect(m.FindInterface(0x500)).To(BeIdenticalTo(m2))
		Expect(m.FindInterface(0x4ff)).To(BeIdenticalTo(m5))
		Expect(m.FindInterface(0x1ff)).To(BeIdenticalTo(m1))
		Expect(m.FindInterface(0x200)).To(BeNil())
		Expect(m.FindInterface(0x700)).To(BeNil())
		Expect(m.NumMappings()).To(Equal(3))
	})

	It("should reject ranges that cover or cut existing mappings", func() {
		Expect(m.AddMapping(0x500, 0x700, m2, 0)).To(Succeed())

		Expect(m.AddMapping(0x400, 0x800, m3, 0)).To(MatchError(mem.ErrOverlap))
		Expect(m.AddMapping(0x6c0, 0x800, m3, 0)).To(MatchError(mem.ErrOverlap))
		Expect(m.AddMapping(0x400, 0x540, m3, 0)).To(MatchError(mem.ErrOverlap))
		Expect(m.AddMapping(0x700, 0x800, m4, 0)).To(Succeed())
	})

	It("should validate new mappings", func() {
		Expect(m.AddMapping(0x10, 0x100, m1, 0)).To(MatchError(mem.ErrUnaligned))
		Expect(m.AddMapping(0x100, 0x100, m1, 0)).To(MatchError(mem.ErrEmptyRange))
		Expect(m.AddMapping(0x100, 0x80, m1, 0)).To(MatchError(mem.ErrEmptyRange))
		Expect(m.AddMapping(0, 0x2000, m1, 0)).To(MatchError(mem.ErrNoRoom))
		Expect(m.AddMapping(0, 0x100, m1, 0xf40)).To(MatchError(mem.ErrNoRoom))

		other, err := mem.NewMemoryObject("wide", 128, 0x1000, 0, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.AddMapping(0, 0x100, other, 0)).To(MatchError(mem.ErrBlockSizeDiffers))
	})

	It("should map addresses with the destination offset", func() {
		Expect(m.AddMapping(0x1000, 0x1400, m1, 0x800)).To(Succeed())

		dest, addr, ok := m.MapAddress(0x1010)
		Expect(ok).To(BeTrue())
		Expect(dest).To(BeIdenticalTo(m1))
		Expect(addr).To(Equal(uint64(0x810)))

		_, _, ok = m.MapAddress(0x1400)
		Expect(ok).To(BeFalse())
	})

	It("should find every mapping among many", func() {
		objs := make([]*mem.MemoryObject, 64)
		for i := range objs {
			objs[i] = mustObject(fmt.Sprintf("o%d", i), 0x100)
		}

		// Insert out of order to exercise the rotations.
		for i := 0; i < 64; i++ {
			j := (i * 37) % 64
			start := uint64(j) * 0x200
			Expect(m.AddMapping(start, start+0x100, objs[j], 0)).To(Succeed())
		}

		for j := 0; j < 64; j++ {
			start := uint64(j) * 0x200
			Expect(m.FindInterface(start)).To(BeIdenticalTo(objs[j]))
			Expect(m.FindInterface(start + 0xff)).To(BeIdenticalTo(objs[j]))
			Expect(m.FindInterface(start + 0x100)).To(BeNil())
		}

		mappings := m.Mappings()
		Expect(mappings).To(HaveLen(64))
		for j := 1; j < 64; j++ {
			Expect(mappings[j].Start).To(BeNumerically(">", mappings[j-1].Start))
		}
	})

	It("should dump the mappings in order", func() {
		Expect(m.AddMapping(0x500, 0x700, m2, 0)).To(Succeed())
		Expect(m.AddMapping(0x100, 0x200, m1, 0x40)).To(Succeed())

		var buf bytes.Buffer
		Expect(m.Dump(&buf)).To(Succeed())

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		Expect(lines).To(HaveLen(3))
		Expect(string(lines[1])).To(MatchRegexp(`^0x100\s+0x200\s+m1\s+0x40$`))
		Expect(string(lines[2])).To(MatchRegexp(`^0x500\s+0x700\s+m2\s+0x0$`))
	})
})

var _ = Describe("SimpleMemoryMapNode", func() {
	var (
		node   *mem.SimpleMemoryMapNode
		ram    *mem.MemoryObject
		rom    *mem.MemoryObjectNode
		writes []*mem.WriteAccess
	)

	BeforeEach(func() {
		node = mem.NewSimpleMemoryMapNode("bus", 64, 0x10000)
		ram = mustObject("ram", 0x1000)

		var err error
		rom, err = mem.NewMemoryObjectNode("rom", 64, 0x1000, 0xee, 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(node.AddMapping(0x0, 0x1000, ram, 0)).To(Succeed())
		Expect(node.AddMapping(0x1000, 0x2000, rom, 0)).To(Succeed())

		writes = nil
		rom.AcceptHook(&mem.Observer{PostWrite: func(a *mem.WriteAccess) {
			writes = append(writes, a)
		}})
	})

	It("should send accesses to the mapping", func() {
		sup := &mem.Supplement{In: 1}
		Expect(mem.Write(node, 0x1008, []byte{1, 2}, sup)).To(Succeed())

		Expect(writes).To(HaveLen(1))
		Expect(writes[0].Addr).To(Equal(uint64(0x8)))
		Expect(writes[0].Prior).To(Equal([]byte{0xee, 0xee}))
		Expect(writes[0].Supplement).To(BeIdenticalTo(sup))

		viaMap := make([]byte, 4)
		direct := make([]byte, 4)
		Expect(mem.Read(node, 0x1008, viaMap, nil)).To(Succeed())
		Expect(mem.Read(rom, 0x8, direct, nil)).To(Succeed())
		Expect(viaMap).To(Equal(direct))
		Expect(node.NumReads()).To(Equal(uint64(1)))
	})

	It("should reject unmapped accesses", func() {
		err := mem.Read(node, 0x3000, make([]byte, 4), nil)
		Expect(err).To(MatchError(mem.ErrNoMapping))
	})

	It("should reject accesses that span mappings", func() {
		err := mem.Peek(node, 0xffe, make([]byte, 4))
		Expect(err).To(MatchError(mem.ErrMappingSpan))
	})

	It("should reject accesses beyond the map", func() {
		err := mem.Peek(node, 0xfffe, make([]byte, 4))
		Expect(err).To(MatchError(mem.ErrOutOfRange))
	})

	It("should hand out DMIs in the map address space", func() {
		dmi, err := node.GetDMI(0x1044)
		Expect(err).NotTo(HaveOccurred())
		Expect(dmi.Start()).To(Equal(uint64(0x1040)))

		Expect(dmi.Write(0x1044, []byte{9})).To(Succeed())

		buf := make([]byte, 1)
		Expect(mem.Peek(rom, 0x44, buf)).To(Succeed())
		Expect(buf).To(Equal([]byte{9}))

		rom.Object.InvalidateAllDMIs()
		Expect(dmi.IsValid()).To(BeFalse())

		_, err = node.GetDMI(0x5000)
		Expect(err).To(MatchError(mem.ErrNoMapping))
	})
})
