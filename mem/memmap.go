package mem

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// A Mapping sends the addresses [Start, End) to Dest, starting at
// DestOffset.
type Mapping struct {
	Start, End uint64
	Dest       BlockingMemoryIF
	DestOffset uint64
}

// Contains tells if the mapping covers addr.
func (m *Mapping) Contains(addr uint64) bool {
	return addr >= m.Start && addr < m.End
}

// Map returns the destination address of addr.
func (m *Mapping) Map(addr uint64) uint64 {
	return addr - m.Start + m.DestOffset
}

func (m *Mapping) String() string {
	return fmt.Sprintf("[0x%x, 0x%x) -> %s @ 0x%x",
		m.Start, m.End, m.Dest.Name(), m.DestOffset)
}

// SimpleMemoryMap finds the destination of an address among disjoint,
// block-aligned mappings.
type SimpleMemoryMap struct {
	blockSize   uint64
	separators  separatorTree
	numMappings int
}

// NewSimpleMemoryMap creates an empty map. The block size must be a power
// of two.
func NewSimpleMemoryMap(blockSize uint64) *SimpleMemoryMap {
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		panic(fmt.Sprintf("mem: block size %d is not a power of two", blockSize))
	}

	return &SimpleMemoryMap{blockSize: blockSize}
}

// BlockSize returns the alignment of the mappings.
func (m *SimpleMemoryMap) BlockSize() uint64 { return m.blockSize }

// NumMappings returns the number of mappings.
func (m *SimpleMemoryMap) NumMappings() int { return m.numMappings }

// AddMapping maps [start, end) to dest at destOffset. The range must be
// block aligned, non-empty, free, and must fit in dest.
func (m *SimpleMemoryMap) AddMapping(
	start, end uint64,
	dest BlockingMemoryIF,
	destOffset uint64,
) error {
	fail := func(reason error, detail string) error {
		return &MappingError{Start: start, End: end, Reason: reason, Detail: detail}
	}

	mask := m.blockSize - 1
	if start&mask != 0 || end&mask != 0 || destOffset&mask != 0 {
		return fail(ErrUnaligned, fmt.Sprintf("block size %d", m.blockSize))
	}

	if end <= start {
		return fail(ErrEmptyRange, "")
	}

	if dest.BlockSize() != m.blockSize {
		return fail(ErrBlockSizeDiffers, fmt.Sprintf("%s uses %d, map uses %d",
			dest.Name(), dest.BlockSize(), m.blockSize))
	}

	if destOffset+(end-start) > dest.Size() || destOffset+(end-start) < destOffset {
		return fail(ErrNoRoom, fmt.Sprintf("%s holds 0x%x bytes", dest.Name(), dest.Size()))
	}

	if other := m.overlapping(start, end); other != nil {
		return fail(ErrOverlap, other.String())
	}

	mapping := &Mapping{Start: start, End: end, Dest: dest, DestOffset: destOffset}

	if n, added := m.separators.insert(start, mapping); !added {
		n.mapping = mapping
	}

	m.separators.insert(end, nil)
	m.numMappings++

	return nil
}

func (m *SimpleMemoryMap) overlapping(start, end uint64) *Mapping {
	if f := m.separators.floor(start); f != nil && f.mapping != nil && f.mapping.End > start {
		return f.mapping
	}

	for n := m.separators.ceiling(start); n != nil && n.key < end; n = successor(n) {
		if n.mapping != nil {
			return n.mapping
		}
	}

	return nil
}

// FindMapping returns the mapping that covers addr, or nil.
func (m *SimpleMemoryMap) FindMapping(addr uint64) *Mapping {
	n := m.separators.floor(addr)
	if n == nil || n.mapping == nil || !n.mapping.Contains(addr) {
		return nil
	}

	return n.mapping
}

// FindInterface returns the destination of addr, or nil.
func (m *SimpleMemoryMap) FindInterface(addr uint64) BlockingMemoryIF {
	if mapping := m.FindMapping(addr); mapping != nil {
		return mapping.Dest
	}

	return nil
}

// MapAddress returns the destination and the destination address of addr.
func (m *SimpleMemoryMap) MapAddress(addr uint64) (BlockingMemoryIF, uint64, bool) {
	mapping := m.FindMapping(addr)
	if mapping == nil {
		return nil, 0, false
	}

	return mapping.Dest, mapping.Map(addr), true
}

// mapRange finds the single mapping that holds [addr, addr+size).
func (m *SimpleMemoryMap) mapRange(addr uint64, size int) (*Mapping, error) {
	mapping := m.FindMapping(addr)
	if mapping == nil {
		return nil, ErrNoMapping
	}

	if addr+uint64(size) > mapping.End {
		return nil, ErrMappingSpan
	}

	return mapping, nil
}

// Mappings returns the mappings in address order.
func (m *SimpleMemoryMap) Mappings() []*Mapping {
	mappings := make([]*Mapping, 0, m.numMappings)

	for n := m.separators.first(); n != nil; n = successor(n) {
		if n.mapping != nil {
			mappings = append(mappings, n.mapping)
		}
	}

	return mappings
}

// Dump writes one line per mapping in address order.
func (m *SimpleMemoryMap) Dump(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "START\tEND\tDESTINATION\tOFFSET")

	for _, mapping := range m.Mappings() {
		fmt.Fprintf(tw, "0x%x\t0x%x\t%s\t0x%x\n",
			mapping.Start, mapping.End, mapping.Dest.Name(), mapping.DestOffset)
	}

	return tw.Flush()
}

// mapDispatcher is the BlockingMemoryIF view of a map.
type mapDispatcher struct {
	name string
	size uint64
	m    *SimpleMemoryMap
}

func (d *mapDispatcher) Name() string      { return d.name }
func (d *mapDispatcher) BlockSize() uint64 { return d.m.blockSize }
func (d *mapDispatcher) Size() uint64      { return d.size }

func (d *mapDispatcher) Windows() []Window {
	return []Window{{Start: 0, End: d.size}}
}

func (d *mapDispatcher) TryRead(addr uint64, buf []byte, sup *Supplement) bool {
	mapping, err := d.m.mapRange(addr, len(buf))
	return err == nil && mapping.Dest.TryRead(mapping.Map(addr), buf, sup)
}

func (d *mapDispatcher) TryWrite(addr uint64, data []byte, sup *Supplement) bool {
	mapping, err := d.m.mapRange(addr, len(data))
	return err == nil && mapping.Dest.TryWrite(mapping.Map(addr), data, sup)
}

func (d *mapDispatcher) TryPeek(addr uint64, buf []byte) bool {
	mapping, err := d.m.mapRange(addr, len(buf))
	return err == nil && mapping.Dest.TryPeek(mapping.Map(addr), buf)
}

func (d *mapDispatcher) TryPoke(addr uint64, data []byte) bool {
	mapping, err := d.m.mapRange(addr, len(data))
	return err == nil && mapping.Dest.TryPoke(mapping.Map(addr), data)
}

func (d *mapDispatcher) GetDMI(addr uint64) (*DMI, error) {
	mapping, err := d.m.mapRange(addr, 1)
	if err != nil {
		return nil, &AccessError{Kind: AccessGeneric, Interface: d.name,
			Addr: addr, Size: 1, Reason: err}
	}

	p, ok := mapping.Dest.(DMIProvider)
	if !ok {
		return nil, &AccessError{Kind: AccessGeneric, Interface: mapping.Dest.Name(),
			Addr: mapping.Map(addr), Size: 1, Reason: ErrRejected}
	}

	mapped := mapping.Map(addr)

	dmi, err := p.GetDMI(mapped)
	if err != nil {
		return nil, err
	}

	return dmi.rebased(dmi.Start() - mapped + addr), nil
}

func (d *mapDispatcher) explainFailure(kind AccessKind, addr uint64, size int) error {
	mapping, err := d.m.mapRange(addr, size)
	if err != nil {
		return &AccessError{Kind: kind, Interface: d.name, Addr: addr, Size: size,
			Reason: err}
	}

	if e, ok := mapping.Dest.(failureExplainer); ok {
		return e.explainFailure(kind, mapping.Map(addr), size)
	}

	return nil
}

// SimpleMemoryMapNode is an observable interface that sends every access to
// the mapping that covers it.
type SimpleMemoryMapNode struct {
	*BlockingMemoryIFNode
	*SimpleMemoryMap
}

// NewSimpleMemoryMapNode creates a map node that answers addresses in
// [0, size).
func NewSimpleMemoryMapNode(name string, blockSize, size uint64) *SimpleMemoryMapNode {
	m := NewSimpleMemoryMap(blockSize)

	return &SimpleMemoryMapNode{
		BlockingMemoryIFNode: NewBlockingMemoryIFNode(name,
			&mapDispatcher{name: name, size: size, m: m}),
		SimpleMemoryMap: m,
	}
}

// BlockSize returns the block size of the map.
func (n *SimpleMemoryMapNode) BlockSize() uint64 {
	return n.SimpleMemoryMap.BlockSize()
}
