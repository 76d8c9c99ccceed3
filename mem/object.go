package mem

import (
	"fmt"
	"math/bits"
)

// Blocks are kept in a two-level table. The low blockTableBits of a block
// index select a slot in a second-level table.
const blockTableBits = 10

type block struct {
	data []byte
	dmis []*dmiState
}

// MemoryObject is a sparse byte store made of equally sized blocks. A block
// is allocated by the first write or poke that touches it. Bytes that were
// never written read as the fill pattern.
type MemoryObject struct {
	name       string
	blockSize  uint64
	blockShift uint
	size       uint64

	fill      uint64
	fillSize  int
	fillBlock []byte

	tables       [][]*block
	numAllocated int
}

// NewMemoryObject creates a memory object. The block size must be a power of
// two that divides the size. The fill pattern is fillSize bytes of fill, in
// little-endian order, repeated from the start of every block.
func NewMemoryObject(
	name string,
	blockSize, size uint64,
	fill uint64,
	fillSize int,
) (*MemoryObject, error) {
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		return nil, fmt.Errorf("mem: block size %d is not a power of two", blockSize)
	}

	if size == 0 || size%blockSize != 0 {
		return nil, fmt.Errorf("mem: size %d is not a multiple of the block size %d",
			size, blockSize)
	}

	switch fillSize {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("mem: fill pattern size %d is not 1, 2, 4 or 8", fillSize)
	}

	if uint64(fillSize) > blockSize {
		return nil, fmt.Errorf("mem: fill pattern size %d exceeds the block size %d",
			fillSize, blockSize)
	}

	o := &MemoryObject{
		name:       name,
		blockSize:  blockSize,
		blockShift: uint(bits.TrailingZeros64(blockSize)),
		size:       size,
		fill:       fill,
		fillSize:   fillSize,
		fillBlock:  make([]byte, blockSize),
	}

	for i := range o.fillBlock {
		o.fillBlock[i] = byte(fill >> (8 * (i % fillSize)))
	}

	numBlocks := size >> o.blockShift
	numTables := (numBlocks + (1 << blockTableBits) - 1) >> blockTableBits
	o.tables = make([][]*block, numTables)

	return o, nil
}

// Name returns the name of the object.
func (o *MemoryObject) Name() string { return o.name }

// BlockSize returns the block size in bytes.
func (o *MemoryObject) BlockSize() uint64 { return o.blockSize }

// Size returns the number of addressable bytes.
func (o *MemoryObject) Size() uint64 { return o.size }

// Windows returns the whole object as one window.
func (o *MemoryObject) Windows() []Window {
	return []Window{{Start: 0, End: o.size}}
}

// FillPattern returns the fill value and its size in bytes.
func (o *MemoryObject) FillPattern() (uint64, int) { return o.fill, o.fillSize }

// NumAllocatedBlocks returns how many blocks hold data.
func (o *MemoryObject) NumAllocatedBlocks() int { return o.numAllocated }

// TryRead reads within a single block.
func (o *MemoryObject) TryRead(addr uint64, buf []byte, _ *Supplement) bool {
	if !inRange(addr, len(buf), o.size) || spansBlocks(addr, len(buf), o.blockSize) {
		return false
	}

	o.read(addr, buf)

	return true
}

// TryWrite writes within a single block.
func (o *MemoryObject) TryWrite(addr uint64, data []byte, _ *Supplement) bool {
	if !inRange(addr, len(data), o.size) || spansBlocks(addr, len(data), o.blockSize) {
		return false
	}

	o.write(addr, data)

	return true
}

// TryPeek reads any range of the object.
func (o *MemoryObject) TryPeek(addr uint64, buf []byte) bool {
	if !inRange(addr, len(buf), o.size) {
		return false
	}

	o.split(addr, len(buf), func(a uint64, lo, hi int) { o.read(a, buf[lo:hi]) })

	return true
}

// TryPoke writes any range of the object.
func (o *MemoryObject) TryPoke(addr uint64, data []byte) bool {
	if !inRange(addr, len(data), o.size) {
		return false
	}

	o.split(addr, len(data), func(a uint64, lo, hi int) { o.write(a, data[lo:hi]) })

	return true
}

// split cuts [addr, addr+size) at block boundaries.
func (o *MemoryObject) split(addr uint64, size int, do func(a uint64, lo, hi int)) {
	done := 0

	for done < size {
		a := addr + uint64(done)
		inBlock := int(o.blockSize - a&(o.blockSize-1))
		n := min(inBlock, size-done)

		do(a, done, done+n)

		done += n
	}
}

func (o *MemoryObject) read(addr uint64, buf []byte) {
	offset := addr & (o.blockSize - 1)

	b := o.lookup(addr >> o.blockShift)
	if b == nil {
		copy(buf, o.fillBlock[offset:])
		return
	}

	copy(buf, b.data[offset:])
}

func (o *MemoryObject) write(addr uint64, data []byte) {
	offset := addr & (o.blockSize - 1)
	b := o.materialize(addr >> o.blockShift)
	copy(b.data[offset:], data)
}

func (o *MemoryObject) lookup(index uint64) *block {
	table := o.tables[index>>blockTableBits]
	if table == nil {
		return nil
	}

	return table[index&(1<<blockTableBits-1)]
}

func (o *MemoryObject) materialize(index uint64) *block {
	t := index >> blockTableBits
	if o.tables[t] == nil {
		o.tables[t] = make([]*block, 1<<blockTableBits)
	}

	slot := &o.tables[t][index&(1<<blockTableBits-1)]
	if *slot == nil {
		data := make([]byte, o.blockSize)
		copy(data, o.fillBlock)
		*slot = &block{data: data}
		o.numAllocated++
	}

	return *slot
}

// GetDMI returns a direct interface to the block that contains addr. The
// block is allocated if needed.
func (o *MemoryObject) GetDMI(addr uint64) (*DMI, error) {
	if !inRange(addr, 1, o.size) {
		return nil, &AccessError{
			Kind:      AccessGeneric,
			Interface: o.name,
			Addr:      addr,
			Size:      1,
			Reason:    ErrOutOfRange,
		}
	}

	start := addr &^ (o.blockSize - 1)
	b := o.materialize(addr >> o.blockShift)

	d := newDMI(start, b.data)
	b.dmis = append(b.dmis, d.state)

	return d, nil
}

// InvalidateDMIs invalidates every DMI handed out for the range
// [addr, addr+size) and returns how many were invalidated.
func (o *MemoryObject) InvalidateDMIs(addr uint64, size int) int {
	n := 0

	if !inRange(addr, size, o.size) {
		return 0
	}

	o.split(addr, size, func(a uint64, _, _ int) {
		b := o.lookup(a >> o.blockShift)
		if b == nil {
			return
		}

		n += invalidateAll(b)
	})

	return n
}

// InvalidateAllDMIs invalidates every DMI of the object.
func (o *MemoryObject) InvalidateAllDMIs() int {
	n := 0

	for _, table := range o.tables {
		for _, b := range table {
			if b == nil {
				continue
			}

			n += invalidateAll(b)
		}
	}

	return n
}

func invalidateAll(b *block) int {
	n := 0

	for _, s := range b.dmis {
		if s.invalidate() {
			n++
		}
	}

	b.dmis = nil

	return n
}
