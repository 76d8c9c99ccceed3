// Package cachedmem provides a core-local store buffer that keeps
// uncommitted writes in front of a shared memory.
package cachedmem

import (
	"fmt"

	"github.com/sarchlab/sparta/mem"
)

// A WriteID identifies an outstanding write. The high byte holds the id of
// the cache that issued it.
type WriteID uint64

// Cache returns the id of the cache that issued the write.
func (id WriteID) Cache() uint8 {
	return uint8(id >> 56)
}

// Seq returns the per-cache sequence number of the write.
func (id WriteID) Seq() uint64 {
	return uint64(id) & (1<<56 - 1)
}

func (id WriteID) String() string {
	return fmt.Sprintf("%d:%d", id.Cache(), id.Seq())
}

// A Record is an outstanding write. Prior holds the bytes the write
// replaced in the local buffer.
type Record struct {
	ID    WriteID
	Addr  uint64
	Data  []byte
	Prior []byte
}

func (r *Record) covers(addr uint64) bool {
	return addr >= r.Addr && addr < r.Addr+uint64(len(r.Data))
}

// CachedMemory holds the writes of one core until they are committed to the
// downstream memory or dropped. Reads see the local writes first.
type CachedMemory struct {
	name       string
	uid        uint8
	downstream mem.BlockingMemoryIF
	blockSize  uint64
	maxWrites  int

	blocks  map[uint64][]byte
	records []*Record
	nextSeq uint64
}

// New creates a cached memory over downstream. At most maxWrites writes can
// be outstanding.
func New(
	name string,
	uid uint8,
	downstream mem.BlockingMemoryIF,
	maxWrites int,
) *CachedMemory {
	return &CachedMemory{
		name:       name,
		uid:        uid,
		downstream: downstream,
		blockSize:  downstream.BlockSize(),
		maxWrites:  maxWrites,
		blocks:     make(map[uint64][]byte),
	}
}

// Name returns the name of the cache.
func (c *CachedMemory) Name() string { return c.name }

// UID returns the id stored in the high byte of the write ids.
func (c *CachedMemory) UID() uint8 { return c.uid }

// BlockSize returns the block size of the downstream memory.
func (c *CachedMemory) BlockSize() uint64 { return c.blockSize }

// Size returns the size of the downstream memory.
func (c *CachedMemory) Size() uint64 { return c.downstream.Size() }

// Windows returns the windows of the downstream memory.
func (c *CachedMemory) Windows() []mem.Window { return c.downstream.Windows() }

// Downstream returns the shared memory.
func (c *CachedMemory) Downstream() mem.BlockingMemoryIF { return c.downstream }

// NumOutstanding returns the number of outstanding writes.
func (c *CachedMemory) NumOutstanding() int { return len(c.records) }

// NumLocalBlocks returns the number of blocks held by the local buffer.
func (c *CachedMemory) NumLocalBlocks() int { return len(c.blocks) }

func (c *CachedMemory) blockOf(addr uint64) (uint64, uint64) {
	start := addr &^ (c.blockSize - 1)
	return start, addr - start
}

func (c *CachedMemory) legal(addr uint64, size int) bool {
	if mem.VerifyInAccessWindows(c, mem.AccessGeneric, addr, size) != nil {
		return false
	}

	return mem.VerifyNoBlockSpan(c, mem.AccessGeneric, addr, size) == nil
}

// TryRead reads from the local buffer, or peeks downstream when the block
// was never written here.
func (c *CachedMemory) TryRead(addr uint64, buf []byte, _ *mem.Supplement) bool {
	if !c.legal(addr, len(buf)) {
		return false
	}

	start, offset := c.blockOf(addr)
	if b, found := c.blocks[start]; found {
		copy(buf, b[offset:])
		return true
	}

	return c.downstream.TryPeek(addr, buf)
}

// TryWrite records a write. It fails when the write is illegal or when the
// store buffer is full.
func (c *CachedMemory) TryWrite(addr uint64, data []byte, _ *mem.Supplement) bool {
	_, err := c.Write(addr, data)
	return err == nil
}

// Write records a write in the local buffer and returns its id.
func (c *CachedMemory) Write(addr uint64, data []byte) (WriteID, error) {
	if len(c.records) >= c.maxWrites {
		return 0, &StoreError{
			Kind:   WatermarkExceeded,
			Cache:  c.name,
			Detail: fmt.Sprintf("limit is %d", c.maxWrites),
		}
	}

	if !c.legal(addr, len(data)) {
		return 0, &StoreError{
			Kind:  AccessFailed,
			Cache: c.name,
			Err:   c.explain(mem.AccessWrite, addr, len(data)),
		}
	}

	start, offset := c.blockOf(addr)

	b, found := c.blocks[start]
	if !found {
		b = make([]byte, c.blockSize)
		if err := mem.Peek(c.downstream, start, b); err != nil {
			return 0, &StoreError{Kind: AccessFailed, Cache: c.name, Err: err}
		}

		c.blocks[start] = b
	}

	id := WriteID(uint64(c.uid)<<56 | c.nextSeq)
	c.nextSeq++

	r := &Record{
		ID:    id,
		Addr:  addr,
		Data:  append([]byte(nil), data...),
		Prior: append([]byte(nil), b[offset:offset+uint64(len(data))]...),
	}
	copy(b[offset:], data)
	c.records = append(c.records, r)

	return id, nil
}

// Read reads like TryRead and reports failures.
func (c *CachedMemory) Read(addr uint64, buf []byte) error {
	if c.TryRead(addr, buf, nil) {
		return nil
	}

	return c.explain(mem.AccessRead, addr, len(buf))
}

func (c *CachedMemory) explain(kind mem.AccessKind, addr uint64, size int) error {
	if err := mem.VerifyInAccessWindows(c, kind, addr, size); err != nil {
		return err
	}

	if err := mem.VerifyNoBlockSpan(c, kind, addr, size); err != nil {
		return err
	}

	return &mem.AccessError{Kind: kind, Interface: c.name, Addr: addr, Size: size,
		Reason: mem.ErrRejected}
}

// TryPeek reads any range, preferring the local buffer block by block.
func (c *CachedMemory) TryPeek(addr uint64, buf []byte) bool {
	if mem.VerifyInAccessWindows(c, mem.AccessPeek, addr, len(buf)) != nil {
		return false
	}

	return c.eachBlock(addr, len(buf), func(a uint64, lo, hi int) bool {
		start, offset := c.blockOf(a)
		if b, found := c.blocks[start]; found {
			copy(buf[lo:hi], b[offset:])
			return true
		}

		return c.downstream.TryPeek(a, buf[lo:hi])
	})
}

// TryPoke writes through to the downstream memory and to the local buffer.
// Pokes are not recorded.
func (c *CachedMemory) TryPoke(addr uint64, data []byte) bool {
	if !c.downstream.TryPoke(addr, data) {
		return false
	}

	c.eachBlock(addr, len(data), func(a uint64, lo, hi int) bool {
		start, offset := c.blockOf(a)
		if b, found := c.blocks[start]; found {
			copy(b[offset:], data[lo:hi])
		}

		return true
	})

	return true
}

func (c *CachedMemory) eachBlock(addr uint64, size int, do func(a uint64, lo, hi int) bool) bool {
	done := 0

	for done < size {
		a := addr + uint64(done)
		_, offset := c.blockOf(a)
		n := min(int(c.blockSize-offset), size-done)

		if !do(a, done, done+n) {
			return false
		}

		done += n
	}

	return true
}

// Commit sends the oldest outstanding write downstream. Writes must be
// committed in the order they were made.
func (c *CachedMemory) Commit(id WriteID) error {
	if len(c.records) == 0 || c.records[0].ID != id {
		if c.find(id) < 0 {
			return &StoreError{Kind: UnknownWrite, Cache: c.name, ID: id}
		}

		return &StoreError{
			Kind:   OutOfOrderCommit,
			Cache:  c.name,
			ID:     id,
			Detail: "oldest is " + c.records[0].ID.String(),
		}
	}

	r := c.records[0]

	err := mem.Write(c.downstream, r.Addr, r.Data, &mem.Supplement{In: r.ID})
	if err != nil {
		return &StoreError{Kind: AccessFailed, Cache: c.name, ID: id, Err: err}
	}

	c.records[0] = nil
	c.records = c.records[1:]

	return nil
}

// Drop cancels a write and every newer write, restoring the local buffer
// newest first.
func (c *CachedMemory) Drop(id WriteID) error {
	i := c.find(id)
	if i < 0 {
		return &StoreError{Kind: UnknownWrite, Cache: c.name, ID: id}
	}

	for j := len(c.records) - 1; j >= i; j-- {
		r := c.records[j]
		start, offset := c.blockOf(r.Addr)
		copy(c.blocks[start][offset:], r.Prior)
		c.records[j] = nil
	}

	c.records = c.records[:i]

	return nil
}

func (c *CachedMemory) find(id WriteID) int {
	for i, r := range c.records {
		if r.ID == id {
			return i
		}
	}

	return -1
}

// Merge applies a write made by another core to the shared memory. A byte
// that an outstanding local write covers only updates the prior value of
// the oldest such write, so that dropping it later restores the shared
// value. Other bytes update the local buffer if it holds their block.
func (c *CachedMemory) Merge(addr uint64, data []byte) {
	for i, v := range data {
		a := addr + uint64(i)

		if r := c.oldestCovering(a); r != nil {
			r.Prior[a-r.Addr] = v
			continue
		}

		start, offset := c.blockOf(a)
		if b, found := c.blocks[start]; found {
			b[offset] = v
		}
	}
}

func (c *CachedMemory) oldestCovering(addr uint64) *Record {
	for _, r := range c.records {
		if r.covers(addr) {
			return r
		}
	}

	return nil
}

// OutstandingWrites returns the outstanding writes that cover addr, oldest
// first.
func (c *CachedMemory) OutstandingWrites(addr uint64) []*Record {
	var found []*Record

	for _, r := range c.records {
		if r.covers(addr) {
			found = append(found, r)
		}
	}

	return found
}

// Records returns every outstanding write, oldest first.
func (c *CachedMemory) Records() []*Record {
	return c.records
}
