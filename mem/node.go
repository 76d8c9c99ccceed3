package mem

import (
	"github.com/sarchlab/sparta/sim"
)

// HookPosPostRead marks the completion of a read. The hook item is a
// *ReadAccess.
var HookPosPostRead = &sim.HookPos{Name: "Mem Post Read"}

// HookPosPostWrite marks the completion of a write. The hook item is a
// *WriteAccess.
var HookPosPostWrite = &sim.HookPos{Name: "Mem Post Write"}

// ReadAccess describes a completed read.
type ReadAccess struct {
	Interface  *BlockingMemoryIFNode
	Addr       uint64
	Data       []byte
	Supplement *Supplement
}

// WriteAccess describes a completed write. Prior holds the bytes that were in
// memory before the write.
type WriteAccess struct {
	Interface  *BlockingMemoryIFNode
	Addr       uint64
	Prior      []byte
	Data       []byte
	Supplement *Supplement
}

// A TranslationIF maps the addresses seen by an interface to the addresses
// of the memory behind it.
type TranslationIF interface {
	Translate(addr uint64) (uint64, bool)
}

// BlockingMemoryIFNode wraps a BlockingMemoryIF and makes its accesses
// observable. Hooks are invoked after every successful read and write.
// Observers must not fail and must not access the same interface.
type BlockingMemoryIFNode struct {
	*sim.HookableBase

	name        string
	inner       BlockingMemoryIF
	windows     []Window
	translation TranslationIF

	numReads, numWrites uint64
	numPeeks, numPokes  uint64
}

// NewBlockingMemoryIFNode wraps inner. Without windows, the whole range of
// inner is accessible.
func NewBlockingMemoryIFNode(
	name string,
	inner BlockingMemoryIF,
	windows ...Window,
) *BlockingMemoryIFNode {
	if len(windows) == 0 {
		windows = []Window{{Start: 0, End: inner.Size()}}
	}

	return &BlockingMemoryIFNode{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		inner:        inner,
		windows:      windows,
	}
}

// Name returns the name of the interface.
func (n *BlockingMemoryIFNode) Name() string { return n.name }

// Inner returns the wrapped interface.
func (n *BlockingMemoryIFNode) Inner() BlockingMemoryIF { return n.inner }

// BlockSize returns the block size of the wrapped interface.
func (n *BlockingMemoryIFNode) BlockSize() uint64 { return n.inner.BlockSize() }

// Size returns the size of the wrapped interface.
func (n *BlockingMemoryIFNode) Size() uint64 { return n.inner.Size() }

// Windows returns the access windows.
func (n *BlockingMemoryIFNode) Windows() []Window { return n.windows }

// SetTranslation translates every address before it reaches the wrapped
// interface. A nil translation turns translation off.
func (n *BlockingMemoryIFNode) SetTranslation(t TranslationIF) {
	n.translation = t
}

// NumReads returns the number of read attempts.
func (n *BlockingMemoryIFNode) NumReads() uint64 { return n.numReads }

// NumWrites returns the number of write attempts.
func (n *BlockingMemoryIFNode) NumWrites() uint64 { return n.numWrites }

// NumPeeks returns the number of peek attempts.
func (n *BlockingMemoryIFNode) NumPeeks() uint64 { return n.numPeeks }

// NumPokes returns the number of poke attempts.
func (n *BlockingMemoryIFNode) NumPokes() uint64 { return n.numPokes }

// TryRead reads and notifies the observers.
func (n *BlockingMemoryIFNode) TryRead(addr uint64, buf []byte, sup *Supplement) bool {
	n.numReads++

	pa, ok := n.resolve(addr, len(buf))
	if !ok || !n.inner.TryRead(pa, buf, sup) {
		return false
	}

	if n.NumHooks() > 0 {
		n.InvokeHook(sim.HookCtx{
			Domain: n,
			Pos:    HookPosPostRead,
			Item: &ReadAccess{
				Interface:  n,
				Addr:       addr,
				Data:       buf,
				Supplement: sup,
			},
		})
	}

	return true
}

// TryWrite writes and notifies the observers. The prior content is only
// captured when someone observes.
func (n *BlockingMemoryIFNode) TryWrite(addr uint64, data []byte, sup *Supplement) bool {
	n.numWrites++

	pa, ok := n.resolve(addr, len(data))
	if !ok {
		return false
	}

	if n.NumHooks() == 0 {
		return n.inner.TryWrite(pa, data, sup)
	}

	prior := make([]byte, len(data))
	if !n.inner.TryPeek(pa, prior) {
		return false
	}

	if !n.inner.TryWrite(pa, data, sup) {
		return false
	}

	n.InvokeHook(sim.HookCtx{
		Domain: n,
		Pos:    HookPosPostWrite,
		Item: &WriteAccess{
			Interface:  n,
			Addr:       addr,
			Prior:      prior,
			Data:       data,
			Supplement: sup,
		},
	})

	return true
}

// TryPeek reads without notifying.
func (n *BlockingMemoryIFNode) TryPeek(addr uint64, buf []byte) bool {
	n.numPeeks++

	pa, ok := n.resolve(addr, len(buf))

	return ok && n.inner.TryPeek(pa, buf)
}

// TryPoke writes without notifying.
func (n *BlockingMemoryIFNode) TryPoke(addr uint64, data []byte) bool {
	n.numPokes++

	pa, ok := n.resolve(addr, len(data))

	return ok && n.inner.TryPoke(pa, data)
}

// GetDMI returns a DMI for the block that contains addr, if the wrapped
// interface can provide one. The whole block must sit in one access window
// and translate contiguously.
func (n *BlockingMemoryIFNode) GetDMI(addr uint64) (*DMI, error) {
	p, ok := n.inner.(DMIProvider)
	if !ok {
		return nil, &AccessError{Kind: AccessGeneric, Interface: n.name,
			Addr: addr, Size: 1, Reason: ErrRejected}
	}

	pa, ok := n.resolve(addr, 1)
	if !ok {
		return nil, n.explainFailure(AccessGeneric, addr, 1)
	}

	d, err := p.GetDMI(pa)
	if err != nil {
		return nil, err
	}

	rd := d.rebased(d.Start() - pa + addr)

	if back, ok := n.resolve(rd.Start(), int(rd.Size())); !ok || back != d.Start() {
		return nil, &AccessError{Kind: AccessGeneric, Interface: n.name,
			Addr: rd.Start(), Size: int(rd.Size()), Reason: ErrAccessWindow}
	}

	return rd, nil
}

// resolve checks the windows and translates.
func (n *BlockingMemoryIFNode) resolve(addr uint64, size int) (uint64, bool) {
	if size <= 0 || !inRange(addr, size, n.Size()) || !inAnyWindow(n.windows, addr, size) {
		return 0, false
	}

	if n.translation == nil {
		return addr, true
	}

	return translateRange(n.translation, addr, size)
}

// translateRange requires both ends of the access to translate to the same
// contiguous physical range.
func translateRange(t TranslationIF, addr uint64, size int) (uint64, bool) {
	first, ok := t.Translate(addr)
	if !ok {
		return 0, false
	}

	last, ok := t.Translate(addr + uint64(size) - 1)
	if !ok || last-first != uint64(size)-1 {
		return 0, false
	}

	return first, true
}

func (n *BlockingMemoryIFNode) explainFailure(kind AccessKind, addr uint64, size int) error {
	pa := addr

	if n.translation != nil {
		var ok bool
		if pa, ok = translateRange(n.translation, addr, size); !ok {
			return &AccessError{Kind: AccessTranslation, Interface: n.name,
				Addr: addr, Size: size, Reason: ErrTranslation}
		}
	}

	if e, ok := n.inner.(failureExplainer); ok {
		return e.explainFailure(kind, pa, size)
	}

	return nil
}

// An Observer receives completed accesses. Either function may be nil.
type Observer struct {
	PostRead  func(*ReadAccess)
	PostWrite func(*WriteAccess)
}

// Func dispatches a hook to the matching function.
func (o *Observer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case HookPosPostRead:
		if o.PostRead != nil {
			o.PostRead(ctx.Item.(*ReadAccess))
		}
	case HookPosPostWrite:
		if o.PostWrite != nil {
			o.PostWrite(ctx.Item.(*WriteAccess))
		}
	}
}
