// Package mem provides sparse block memory, observable memory interfaces,
// address maps, translation, and direct memory interfaces.
package mem

// A Window is an address range [Start, End) that an interface accepts.
type Window struct {
	Start, End uint64
}

// Contains tells if [addr, addr+size) lies inside the window.
func (w Window) Contains(addr uint64, size int) bool {
	end := addr + uint64(size)
	return addr >= w.Start && end <= w.End && end >= addr
}

// Supplement rides along with an access. In is set by the requester and Out
// may be filled by observers. The memory system never looks inside either.
type Supplement struct {
	In  any
	Out any
}

// BlockingMemoryIF is a memory that completes every access immediately. The
// try methods never fail loudly. They return false and leave memory unchanged
// when the access is not legal.
type BlockingMemoryIF interface {
	Name() string
	BlockSize() uint64
	Size() uint64
	Windows() []Window

	TryRead(addr uint64, buf []byte, sup *Supplement) bool
	TryWrite(addr uint64, data []byte, sup *Supplement) bool
	TryPeek(addr uint64, buf []byte) bool
	TryPoke(addr uint64, data []byte) bool
}

// failureExplainer is implemented by interfaces that know more about a
// rejected access than the generic checks do.
type failureExplainer interface {
	explainFailure(kind AccessKind, addr uint64, size int) error
}

// Read reads len(buf) bytes at addr and returns an AccessError on failure.
func Read(m BlockingMemoryIF, addr uint64, buf []byte, sup *Supplement) error {
	if m.TryRead(addr, buf, sup) {
		return nil
	}

	return explain(m, AccessRead, addr, len(buf))
}

// Write writes data at addr and returns an AccessError on failure.
func Write(m BlockingMemoryIF, addr uint64, data []byte, sup *Supplement) error {
	if m.TryWrite(addr, data, sup) {
		return nil
	}

	return explain(m, AccessWrite, addr, len(data))
}

// Peek reads without side effects. The range may span blocks.
func Peek(m BlockingMemoryIF, addr uint64, buf []byte) error {
	if m.TryPeek(addr, buf) {
		return nil
	}

	return explain(m, AccessPeek, addr, len(buf))
}

// Poke writes without side effects. The range may span blocks.
func Poke(m BlockingMemoryIF, addr uint64, data []byte) error {
	if m.TryPoke(addr, data) {
		return nil
	}

	return explain(m, AccessPoke, addr, len(data))
}

func explain(m BlockingMemoryIF, kind AccessKind, addr uint64, size int) error {
	if err := VerifyInAccessWindows(m, kind, addr, size); err != nil {
		return err
	}

	if kind == AccessRead || kind == AccessWrite {
		if err := VerifyNoBlockSpan(m, kind, addr, size); err != nil {
			return err
		}
	}

	if e, ok := m.(failureExplainer); ok {
		if err := e.explainFailure(kind, addr, size); err != nil {
			return err
		}
	}

	return &AccessError{
		Kind:      kind,
		Interface: m.Name(),
		Addr:      addr,
		Size:      size,
		Reason:    ErrRejected,
	}
}

// VerifyInAccessWindows returns an AccessError if the access is empty, out of
// the interface range, or not inside a single access window.
func VerifyInAccessWindows(m BlockingMemoryIF, kind AccessKind, addr uint64, size int) error {
	fail := func(reason error) error {
		return &AccessError{
			Kind:      kind,
			Interface: m.Name(),
			Addr:      addr,
			Size:      size,
			Reason:    reason,
		}
	}

	if size <= 0 {
		return fail(ErrZeroSize)
	}

	if !inRange(addr, size, m.Size()) {
		return fail(ErrOutOfRange)
	}

	for _, w := range m.Windows() {
		if w.Contains(addr, size) {
			return nil
		}
	}

	return fail(ErrAccessWindow)
}

// VerifyNoBlockSpan returns an AccessError if the access crosses a block
// boundary of the interface.
func VerifyNoBlockSpan(m BlockingMemoryIF, kind AccessKind, addr uint64, size int) error {
	if size <= 0 || !spansBlocks(addr, size, m.BlockSize()) {
		return nil
	}

	return &AccessError{
		Kind:      kind,
		Interface: m.Name(),
		Addr:      addr,
		Size:      size,
		Reason:    ErrBlockSpan,
	}
}

func inRange(addr uint64, size int, total uint64) bool {
	end := addr + uint64(size)
	return size > 0 && end >= addr && end <= total
}

func spansBlocks(addr uint64, size int, blockSize uint64) bool {
	mask := ^(blockSize - 1)
	return addr&mask != (addr+uint64(size)-1)&mask
}

func inAnyWindow(windows []Window, addr uint64, size int) bool {
	for _, w := range windows {
		if w.Contains(addr, size) {
			return true
		}
	}

	return false
}
