package mem

// DMIProvider is implemented by interfaces that can hand out DMIs.
type DMIProvider interface {
	GetDMI(addr uint64) (*DMI, error)
}

type dmiState struct {
	valid     bool
	callbacks []func()
}

func (s *dmiState) invalidate() bool {
	if !s.valid {
		return false
	}

	s.valid = false
	for _, cb := range s.callbacks {
		cb()
	}

	s.callbacks = nil

	return true
}

// A DMI gives direct access to the bytes of one block. Accesses through a DMI
// are neither counted nor observed. A DMI stays usable until its memory
// invalidates it.
type DMI struct {
	start uint64
	data  []byte
	state *dmiState
}

func newDMI(start uint64, data []byte) *DMI {
	return &DMI{start: start, data: data, state: &dmiState{valid: true}}
}

// Start returns the first address covered by the DMI, in the address space
// of the interface that handed it out.
func (d *DMI) Start() uint64 { return d.start }

// Size returns the number of bytes covered.
func (d *DMI) Size() uint64 { return uint64(len(d.data)) }

// Contains tells if [addr, addr+size) is covered.
func (d *DMI) Contains(addr uint64, size int) bool {
	return size > 0 && addr >= d.start &&
		addr-d.start+uint64(size) <= uint64(len(d.data))
}

// IsValid tells if the DMI can still be used.
func (d *DMI) IsValid() bool { return d.state.valid }

// Invalidate stops the DMI and every DMI sharing its block view.
func (d *DMI) Invalidate() { d.state.invalidate() }

// OnInvalidate registers a function to call when the DMI is invalidated.
func (d *DMI) OnInvalidate(fn func()) {
	d.state.callbacks = append(d.state.callbacks, fn)
}

// Bytes returns the raw bytes of the block starting at Start, or nil once the
// DMI is invalid.
func (d *DMI) Bytes() []byte {
	if !d.state.valid {
		return nil
	}

	return d.data
}

// Read copies len(buf) bytes at addr.
func (d *DMI) Read(addr uint64, buf []byte) error {
	if err := d.check(AccessRead, addr, len(buf)); err != nil {
		return err
	}

	copy(buf, d.data[addr-d.start:])

	return nil
}

// Write copies data to addr.
func (d *DMI) Write(addr uint64, data []byte) error {
	if err := d.check(AccessWrite, addr, len(data)); err != nil {
		return err
	}

	copy(d.data[addr-d.start:], data)

	return nil
}

func (d *DMI) check(kind AccessKind, addr uint64, size int) error {
	if !d.state.valid {
		return &AccessError{Kind: kind, Interface: "dmi", Addr: addr, Size: size,
			Reason: ErrDMIInvalid}
	}

	if !d.Contains(addr, size) {
		return &AccessError{Kind: kind, Interface: "dmi", Addr: addr, Size: size,
			Reason: ErrOutOfRange}
	}

	return nil
}

// rebased returns a view of the same block at another start address. The
// view is invalidated together with d.
func (d *DMI) rebased(start uint64) *DMI {
	return &DMI{start: start, data: d.data, state: d.state}
}
