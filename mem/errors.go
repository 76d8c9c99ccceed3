package mem

import (
	"errors"
	"fmt"
)

// AccessKind tells which kind of access failed.
type AccessKind int

// The access kinds.
const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessPeek
	AccessPoke
	AccessTranslation
	AccessGeneric
)

func (k AccessKind) String() string {
	switch k {
	case AccessRead:
		return "Read"
	case AccessWrite:
		return "Write"
	case AccessPeek:
		return "Peek"
	case AccessPoke:
		return "Poke"
	case AccessTranslation:
		return "Translation"
	default:
		return "Access"
	}
}

// The reasons an access can fail. AccessError unwraps to one of them.
var (
	ErrZeroSize     = errors.New("zero-sized access")
	ErrOutOfRange   = errors.New("access out of range")
	ErrBlockSpan    = errors.New("access spans a block boundary")
	ErrNoMapping    = errors.New("no mapping for address")
	ErrMappingSpan  = errors.New("access spans more than one mapping")
	ErrTranslation  = errors.New("address translation failed")
	ErrAccessWindow = errors.New("access outside of access windows")
	ErrDMIInvalid   = errors.New("DMI used after invalidation")
	ErrRejected     = errors.New("access rejected by the interface")
)

// AccessError reports a failed memory access.
type AccessError struct {
	Kind      AccessKind
	Interface string
	Addr      uint64
	Size      int
	Reason    error
}

func (e *AccessError) Error() string {
	where := ""
	if e.Interface != "" {
		where = " on " + e.Interface
	}

	return fmt.Sprintf("mem: %s of %d bytes at 0x%x%s: %v",
		e.Kind, e.Size, e.Addr, where, e.Reason)
}

// Unwrap returns the reason.
func (e *AccessError) Unwrap() error {
	return e.Reason
}

// The reasons a mapping cannot be added to a memory map.
var (
	ErrUnaligned        = errors.New("range is not block aligned")
	ErrEmptyRange       = errors.New("range is empty")
	ErrOverlap          = errors.New("range overlaps an existing mapping")
	ErrBlockSizeDiffers = errors.New("destination block size differs")
	ErrNoRoom           = errors.New("destination too small for the range")
)

// MappingError reports a mapping that a memory map refused.
type MappingError struct {
	Start, End uint64
	Reason     error
	Detail     string
}

func (e *MappingError) Error() string {
	msg := fmt.Sprintf("mem: cannot map [0x%x, 0x%x): %v", e.Start, e.End, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}

	return msg
}

// Unwrap returns the reason.
func (e *MappingError) Unwrap() error {
	return e.Reason
}
