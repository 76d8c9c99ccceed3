package cachedmem

import "fmt"

// ErrorKind tells why a store operation failed.
type ErrorKind int

// The store error kinds.
const (
	OutOfOrderCommit ErrorKind = iota
	UnknownWrite
	WatermarkExceeded
	AccessFailed
)

func (k ErrorKind) String() string {
	switch k {
	case OutOfOrderCommit:
		return "out-of-order commit"
	case UnknownWrite:
		return "unknown write"
	case WatermarkExceeded:
		return "too many outstanding writes"
	default:
		return "access failed"
	}
}

// StoreError reports a misuse of the store buffer.
type StoreError struct {
	Kind   ErrorKind
	Cache  string
	ID     WriteID
	Detail string
	Err    error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("cachedmem: %s: %s of write %s", e.Cache, e.Kind, e.ID)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying access error, if any.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches store errors of the same kind.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrOutOfOrderCommit  = &StoreError{Kind: OutOfOrderCommit}
	ErrUnknownWrite      = &StoreError{Kind: UnknownWrite}
	ErrWatermarkExceeded = &StoreError{Kind: WatermarkExceeded}
	ErrAccessFailed      = &StoreError{Kind: AccessFailed}
)
