package param

import "fmt"

// ErrorKind classifies parameter errors.
type ErrorKind int

// The kinds of parameter errors.
const (
	// TypeMismatch means a string value could not be parsed as the declared
	// type of the parameter.
	TypeMismatch ErrorKind = iota
	// ValidationFailed means a validator rejected a value.
	ValidationFailed
	// Unread means a parameter was never read during configuration.
	Unread
	// LockedWrite means a locked parameter was written outside the initial
	// configuration and not by one of its modifiers.
	LockedWrite
	// FrozenWrite means a parameter was written after its set was frozen.
	FrozenWrite
	// UnknownKey means a configuration key matches no parameter.
	UnknownKey
	// DuplicateName means two parameters in a set share a name.
	DuplicateName
)

var errorKindNames = map[ErrorKind]string{
	TypeMismatch:     "type mismatch",
	ValidationFailed: "validation failed",
	Unread:           "parameter never read",
	LockedWrite:      "write to locked parameter",
	FrozenWrite:      "write to frozen parameter",
	UnknownKey:       "unknown parameter key",
	DuplicateName:    "duplicated parameter name",
}

func (k ErrorKind) String() string {
	if n, ok := errorKindNames[k]; ok {
		return n
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// A ParameterError reports a failure related to a parameter or to a
// configuration key.
type ParameterError struct {
	Kind   ErrorKind
	Param  string
	Detail string
}

func (e *ParameterError) Error() string {
	msg := "param: " + e.Kind.String()

	if e.Param != "" {
		msg += " " + e.Param
	}

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	return msg
}

// Is matches parameter errors of the same kind, so that errors.Is can be
// used with a ParameterError that only carries a kind.
func (e *ParameterError) Is(target error) bool {
	t, ok := target.(*ParameterError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Param == "" || t.Param == e.Param)
}

// ErrUnread matches unread parameter errors with errors.Is.
var ErrUnread = &ParameterError{Kind: Unread}

// ErrUnknownKey matches unknown key errors with errors.Is.
var ErrUnknownKey = &ParameterError{Kind: UnknownKey}

// ErrLocked matches locked write errors with errors.Is.
var ErrLocked = &ParameterError{Kind: LockedWrite}

// ErrValidation matches validation errors with errors.Is.
var ErrValidation = &ParameterError{Kind: ValidationFailed}

// ErrTypeMismatch matches parse errors with errors.Is.
var ErrTypeMismatch = &ParameterError{Kind: TypeMismatch}

// ErrFrozen matches writes to frozen sets with errors.Is.
var ErrFrozen = &ParameterError{Kind: FrozenWrite}
