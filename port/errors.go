package port

import "fmt"

// ErrorKind classifies port errors.
type ErrorKind int

// The kinds of port errors.
const (
	TypeMismatch ErrorKind = iota
	DirectionMismatch
	Unbound
	AlreadyBound
	SendTooEarly
	NotFound
)

var errorKindNames = map[ErrorKind]string{
	TypeMismatch:      "payload type mismatch",
	DirectionMismatch: "direction mismatch",
	Unbound:           "port is not bound",
	AlreadyBound:      "port is already bound",
	SendTooEarly:      "send before the next available cycle",
	NotFound:          "port not found",
}

func (k ErrorKind) String() string {
	if n, ok := errorKindNames[k]; ok {
		return n
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// A PortError reports a binding or sending failure.
type PortError struct {
	Kind   ErrorKind
	Port   string
	Detail string
}

func (e *PortError) Error() string {
	msg := "port: " + e.Kind.String()

	if e.Port != "" {
		msg += " " + e.Port
	}

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	return msg
}

// Is matches port errors of the same kind.
func (e *PortError) Is(target error) bool {
	t, ok := target.(*PortError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrTypeMismatch      = &PortError{Kind: TypeMismatch}
	ErrDirectionMismatch = &PortError{Kind: DirectionMismatch}
	ErrUnbound           = &PortError{Kind: Unbound}
	ErrAlreadyBound      = &PortError{Kind: AlreadyBound}
	ErrSendTooEarly      = &PortError{Kind: SendTooEarly}
	ErrNotFound          = &PortError{Kind: NotFound}
)
