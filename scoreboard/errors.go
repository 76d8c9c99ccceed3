package scoreboard

import "fmt"

// ErrorKind tells why a scoreboard operation failed.
type ErrorKind int

// The scoreboard error kinds.
const (
	UnknownUnit ErrorKind = iota
	BadMatrix
	WrongScoreboard
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownUnit:
		return "unknown unit"
	case BadMatrix:
		return "bad latency matrix"
	default:
		return "view of another scoreboard"
	}
}

// ScoreboardError reports a scoreboard failure.
type ScoreboardError struct {
	Kind       ErrorKind
	Scoreboard string
	Detail     string
}

func (e *ScoreboardError) Error() string {
	where := ""
	if e.Scoreboard != "" {
		where = e.Scoreboard + ": "
	}

	return fmt.Sprintf("scoreboard: %s%s: %s", where, e.Kind, e.Detail)
}

// Is matches errors of the same kind.
func (e *ScoreboardError) Is(target error) bool {
	t, ok := target.(*ScoreboardError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnknownUnit     = &ScoreboardError{Kind: UnknownUnit}
	ErrBadMatrix       = &ScoreboardError{Kind: BadMatrix}
	ErrWrongScoreboard = &ScoreboardError{Kind: WrongScoreboard}
)
