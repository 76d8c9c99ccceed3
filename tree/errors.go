package tree

import "fmt"

// A PhaseError reports an operation that the current tree phase does not
// allow.
type PhaseError struct {
	Op       string
	Node     string
	Phase    Phase
	Required Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("tree: cannot %s %s in phase %s, requires %s",
		e.Op, e.Node, e.Phase, e.Required)
}

// TreeErrorKind classifies tree errors.
type TreeErrorKind int

// The kinds of tree errors.
const (
	DuplicateChild TreeErrorKind = iota
	MissingChild
	NoMatch
	CyclicReparent
	DuplicateFactory
	UnknownFactory
)

var treeErrorNames = map[TreeErrorKind]string{
	DuplicateChild:   "duplicated child",
	MissingChild:     "missing child",
	NoMatch:          "no node matches",
	CyclicReparent:   "cyclic reparenting",
	DuplicateFactory: "duplicated resource factory",
	UnknownFactory:   "unknown resource factory",
}

func (k TreeErrorKind) String() string {
	if n, ok := treeErrorNames[k]; ok {
		return n
	}

	return fmt.Sprintf("TreeErrorKind(%d)", int(k))
}

// A TreeError reports a structural problem of the tree.
type TreeError struct {
	Kind   TreeErrorKind
	Node   string
	Detail string
}

func (e *TreeError) Error() string {
	msg := fmt.Sprintf("tree: %s", e.Kind)

	if e.Node != "" {
		msg += " at " + e.Node
	}

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	return msg
}

// Is matches tree errors of the same kind.
func (e *TreeError) Is(target error) bool {
	t, ok := target.(*TreeError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrDuplicateChild   = &TreeError{Kind: DuplicateChild}
	ErrMissingChild     = &TreeError{Kind: MissingChild}
	ErrNoMatch          = &TreeError{Kind: NoMatch}
	ErrCyclicReparent   = &TreeError{Kind: CyclicReparent}
	ErrDuplicateFactory = &TreeError{Kind: DuplicateFactory}
	ErrUnknownFactory   = &TreeError{Kind: UnknownFactory}
)
