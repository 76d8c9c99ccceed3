// Package tree provides the device tree: named nodes that own resources,
// parameters and clocks, and the lifecycle that turns a described tree into a
// runnable simulation.
package tree

import (
	"path"
	"sort"
	"strings"

	"github.com/sarchlab/sparta/param"
	"github.com/sarchlab/sparta/sim"
)

// Role tells how a registered scheduleable takes part in auto-precedence.
type Role int

// The auto-precedence roles.
const (
	// RoleEvent is an event of the unit. Tick-phase events sit between the
	// in-ports and the out-ports.
	RoleEvent Role = iota
	// RoleInPort is the handler of an in-port.
	RoleInPort
	// RoleOutPort is the vertex of a zero-cycle out-port.
	RoleOutPort
)

// autoPrecedenceOpter is implemented by registered scheduleables that can
// leave auto-precedence after registration, such as ports.
type autoPrecedenceOpter interface {
	AutoPrecedenceEnabled() bool
}

type registered struct {
	role Role
	p    sim.Precedable
}

// A Node is an element of the device tree.
type Node struct {
	name       string
	group      string
	groupIndex int
	desc       string

	root     *Root
	parent   *Node
	children []*Node
	byName   map[string]*Node

	tags  map[string]struct{}
	clock *sim.Clock

	params   *param.Set
	factory  ResourceFactory
	resource any

	schedulables   []registered
	autoPrecedence bool

	extensions map[string]any
}

// NewNode adds a node under a parent. Nodes can only be added while the tree
// is being built, and sibling names must be unique.
func NewNode(parent *Node, name, desc string) (*Node, error) {
	if parent == nil {
		return nil, &TreeError{Kind: MissingChild, Detail: "nil parent for " + name}
	}

	if err := parent.root.requirePhase("add child to", parent, Building); err != nil {
		return nil, err
	}

	if name == "" || strings.ContainsAny(name, ".*?[]") {
		return nil, &TreeError{
			Kind:   NoMatch,
			Node:   parent.Location(),
			Detail: "invalid node name " + `"` + name + `"`,
		}
	}

	if _, found := parent.byName[name]; found {
		return nil, &TreeError{
			Kind:   DuplicateChild,
			Node:   parent.Location(),
			Detail: name,
		}
	}

	n := newNode(parent.root, name, desc)
	n.parent = parent
	parent.children = append(parent.children, n)
	parent.byName[name] = n

	return n, nil
}

// NewResourceNode adds a node whose resource is built by the named factory.
// The node gets the parameter set of the factory.
func NewResourceNode(parent *Node, name, factoryName, desc string) (*Node, error) {
	if parent == nil {
		return nil, &TreeError{Kind: MissingChild, Detail: "nil parent for " + name}
	}

	f, found := parent.root.factories[factoryName]
	if !found {
		return nil, &TreeError{
			Kind:   UnknownFactory,
			Node:   parent.Location() + "." + name,
			Detail: factoryName,
		}
	}

	n, err := NewNode(parent, name, desc)
	if err != nil {
		return nil, err
	}

	n.factory = f
	if ps := f.NewParameterSet(n.Location()); ps != nil {
		n.params = ps
	}

	return n, nil
}

func newNode(root *Root, name, desc string) *Node {
	return &Node{
		name:           name,
		desc:           desc,
		root:           root,
		byName:         make(map[string]*Node),
		tags:           make(map[string]struct{}),
		groupIndex:     -1,
		autoPrecedence: true,
	}
}

// Name returns the name of the node.
func (n *Node) Name() string { return n.name }

// Description returns the description of the node.
func (n *Node) Description() string { return n.desc }

// Group returns the group name and the index of the node in the group. The
// index is -1 when the node is not in a group.
func (n *Node) Group() (string, int) { return n.group, n.groupIndex }

// SetGroup places the node in a group, such as "core" index 3.
func (n *Node) SetGroup(group string, index int) error {
	if err := n.root.requirePhase("set group of", n, Building); err != nil {
		return err
	}

	n.group = group
	n.groupIndex = index

	return nil
}

// Root returns the root of the tree.
func (n *Node) Root() *Root { return n.root }

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the children in insertion order.
func (n *Node) Children() []*Node { return n.children }

// Location returns the dotted path from the root to the node.
func (n *Node) Location() string {
	if n.parent == nil {
		return n.name
	}

	return n.parent.Location() + "." + n.name
}

func (n *Node) String() string {
	return n.Location()
}

// Params returns the parameter set of the node. Nodes without a factory get
// an empty set on first use.
func (n *Node) Params() *param.Set {
	if n.params == nil {
		n.params = param.NewSet(n.Location())
	}

	return n.params
}

// Factory returns the resource factory of the node, or nil.
func (n *Node) Factory() ResourceFactory { return n.factory }

// Resource returns the resource built for the node, or nil.
func (n *Node) Resource() any { return n.resource }

// SetResource attaches a resource that was built without a factory.
func (n *Node) SetResource(r any) { n.resource = r }

// AddTag tags the node.
func (n *Node) AddTag(tag string) error {
	if err := n.root.requirePhase("tag", n, Building); err != nil {
		return err
	}

	n.tags[tag] = struct{}{}

	return nil
}

// HasTag tells if the node carries the tag.
func (n *Node) HasTag(tag string) bool {
	_, found := n.tags[tag]
	return found
}

// Tags returns the tags in sorted order.
func (n *Node) Tags() []string {
	tags := make([]string, 0, len(n.tags))
	for t := range n.tags {
		tags = append(tags, t)
	}

	sort.Strings(tags)

	return tags
}

// SetClock associates a clock with the node and its descendants that have no
// clock of their own.
func (n *Node) SetClock(c *sim.Clock) {
	n.clock = c
}

// Clock returns the clock of the node, inherited from the closest ancestor
// with a clock. If no ancestor has one, the root clock of the manager is
// returned.
func (n *Node) Clock() *sim.Clock {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.clock != nil {
			return cur.clock
		}
	}

	return n.root.clocks.Root()
}

// Scheduler returns the scheduler of the tree.
func (n *Node) Scheduler() *sim.Scheduler {
	return n.root.scheduler
}

// Child returns the direct child with the given name.
func (n *Node) Child(name string) (*Node, bool) {
	c, found := n.byName[name]
	return c, found
}

// GetChild follows a dotted path of exact names below the node.
func (n *Node) GetChild(relPath string) (*Node, error) {
	cur := n

	for _, seg := range strings.Split(relPath, ".") {
		next, found := cur.byName[seg]
		if !found {
			return nil, &TreeError{
				Kind:   MissingChild,
				Node:   cur.Location(),
				Detail: seg,
			}
		}

		cur = next
	}

	return cur, nil
}

// FindChildren resolves a dotted path whose segments may hold glob patterns,
// such as "core*.lsu". Matches are returned in tree order.
func (n *Node) FindChildren(pattern string) ([]*Node, error) {
	current := []*Node{n}

	for _, seg := range strings.Split(pattern, ".") {
		if _, err := path.Match(seg, ""); err != nil {
			return nil, &TreeError{
				Kind:   NoMatch,
				Node:   n.Location(),
				Detail: "bad pattern " + pattern,
			}
		}

		var next []*Node

		for _, c := range current {
			for _, child := range c.children {
				if ok, _ := path.Match(seg, child.name); ok {
					next = append(next, child)
				}
			}
		}

		current = next
	}

	if len(current) == 0 {
		return nil, &TreeError{Kind: NoMatch, Node: n.Location(), Detail: pattern}
	}

	return current, nil
}

// FindByTag returns the node and its descendants that carry the tag, in
// pre-order.
func (n *Node) FindByTag(tag string) []*Node {
	var found []*Node

	n.Walk(func(c *Node) bool {
		if c.HasTag(tag) {
			found = append(found, c)
		}

		return true
	})

	return found
}

// Walk visits the node and its descendants in pre-order. Returning false from
// visit skips the children of the visited node.
func (n *Node) Walk(visit func(*Node) bool) {
	if !visit(n) {
		return
	}

	for _, c := range n.children {
		c.Walk(visit)
	}
}

// Reparent moves the node under a new parent.
func (n *Node) Reparent(newParent *Node) error {
	if err := n.root.requirePhase("reparent", n, Building); err != nil {
		return err
	}

	if n.parent == nil {
		return &TreeError{Kind: CyclicReparent, Node: n.Location(),
			Detail: "the root cannot be moved"}
	}

	for cur := newParent; cur != nil; cur = cur.parent {
		if cur == n {
			return &TreeError{
				Kind:   CyclicReparent,
				Node:   n.Location(),
				Detail: "new parent " + newParent.Location() + " is a descendant",
			}
		}
	}

	if _, found := newParent.byName[n.name]; found {
		return &TreeError{
			Kind:   DuplicateChild,
			Node:   newParent.Location(),
			Detail: n.name,
		}
	}

	old := n.parent
	delete(old.byName, n.name)

	for i, c := range old.children {
		if c == n {
			old.children = append(old.children[:i], old.children[i+1:]...)
			break
		}
	}

	n.parent = newParent
	newParent.children = append(newParent.children, n)
	newParent.byName[n.name] = n

	n.Walk(func(c *Node) bool {
		if c.params != nil {
			c.params.SetPath(c.Location())
		}

		return true
	})

	return nil
}

// SetExtension attaches a named helper object, such as the port set of a
// unit, to the node.
func (n *Node) SetExtension(name string, ext any) {
	if n.extensions == nil {
		n.extensions = make(map[string]any)
	}

	n.extensions[name] = ext
}

// Extension returns a helper object attached with SetExtension.
func (n *Node) Extension(name string) (any, bool) {
	ext, found := n.extensions[name]
	return ext, found
}

// RegisterSchedulable records an event or port vertex of the unit for
// auto-precedence.
func (n *Node) RegisterSchedulable(role Role, p sim.Precedable) {
	n.schedulables = append(n.schedulables, registered{role: role, p: p})
}

// DisableAutoPrecedence stops Finalize from ordering the unit's ports
// around its Tick-phase events.
func (n *Node) DisableAutoPrecedence() {
	n.autoPrecedence = false
}

// addAutoPrecedence orders every in-port handler before every Tick-phase event
// and every Tick-phase event before every zero-cycle out-port.
func (n *Node) addAutoPrecedence(dag *sim.DAG) error {
	if !n.autoPrecedence {
		return nil
	}

	var ins, ticks, outs []*sim.Vertex

	for _, r := range n.schedulables {
		if o, ok := r.p.(autoPrecedenceOpter); ok && !o.AutoPrecedenceEnabled() {
			continue
		}

		v := r.p.Vertex()

		switch r.role {
		case RoleInPort:
			ins = append(ins, v)
		case RoleOutPort:
			outs = append(outs, v)
		case RoleEvent:
			if v.Phase() == sim.PhaseTick {
				ticks = append(ticks, v)
			}
		}
	}

	for _, t := range ticks {
		for _, in := range ins {
			if in.Phase() > t.Phase() {
				continue
			}

			if err := dag.Link(in, t); err != nil {
				return err
			}
		}

		for _, out := range outs {
			if out.Phase() < t.Phase() {
				continue
			}

			if err := dag.Link(t, out); err != nil {
				return err
			}
		}
	}

	return nil
}
