// Package port provides typed ports that carry payloads between units, and
// sync ports that carry them across clock domains.
package port

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tree"
)

// HookPosPortSend marks when a payload is sent out from a port. The hook item
// is the payload.
var HookPosPortSend = &sim.HookPos{Name: "Port Send"}

// HookPosPortReceive marks when a payload is handed to an in-port handler.
var HookPosPortReceive = &sim.HookPos{Name: "Port Receive"}

// Direction tells whether a port sends or receives.
type Direction int

// Port directions.
const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}

	return "out"
}

// A Port is the type-erased view of a port.
type Port interface {
	sim.Hookable

	Name() string
	Location() string
	Direction() Direction
	PayloadType() reflect.Type
	IsBound() bool

	bindTo(peer Port) error
}

// extensionName is the name under which a port set is attached to its unit.
const extensionName = "ports"

// A PortSet holds the ports of a unit node.
type PortSet struct {
	unit   *tree.Node
	ports  []Port
	byName map[string]Port
}

// NewPortSet creates the port set of a unit. A unit has one port set.
func NewPortSet(unit *tree.Node) *PortSet {
	if ext, found := unit.Extension(extensionName); found {
		return ext.(*PortSet)
	}

	ps := &PortSet{
		unit:   unit,
		byName: make(map[string]Port),
	}
	unit.SetExtension(extensionName, ps)

	return ps
}

// Unit returns the node that owns the ports.
func (ps *PortSet) Unit() *tree.Node {
	return ps.unit
}

// Ports returns the ports in creation order.
func (ps *PortSet) Ports() []Port {
	return ps.ports
}

// Port finds a port by name.
func (ps *PortSet) Port(name string) (Port, bool) {
	p, found := ps.byName[name]
	return p, found
}

func (ps *PortSet) location(name string) string {
	return ps.unit.Location() + "." + extensionName + "." + name
}

func (ps *PortSet) add(p Port) {
	if _, found := ps.byName[p.Name()]; found {
		panic(fmt.Sprintf("port: duplicated port %s", p.Location()))
	}

	ps.ports = append(ps.ports, p)
	ps.byName[p.Name()] = p
}

// Bind connects an out-port and an in-port in either order. Both must carry
// the same payload type. Binding the same pair twice is allowed; binding an
// in-port to a second producer is not.
func Bind(a, b Port) error {
	if a.Direction() == b.Direction() {
		return &PortError{
			Kind:   DirectionMismatch,
			Port:   a.Location(),
			Detail: fmt.Sprintf("both %s and %s are %s-ports",
				a.Location(), b.Location(), a.Direction()),
		}
	}

	if a.PayloadType() != b.PayloadType() {
		return &PortError{
			Kind: TypeMismatch,
			Port: a.Location(),
			Detail: fmt.Sprintf("%s carries %s, %s carries %s",
				a.Location(), a.PayloadType(), b.Location(), b.PayloadType()),
		}
	}

	if a.Direction() == In {
		a, b = b, a
	}

	return a.bindTo(b)
}

// FindPort resolves a location such as "top.cpu.lsu.ports.in_ack" under a
// root node.
func FindPort(root *tree.Node, location string) (Port, error) {
	sep := "." + extensionName + "."

	i := strings.LastIndex(location, sep)
	if i < 0 {
		return nil, &PortError{Kind: NotFound, Port: location}
	}

	unitPath, name := location[:i], location[i+len(sep):]

	unit := root
	if unitPath != root.Name() {
		rel, found := strings.CutPrefix(unitPath, root.Name()+".")
		if !found {
			return nil, &PortError{Kind: NotFound, Port: location}
		}

		var err error
		if unit, err = root.GetChild(rel); err != nil {
			return nil, &PortError{Kind: NotFound, Port: location, Detail: err.Error()}
		}
	}

	ext, found := unit.Extension(extensionName)
	if !found {
		return nil, &PortError{Kind: NotFound, Port: location}
	}

	p, found := ext.(*PortSet).Port(name)
	if !found {
		return nil, &PortError{Kind: NotFound, Port: location}
	}

	return p, nil
}

// BindByLocation finds two ports under a root and binds them.
func BindByLocation(root *tree.Node, a, b string) error {
	pa, err := FindPort(root, a)
	if err != nil {
		return err
	}

	pb, err := FindPort(root, b)
	if err != nil {
		return err
	}

	return Bind(pa, pb)
}
