package tree

import "github.com/sarchlab/sparta/param"

// A ResourceFactory builds the resource of a node. Factories are registered
// on the root by name.
type ResourceFactory interface {
	// Name is the resource type name the factory is registered under.
	Name() string

	// NewParameterSet creates the parameters of a resource at the location.
	NewParameterSet(location string) *param.Set

	// Create builds the resource from the node's parameters.
	Create(n *Node) (any, error)

	// BindEarly runs after all resources exist. Ports are usually bound here.
	BindEarly(n *Node) error

	// BindLate runs after every BindEarly.
	BindLate(n *Node) error

	// Destroy releases the resource during teardown.
	Destroy(n *Node) error
}

// Factory is a ResourceFactory made of functions. Nil functions do nothing.
type Factory struct {
	TypeName    string
	ParamsFunc  func(location string) *param.Set
	CreateFunc  func(n *Node) (any, error)
	EarlyFunc   func(n *Node) error
	LateFunc    func(n *Node) error
	DestroyFunc func(n *Node) error
}

// Name returns TypeName.
func (f *Factory) Name() string {
	return f.TypeName
}

// NewParameterSet calls ParamsFunc or returns an empty set.
func (f *Factory) NewParameterSet(location string) *param.Set {
	if f.ParamsFunc == nil {
		return param.NewSet(location)
	}

	return f.ParamsFunc(location)
}

// Create calls CreateFunc.
func (f *Factory) Create(n *Node) (any, error) {
	if f.CreateFunc == nil {
		return nil, nil
	}

	return f.CreateFunc(n)
}

// BindEarly calls EarlyFunc.
func (f *Factory) BindEarly(n *Node) error {
	return callIfSet(f.EarlyFunc, n)
}

// BindLate calls LateFunc.
func (f *Factory) BindLate(n *Node) error {
	return callIfSet(f.LateFunc, n)
}

// Destroy calls DestroyFunc.
func (f *Factory) Destroy(n *Node) error {
	return callIfSet(f.DestroyFunc, n)
}

func callIfSet(fn func(*Node) error, n *Node) error {
	if fn == nil {
		return nil
	}

	return fn(n)
}

// ResourceAs returns the resource of a node as a T.
func ResourceAs[T any](n *Node) (T, bool) {
	r, ok := n.resource.(T)
	return r, ok
}

// FindResources returns, in pre-order, the resources below n (n included)
// that are of type T.
func FindResources[T any](n *Node) []T {
	var found []T

	n.Walk(func(c *Node) bool {
		if r, ok := c.resource.(T); ok {
			found = append(found, r)
		}

		return true
	})

	return found
}
