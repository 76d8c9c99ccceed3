package tree

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/sparta/param"
	"github.com/sarchlab/sparta/sim"
)

// Phase is the lifecycle phase of a tree. Phases only move forward.
type Phase int

// The tree phases, in order.
const (
	Building Phase = iota
	Configuring
	Finalizing
	Finalized
	Teardown
)

func (p Phase) String() string {
	switch p {
	case Building:
		return "Building"
	case Configuring:
		return "Configuring"
	case Finalizing:
		return "Finalizing"
	case Finalized:
		return "Finalized"
	case Teardown:
		return "Teardown"
	}

	return fmt.Sprintf("Phase(%d)", int(p))
}

// A Root is the top of a device tree. It owns the scheduler, the clocks, the
// parameter overlay and the resource factories of the simulation, so several
// roots can live side by side.
type Root struct {
	*Node

	phase     Phase
	scheduler *sim.Scheduler
	clocks    *sim.ClockManager
	overlay   param.Overlay
	factories map[string]ResourceFactory
	order     []string
}

// NewRoot creates a root node in the Building phase, with a fresh scheduler
// and clock manager.
func NewRoot(name string) *Root {
	s := sim.NewScheduler()
	r := &Root{
		scheduler: s,
		clocks:    sim.NewClockManager(s),
		factories: make(map[string]ResourceFactory),
	}

	r.Node = newNode(r, name, "root")

	return r
}

// Phase returns the current phase.
func (r *Root) Phase() Phase { return r.phase }

// Scheduler returns the scheduler.
func (r *Root) Scheduler() *sim.Scheduler { return r.scheduler }

// Clocks returns the clock manager.
func (r *Root) Clocks() *sim.ClockManager { return r.clocks }

// Overlay returns the parameter overlay, or nil.
func (r *Root) Overlay() param.Overlay { return r.overlay }

func (r *Root) requirePhase(op string, n *Node, want Phase) error {
	if r.phase != want {
		return &PhaseError{
			Op:       op,
			Node:     n.Location(),
			Phase:    r.phase,
			Required: want,
		}
	}

	return nil
}

// RegisterFactory makes a factory available to NewResourceNode.
func (r *Root) RegisterFactory(f ResourceFactory) error {
	if r.phase > Configuring {
		return &PhaseError{
			Op:       "register factory on",
			Node:     r.Location(),
			Phase:    r.phase,
			Required: Configuring,
		}
	}

	if _, found := r.factories[f.Name()]; found {
		return &TreeError{Kind: DuplicateFactory, Detail: f.Name()}
	}

	r.factories[f.Name()] = f
	r.order = append(r.order, f.Name())

	return nil
}

// Factories returns the names of the registered factories.
func (r *Root) Factories() []string {
	return r.order
}

// SetOverlay sets the virtual parameter tree. It is applied when the tree
// enters Configuring.
func (r *Root) SetOverlay(o param.Overlay) error {
	if err := r.requirePhase("set overlay on", r.Node, Building); err != nil {
		return err
	}

	r.overlay = o

	return nil
}

// EnterConfiguring closes the tree structure and writes the overlay values
// into every parameter set. It ends the initial configuration, so locked
// parameters only change from modifier callbacks afterwards.
func (r *Root) EnterConfiguring() error {
	if err := r.requirePhase("configure", r.Node, Building); err != nil {
		return err
	}

	r.phase = Configuring

	var err error

	r.Walk(func(n *Node) bool {
		if err != nil {
			return false
		}

		if n.params == nil {
			return true
		}

		if r.overlay != nil {
			err = n.params.ApplyOverlay(r.overlay)
		}

		n.params.FinishInitialConfiguration()

		return true
	})

	return err
}

// Finalize builds the simulation. It validates and freezes parameters,
// normalizes the clocks, creates resources, checks that every parameter and
// every overlay key was used, binds resources, adds auto-precedence and
// finalizes the scheduler.
func (r *Root) Finalize() error {
	if err := r.requirePhase("finalize", r.Node, Configuring); err != nil {
		return err
	}

	r.phase = Finalizing

	steps := []func() error{
		r.freezeParams,
		r.normalizeClocks,
		r.createResources,
		r.checkParamsUsed,
		r.bind,
		r.addAutoPrecedence,
		r.scheduler.Finalize,
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	r.phase = Finalized

	return nil
}

func (r *Root) eachNode(fn func(n *Node) error) error {
	var err error

	r.Walk(func(n *Node) bool {
		if err == nil {
			err = fn(n)
		}

		return err == nil
	})

	return err
}

func (r *Root) freezeParams() error {
	return r.eachNode(func(n *Node) error {
		if n.params == nil {
			return nil
		}

		if err := n.params.Validate(); err != nil {
			return err
		}

		n.params.Freeze()

		return nil
	})
}

func (r *Root) normalizeClocks() error {
	if r.clocks.Root() == nil {
		return nil
	}

	return errors.Wrap(r.clocks.Normalize(), "tree: normalizing clocks")
}

func (r *Root) createResources() error {
	return r.eachNode(func(n *Node) error {
		if n.factory == nil {
			return nil
		}

		res, err := n.factory.Create(n)
		if err != nil {
			return errors.Wrapf(err, "tree: creating %s (%s)",
				n.Location(), n.factory.Name())
		}

		n.resource = res

		return nil
	})
}

func (r *Root) checkParamsUsed() error {
	var unread []string

	_ = r.eachNode(func(n *Node) error {
		if n.params == nil {
			return nil
		}

		for _, p := range n.params.Unread() {
			unread = append(unread, p.Location())
		}

		return nil
	})

	if len(unread) > 0 {
		return &param.ParameterError{
			Kind:   param.Unread,
			Detail: strings.Join(unread, ", "),
		}
	}

	if r.overlay != nil {
		return param.CheckAllUsed(r.overlay)
	}

	return nil
}

func (r *Root) bind() error {
	err := r.eachNode(func(n *Node) error {
		if n.factory == nil {
			return nil
		}

		return errors.Wrapf(n.factory.BindEarly(n),
			"tree: early binding %s", n.Location())
	})
	if err != nil {
		return err
	}

	return r.eachNode(func(n *Node) error {
		if n.factory == nil {
			return nil
		}

		return errors.Wrapf(n.factory.BindLate(n),
			"tree: late binding %s", n.Location())
	})
}

func (r *Root) addAutoPrecedence() error {
	dag := r.scheduler.DAG()

	return r.eachNode(func(n *Node) error {
		return errors.Wrapf(n.addAutoPrecedence(dag),
			"tree: auto-precedence of %s", n.Location())
	})
}

// Run runs the scheduler of a finalized tree.
func (r *Root) Run(maxTicks sim.Tick, exacting bool) error {
	if err := r.requirePhase("run", r.Node, Finalized); err != nil {
		return err
	}

	return r.scheduler.Run(maxTicks, exacting)
}

// EnterTeardown destroys the resources, children before parents.
func (r *Root) EnterTeardown() error {
	if r.phase == Teardown {
		return nil
	}

	r.phase = Teardown

	return r.destroy(r.Node)
}

func (r *Root) destroy(n *Node) error {
	for i := len(n.children) - 1; i >= 0; i-- {
		if err := r.destroy(n.children[i]); err != nil {
			return err
		}
	}

	if n.factory == nil || n.resource == nil {
		return nil
	}

	if err := n.factory.Destroy(n); err != nil {
		return errors.Wrapf(err, "tree: destroying %s", n.Location())
	}

	n.resource = nil

	return nil
}

// DumpParameters writes the parameters of every node.
func (r *Root) DumpParameters(w io.Writer) error {
	return r.eachNode(func(n *Node) error {
		if n.params == nil || n.params.Len() == 0 {
			return nil
		}

		return n.params.Dump(w)
	})
}
