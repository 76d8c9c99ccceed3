// Package param provides typed, validated parameters and the virtual
// parameter tree that configures them.
package param

import (
	"fmt"
	"reflect"
)

// Attribute is a set of flags that change how a parameter can be accessed.
type Attribute int

// Parameter attributes. Normal is the absence of all flags.
const (
	Normal Attribute = 0
	// Locked parameters can only be written during the initial configuration
	// or by one of their modifiers.
	Locked Attribute = 1 << iota
	// Hidden parameters are left out of dumps.
	Hidden
	// Volatile parameters re-read the overlay on every read and remain
	// writable after the set is frozen.
	Volatile
)

func (a Attribute) String() string {
	if a == Normal {
		return "normal"
	}

	s := ""
	for _, f := range []struct {
		a    Attribute
		name string
	}{{Locked, "locked"}, {Hidden, "hidden"}, {Volatile, "volatile"}} {
		if a&f.a != 0 {
			if s != "" {
				s += "|"
			}
			s += f.name
		}
	}

	return s
}

// Param is the type-erased view of a parameter.
type Param interface {
	Name() string
	Location() string
	Doc() string
	Kind() Kind
	Attributes() Attribute
	Has(a Attribute) bool
	ValueString() string
	DefaultString() string
	SetFromString(s string) error
	IsDefault() bool
	ReadCount() int
	WriteCount() int
	IsIgnored() bool
	Ignore()
	Validate() error
	Owner() *Set
}

// A Validator checks a candidate value. It returns false and a message to
// reject the value.
type Validator[T Value] func(v T) (bool, string)

// A Parameter is a named, typed value with a default.
type Parameter[T Value] struct {
	name       string
	doc        string
	kind       Kind
	def        T
	value      T
	attrs      Attribute
	reads      int
	writes     int
	ignored    bool
	set        *Set
	validators []Validator[T]
	modifiers  []Param
	onWrite    []func(T) error
}

// New adds a parameter to a set. It panics if the name is taken.
func New[T Value](s *Set, name string, def T, doc string) *Parameter[T] {
	p := &Parameter[T]{
		name:  name,
		doc:   doc,
		kind:  KindOf[T](),
		def:   def,
		value: def,
		set:   s,
	}

	s.add(p)

	return p
}

// Lookup finds a parameter of a known type in a set.
func Lookup[T Value](s *Set, name string) (*Parameter[T], bool) {
	p, found := s.Param(name)
	if !found {
		return nil, false
	}

	typed, ok := p.(*Parameter[T])

	return typed, ok
}

// Lock marks the parameter locked.
func (p *Parameter[T]) Lock() *Parameter[T] {
	p.attrs |= Locked
	return p
}

// Hide marks the parameter hidden.
func (p *Parameter[T]) Hide() *Parameter[T] {
	p.attrs |= Hidden
	return p
}

// MakeVolatile marks the parameter volatile.
func (p *Parameter[T]) MakeVolatile() *Parameter[T] {
	p.attrs |= Volatile
	return p
}

// AddValidator adds a check that every written value must pass.
func (p *Parameter[T]) AddValidator(v Validator[T]) *Parameter[T] {
	p.validators = append(p.validators, v)
	return p
}

// AllowModifier lets m write this parameter while it is locked. The write must
// happen from a callback registered with m.OnWrite.
func (p *Parameter[T]) AllowModifier(m Param) *Parameter[T] {
	p.modifiers = append(p.modifiers, m)
	return p
}

// OnWrite registers a callback invoked after each successful write. The
// parameter is on top of the modifier stack while the callback runs.
func (p *Parameter[T]) OnWrite(fn func(T) error) *Parameter[T] {
	p.onWrite = append(p.onWrite, fn)
	return p
}

// Name returns the name of the parameter.
func (p *Parameter[T]) Name() string { return p.name }

// Location returns the dotted path of the parameter.
func (p *Parameter[T]) Location() string { return p.set.qualify(p.name) }

// Doc returns the documentation string.
func (p *Parameter[T]) Doc() string { return p.doc }

// Kind returns the type tag of the parameter.
func (p *Parameter[T]) Kind() Kind { return p.kind }

// Attributes returns the attribute flags.
func (p *Parameter[T]) Attributes() Attribute { return p.attrs }

// Has tells if all the given attribute flags are set.
func (p *Parameter[T]) Has(a Attribute) bool { return p.attrs&a == a }

// Owner returns the set that holds the parameter.
func (p *Parameter[T]) Owner() *Set { return p.set }

// ReadCount returns how many times Get was called.
func (p *Parameter[T]) ReadCount() int { return p.reads }

// WriteCount returns how many writes succeeded.
func (p *Parameter[T]) WriteCount() int { return p.writes }

// IsIgnored tells if the parameter is excused from the unread check.
func (p *Parameter[T]) IsIgnored() bool { return p.ignored }

// Ignore excuses the parameter from the unread check.
func (p *Parameter[T]) Ignore() { p.ignored = true }

// Default returns the default value.
func (p *Parameter[T]) Default() T { return p.def }

// Get returns the value and counts the read. Volatile parameters refresh the
// value from the overlay first.
func (p *Parameter[T]) Get() T {
	p.reads++

	if p.Has(Volatile) && p.set.source != nil {
		if raw, found := p.set.source.Lookup(p.Location()); found {
			if v, err := Parse[T](raw); err == nil {
				p.value = v
			}
		}
	}

	return p.value
}

// Peek returns the value without counting a read.
func (p *Parameter[T]) Peek() T {
	return p.value
}

// IsDefault tells if the value equals the default.
func (p *Parameter[T]) IsDefault() bool {
	return reflect.DeepEqual(p.value, p.def)
}

// ValueString returns the value in string form.
func (p *Parameter[T]) ValueString() string {
	return Format(p.value)
}

// DefaultString returns the default in string form.
func (p *Parameter[T]) DefaultString() string {
	return Format(p.def)
}

// Set writes the value. The write fails if the parameter is locked or frozen,
// or if a validator rejects the value. A failed write changes nothing.
func (p *Parameter[T]) Set(v T) error {
	if err := p.checkWritable(); err != nil {
		return err
	}

	if err := p.check(v); err != nil {
		return err
	}

	old, oldWrites := p.value, p.writes
	p.value = v
	p.writes++

	for _, fn := range p.onWrite {
		err := p.set.WithModifier(p, func() error { return fn(v) })
		if err != nil {
			p.value, p.writes = old, oldWrites
			return err
		}
	}

	return nil
}

// SetFromString parses and writes the value.
func (p *Parameter[T]) SetFromString(s string) error {
	v, err := Parse[T](s)
	if err != nil {
		return &ParameterError{
			Kind:   TypeMismatch,
			Param:  p.Location(),
			Detail: fmt.Sprintf("cannot parse %q as %s: %v", s, p.kind, err),
		}
	}

	return p.Set(v)
}

// Validate runs the validators on the current value.
func (p *Parameter[T]) Validate() error {
	return p.check(p.value)
}

func (p *Parameter[T]) check(v T) error {
	for _, validate := range p.validators {
		if ok, msg := validate(v); !ok {
			return &ParameterError{
				Kind:   ValidationFailed,
				Param:  p.Location(),
				Detail: fmt.Sprintf("%s: %s", Format(v), msg),
			}
		}
	}

	return nil
}

func (p *Parameter[T]) checkWritable() error {
	s := p.set

	if s.frozen && !p.Has(Volatile) {
		return &ParameterError{Kind: FrozenWrite, Param: p.Location()}
	}

	if p.Has(Locked) && !s.initial && !p.modifierOnTop() {
		return &ParameterError{Kind: LockedWrite, Param: p.Location()}
	}

	return nil
}

func (p *Parameter[T]) modifierOnTop() bool {
	top := p.set.topModifier()
	if top == nil {
		return false
	}

	for _, m := range p.modifiers {
		if m == top {
			return true
		}
	}

	return false
}
