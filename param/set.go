package param

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// A CrossValidator checks relations between parameters of a set.
type CrossValidator func(s *Set) (bool, string)

type namedValidator struct {
	name string
	fn   CrossValidator
}

// A Set holds the parameters of one tree node.
//
// A set starts in its initial configuration, where locked parameters can be
// written. FinishInitialConfiguration ends it; Freeze then makes every
// non-volatile parameter read-only.
type Set struct {
	path       string
	params     []Param
	byName     map[string]Param
	validators []namedValidator
	initial    bool
	frozen     bool
	modifiers  []Param
	source     Source
}

// NewSet creates an empty set. Parameter locations are prefixed by path.
func NewSet(path string) *Set {
	return &Set{
		path:    path,
		byName:  make(map[string]Param),
		initial: true,
	}
}

// Path returns the location prefix of the set.
func (s *Set) Path() string {
	return s.path
}

// SetPath changes the location prefix.
func (s *Set) SetPath(path string) {
	s.path = path
}

func (s *Set) qualify(name string) string {
	if s.path == "" {
		return name
	}

	return s.path + "." + name
}

func (s *Set) add(p Param) {
	if _, found := s.byName[p.Name()]; found {
		panic(&ParameterError{Kind: DuplicateName, Param: s.qualify(p.Name())})
	}

	s.params = append(s.params, p)
	s.byName[p.Name()] = p
}

// Params returns the parameters in declaration order.
func (s *Set) Params() []Param {
	return s.params
}

// Param finds a parameter by name.
func (s *Set) Param(name string) (Param, bool) {
	p, found := s.byName[name]
	return p, found
}

// Len returns the number of parameters.
func (s *Set) Len() int {
	return len(s.params)
}

// AddValidator adds a check that involves several parameters. It runs in
// Validate.
func (s *Set) AddValidator(name string, fn CrossValidator) {
	s.validators = append(s.validators, namedValidator{name: name, fn: fn})
}

// Validate runs every parameter validator and every cross validator.
func (s *Set) Validate() error {
	for _, p := range s.params {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	for _, v := range s.validators {
		if ok, msg := v.fn(s); !ok {
			return &ParameterError{
				Kind:   ValidationFailed,
				Param:  s.qualify(v.name),
				Detail: msg,
			}
		}
	}

	return nil
}

// Unread returns the parameters that were never read and are not ignored.
func (s *Set) Unread() []Param {
	var unread []Param

	for _, p := range s.params {
		if p.ReadCount() == 0 && !p.IsIgnored() {
			unread = append(unread, p)
		}
	}

	return unread
}

// IsInitial tells if the set is still in its initial configuration.
func (s *Set) IsInitial() bool {
	return s.initial
}

// FinishInitialConfiguration ends the window in which locked parameters can be
// written freely.
func (s *Set) FinishInitialConfiguration() {
	s.initial = false
}

// Freeze makes every non-volatile parameter read-only.
func (s *Set) Freeze() {
	s.initial = false
	s.frozen = true
}

// IsFrozen tells if the set is frozen.
func (s *Set) IsFrozen() bool {
	return s.frozen
}

// WithModifier runs fn with m on top of the modifier stack.
func (s *Set) WithModifier(m Param, fn func() error) error {
	s.modifiers = append(s.modifiers, m)
	defer func() { s.modifiers = s.modifiers[:len(s.modifiers)-1] }()

	return fn()
}

func (s *Set) topModifier() Param {
	if len(s.modifiers) == 0 {
		return nil
	}

	return s.modifiers[len(s.modifiers)-1]
}

// Source returns the overlay the set was configured from.
func (s *Set) Source() Source {
	return s.source
}

// ApplyOverlay writes every parameter whose location has a value in the
// source. The source is remembered so that volatile parameters can refresh.
func (s *Set) ApplyOverlay(src Source) error {
	s.source = src

	for _, p := range s.params {
		raw, found := src.Lookup(p.Location())
		if !found {
			continue
		}

		if err := p.SetFromString(raw); err != nil {
			return err
		}
	}

	return nil
}

// Dump writes the visible parameters as a table.
func (s *Set) Dump(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	for _, p := range s.params {
		if p.Has(Hidden) {
			continue
		}

		mark := ""
		if !p.IsDefault() {
			mark = fmt.Sprintf(" (default %s)", p.DefaultString())
		}

		_, err := fmt.Fprintf(tw, "%s\t%s%s\t[%s]\treads=%d writes=%d\n",
			p.Location(), p.ValueString(), mark, p.Kind(),
			p.ReadCount(), p.WriteCount())
		if err != nil {
			return err
		}
	}

	return tw.Flush()
}
