package param

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// A Source provides string values for parameter locations.
type Source interface {
	Lookup(location string) (string, bool)
}

// An Overlay is a Source that can tell which of its keys were never used.
type Overlay interface {
	Source
	Unused() []string
}

// A KeyValue is one entry of a virtual tree.
type KeyValue struct {
	Key    string
	Value  string
	Origin string
}

type treeEntry struct {
	KeyValue
	segments []string
	used     bool
}

// A Tree is a virtual parameter tree: an ordered list of dotted keys with
// string values. A key segment may hold glob patterns such as "core*". When
// several keys match a location, the one added last wins.
type Tree struct {
	entries []*treeEntry
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Set adds a key.
func (t *Tree) Set(key, value string) {
	t.add(key, value, "")
}

func (t *Tree) add(key, value, origin string) {
	key = strings.TrimSpace(key)

	t.entries = append(t.entries, &treeEntry{
		KeyValue: KeyValue{Key: key, Value: value, Origin: origin},
		segments: strings.Split(key, "."),
	})
}

// SetAssignment adds a "key=value" string, as given on a command line.
func (t *Tree) SetAssignment(assignment string) error {
	key, value, found := strings.Cut(assignment, "=")
	if !found || strings.TrimSpace(key) == "" {
		return fmt.Errorf("param: %q is not a key=value assignment", assignment)
	}

	t.add(key, strings.TrimSpace(value), "command line")

	return nil
}

// Len returns the number of keys.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Entries returns the keys in the order they were added.
func (t *Tree) Entries() []KeyValue {
	kvs := make([]KeyValue, len(t.entries))
	for i, e := range t.entries {
		kvs[i] = e.KeyValue
	}

	return kvs
}

// Lookup returns the value of the last key that matches the location. Every
// matching key counts as used, including the ones it overrides.
func (t *Tree) Lookup(location string) (string, bool) {
	segments := strings.Split(location, ".")
	value, found := "", false

	for _, e := range t.entries {
		if matchSegments(e.segments, segments) {
			e.used = true
			value, found = e.Value, true
		}
	}

	return value, found
}

// Unused returns the keys that no lookup has matched.
func (t *Tree) Unused() []string {
	var keys []string

	for _, e := range t.entries {
		if !e.used {
			keys = append(keys, e.Key)
		}
	}

	return keys
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}

	for i, p := range pattern {
		ok, err := path.Match(p, segments[i])
		if err != nil || !ok {
			return false
		}
	}

	return true
}

// LoadFile reads a YAML file into the tree.
func (t *Tree) LoadFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "param: cannot open overlay")
	}
	defer f.Close()

	return t.LoadYAML(f, filename)
}

// LoadYAML reads a YAML document into the tree. Nested maps become dotted
// keys, sequences become lists and sequences of sequences become tables.
func (t *Tree) LoadYAML(r io.Reader, origin string) error {
	var doc yaml.Node

	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}

		return errors.Wrapf(err, "param: cannot parse %s", origin)
	}

	if len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("param: %s: top level must be a map", origin)
	}

	return t.flatten("", root, origin)
}

func (t *Tree) flatten(prefix string, n *yaml.Node, origin string) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}

		value := n.Content[i+1]

		switch value.Kind {
		case yaml.MappingNode:
			if err := t.flatten(key, value, origin); err != nil {
				return err
			}
		case yaml.ScalarNode:
			t.add(key, value.Value, origin)
		case yaml.SequenceNode:
			s, err := sequenceString(value)
			if err != nil {
				return errors.Wrapf(err, "param: %s: key %s", origin, key)
			}

			t.add(key, s, origin)
		default:
			return fmt.Errorf("param: %s: unsupported value for key %s (line %d)",
				origin, key, value.Line)
		}
	}

	return nil
}

func sequenceString(n *yaml.Node) (string, error) {
	parts := make([]string, 0, len(n.Content))

	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			parts = append(parts, item.Value)
		case yaml.SequenceNode:
			row, err := sequenceString(item)
			if err != nil {
				return "", err
			}

			parts = append(parts, row)
		default:
			return "", fmt.Errorf("line %d: lists may only hold scalars or lists",
				item.Line)
		}
	}

	return "[" + strings.Join(parts, ", ") + "]", nil
}

// A LayeredTree stacks a configuration tree over an architectural tree. A key
// in the configuration tree wins over the same location in the architectural
// tree.
type LayeredTree struct {
	Arch   *Tree
	Config *Tree
}

// NewLayeredTree creates a layered tree. Either layer may be nil.
func NewLayeredTree(arch, config *Tree) *LayeredTree {
	if arch == nil {
		arch = NewTree()
	}

	if config == nil {
		config = NewTree()
	}

	return &LayeredTree{Arch: arch, Config: config}
}

// Lookup looks in the configuration layer first. Both layers see the lookup,
// so a shadowed architectural key still counts as used.
func (l *LayeredTree) Lookup(location string) (string, bool) {
	archValue, inArch := l.Arch.Lookup(location)

	if v, found := l.Config.Lookup(location); found {
		return v, true
	}

	return archValue, inArch
}

// Unused returns the unused keys of both layers.
func (l *LayeredTree) Unused() []string {
	return append(l.Arch.Unused(), l.Config.Unused()...)
}

// CheckAllUsed returns an UnknownKey error naming the unused keys of an
// overlay.
func CheckAllUsed(o Overlay) error {
	unused := o.Unused()
	if len(unused) == 0 {
		return nil
	}

	return &ParameterError{
		Kind:   UnknownKey,
		Detail: strings.Join(unused, ", "),
	}
}
