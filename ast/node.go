// Package ast holds the parsed form of a study-parameters document.
//
// A document is a tree of three node kinds:
//  1. Mapping: ordered string keys, each combined with the expansion of its value
//  2. Sequence: ordered alternatives, the only source of combinatorial branching
//  3. Leaf: a scalar value
//
// Mapping keys keep the order in which they appear in the source document so
// that every consumer iterates the tree deterministically.
package ast

import (
	"fmt"
	"iter"
	"slices"
)

// Node is one of *Mapping, Sequence or Leaf.
type Node interface {
	isNode()
}

// Mapping is an insertion-ordered map from string keys to nodes.
type Mapping struct {
	keys   []string
	values map[string]Node
}

// Sequence is an ordered list of alternatives.
type Sequence []Node

// Leaf wraps a scalar: string, int, float64, bool or nil.
type Leaf struct {
	Value any
}

func (*Mapping) isNode() {}
func (Sequence) isNode() {}
func (Leaf) isNode()     {}

// NewMapping returns an empty mapping with room for n keys.
func NewMapping(n int) *Mapping {
	return &Mapping{
		keys:   make([]string, 0, n),
		values: make(map[string]Node, n),
	}
}

// Set stores v under key. A new key is appended to the key order; an
// existing key keeps its position.
func (m *Mapping) Set(key string, v Node) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the node stored under key.
func (m *Mapping) Get(key string) (Node, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in document order. The slice is a copy.
func (m *Mapping) Keys() []string {
	return slices.Clone(m.keys)
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	return len(m.keys)
}

// All iterates the entries in document order.
func (m *Mapping) All() iter.Seq2[string, Node] {
	return func(yield func(string, Node) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// Kind names the variant of n for diagnostics.
func Kind(n Node) string {
	switch n.(type) {
	case *Mapping:
		return "mapping"
	case Sequence:
		return "sequence"
	case Leaf:
		return "scalar"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", n)
	}
}

// IsScalar reports whether n is a Leaf.
func IsScalar(n Node) bool {
	_, ok := n.(Leaf)
	return ok
}

// ToValue converts n to plain Go values: map[string]any, []any and scalars.
func ToValue(n Node) any {
	switch n := n.(type) {
	case *Mapping:
		out := make(map[string]any, n.Len())
		for k, v := range n.All() {
			out[k] = ToValue(v)
		}
		return out
	case Sequence:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = ToValue(v)
		}
		return out
	case Leaf:
		return n.Value
	default:
		return nil
	}
}

// JoinPath appends key to a dotted path.
func JoinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// IndexPath appends a sequence index to a dotted path.
func IndexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
