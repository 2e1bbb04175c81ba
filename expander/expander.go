// Package expander enumerates the experiments described by a study tree.
//
// A mapping combines one choice for each of its keys, a sequence offers its
// elements as alternatives, and the experiments are the full cross product of
// every sequence in the tree. Enumeration is lazy: each experiment is built
// only when the consumer asks for it.
package expander

import (
	"iter"
	"math"

	"github.com/abiiranathan/expgen/ast"
)

// Depth of a node below the study root.
type level int

const (
	levelExperiment level = iota // template name -> record
	levelRecord                  // parameter name -> value
	levelValue                   // a parameter value
)

// Expand lazily yields every experiment described by tree, in a
// deterministic order: mapping keys in document order with the last key
// varying fastest, sequence elements in order.
//
// The tree's shape is checked before anything is yielded, so a malformed tree
// produces exactly one error and no experiments. An empty sequence or empty
// mapping anywhere on a path yields no experiments for that path.
func Expand(tree ast.Node) iter.Seq2[Parameters, error] {
	return func(yield func(Parameters, error) bool) {
		if err := checkShape(tree, "", levelExperiment); err != nil {
			yield(nil, err)
			return
		}

		for node, err := range expand(tree, "") {
			if err != nil {
				yield(nil, err)
				return
			}
			params, err := toParameters(node)
			if !yield(params, err) || err != nil {
				return
			}
		}
	}
}

// Enumerate is Expand with each experiment's zero-based index attached.
func Enumerate(tree ast.Node) iter.Seq2[Experiment, error] {
	return func(yield func(Experiment, error) bool) {
		i := 0
		for params, err := range Expand(tree) {
			if err != nil {
				yield(Experiment{Index: i}, err)
				return
			}
			if !yield(Experiment{Index: i, Parameters: params}, nil) {
				return
			}
			i++
		}
	}
}

// Count returns the number of experiments Expand would yield without
// enumerating them.
func Count(tree ast.Node) (int, error) {
	if err := checkShape(tree, "", levelExperiment); err != nil {
		return 0, err
	}
	return count(tree, "")
}

// expand rewrites n into its alternatives.
func expand(n ast.Node, path string) iter.Seq2[ast.Node, error] {
	switch n := n.(type) {
	case *ast.Mapping:
		return product(n, path)

	case ast.Sequence:
		return func(yield func(ast.Node, error) bool) {
			for _, e := range n {
				if !yield(e, nil) {
					return
				}
			}
		}

	default:
		return func(yield func(ast.Node, error) bool) {
			yield(nil, &UnsupportedNodeTypeError{Path: path, Kind: ast.Kind(n), Want: "mapping or sequence"})
		}
	}
}

// product yields one mapping per combination of the alternatives of m's
// values. Only the current choice per key is held in memory.
func product(m *ast.Mapping, path string) iter.Seq2[ast.Node, error] {
	keys := m.Keys()

	return func(yield func(ast.Node, error) bool) {
		if len(keys) == 0 {
			return
		}

		chosen := make([]ast.Node, len(keys))

		var walk func(i int) bool
		walk = func(i int) bool {
			if i == len(keys) {
				out := ast.NewMapping(len(keys))
				for j, k := range keys {
					out.Set(k, chosen[j])
				}
				return yield(out, nil)
			}

			child, _ := m.Get(keys[i])
			for alt, err := range expand(child, ast.JoinPath(path, keys[i])) {
				if err != nil {
					yield(nil, err)
					return false
				}
				chosen[i] = alt
				if !walk(i + 1) {
					return false
				}
			}
			return true
		}

		walk(0)
	}
}

func count(n ast.Node, path string) (int, error) {
	switch n := n.(type) {
	case *ast.Mapping:
		if n.Len() == 0 {
			return 0, nil
		}
		total := 1
		for k, v := range n.All() {
			c, err := count(v, ast.JoinPath(path, k))
			if err != nil {
				return 0, err
			}
			if c == 0 {
				return 0, nil
			}
			if total > math.MaxInt/c {
				return 0, ErrTooManyExperiments
			}
			total *= c
		}
		return total, nil

	case ast.Sequence:
		return len(n), nil

	default:
		return 0, &UnsupportedNodeTypeError{Path: path, Kind: ast.Kind(n), Want: "mapping or sequence"}
	}
}

// checkShape verifies that every node sits at a position its kind is allowed
// in. Mappings nest at most down to the record level; below that, values must
// come from sequences of scalars. Sequence elements are used as-is, so they
// must already have the final shape of their position.
func checkShape(n ast.Node, path string, lvl level) error {
	switch n := n.(type) {
	case *ast.Mapping:
		if lvl == levelValue {
			return &UnsupportedNodeTypeError{Path: path, Kind: "mapping", Want: "sequence of scalars"}
		}
		for k, v := range n.All() {
			if err := checkShape(v, ast.JoinPath(path, k), lvl+1); err != nil {
				return err
			}
		}
		return nil

	case ast.Sequence:
		for i, e := range n {
			if err := checkFinal(e, ast.IndexPath(path, i), lvl); err != nil {
				return err
			}
		}
		return nil

	default:
		want := "mapping or sequence"
		if lvl == levelValue {
			want = "sequence"
		}
		return &UnsupportedNodeTypeError{Path: path, Kind: ast.Kind(n), Want: want}
	}
}

// checkFinal verifies an unexpanded node has the shape required at lvl.
func checkFinal(n ast.Node, path string, lvl level) error {
	switch lvl {
	case levelValue:
		if !ast.IsScalar(n) {
			return &UnsupportedNodeTypeError{Path: path, Kind: ast.Kind(n), Want: "scalar"}
		}
		return nil

	case levelRecord:
		m, ok := n.(*ast.Mapping)
		if !ok {
			return &UnsupportedNodeTypeError{Path: path, Kind: ast.Kind(n), Want: "mapping of scalars"}
		}
		for k, v := range m.All() {
			if err := checkFinal(v, ast.JoinPath(path, k), levelValue); err != nil {
				return err
			}
		}
		return nil

	default:
		m, ok := n.(*ast.Mapping)
		if !ok {
			return &UnsupportedNodeTypeError{Path: path, Kind: ast.Kind(n), Want: "mapping of template records"}
		}
		for k, v := range m.All() {
			if err := checkFinal(v, ast.JoinPath(path, k), levelRecord); err != nil {
				return err
			}
		}
		return nil
	}
}

// toParameters converts one expanded experiment mapping to Parameters.
func toParameters(n ast.Node) (Parameters, error) {
	m, ok := n.(*ast.Mapping)
	if !ok {
		return nil, &UnsupportedNodeTypeError{Kind: ast.Kind(n), Want: "mapping of template records"}
	}

	params := make(Parameters, 0, m.Len())
	for tpl, v := range m.All() {
		rec, ok := v.(*ast.Mapping)
		if !ok {
			return nil, &UnsupportedNodeTypeError{Path: tpl, Kind: ast.Kind(v), Want: "mapping of scalars"}
		}

		record := make(Record, rec.Len())
		for name, val := range rec.All() {
			leaf, ok := val.(ast.Leaf)
			if !ok {
				return nil, &UnsupportedNodeTypeError{Path: ast.JoinPath(tpl, name), Kind: ast.Kind(val), Want: "scalar"}
			}
			record[name] = ast.ToValue(leaf)
		}
		params = append(params, FileParameters{Template: tpl, Record: record})
	}
	return params, nil
}
