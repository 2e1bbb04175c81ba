package expander

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abiiranathan/expgen/ast"
)

func mustParse(t *testing.T, src string) ast.Node {
	t.Helper()
	tree, err := ast.ParseYAML([]byte(src))
	require.NoError(t, err)
	return tree
}

func collect(t *testing.T, tree ast.Node) ([]Parameters, error) {
	t.Helper()
	var out []Parameters
	for p, err := range Expand(tree) {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

func TestExpandCrossProduct(t *testing.T) {
	tree := mustParse(t, `
fileA:
  p: [1, 2]
  q: [x, y]
`)
	got, err := collect(t, tree)
	require.NoError(t, err)

	want := []Parameters{
		{{Template: "fileA", Record: Record{"p": 1, "q": "x"}}},
		{{Template: "fileA", Record: Record{"p": 1, "q": "y"}}},
		{{Template: "fileA", Record: Record{"p": 2, "q": "x"}}},
		{{Template: "fileA", Record: Record{"p": 2, "q": "y"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Expand() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandAcrossTemplates(t *testing.T) {
	tree := mustParse(t, `
train.yaml:
  lr: [0.1, 0.01]
model.yaml:
  hidden: [64, 128, 256]
  layers: [2]
`)
	got, err := collect(t, tree)
	require.NoError(t, err)
	require.Len(t, got, 6)

	for _, p := range got {
		assert.Equal(t, []string{"train.yaml", "model.yaml"}, p.Templates())
	}

	if diff := cmp.Diff(Parameters{
		{Template: "train.yaml", Record: Record{"lr": 0.1}},
		{Template: "model.yaml", Record: Record{"hidden": 64, "layers": 2}},
	}, got[0]); diff != "" {
		t.Errorf("first experiment mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Parameters{
		{Template: "train.yaml", Record: Record{"lr": 0.01}},
		{Template: "model.yaml", Record: Record{"hidden": 256, "layers": 2}},
	}, got[5]); diff != "" {
		t.Errorf("last experiment mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandSequenceOfRecords(t *testing.T) {
	tree := mustParse(t, `
run.sh:
  - {nodes: 1, tasks: 4}
  - {nodes: 2, tasks: 8}
config.yaml:
  seed: [0, 1]
`)
	got, err := collect(t, tree)
	require.NoError(t, err)
	require.Len(t, got, 4)

	rec, ok := got[3].Lookup("run.sh")
	require.True(t, ok)
	assert.Equal(t, Record{"nodes": 2, "tasks": 8}, rec)

	rec, ok = got[3].Lookup("config.yaml")
	require.True(t, ok)
	assert.Equal(t, Record{"seed": 1}, rec)

	_, ok = got[3].Lookup("missing")
	assert.False(t, ok)
}

func TestExpandTopLevelSequence(t *testing.T) {
	tree := mustParse(t, `
- a.txt: {x: 1}
  b.txt: {y: 2}
- a.txt: {x: 3}
  b.txt: {y: 4}
`)
	got, err := collect(t, tree)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Record{"x": 3}, got[1][0].Record)
}

func TestExpandCardinality(t *testing.T) {
	tree := mustParse(t, `
a:
  p: [1, 2, 3]
  q: [1, 2]
b:
  r: [1, 2, 3, 4, 5]
c:
  fixed: [1]
`)
	got, err := collect(t, tree)
	require.NoError(t, err)
	assert.Len(t, got, 3*2*5)

	n, err := Count(tree)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
}

func TestExpandIsDeterministic(t *testing.T) {
	tree := mustParse(t, `
z.cfg: {b: [1, 2], a: [3, 4]}
a.cfg: {c: [5, 6]}
`)
	first, err := collect(t, tree)
	require.NoError(t, err)
	second, err := collect(t, tree)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second expansion differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, []string{"z.cfg", "a.cfg"}, first[0].Templates())
}

func TestExpandEmptyAxis(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "empty sequence", src: "f: {p: [1, 2], q: []}"},
		{name: "empty first sequence", src: "f: {q: [], p: [1, 2]}"},
		{name: "empty record mapping", src: "f: {}\ng: {p: [1]}"},
		{name: "empty root", src: "{}"},
		{name: "empty document", src: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.src)
			got, err := collect(t, tree)
			require.NoError(t, err)
			assert.Empty(t, got)

			n, err := Count(tree)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestExpandUnsupportedNodeType(t *testing.T) {
	tests := []struct {
		name string
		tree ast.Node
		src  string
		path string
		kind string
	}{
		{name: "scalar root", tree: ast.Leaf{Value: 1}, path: "", kind: "scalar"},
		{name: "bare scalar parameter", src: "f: {p: [1, 2], q: 3}", path: "f.q", kind: "scalar"},
		{name: "bare scalar after empty axis", src: "f: {q: [], p: 3}", path: "f.p", kind: "scalar"},
		{name: "scalar record", src: "f: 3", path: "f", kind: "scalar"},
		{name: "nested mapping in record", src: "f: {p: {a: [1]}}", path: "f.p", kind: "mapping"},
		{name: "nested sequence value", src: "f: {p: [[1, 2]]}", path: "f.p[0]", kind: "sequence"},
		{name: "non-flat record element", src: "f: [{p: [1]}]", path: "f[0].p", kind: "sequence"},
		{name: "scalar experiment element", src: "[1, 2]", path: "[0]", kind: "scalar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := tt.tree
			if tree == nil {
				tree = mustParse(t, tt.src)
			}

			got, err := collect(t, tree)
			assert.Empty(t, got)

			var unsupported *UnsupportedNodeTypeError
			require.True(t, errors.As(err, &unsupported), "got %v", err)
			assert.Equal(t, tt.path, unsupported.Path)
			assert.Equal(t, tt.kind, unsupported.Kind)

			_, err = Count(tree)
			assert.True(t, errors.As(err, &unsupported))
		})
	}
}

func TestExpandIsLazy(t *testing.T) {
	// 10^12 experiments: only feasible if nothing is materialized up front.
	tree := mustParse(t, `
f:
  a: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  b: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  c: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  d: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  e: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  g: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  h: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  i: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  j: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  k: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  l: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
  m: [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
`)
	seen := 0
	for p, err := range Expand(tree) {
		require.NoError(t, err)
		if seen == 11 {
			assert.Equal(t, 1, p[0].Record["l"])
			assert.Equal(t, 1, p[0].Record["m"])
			break
		}
		seen++
	}
	assert.Equal(t, 11, seen)

	n, err := Count(tree)
	require.NoError(t, err)
	assert.Equal(t, 1_000_000_000_000, n)
}

func TestEnumerate(t *testing.T) {
	tree := mustParse(t, "f: {p: [a, b, c]}")

	var names []string
	for exp, err := range Enumerate(tree) {
		require.NoError(t, err)
		names = append(names, exp.Name(""))
		assert.Equal(t, Record{"p": []string{"a", "b", "c"}[exp.Index]}, exp.Parameters[0].Record)
	}
	assert.Equal(t, []string{"experiment-0000", "experiment-0001", "experiment-0002"}, names)
	assert.Equal(t, "run_7", ExperimentName("run_%d", 7))
}

func TestRecordKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Record{"c": 1, "a": 2, "b": 3}.Keys())
}
