// Package validator determines which variables a template expects and checks
// study records against them before anything is rendered.
//
// Templates use Go's text/template syntax. The free variables of a template
// are the fields it reads from the root data value:
//   - .name while dot is still the root value
//   - $.name anywhere, since $ always refers to the root value
//   - the same references inside a named template invoked with the root value
//
// Inside {{range}} and {{with}} bodies dot is rebound to another value, so
// .name there is not free. Local variables ($x := ...) are never free.
package validator

import (
	"text/template/parse"
)

// Option configures ExtractFreeVariables.
type Option func(*options)

type options struct {
	leftDelim  string
	rightDelim string
}

// WithDelims sets the action delimiters. Empty strings select the defaults
// "{{" and "}}".
func WithDelims(left, right string) Option {
	return func(o *options) {
		o.leftDelim = left
		o.rightDelim = right
	}
}

// ExtractFreeVariables statically determines the set of variables the
// template source reads from its root data value.
//
// The source is parsed, never executed, so no parameter values are needed.
// Function names are not checked: any function the renderer provides may be
// called.
//
// Returns *TemplateSyntaxError when the source cannot be parsed.
//
// Thread-safety: Pure function, safe for concurrent calls.
func ExtractFreeVariables(name, source string, opts ...Option) (VariableSet, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	trees := make(map[string]*parse.Tree)
	t := parse.New(name)
	t.Mode = parse.SkipFuncCheck

	root, err := t.Parse(source, o.leftDelim, o.rightDelim, trees)
	if err != nil {
		return nil, &TemplateSyntaxError{Template: name, Err: err}
	}

	w := &walker{
		trees:    trees,
		vars:     make(VariableSet),
		followed: make(map[string]bool),
	}
	if root.Root != nil {
		w.walk(root.Root, scope{dotIsRoot: true, dollarIsRoot: true})
	}
	return w.vars, nil
}

// scope records what dot and $ are bound to at a point of the template.
type scope struct {
	dotIsRoot    bool
	dollarIsRoot bool
}

// rebind returns the scope of a {{range}} or {{with}} body: dot becomes the
// element or value, $ is unchanged.
func (s scope) rebind() scope {
	return scope{dotIsRoot: false, dollarIsRoot: s.dollarIsRoot}
}

// walker collects free variables from a parsed template.
type walker struct {
	trees    map[string]*parse.Tree // named templates defined in the source
	vars     VariableSet
	followed map[string]bool // named templates already walked with the root value
}

func (w *walker) walk(n parse.Node, s scope) {
	switch n := n.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			w.walk(c, s)
		}

	case *parse.ActionNode:
		w.pipe(n.Pipe, s)

	case *parse.IfNode:
		w.pipe(n.Pipe, s)
		w.walk(n.List, s)
		w.walk(n.ElseList, s)

	case *parse.RangeNode:
		w.pipe(n.Pipe, s)
		w.walk(n.List, s.rebind())
		w.walk(n.ElseList, s)

	case *parse.WithNode:
		w.pipe(n.Pipe, s)
		w.walk(n.List, s.rebind())
		w.walk(n.ElseList, s)

	case *parse.TemplateNode:
		w.pipe(n.Pipe, s)
		w.call(n.Name, n.Pipe, s)
	}
}

// call follows {{template "name" pipeline}} into the named template when the
// pipeline passes the root value. Templates defined elsewhere are skipped.
func (w *walker) call(name string, p *parse.PipeNode, s scope) {
	if !passesRoot(p, s) || w.followed[name] {
		return
	}
	tree, ok := w.trees[name]
	if !ok || tree.Root == nil {
		return
	}
	w.followed[name] = true
	w.walk(tree.Root, scope{dotIsRoot: true, dollarIsRoot: true})
}

// passesRoot reports whether the pipeline evaluates to the root value: a
// lone "." while dot is the root, or a lone "$".
func passesRoot(p *parse.PipeNode, s scope) bool {
	if p == nil || len(p.Decl) > 0 || len(p.Cmds) != 1 || len(p.Cmds[0].Args) != 1 {
		return false
	}
	switch a := p.Cmds[0].Args[0].(type) {
	case *parse.DotNode:
		return s.dotIsRoot
	case *parse.VariableNode:
		return len(a.Ident) == 1 && a.Ident[0] == "$" && s.dollarIsRoot
	}
	return false
}

func (w *walker) pipe(p *parse.PipeNode, s scope) {
	if p == nil {
		return
	}
	for _, cmd := range p.Cmds {
		for _, a := range cmd.Args {
			w.arg(a, s)
		}
	}
}

func (w *walker) arg(n parse.Node, s scope) {
	switch a := n.(type) {
	case *parse.FieldNode:
		if s.dotIsRoot && len(a.Ident) > 0 {
			w.vars.Add(a.Ident[0])
		}

	case *parse.VariableNode:
		if s.dollarIsRoot && len(a.Ident) > 1 && a.Ident[0] == "$" {
			w.vars.Add(a.Ident[1])
		}

	case *parse.ChainNode:
		// (pipeline).Field: only a chain on the root value itself names a variable.
		switch inner := a.Node.(type) {
		case *parse.DotNode:
			if s.dotIsRoot && len(a.Field) > 0 {
				w.vars.Add(a.Field[0])
			}
		case *parse.VariableNode:
			if s.dollarIsRoot && len(inner.Ident) == 1 && inner.Ident[0] == "$" && len(a.Field) > 0 {
				w.vars.Add(a.Field[0])
				return
			}
			w.arg(inner, s)
		default:
			w.arg(a.Node, s)
		}

	case *parse.PipeNode:
		w.pipe(a, s)
	}
}
