package validator

import (
	"fmt"
	"slices"
	"strings"
)

// VariableSet is the set of free variable names a template references.
type VariableSet map[string]struct{}

// NewVariableSet returns a set holding names.
func NewVariableSet(names ...string) VariableSet {
	s := make(VariableSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name.
func (s VariableSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether name is in the set.
func (s VariableSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s VariableSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Difference returns the sorted names in s that are not in other.
func (s VariableSet) Difference(other VariableSet) []string {
	var out []string
	for n := range s {
		if !other.Has(n) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// TemplateSyntaxError reports a template that cannot be parsed.
type TemplateSyntaxError struct {
	// Template is the template name.
	Template string
	// Err is the parser's error.
	Err error
}

func (e *TemplateSyntaxError) Error() string {
	return fmt.Sprintf("template %q: syntax error: %v", e.Template, e.Err)
}

func (e *TemplateSyntaxError) Unwrap() error {
	return e.Err
}

// ExtraParameterError reports study parameters the template never references.
type ExtraParameterError struct {
	// Template is the template name.
	Template string
	// Names are the parameters missing from the template, sorted.
	Names []string
}

func (e *ExtraParameterError) Error() string {
	return fmt.Sprintf("template %q: variables %s are missing in the template; maybe you forgot to add them to the template?",
		e.Template, quoteNames(e.Names))
}

// MissingParameterError reports template variables the study never supplies.
type MissingParameterError struct {
	// Template is the template name.
	Template string
	// Names are the variables missing from the study parameters, sorted.
	Names []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("template %q: variables %s are missing in the study parameters; maybe you forgot to add them to the study parameters?",
		e.Template, quoteNames(e.Names))
}

func quoteNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}
