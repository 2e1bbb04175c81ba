package expander

import (
	"fmt"
	"slices"
)

// DefaultNameFormat names experiment directories by index.
const DefaultNameFormat = "experiment-%04d"

// Record is one template's flat parameter set: parameter name to scalar value.
type Record map[string]any

// Keys returns the parameter names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// FileParameters pairs a template name with the record it is rendered against.
type FileParameters struct {
	// Template names both the template file and the file written in the experiment directory.
	Template string `json:"template" yaml:"template"`
	// Record holds the values of the template's free variables.
	Record Record `json:"parameters" yaml:"parameters"`
}

// Parameters is one fully resolved experiment: a record for every template
// named at the top level of the study, in document order.
type Parameters []FileParameters

// Templates returns the template names in document order.
func (p Parameters) Templates() []string {
	names := make([]string, len(p))
	for i, fp := range p {
		names[i] = fp.Template
	}
	return names
}

// Lookup returns the record of the named template.
func (p Parameters) Lookup(template string) (Record, bool) {
	for _, fp := range p {
		if fp.Template == template {
			return fp.Record, true
		}
	}
	return nil, false
}

// Experiment is an indexed Parameters value.
type Experiment struct {
	// Index is the zero-based position in expansion order.
	Index int
	// Parameters holds the per-template records.
	Parameters Parameters
}

// Name formats the experiment's directory name.
func (e Experiment) Name(format string) string {
	return ExperimentName(format, e.Index)
}

// ExperimentName formats index with format, falling back to DefaultNameFormat.
func ExperimentName(format string, index int) string {
	if format == "" {
		format = DefaultNameFormat
	}
	return fmt.Sprintf(format, index)
}
