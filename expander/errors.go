package expander

import (
	"errors"
	"fmt"
)

// ErrTooManyExperiments is returned by Count when the number of experiments
// does not fit in an int.
var ErrTooManyExperiments = errors.New("number of experiments overflows int")

// UnsupportedNodeTypeError reports a node whose kind is not allowed at its
// position in the study tree.
type UnsupportedNodeTypeError struct {
	// Path is the dotted location of the node, e.g. "train.yaml.lr".
	Path string
	// Kind is the kind found: mapping, sequence or scalar.
	Kind string
	// Want describes what the position requires.
	Want string
}

func (e *UnsupportedNodeTypeError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("unsupported node type at %s: got %s, want %s", path, e.Kind, e.Want)
}
