package ast

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const mergeTag = "!!merge"

// ParseYAML decodes a YAML study document.
//
// Mapping key order follows the document. Aliases are resolved and merge
// keys (<<) are expanded in place, explicit keys taking precedence over
// merged ones. An empty document yields an empty mapping.
func ParseYAML(data []byte) (Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewMapping(0), nil
	}
	return fromYAML(doc.Content[0])
}

func fromYAML(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NewMapping(0), nil
		}
		return fromYAML(n.Content[0])

	case yaml.AliasNode:
		return fromYAML(n.Alias)

	case yaml.MappingNode:
		return mappingFromYAML(n)

	case yaml.SequenceNode:
		seq := make(Sequence, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil

	case yaml.ScalarNode:
		return scalarFromYAML(n)
	}

	return nil, fmt.Errorf("line %d: unexpected yaml node kind %d", n.Line, n.Kind)
}

func mappingFromYAML(n *yaml.Node) (*Mapping, error) {
	// Explicit keys override merged ones regardless of where the merge key sits.
	explicit := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i]; k.ShortTag() != mergeTag {
			explicit[k.Value] = true
		}
	}

	m := NewMapping(len(n.Content) / 2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]

		if k.ShortTag() == mergeTag {
			if err := mergeYAML(m, v, explicit); err != nil {
				return nil, err
			}
			continue
		}

		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		if _, dup := m.Get(k.Value); dup {
			return nil, fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
		}

		val, err := fromYAML(v)
		if err != nil {
			return nil, err
		}
		m.Set(k.Value, val)
	}
	return m, nil
}

// mergeYAML copies the entries of the mapping (or sequence of mappings)
// referenced by a merge key into m.
func mergeYAML(m *Mapping, v *yaml.Node, explicit map[string]bool) error {
	for v.Kind == yaml.AliasNode {
		v = v.Alias
	}

	var sources []*yaml.Node
	switch v.Kind {
	case yaml.MappingNode:
		sources = []*yaml.Node{v}
	case yaml.SequenceNode:
		sources = v.Content
	default:
		return fmt.Errorf("line %d: merge value must be a mapping or a sequence of mappings", v.Line)
	}

	for _, src := range sources {
		merged, err := fromYAML(src)
		if err != nil {
			return err
		}
		mm, ok := merged.(*Mapping)
		if !ok {
			return fmt.Errorf("line %d: merge value must be a mapping", src.Line)
		}
		for key, val := range mm.All() {
			if explicit[key] {
				continue
			}
			if _, seen := m.Get(key); seen {
				continue
			}
			m.Set(key, val)
		}
	}
	return nil
}

func scalarFromYAML(n *yaml.Node) (Node, error) {
	switch n.ShortTag() {
	case "!!str", "!!timestamp", "!!binary":
		return Leaf{Value: n.Value}, nil
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}
	return Leaf{Value: v}, nil
}
