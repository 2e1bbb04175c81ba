package ast

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ParseTOML decodes a TOML study document.
//
// The decoder returns plain maps, so key order is recovered from the order in
// which the keys were defined (toml.MetaData.Keys). Keys of tables inside
// arrays of tables are ordered by their first definition.
func ParseTOML(data []byte) (Node, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}

	order := make(map[string]int)
	for i, k := range md.Keys() {
		p := tomlPath(k)
		if _, seen := order[p]; !seen {
			order[p] = i
		}
	}

	return fromTOML(raw, nil, order)
}

func tomlPath(key []string) string {
	return strings.Join(key, "\x00")
}

func fromTOML(v any, path []string, order map[string]int) (Node, error) {
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		rank := func(k string) int {
			if i, ok := order[tomlPath(append(slices.Clone(path), k))]; ok {
				return i
			}
			return math.MaxInt
		}
		slices.SortStableFunc(keys, func(a, b string) int {
			if ra, rb := rank(a), rank(b); ra != rb {
				return ra - rb
			}
			return strings.Compare(a, b)
		})

		m := NewMapping(len(keys))
		for _, k := range keys {
			child, err := fromTOML(v[k], append(slices.Clone(path), k), order)
			if err != nil {
				return nil, err
			}
			m.Set(k, child)
		}
		return m, nil

	case []map[string]any:
		seq := make(Sequence, 0, len(v))
		for _, e := range v {
			child, err := fromTOML(e, path, order)
			if err != nil {
				return nil, err
			}
			seq = append(seq, child)
		}
		return seq, nil

	case []any:
		seq := make(Sequence, 0, len(v))
		for _, e := range v {
			child, err := fromTOML(e, path, order)
			if err != nil {
				return nil, err
			}
			seq = append(seq, child)
		}
		return seq, nil

	case int64:
		return Leaf{Value: int(v)}, nil
	case float64, string, bool:
		return Leaf{Value: v}, nil
	case time.Time:
		return Leaf{Value: v.Format(time.RFC3339Nano)}, nil
	}

	return nil, fmt.Errorf("%s: unsupported toml value %T", strings.Join(path, "."), v)
}
