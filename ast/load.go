package ast

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile reads and decodes the study document at path. The format is
// chosen by extension: .yaml, .yml or .toml.
func LoadFile(path string) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read study parameters: %w", err)
	}

	var tree Node
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		tree, err = ParseYAML(data)
	case ".toml":
		tree, err = ParseTOML(data)
	default:
		return nil, fmt.Errorf("study parameters %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse study parameters %s: %w", path, err)
	}
	return tree, nil
}
