package generator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// FuncMap returns the functions available to templates in addition to the
// text/template builtins.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"upper": func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
		"lower": func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
		"quote": func(v any) string { return strconv.Quote(fmt.Sprint(v)) },

		// default returns def when v is nil or the empty string.
		"default": func(def, v any) any {
			if v == nil || v == "" {
				return def
			}
			return v
		},

		"toYaml": func(v any) (string, error) {
			b, err := yaml.Marshal(v)
			if err != nil {
				return "", err
			}
			return strings.TrimSuffix(string(b), "\n"), nil
		},
		"toJson": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}
}
