package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFreeVariables(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		// --- Basic access ---
		{
			name:    "Plain text",
			content: "no actions here",
			want:    []string{},
		},
		{
			name:    "Single field",
			content: "lr: {{ .learning_rate }}",
			want:    []string{"learning_rate"},
		},
		{
			name:    "Nested field counts the root name only",
			content: "{{ .model.hidden }}",
			want:    []string{"model"},
		},
		{
			name:    "Root variable access",
			content: "{{ $.seed }}",
			want:    []string{"seed"},
		},
		{
			name:    "Function arguments and pipelines",
			content: `{{ printf "%s-%d" .name .epochs | upper }} {{ index .tags 0 }} {{ (.ratio) }}`,
			want:    []string{"epochs", "name", "ratio", "tags"},
		},
		{
			name:    "Comparison in if",
			content: `{{ if eq .optimizer "adam" }}beta={{ .beta }}{{ else }}momentum={{ .momentum }}{{ end }}`,
			want:    []string{"beta", "momentum", "optimizer"},
		},

		// --- Local variables ---
		{
			name:    "Local assignment is not free",
			content: "{{ $lr := 0.1 }}{{ $lr }}{{ .epochs }}",
			want:    []string{"epochs"},
		},
		{
			name:    "Local assigned from a field",
			content: "{{ $n := .nodes }}{{ $n }} {{ $n }}",
			want:    []string{"nodes"},
		},
		{
			name:    "Reassignment",
			content: "{{ $x := 1 }}{{ if .flag }}{{ $x = 2 }}{{ end }}{{ $x }}",
			want:    []string{"flag"},
		},

		// --- Scope changes ---
		{
			name:    "Range rebinds dot",
			content: "{{ range .layers }}{{ .width }}{{ end }}",
			want:    []string{"layers"},
		},
		{
			name:    "Range variables are local",
			content: "{{ range $i, $v := .layers }}{{ $i }}={{ $v }}{{ end }}",
			want:    []string{"layers"},
		},
		{
			name:    "Root access inside range",
			content: "{{ range .layers }}{{ .width }}{{ $.activation }}{{ end }}",
			want:    []string{"activation", "layers"},
		},
		{
			name:    "Range else keeps root dot",
			content: "{{ range .layers }}{{ .width }}{{ else }}{{ .default_width }}{{ end }}",
			want:    []string{"default_width", "layers"},
		},
		{
			name:    "With rebinds dot",
			content: "{{ with .scheduler }}{{ .kind }}{{ else }}{{ .fallback }}{{ end }}",
			want:    []string{"fallback", "scheduler"},
		},
		{
			name:    "If keeps dot",
			content: "{{ if .debug }}{{ .level }}{{ end }}",
			want:    []string{"debug", "level"},
		},
		{
			name:    "Nested range",
			content: "{{ range .a }}{{ range .b }}{{ .c }}{{ $.d }}{{ end }}{{ end }}",
			want:    []string{"a", "d"},
		},

		// --- Named templates ---
		{
			name:    "Define invoked with root",
			content: `{{ define "header" }}# {{ .title }}{{ end }}{{ template "header" . }}{{ .body }}`,
			want:    []string{"body", "title"},
		},
		{
			name:    "Define invoked with $",
			content: `{{ define "h" }}{{ .title }}{{ end }}{{ range .items }}{{ template "h" $ }}{{ end }}`,
			want:    []string{"items", "title"},
		},
		{
			name:    "Define invoked with a field",
			content: `{{ define "h" }}{{ .title }}{{ end }}{{ template "h" .meta }}`,
			want:    []string{"meta"},
		},
		{
			name:    "Define never invoked",
			content: `{{ define "unused" }}{{ .ghost }}{{ end }}{{ .real }}`,
			want:    []string{"real"},
		},
		{
			name:    "Block with root",
			content: `{{ block "footer" . }}{{ .author }}{{ end }}`,
			want:    []string{"author"},
		},
		{
			name:    "Recursive template",
			content: `{{ define "r" }}{{ .depth }}{{ template "r" . }}{{ end }}{{ template "r" . }}`,
			want:    []string{"depth"},
		},
		{
			name:    "Template invoked inside with",
			content: `{{ define "h" }}{{ .title }}{{ end }}{{ with .meta }}{{ template "h" . }}{{ end }}`,
			want:    []string{"meta"},
		},
		{
			name:    "Undefined template is skipped",
			content: `{{ template "elsewhere.tpl" . }}{{ .x }}`,
			want:    []string{"x"},
		},

		// --- Comments and unknown functions ---
		{
			name:    "Comments are ignored",
			content: "{{/* .commented */}}{{ .live }}",
			want:    []string{"live"},
		},
		{
			name:    "Unknown functions are accepted",
			content: "{{ toYaml .config | indent 2 }}",
			want:    []string{"config"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, err := ExtractFreeVariables("test.tpl", tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, vars.Sorted())
		})
	}
}

func TestExtractFreeVariablesIsIdempotent(t *testing.T) {
	content := "{{ $x := .a }}{{ $x }}{{ .b }}{{ range .c }}{{ .d }}{{ end }}"

	first, err := ExtractFreeVariables("t", content)
	require.NoError(t, err)
	second, err := ExtractFreeVariables("t", content)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b", "c"}, first.Sorted())
	assert.False(t, first.Has("x"))
}

func TestExtractFreeVariablesCustomDelims(t *testing.T) {
	content := "value: [[ .alpha ]] {{ .not_an_action }}"

	vars, err := ExtractFreeVariables("t", content, WithDelims("[[", "]]"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, vars.Sorted())
}

func TestExtractFreeVariablesSyntaxError(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "Unclosed action", content: "{{ .a "},
		{name: "Missing end", content: "{{ if .a }}yes"},
		{name: "Unexpected end", content: "{{ end }}"},
		{name: "Undefined variable", content: "{{ $nope }}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, err := ExtractFreeVariables("broken.tpl", tt.content)
			assert.Nil(t, vars)

			var syntaxErr *TemplateSyntaxError
			require.True(t, errors.As(err, &syntaxErr), "got %v", err)
			assert.Equal(t, "broken.tpl", syntaxErr.Template)
			assert.NotNil(t, errors.Unwrap(err))
		})
	}
}
