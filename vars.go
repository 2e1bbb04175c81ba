package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abiiranathan/expgen/generator"
	"github.com/abiiranathan/expgen/validator"
)

func newVarsCmd(a *app) *cobra.Command {
	var compress bool

	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Print the variables every template expects",
		Long: `Print, as one JSON object, the sorted free variables of every template in
the template directory: the parameter names a study record for that
template must provide.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runVars(cmd.OutOrStdout(), compress)
		},
	}

	addTemplateFlags(cmd)
	cmd.Flags().BoolVar(&compress, "compress", false, "Output gzip-compressed JSON")
	return cmd
}

func (a *app) runVars(out io.Writer, compress bool) error {
	dir, err := generator.LoadTemplateDir(a.cfg.Templates)
	if err != nil {
		return err
	}

	cache := validator.NewVariableCache(validator.WithDelims(a.cfg.LeftDelim, a.cfg.RightDelim))
	vars, err := generator.TemplateVariables(dir, cache)
	if err != nil {
		return err
	}

	output := make(map[string][]string, len(vars))
	for name, set := range vars {
		output[name] = set.Sorted()
	}
	return encodeJSON(out, output, compress)
}

// encodeJSON serializes output as JSON and writes it to w.
//
// If compress is true, the output is gzip-compressed.
func encodeJSON(w io.Writer, output any, compress bool) error {
	if compress {
		return writeGzipJSON(w, output)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "") // disable indent
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// writeGzipJSON writes gzip-compressed JSON to w.
func writeGzipJSON(w io.Writer, output any) error {
	gzWriter := gzip.NewWriter(w)

	enc := json.NewEncoder(gzWriter)
	enc.SetIndent("", "")
	if err := enc.Encode(output); err != nil {
		gzWriter.Close()
		return fmt.Errorf("encode JSON: %w", err)
	}

	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}
	return nil
}
