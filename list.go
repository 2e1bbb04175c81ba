package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abiiranathan/expgen/expander"
)

// listEntry is one experiment as printed by list.
type listEntry struct {
	Index      int                 `json:"index" yaml:"index"`
	Name       string              `json:"name" yaml:"name"`
	Parameters expander.Parameters `json:"files" yaml:"files"`
}

func newListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the parameters of every experiment",
		Long: `Print every experiment of the study with the record each template is
rendered against, in generation order. Nothing is rendered or written.

The default output is a YAML stream with one document per experiment;
--json prints one JSON object per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runList(cmd.OutOrStdout(), asJSON)
		},
	}

	addStudyFlag(cmd)
	addNameFormatFlag(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per line")
	return cmd
}

func (a *app) runList(out io.Writer, asJSON bool) error {
	tree, err := a.loadStudy()
	if err != nil {
		return err
	}

	var enc *yaml.Encoder
	if !asJSON {
		enc = yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
	}

	for exp, err := range expander.Enumerate(tree) {
		if err != nil {
			return err
		}

		entry := listEntry{
			Index:      exp.Index,
			Name:       exp.Name(a.cfg.NameFormat),
			Parameters: exp.Parameters,
		}
		if asJSON {
			err = encodeJSON(out, entry, false)
		} else {
			err = enc.Encode(entry)
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", entry.Name, err)
		}
	}
	return nil
}

func newCountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of experiments",
		Long: `Print the number of experiments the study expands to. The number is
computed from the sizes of the parameter axes; no experiment is enumerated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tree, err := a.loadStudy()
			if err != nil {
				return err
			}
			n, err := expander.Count(tree)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}

	addStudyFlag(cmd)
	return cmd
}
