package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracq/internal/compile"
)

// Scalar creation fields; which of them a backend accepts is decided by its
// capability table.
var scalarCreateFields = []string{
	"summary", "description", "product", "component", "version", "platform",
	"os", "priority", "severity", "status", "resolution", "assignee",
	"milestone", "url", "whiteboard",
}

// Collection creation fields, given as comma-separated values.
var listCreateFields = []string{"labels", "cc", "blocks", "depends", "alias"}

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create [flags]",
		Short: "Create a record",
		Long: `Create a new record. Field values are plain; "-" reads a value from
stdin, so a long description can be piped in. Fields a backend requires but
does not receive are rejected before anything is sent.`,
		Args: cobra.NoArgs,
		RunE: runCreate,
	}

	f := createCmd.Flags()
	for _, field := range scalarCreateFields {
		f.String(field, "", fmt.Sprintf("set %s", field))
	}
	for _, field := range listCreateFields {
		f.StringSlice(field, nil, fmt.Sprintf("set %s", field))
	}
	return createCmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	backend, adapter, _, provider, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(cmd.Context()) }()

	frags, err := buildCreateFragments(cmd, backend)
	if err != nil {
		return err
	}
	if len(frags) == 0 {
		return fmt.Errorf("no creation flags given")
	}
	id, err := adapter.Create(cmd.Context(), frags)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created record %d\n", id)
	return nil
}

func buildCreateFragments(cmd *cobra.Command, backend compile.Backend) ([]compile.Fragment, error) {
	flags := cmd.Flags()
	var frags []compile.Fragment

	for _, field := range scalarCreateFields {
		if !flags.Changed(field) {
			continue
		}
		raw, _ := flags.GetString(field)
		value, err := readValueArg(cmd, raw)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		frag, err := compile.CompileCreate(backend, field, []string{value})
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		frags = append(frags, frag)
	}

	for _, field := range listCreateFields {
		if !flags.Changed(field) {
			continue
		}
		values, _ := flags.GetStringSlice(field)
		frag, err := compile.CompileCreate(backend, field, values)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		frags = append(frags, frag)
	}
	return frags, nil
}
