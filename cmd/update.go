package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tracq/internal/compile"
	"tracq/internal/query"
)

// Collection fields updated with delta syntax: +VALUE adds, -VALUE removes,
// a bare VALUE replaces the whole list, an empty argument clears it.
var deltaUpdateFields = []string{"labels", "cc", "blocks", "depends", "alias"}

// Scalar fields replaced outright.
var scalarUpdateFields = []string{
	"summary", "status", "resolution", "assignee", "priority", "severity",
	"component", "product", "version", "platform", "os", "whiteboard",
	"milestone", "url", "comment",
}

func init() {
	rootCmd.AddCommand(newUpdateCmd())
}

func newUpdateCmd() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update ID... [flags]",
		Short: "Update records",
		Long: `Update fields on one or more records. Collection flags take delta
syntax: --labels +regression,-stale adds and removes, --labels a,b replaces,
--labels "" clears. Scalar flags replace the value; "-" reads it from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUpdate,
	}

	f := updateCmd.Flags()
	for _, field := range deltaUpdateFields {
		f.StringArray(field, nil, fmt.Sprintf("change %s: +ADD, -REMOVE, VALUE sets, empty clears", field))
	}
	for _, field := range scalarUpdateFields {
		f.String(field, "", fmt.Sprintf("set %s", field))
	}
	return updateCmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	backend, adapter, _, provider, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(cmd.Context()) }()

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	frags, err := buildUpdateFragments(cmd, backend)
	if err != nil {
		return err
	}
	if len(frags) == 0 {
		return fmt.Errorf("no update flags given")
	}
	if err := adapter.Update(cmd.Context(), ids, frags); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %d record(s)\n", len(ids))
	return nil
}

func buildUpdateFragments(cmd *cobra.Command, backend compile.Backend) ([]compile.Fragment, error) {
	flags := cmd.Flags()
	var frags []compile.Fragment

	for _, field := range deltaUpdateFields {
		if !flags.Changed(field) {
			continue
		}
		occurrences, _ := flags.GetStringArray(field)
		for i, occ := range occurrences {
			resolved, err := readValueArg(cmd, occ)
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", field, err)
			}
			// Stdin values may arrive one per line.
			occurrences[i] = strings.ReplaceAll(resolved, "\n", ",")
		}
		frag, err := compile.CompileDelta(backend, field, query.ParseDelta(occurrences))
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		frags = append(frags, frag)
	}

	for _, field := range scalarUpdateFields {
		if !flags.Changed(field) {
			continue
		}
		raw, _ := flags.GetString(field)
		value, err := readValueArg(cmd, raw)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		frag, err := compile.CompileSet(backend, field, []string{value})
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", field, err)
		}
		frags = append(frags, frag)
	}
	return frags, nil
}
