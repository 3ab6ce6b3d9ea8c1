package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get ID...",
	Short: "Fetch records by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().Bool("json", false, "print records as JSON lines")
}

func runGet(cmd *cobra.Command, args []string) error {
	_, adapter, _, provider, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(cmd.Context()) }()

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	records, err := adapter.Get(cmd.Context(), ids)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	return printRecords(cmd, records, asJSON)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid record id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
