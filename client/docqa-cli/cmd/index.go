package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func newIndexCmd(opts *options) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the document index",
	}

	var yes bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every document record and chunk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset the index without --yes")
			}
			data, err := opts.client().resetIndex()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	resetCmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")

	indexCmd.AddCommand(resetCmd)
	return indexCmd
}
