package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [ID]",
		Short: "Cancel a mission, the running one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "current"
			if len(args) == 1 {
				id = args[0]
			}
			if err := root.client().Cancel(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancel requested for %s\n", id)
			return nil
		},
	}
}
