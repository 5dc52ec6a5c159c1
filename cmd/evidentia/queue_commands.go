package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed items back to pending (all of them when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			retried, err := store.RetryFailed(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d item(s)\n", retried)
			return nil
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll, clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove ready items from the queue (or failed/all with flags)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var cleared int64
			switch {
			case clearAll:
				cleared, err = store.Clear(cmd.Context())
			case clearFailed:
				cleared, err = store.ClearFailed(cmd.Context())
			default:
				cleared, err = store.ClearReady(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", cleared)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every item regardless of status")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	return cmd
}
