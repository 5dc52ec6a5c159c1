package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withTranscript bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item's details, summary, and optionally its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("no item with id %d", id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %d\n", item.ID)
			fmt.Fprintf(out, "Video:   %s\n", item.Name)
			fmt.Fprintf(out, "Source:  %s\n", item.SourcePath)
			fmt.Fprintf(out, "Date:    %s\n", item.DisplayDate().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Status:  %s\n", statusLabel(item))
			if item.Summary != "" {
				fmt.Fprintf(out, "\nSummary:\n\n%s\n", item.Summary)
			}
			if withTranscript && item.Transcript != "" {
				fmt.Fprintf(out, "\nTranscript:\n\n%s\n", item.Transcript)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&withTranscript, "transcript", "t", false, "Include the full transcript")
	return cmd
}
