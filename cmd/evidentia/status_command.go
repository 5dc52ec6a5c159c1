package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"evidentia/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var allStatuses bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue items and their processing state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), statusTable(items, allStatuses))

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d total: %d pending, %d processing, %d ready, %d failed\n",
				health.Total, health.Pending, health.Processing, health.Ready, health.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allStatuses, "verbose", false, "Show internal stage statuses instead of the condensed view")
	return cmd
}

// statusTable renders the queue in its fixed five-column shape. With verbose
// set, the internal stage status is shown instead of the condensed label.
func statusTable(items []*queue.Item, verbose bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Video", "Date", "Status", "Error"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	for _, item := range items {
		status := item.DisplayStatus()
		if verbose {
			status = string(item.Status)
		}
		tw.AppendRow(table.Row{
			item.ID,
			item.Name,
			item.DisplayDate().Format("2006-01-02 15:04"),
			status,
			truncate(item.ErrorMessage, 60),
		})
	}
	return tw.Render()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func parseItemIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func statusLabel(item *queue.Item) string {
	if item.ErrorMessage != "" && item.Status == queue.StatusFailed {
		return fmt.Sprintf("%s (%s)", item.DisplayStatus(), item.ErrorMessage)
	}
	return item.DisplayStatus()
}
