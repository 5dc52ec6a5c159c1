package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"evidentia/internal/config"
	"evidentia/internal/ingest"
	"evidentia/internal/services/openai"
	"evidentia/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process [dir]",
		Short: "Register recordings from a directory and process the queue to completion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(true)
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if len(args) == 1 {
				dir, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				scanner := ingest.NewScanner(store, logger)
				added, err := scanner.Scan(runCtx, dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %d new recording(s)\n", added)
			}

			client := openai.New(cfg)
			stages, err := workflow.NewStages(cfg, client)
			if err != nil {
				return err
			}
			manager := workflow.NewManager(cfg, store, logger, stages)
			if err := manager.ProcessOnce(runCtx); err != nil {
				return err
			}

			health, err := store.Health(runCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %d ready, %d failed, %d total\n",
				health.Ready, health.Failed, health.Total)
			return nil
		},
	}
}
