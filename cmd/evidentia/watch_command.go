package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"evidentia/internal/config"
	"evidentia/internal/ingest"
	"evidentia/internal/services/openai"
	"evidentia/internal/workflow"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and process new recordings as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(true)
			if err != nil {
				return err
			}

			// One watcher per machine; a second instance would race the
			// first for queue claims and filesystem events.
			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "evidentia.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("another evidentia watch instance is already running")
			}
			defer lock.Unlock()

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := openai.New(cfg)
			stages, err := workflow.NewStages(cfg, client)
			if err != nil {
				return err
			}
			manager := workflow.NewManager(cfg, store, logger, stages)
			if err := manager.Start(runCtx); err != nil {
				return err
			}
			defer manager.Stop()

			scanner := ingest.NewScanner(store, logger)
			watcher, err := ingest.NewWatcher(dir, scanner, logger)
			if err != nil {
				return err
			}
			defer watcher.Stop()

			return watcher.Run(runCtx)
		},
	}
}
