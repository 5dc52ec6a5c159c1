package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"evidentia/internal/report"
)

func newCompileCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var asDocx bool
	var noTranscripts bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the summaries of ready items into a chronological report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := report.Collect(cmd.Context(), store)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no ready items to compile")
			}

			opts := report.Options{IncludeTranscripts: cfg.Report.IncludeTranscripts && !noTranscripts}

			target := outputPath
			if target == "" {
				name := report.DefaultTextFileName
				if asDocx {
					name = strings.TrimSuffix(name, filepath.Ext(name)) + ".docx"
				}
				target = filepath.Join(cfg.Paths.LibraryDir, name)
			}

			if asDocx {
				if err := report.WriteDocx(target, entries, opts); err != nil {
					return err
				}
			} else {
				file, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create report: %w", err)
				}
				defer file.Close()
				if err := report.WriteText(file, entries, opts); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d summaries to %s\n", len(entries), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report file path (defaults to the library directory)")
	cmd.Flags().BoolVar(&asDocx, "docx", false, "Write a Word document instead of plain text")
	cmd.Flags().BoolVar(&noTranscripts, "no-transcripts", false, "Omit full transcripts from the report")
	return cmd
}
