package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <scope>",
	Short: "Export a scope's effective view to the workspace",
	Long: `Write every template and stylesheet visible in the scope out to the
workspace as files: overrides where one exists, scope-less masters
otherwise.

Files whose store record has not moved since the last sync are left
untouched, so local timestamps and editors are not disturbed.

Do not run an export against a workspace a watch daemon is using; the
daemon's own export commands pause the watcher first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		start := time.Now()
		stats, err := e.Syncer.ExportScope(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Export of %s complete in %v\n", args[0], time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Written: %d\n", stats.Written)
		fmt.Printf("   Skipped: %d\n", stats.Skipped)
		if stats.Failed > 0 {
			fmt.Printf("   Failed:  %d\n", stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
