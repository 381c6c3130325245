package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import every changed workspace file into the store",
	Long: `Walk the workspace and import each recognized file whose content
differs from the last recorded sync.

Files already in sync are skipped; unrecognized paths are ignored. One
file's failure is reported and does not abort the rest of the walk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		start := time.Now()
		stats, err := e.Syncer.FullImport(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Import complete in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Imported: %d\n", stats.Imported)
		fmt.Printf("   Skipped:  %d\n", stats.Skipped)
		if stats.Failed > 0 {
			fmt.Printf("   Failed:   %d\n", stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
