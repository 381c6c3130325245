package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Drop stale sync records",
	Long: `Remove manifest entries whose file no longer exists on disk and whose
linked record no longer exists in the store.

Entries are kept while either side survives: a missing file with a live
record still describes real store state, and a missing record with a live
file will be re-imported on the next change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		removed, err := e.Syncer.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Reconcile complete: %d stale entries removed\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
