package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Manage template set and theme scopes",
}

var scopeCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a scope",
	Long: `Register a scope in the store. Imports for an unknown scope are
rejected, so a scope must exist before its workspace directory is edited.
Creating an existing scope is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		id, err := e.Store.CreateScope(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Scope %s ready (id %d)\n", args[0], id)
		return nil
	},
}

var scopeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scopes",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		scopes, err := e.Store.ListScopes(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range scopes {
			fmt.Printf("%6d  %s\n", s.ID, s.Name)
		}
		return nil
	},
}

func init() {
	scopeCmd.AddCommand(scopeCreateCmd)
	scopeCmd.AddCommand(scopeListCmd)
	rootCmd.AddCommand(scopeCmd)
}
