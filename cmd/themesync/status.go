package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and sync manifest status",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		counts, err := e.Store.Counts(ctx)
		if err != nil {
			return err
		}
		scopes, err := e.Store.ListScopes(ctx)
		if err != nil {
			return err
		}
		entries, err := e.Manifest.All()
		if err != nil {
			return err
		}

		fmt.Printf("Workspace: %s\n", e.Root)
		fmt.Printf("Scopes: %d\n", counts.Scopes)
		for _, s := range scopes {
			fmt.Printf("   %s\n", s.Name)
		}
		fmt.Printf("Templates:   %d masters, %d overrides\n",
			counts.TemplateMasters, counts.TemplateOverrides)
		fmt.Printf("Stylesheets: %d masters, %d overrides\n",
			counts.StylesheetMasters, counts.StylesheetOverrides)
		fmt.Printf("Plugin fragments: %d\n", counts.PluginFragments)
		fmt.Printf("Synced files: %d\n", len(entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
