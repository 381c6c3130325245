package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/daemon"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and sync edits into the store",
	Long: `Run the synchronization daemon until interrupted.

File saves under the workspace are debounced, routed by path, and applied
to the store in arrival order. Unrecognized paths, editor temp files, and
writes that do not change content are ignored.

With --initial-import, a full workspace scan runs before watching starts,
so edits made while the daemon was down are picked up.

With --dashboard, a WebSocket feed of sync activity is served:
  ws://<addr>/ws

With --notify-url, each applied change POSTs a refresh signal so the
consuming application can invalidate its template caches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}

		cfg := daemon.DefaultConfig(root)
		cfg.StorePath = viper.GetString("store")
		cfg.ManifestPath = viper.GetString("manifest")
		cfg.DebounceWindow = debounceWindow()
		cfg.InitialImport = viper.GetBool("initial-import")
		cfg.NotifyEndpoint = viper.GetString("notify-url")
		cfg.NotifyTimeout = viper.GetDuration("notify_timeout")
		cfg.DashboardAddr = viper.GetString("dashboard")
		cfg.ExcludePaths = viper.GetStringSlice("exclude")
		cfg.Logger = newLogger("[themesync] ")

		d, err := daemon.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s (Ctrl+C to stop)\n", root)
		if cfg.DashboardAddr != "" {
			fmt.Printf("Dashboard: ws://%s/ws\n", cfg.DashboardAddr)
		}
		return d.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().Bool("initial-import", false, "run a full import before watching")
	watchCmd.Flags().String("notify-url", "", "endpoint to POST cache refresh signals to")
	watchCmd.Flags().String("dashboard", "", "serve the WebSocket activity feed on this address (e.g. :8080)")
	watchCmd.Flags().StringSlice("exclude", nil, "additional directories to ignore")
	rootCmd.AddCommand(watchCmd)
}
