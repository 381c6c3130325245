// Command themesync keeps a theme workspace on disk and the theme store
// in sync. Templates, stylesheets, and plugin fragments edited under the
// workspace are imported into the store as overrides; the store's effective
// view can be exported back out as files.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "themesync",
	Short: "Disk-to-store synchronization for theme workspaces",
	Long: `themesync watches a theme workspace and mirrors file edits into the
theme store as override records, preserving master/override inheritance.

Workspace layout:
  template_sets/<scope>/<group>/<name>.html
  styles/<scope>/<name>.css
  plugins/<visibility>/<codename>/templates/<name>.html

Configuration is read from themesync.yaml in the workspace root or the
current directory; flags override file settings.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("root", ".", "workspace root directory")
	rootCmd.PersistentFlags().String("store", "", "store database path (default <root>/.themesync/store.db)")
	rootCmd.PersistentFlags().String("manifest", "", "sync manifest path (default <root>/.themesync/manifest.db)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path (rotated; default stderr)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log every processed event")
}

// initConfig layers viper config under the flags: defaults, then
// themesync.yaml, then environment (THEMESYNC_*), then explicit flags.
func initConfig(cmd *cobra.Command) error {
	viper.SetDefault("root", ".")
	viper.SetDefault("debounce_window", "500ms")
	viper.SetDefault("notify_timeout", "10s")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	viper.SetEnvPrefix("themesync")
	viper.AutomaticEnv()

	viper.SetConfigName("themesync")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(viper.GetString("root"))
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// newLogger builds the process logger. With --log-file set the output is
// size-rotated; otherwise it goes to stderr.
func newLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if path := viper.GetString("log-file"); path != "" {
		out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

// workspaceRoot resolves the configured root to an absolute path.
func workspaceRoot() (string, error) {
	root, err := filepath.Abs(viper.GetString("root"))
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace root %s is not a directory", root)
	}
	return root, nil
}

// debounceWindow reads the configured debounce duration, falling back to
// the default on a malformed value.
func debounceWindow() time.Duration {
	d := viper.GetDuration("debounce_window")
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	return d
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
