package cmd

import (
	"fmt"
	"os"

	"media-viewer-engine/internal/logging"

	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "media-viewer-engine",
	Short: "Load, cache and display an ordered list of images",
	Long: `media-viewer-engine opens a viewing session over an ordered list of image
references, loads them with bounded concurrency into a shared cache,
generates thumbnails in the background and exposes navigation, variant
toggling and zoom/pan state to a renderer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		level, ok := logging.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		logging.SetLevel(level)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}
