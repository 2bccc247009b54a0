package cmd

import (
	"fmt"

	"media-viewer-engine/internal/startup"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := startup.GetBuildInfo()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "media-viewer-engine %s\n", info.Version)
		fmt.Fprintf(out, "  Commit: %s\n", info.Commit)
		fmt.Fprintf(out, "  Built:  %s\n", info.BuildTime)
		fmt.Fprintf(out, "  Go:     %s %s/%s\n", info.GoVersion, info.OS, info.Arch)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
