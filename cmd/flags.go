package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// Flags are defined in init(), so a missing one is a programming bug.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetStringSlice gets a string slice flag value or panics if the flag doesn't exist.
func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// addSourceFlags registers the flags that choose a session's references.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("manifest", "", "YAML manifest of references")
	cmd.Flags().String("playlist", "", "WPL or M3U playlist resolved against --dir or MEDIA_DIR")
	cmd.Flags().String("dir", "", "Directory of images to open, sorted by path (overrides MEDIA_DIR)")
	cmd.Flags().StringSlice("id", nil, "Remote item ids to open")
	cmd.Flags().String("quality", "compressed", "Quality for --dir references: compressed or original")
	cmd.Flags().Int("start", -1, "Slot to open at (default: manifest start, else 0)")
}
