// Twrpdtgen generates TWRP device trees from Android boot images.
//
// It parses a boot, recovery or vendor_boot image, recovers the device
// identity from the ramdisk's build properties and the device tree
// blob, and renders a ready-to-build TWRP device-tree directory.
//
// Usage:
//
//	twrpdtgen [command] [flags]
//
// See 'twrpdtgen --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EduardoA3677/twrpdtgen/internal/logging"
	"github.com/EduardoA3677/twrpdtgen/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "twrpdtgen",
	Short: "TWRP device tree generator",
	Long: `Generate TWRP device trees from Android boot images.

Given a boot, recovery or vendor_boot image, twrpdtgen recovers the
device identity (codename, manufacturer, model, platform) from the
ramdisk's build properties and the device tree blob, and writes a
ready-to-build TWRP device-tree directory.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("twrpdtgen %s (commit: %s)\n", version.Version, version.Commit)
	},
}
