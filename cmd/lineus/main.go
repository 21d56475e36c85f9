// Lineus is a command line client for Line-us drawing robots.
//
// It finds devices on the local network by mDNS or by scanning the
// local subnets, reports their status and stored drawings, sends
// G-code and uploads drawings into the device's storage slots.
//
// Usage:
//
//	lineus [command] [flags]
//
// See 'lineus --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lineus/lineus/internal/logging"
	"github.com/lineus/lineus/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lineus",
	Short: "Line-us drawing robot client",
	Long: `A command line client for Line-us drawing robots.

Finds devices on the local network, reports their status and stored
drawings, sends G-code and uploads drawings.

Without --device, commands connect to the first device announced over
mDNS, or to default_device from the config file.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Version = version.Full()

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}
