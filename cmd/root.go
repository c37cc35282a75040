package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "go-sniper",
	Short: "Control panel backend for the Sn1per scanner",
	Long: `Control panel backend for the Sn1per scanner.

It validates scan configurations and renders them into sniper invocations,
hands them to a launcher, and aggregates the results reported back into
workspaces with live rollups.`,
	Example: `  # Serve the panel API
  go-sniper serve --config sniper.yaml

  # Preview a command without launching it
  go-sniper render -t example.com -m port -p 443

  # List the scan modes
  go-sniper modes`,
	SilenceUsage: true,
}

// Execute runs the root cobra command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (env: SNIPER_*)")

	rootCmd.AddCommand(serveCmd, renderCmd, modesCmd, versionCmd)

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("go-sniper {{.Version}}\n")
}
