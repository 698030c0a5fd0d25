// Command adctl validates ad unit documents and runs lifecycle simulations
// against the simulated ad network.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "adctl",
	Short: "adctl inspects ad unit documents and simulates ad lifecycles.",
	Long: `adctl inspects ad unit documents and simulates ad lifecycles. ` +
		`It validates documents before they ship and drives every unit ` +
		`through load and show cycles against a simulated network.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.AddCommand(validateCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
