// Package cli implements the guildhall command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guildforge/guildhall/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "guildhall",
	Short: "Guild diplomacy and treasury engine",
	Long: `Guildhall tracks diplomatic relations, wars, parties, and vault
balances for guilds. Run "guildhall serve" to start the HTTP daemon, or use
the inspection subcommands against the same database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.toml (default <guildhall home>/config.toml)")
}

// loadConfig honors the --config flag, falling back to the guildhall home.
func loadConfig(cmd *cobra.Command) (daemon.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return daemon.LoadFile(path)
	}
	return daemon.Load()
}
