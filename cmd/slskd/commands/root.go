// Package commands implements the slskd CLI command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/slskd/slskd/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "slskd",
	Short: "slskd upload pipeline daemon",
	Long: `slskd runs the upload side of a Soulseek peer: a priority queue of
pending uploads, a per-group rate governor, and a scheduler that dispatches
queued uploads to a peer transport as slots and bandwidth become available.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ./slskd.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(uploadsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Options, error) {
	return config.Load(cfgFile)
}
