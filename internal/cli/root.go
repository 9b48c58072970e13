// Package cli implements the Tempo command-line interface using Cobra.
// Apart from serve, every subcommand is a thin HTTP client against the
// running daemon.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tempo",
	Short: "Tempo — adaptive day-scheduling engine",
	Long: `Tempo keeps your day schedulable: it admits tasks from the backlog,
absorbs calendar disruptions by swapping work in and out, orders what's
left by urgency, and hands background work to an execution worker when
your energy runs out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var apiAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "http://127.0.0.1:7430",
		"Address of the tempo daemon API")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
