// Package cli provides the command-line interface for packlens.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/packlens/packlens/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	userID    string
	userEmail string

	// apiClient talks to the packlens server; created before every command.
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "packlens",
	Short: "Chunked analysis of exported conversations and documents",
	Long: `Packlens ingests exported conversation and document data, splits it
into token-budgeted chunks, and runs each chunk through a language model.

Results accumulate incrementally on the server; jobs can be watched,
polled, or cancelled mid-run without losing completed work.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $PACKLENS_SERVER_URL or http://localhost:8585)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "default", "user ID to act as")
	rootCmd.PersistentFlags().StringVar(&userEmail, "email", "", "email for completion notifications")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(creditsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statsCmd)
}
