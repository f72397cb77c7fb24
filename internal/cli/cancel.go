package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cancellation of a running job",
	Long: `Flag a running analysis job for cancellation. The job stops at its
next chunk boundary; chunks already analyzed stay persisted and billed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	if err := apiClient.Cancel(context.Background(), jobID); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}

	fmt.Printf("Cancellation requested for job %s\n", jobID)
	fmt.Println("The job stops at the next chunk boundary; completed work is kept.")
	return nil
}
