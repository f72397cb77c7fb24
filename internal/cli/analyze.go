package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packlens/packlens/internal/client"
)

var (
	analyzeMaxChunks int
	analyzePrompt    string
	analyzeFilename  string
	analyzeWatch     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pack> <source>",
	Short: "Run chunked analysis of a prepared source",
	Long: `Start analyzing a source that was previously added with 'packlens add'.
The job runs on the server; by default this command returns immediately.

Examples:
  packlens analyze personal export-v1
  packlens analyze personal export-v1 --watch
  packlens analyze work notes-v2 --max-chunks 5 --prompt "Focus on decisions"`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeMaxChunks, "max-chunks", 0, "limit the number of chunks processed (0 = all)")
	analyzeCmd.Flags().StringVar(&analyzePrompt, "prompt", "", "custom system prompt override")
	analyzeCmd.Flags().StringVar(&analyzeFilename, "filename", "", "filename hint for prompt selection")
	analyzeCmd.Flags().BoolVarP(&analyzeWatch, "watch", "w", false, "watch progress until the job finishes")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	packID, sourceID := args[0], args[1]

	err := apiClient.Analyze(context.Background(), packID, sourceID, client.AnalyzeInput{
		UserID:       userID,
		Email:        userEmail,
		Filename:     analyzeFilename,
		MaxChunks:    analyzeMaxChunks,
		CustomPrompt: analyzePrompt,
	})
	if err != nil {
		return fmt.Errorf("start analysis: %w", err)
	}

	if analyzeWatch {
		return RunJobProgress(apiClient, sourceID)
	}

	fmt.Printf("Analysis started for source %s\n", sourceID)
	fmt.Printf("Use 'packlens watch %s' to follow progress\n", sourceID)
	return nil
}
