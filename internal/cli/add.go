package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/packlens/packlens/internal/client"
)

var addSourceID string

var addCmd = &cobra.Command{
	Use:   "add <pack> <file>",
	Short: "Upload a source into a pack and chunk it",
	Long: `Upload an exported conversation or document file into a pack.
The server extracts the text and splits it into chunks; run 'packlens
analyze' afterwards to process them.

Examples:
  packlens add personal export.json
  packlens add work notes.md --source-id notes-v2`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addSourceID, "source-id", "", "source ID (generated if empty)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	packID, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	result, err := apiClient.AddSource(context.Background(), packID, client.AddSourceInput{
		SourceID: addSourceID,
		UserID:   userID,
		Email:    userEmail,
		Filename: filepath.Base(path),
		Content:  string(data),
	})
	if err != nil {
		return fmt.Errorf("add source: %w", err)
	}

	fmt.Printf("Added source %s to pack %s (%d chunks)\n", result.SourceID, packID, result.ChunkCount)
	fmt.Printf("Run 'packlens analyze %s %s' to start analysis\n", packID, result.SourceID)
	return nil
}
