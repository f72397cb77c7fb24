package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/packlens/packlens/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	snap, err := apiClient.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	uptime := time.Duration(snap.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Printf("Server uptime: %s\n\n", uptime)

	printOp("Chunking", snap.Chunking)
	printOp("LLM calls", snap.LLMCall)
	printOp("Blob reads", snap.BlobGet)
	printOp("Blob writes", snap.BlobPut)
	printOp("DB updates", snap.DBUpdate)

	return nil
}

func printOp(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		return
	}

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Count: %d\n", op.Count)
	fmt.Printf("  Avg: %.1fms  Min: %dms  Max: %dms\n", op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)

	if op.TotalInputTokens != nil && op.TotalOutputTokens != nil {
		fmt.Printf("  Input tokens: %d (avg %.0f)\n", *op.TotalInputTokens, *op.AvgInputTokens)
		fmt.Printf("  Output tokens: %d (avg %.0f)\n", *op.TotalOutputTokens, *op.AvgOutputTokens)
	}
	fmt.Println()
}
