package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect analysis jobs",
	Long: `List all jobs with retained progress or inspect a specific job by ID.

Examples:
  packlens jobs           # List all jobs
  packlens jobs abc123    # Show progress history for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	jobs, err := apiClient.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-14s %-20s %-10s %-8s %s\n", "ID", "STEP", "CHUNKS", "PERCENT", "UPDATED")
	fmt.Println("------------------------------------------------------------------------")

	for _, job := range jobs {
		if job.Latest == nil {
			fmt.Printf("%-14s %-20s\n", job.JobID, "-")
			continue
		}
		ev := job.Latest
		chunks := ""
		if ev.TotalChunks > 0 {
			chunks = fmt.Sprintf("%d/%d", ev.CurrentChunk, ev.TotalChunks)
		}
		fmt.Printf("%-14s %-20s %-10s %-8s %s\n",
			job.JobID, ev.Step, chunks,
			fmt.Sprintf("%.0f%%", ev.Percent),
			ev.Timestamp.Format("15:04:05"))
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	events, err := apiClient.History(ctx, id, time.Time{})
	if err != nil {
		return fmt.Errorf("get job history: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("no progress retained for job %s", id)
	}

	latest := events[len(events)-1]
	fmt.Printf("Job: %s\n", id)
	fmt.Printf("  Step: %s\n", latest.Step)
	if latest.TotalChunks > 0 {
		fmt.Printf("  Chunks: %d/%d\n", latest.CurrentChunk, latest.TotalChunks)
	}
	fmt.Printf("  Percent: %.1f%%\n", latest.Percent)
	fmt.Printf("  Updated: %s\n", latest.Timestamp.Format(time.RFC3339))

	fmt.Println("\nHistory:")
	for _, ev := range events {
		line := fmt.Sprintf("  %s  %-20s %5.1f%%", ev.Timestamp.Format("15:04:05"), ev.Step, ev.Percent)
		if ev.Message != "" {
			line += "  " + ev.Message
		}
		fmt.Println(line)
	}

	return nil
}
