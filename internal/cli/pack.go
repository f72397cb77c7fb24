package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var packName string

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage packs",
}

var packCreateCmd = &cobra.Command{
	Use:   "create [pack-id]",
	Short: "Create a new pack",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		packID := ""
		if len(args) == 1 {
			packID = args[0]
		}

		created, err := apiClient.CreatePack(context.Background(), packID, userID, packName)
		if err != nil {
			return fmt.Errorf("create pack: %w", err)
		}

		fmt.Printf("Created pack %s\n", created)
		return nil
	},
}

var packSourcesCmd = &cobra.Command{
	Use:   "sources <pack-id>",
	Short: "List the sources in a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient.ListSources(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list sources: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sources found")
			return nil
		}

		fmt.Printf("%-14s %-20s %-20s %-8s %s\n", "ID", "FILENAME", "STATUS", "CHUNKS", "PROGRESS")
		fmt.Println("--------------------------------------------------------------------------")
		for _, src := range list {
			chunks := ""
			if src.TotalChunks > 0 {
				chunks = fmt.Sprintf("%d/%d", src.ProcessedChunks, src.TotalChunks)
			}
			fmt.Printf("%-14s %-20s %-20s %-8s %.0f%%\n",
				src.SourceID, src.Filename, src.Status, chunks, src.Progress)
		}
		return nil
	},
}

func init() {
	packCreateCmd.Flags().StringVar(&packName, "name", "", "display name (defaults to the pack ID)")

	packCmd.AddCommand(packCreateCmd)
	packCmd.AddCommand(packSourcesCmd)
}
