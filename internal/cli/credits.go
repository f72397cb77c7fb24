package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the credit balance and recent transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := apiClient.Credits(context.Background(), userID)
		if err != nil {
			return fmt.Errorf("get credits: %w", err)
		}

		fmt.Printf("Plan:    %s\n", report.Plan)
		fmt.Printf("Balance: %d credits\n", report.Balance)

		if len(report.Transactions) == 0 {
			return nil
		}

		fmt.Println("\nRecent transactions:")
		for _, tx := range report.Transactions {
			fmt.Printf("  %s  %-12s %+6d  %s\n",
				tx.CreatedAt.Format("2006-01-02 15:04"), tx.Type, tx.Credits, tx.Description)
		}
		return nil
	},
}

var creditsBuyCmd = &cobra.Command{
	Use:   "buy <amount>",
	Short: "Purchase credits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[0])
		if err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive integer, got %q", args[0])
		}

		balance, err := apiClient.BuyCredits(context.Background(), userID, amount, "credit purchase")
		if err != nil {
			return fmt.Errorf("buy credits: %w", err)
		}

		fmt.Printf("Added %d credits; new balance: %d\n", amount, balance)
		return nil
	},
}

func init() {
	creditsCmd.AddCommand(creditsBuyCmd)
}
