package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "copyledger",
	Short: "Trading account ledger and copy trade relay",
	Long: `Copyledger manages funded trading accounts: an append-only transaction
journal, balance-reserving payout workflow, a copy trade relay to an
external broker, and periodic balance reconciliation.

It provides commands for:
  - Running the service with the background balance reconciler
  - Querying the transaction journal
  - Walking a payout through request, review and completion
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Secrets like BROKER_API_KEY come from the environment; a local .env
	// is honored when present.
	_ = godotenv.Load()
}
