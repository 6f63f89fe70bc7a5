package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/optrade/copyledger/payout"
	"github.com/optrade/copyledger/trading"
)

var payoutCmd = &cobra.Command{
	Use:   "payout <amount>",
	Short: "Walk a payout through request, review and completion",
	Long: `Run the full payout workflow against a fresh account seeded with a
deposit: request the payout, review it, and (unless rejected) complete it.
Each state and the resulting journal records are printed.

Examples:
  copyledger payout 2500
  copyledger payout 2500 --reject
  copyledger payout 500 --method crypto --destination bc1q...`,
	Args: cobra.ExactArgs(1),
	RunE: runPayout,
}

var (
	payoutMethod      string
	payoutDestination string
	payoutSeed        string
	payoutReject      bool
)

func init() {
	rootCmd.AddCommand(payoutCmd)

	payoutCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	payoutCmd.Flags().StringVar(&payoutMethod, "method", string(payout.BankTransfer), "payout method (crypto, bank_transfer, stripe)")
	payoutCmd.Flags().StringVar(&payoutDestination, "destination", "demo-destination", "payout destination")
	payoutCmd.Flags().StringVar(&payoutSeed, "seed", "10000", "deposit credited to the demo account first")
	payoutCmd.Flags().BoolVar(&payoutReject, "reject", false, "reject the payout at review instead of approving")
}

func runPayout(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	seed, err := decimal.NewFromString(payoutSeed)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	svc, err := trading.NewFromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer svc.Close()

	acct := svc.OpenAccount("payout-demo")
	fmt.Printf("Account %s (%s)\n", acct.AccountNumber, acct.ID)

	dep, err := svc.CreateDeposit(acct.ID, seed, "SEED")
	if err != nil {
		return fmt.Errorf("create deposit: %w", err)
	}
	if _, err := svc.SettleDeposit(dep.ID); err != nil {
		return fmt.Errorf("settle deposit: %w", err)
	}
	fmt.Printf("Seeded with %s %s\n\n", seed.StringFixed(2), acct.Currency)

	p, err := svc.CreatePayout(acct.ID, amount, payout.Method(payoutMethod), payoutDestination)
	if err != nil {
		return fmt.Errorf("request payout: %w", err)
	}
	fmt.Printf("Requested: amount=%s fee=%s net=%s status=%s\n",
		p.Amount.StringFixed(2), p.FeeAmount.StringFixed(2), p.NetAmount.StringFixed(2), p.Status)

	if p, err = svc.Payouts.MarkUnderReview(p.ID); err != nil {
		return fmt.Errorf("mark under review: %w", err)
	}
	fmt.Printf("Review:    status=%s\n", p.Status)

	decision := payout.Approve
	notes := "approved from CLI"
	if payoutReject {
		decision = payout.Reject
		notes = "rejected from CLI"
	}
	if p, err = svc.Payouts.Review(p.ID, decision, notes); err != nil {
		return fmt.Errorf("review payout: %w", err)
	}
	fmt.Printf("Decision:  status=%s\n", p.Status)

	if !payoutReject {
		if p, err = svc.Payouts.Complete(p.ID, "PROVIDER-TX-1"); err != nil {
			return fmt.Errorf("complete payout: %w", err)
		}
		fmt.Printf("Complete:  status=%s provider_tx=%s\n", p.Status, p.ProviderTransactionID)
	}

	final, err := svc.Ledger().Get(acct.ID)
	if err != nil {
		return err
	}
	fmt.Printf("\nFinal balances: balance=%s available=%s reserved=%s\n",
		final.Balance.StringFixed(2), final.AvailableBalance.StringFixed(2), final.ReservedBalance.StringFixed(2))

	fmt.Println("\nJournal:")
	cur, err := svc.Journal().Query(acct.ID, time.Time{}, time.Time{})
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	defer cur.Close()
	for cur.Next() {
		fmt.Println(formatRecord(cur.Record()))
	}
	return cur.Err()
}
