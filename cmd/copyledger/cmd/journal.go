package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/optrade/copyledger/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal <account-id>",
	Short: "Dump transaction history for an account",
	Long: `Print the transaction journal for an account from the SQLite database,
oldest first.

Examples:
  copyledger journal 7c0d3f1e-...
  copyledger journal 7c0d3f1e-... --day 2026-08-01`,
	Args: cobra.ExactArgs(1),
	RunE: runJournal,
}

var (
	journalDBPath string
	journalDay    string
)

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().StringVarP(&journalDBPath, "db", "d", "./copyledger.sqlite", "path to SQLite journal DB")
	journalCmd.Flags().StringVar(&journalDay, "day", "", "only records from this day (YYYY-MM-DD, local time)")
}

func runJournal(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	var from, to time.Time
	if journalDay != "" {
		from, to, err = dayBounds(time.Local, journalDay)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
	}

	cur, err := j.Query(args[0], from, to)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	defer cur.Close()

	n := 0
	for cur.Next() {
		rec := cur.Record()
		fmt.Println(formatRecord(rec))
		n++
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	fmt.Printf("\n%d record(s)\n", n)
	return nil
}

func formatRecord(r journal.TransactionRecord) string {
	ref := ""
	if r.ReferenceID != "" {
		ref = " ref=" + r.ReferenceID
	}
	return fmt.Sprintf("%s  %-16s %12s  %12s -> %-12s%s  %s",
		r.CreatedAt.Format(time.RFC3339), r.Type, r.Amount.StringFixed(2),
		r.BalanceBefore.StringFixed(2), r.BalanceAfter.StringFixed(2), ref, r.Description)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
