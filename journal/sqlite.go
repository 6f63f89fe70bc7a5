package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLite is the durable journal implementation. The transactions table is
// append-only; there are no UPDATE or DELETE statements in this package.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Append(r TransactionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO transactions
		(id, account_id, type, amount, balance_before, balance_after, reference_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AccountID, string(r.Type), r.Amount.String(),
		r.BalanceBefore.String(), r.BalanceAfter.String(),
		r.ReferenceID, r.Description, r.CreatedAt,
	)
	return err
}

func (j *SQLite) Query(accountID string, from, to time.Time) (*Cursor, error) {
	return newCursor(func() (iterator, error) {
		q := `
			SELECT id, account_id, type, amount, balance_before, balance_after, reference_id, description, created_at
			FROM transactions
			WHERE account_id = ? AND created_at >= ?`
		args := []any{accountID, from}
		if !to.IsZero() {
			q += ` AND created_at < ?`
			args = append(args, to)
		}
		q += ` ORDER BY created_at ASC, id ASC`

		rows, err := j.db.Query(q, args...)
		if err != nil {
			return nil, err
		}
		return &sqliteIter{rows: rows}, nil
	}), nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

type sqliteIter struct {
	rows *sql.Rows
}

func (it *sqliteIter) Next() (TransactionRecord, bool, error) {
	if !it.rows.Next() {
		return TransactionRecord{}, false, it.rows.Err()
	}

	var (
		rec                   TransactionRecord
		typ                   string
		amount, before, after string
	)
	if err := it.rows.Scan(
		&rec.ID,
		&rec.AccountID,
		&typ,
		&amount,
		&before,
		&after,
		&rec.ReferenceID,
		&rec.Description,
		&rec.CreatedAt,
	); err != nil {
		return TransactionRecord{}, false, err
	}

	rec.Type = Type(typ)
	var err error
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return TransactionRecord{}, false, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if rec.BalanceBefore, err = decimal.NewFromString(before); err != nil {
		return TransactionRecord{}, false, fmt.Errorf("parse balance_before %q: %w", before, err)
	}
	if rec.BalanceAfter, err = decimal.NewFromString(after); err != nil {
		return TransactionRecord{}, false, fmt.Errorf("parse balance_after %q: %w", after, err)
	}
	return rec, true, nil
}

func (it *sqliteIter) Close() error {
	return it.rows.Close()
}
