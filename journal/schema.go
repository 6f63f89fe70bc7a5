// journal/schema.go
package journal

// Amounts are stored as TEXT so the 2-decimal fixed-point values round-trip
// exactly; REAL would reintroduce binary float drift into the balance chain.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	type TEXT NOT NULL,
	amount TEXT NOT NULL,
	balance_before TEXT NOT NULL,
	balance_after TEXT NOT NULL,
	reference_id TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_time
	ON transactions(account_id, created_at);
`
