package journal

import (
	"sort"
	"sync"
	"time"
)

// Memory is an in-process journal for tests and ephemeral runs. Same
// append-only contract as the SQLite implementation.
type Memory struct {
	mu      sync.Mutex
	records []TransactionRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (j *Memory) Append(r TransactionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, r)
	return nil
}

func (j *Memory) Query(accountID string, from, to time.Time) (*Cursor, error) {
	return newCursor(func() (iterator, error) {
		j.mu.Lock()
		defer j.mu.Unlock()

		var out []TransactionRecord
		for _, r := range j.records {
			if r.AccountID != accountID {
				continue
			}
			if r.CreatedAt.Before(from) {
				continue
			}
			if !to.IsZero() && !r.CreatedAt.Before(to) {
				continue
			}
			out = append(out, r)
		}
		sort.SliceStable(out, func(a, b int) bool {
			if out[a].CreatedAt.Equal(out[b].CreatedAt) {
				return out[a].ID < out[b].ID
			}
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		})
		return &sliceIter{records: out}, nil
	}), nil
}

func (j *Memory) Close() error { return nil }

type sliceIter struct {
	records []TransactionRecord
	pos     int
}

func (it *sliceIter) Next() (TransactionRecord, bool, error) {
	if it.pos >= len(it.records) {
		return TransactionRecord{}, false, nil
	}
	rec := it.records[it.pos]
	it.pos++
	return rec, true, nil
}

func (it *sliceIter) Close() error { return nil }
