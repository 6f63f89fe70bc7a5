package journal

// iterator is one pass over a query's result set, produced lazily.
type iterator interface {
	Next() (TransactionRecord, bool, error)
	Close() error
}

// Cursor is a lazy, restartable walk over a time-ordered set of transaction
// records. Rows are fetched on demand; Reset re-issues the underlying query
// so a consumer can make multiple passes (audit trail display, then a
// performance scan) without buffering everything.
type Cursor struct {
	open func() (iterator, error)
	it   iterator
	cur  TransactionRecord
	err  error
}

func newCursor(open func() (iterator, error)) *Cursor {
	return &Cursor{open: open}
}

// Next advances to the next record. It returns false when the records are
// exhausted or an error occurred; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.err != nil {
		return false
	}
	if c.it == nil {
		it, err := c.open()
		if err != nil {
			c.err = err
			return false
		}
		c.it = it
	}

	rec, ok, err := c.it.Next()
	if err != nil {
		c.err = err
		return false
	}
	if !ok {
		return false
	}
	c.cur = rec
	return true
}

// Record returns the record the cursor is positioned on. Valid only after a
// Next call that returned true.
func (c *Cursor) Record() TransactionRecord { return c.cur }

// Err returns the first error encountered while iterating.
func (c *Cursor) Err() error { return c.err }

// Reset rewinds the cursor to the beginning. The underlying query is issued
// again on the next call to Next.
func (c *Cursor) Reset() error {
	var err error
	if c.it != nil {
		err = c.it.Close()
		c.it = nil
	}
	c.cur = TransactionRecord{}
	c.err = nil
	return err
}

// Close releases the cursor's resources.
func (c *Cursor) Close() error {
	if c.it == nil {
		return nil
	}
	err := c.it.Close()
	c.it = nil
	return err
}
