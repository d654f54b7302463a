package host

// EnsureInTransaction opens a transaction when none is open and otherwise
// joins the open one. Every call must be paired with TransactionTaskDone
// or cancelled with RollBack.
func (d *Document) EnsureInTransaction() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depth++
}

// TransactionTaskDone ends one task. The transaction commits when the
// outermost task is done.
func (d *Document) TransactionTaskDone() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.depth == 0 {
		return ErrNoTransaction
	}
	d.depth--
	if d.depth == 0 {
		d.journal = nil
	}
	return nil
}

// RollBack undoes every change since the transaction opened and closes it,
// whatever its depth.
func (d *Document) RollBack() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.journal) - 1; i >= 0; i-- {
		d.journal[i]()
	}
	d.journal = nil
	d.depth = 0
}

// InTransaction reports whether a transaction is open.
func (d *Document) InTransaction() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.depth > 0
}
