package core

import "sync"

// Pool is a mutex-guarded pending-transaction queue feeding block
// production.
type Pool struct {
	mu  sync.Mutex
	txs []Transaction
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Submit appends a transaction to the queue.
func (p *Pool) Submit(tx Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = append(p.txs, tx)
}

// Drain removes and returns up to limit queued transactions in submission
// order. A non-positive limit drains everything.
func (p *Pool) Drain(limit int) []Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.txs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Transaction, n)
	copy(out, p.txs[:n])
	p.txs = p.txs[n:]
	return out
}

// Len returns the number of queued transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}
