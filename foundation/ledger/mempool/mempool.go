// Package mempool maintains the transactions waiting to be mined into a
// block.
package mempool

import (
	"fmt"
	"sync"

	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/qledger/blockchain/foundation/ledger/mempool/selector"
)

// Mempool represents a cache of transactions organized by transaction id,
// each carrying the fee computed at admission time. The fee drives the
// selection order when a block is mined.
type Mempool struct {
	pool     map[string]selector.Item
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default fee select strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyFee)
}

// NewWithStrategy constructs a new mempool with the specified select
// strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]selector.Item),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the pool along with the fee it
// pays against the current chain state.
func (mp *Mempool) Upsert(tx database.Tx, fee uint64) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[tx.TxID()] = selector.Item{Tx: tx, Fee: fee}

	return len(mp.pool), nil
}

// Delete removes the specified transaction from the pool.
func (mp *Mempool) Delete(tx database.Tx) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := tx.TxID()
	if _, exists := mp.pool[key]; !exists {
		return fmt.Errorf("transaction %s not in the pool", key)
	}

	delete(mp.pool, key)
	return nil
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]selector.Item)
}

// PickBest uses the configured sort strategy to return the next set of
// transactions for mining. Pass -1 for all of them.
func (mp *Mempool) PickBest(howMany int) []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	items := make([]selector.Item, 0, len(mp.pool))
	for _, item := range mp.pool {
		items = append(items, item)
	}

	return mp.selectFn(items, howMany)
}

// Copy returns all the transactions currently in the pool.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.Tx, 0, len(mp.pool))
	for _, item := range mp.pool {
		txs = append(txs, item.Tx)
	}

	return txs
}
