// Package database handles all the lower level support for maintaining the
// blockchain. It owns the blocks, the set of unspent outputs and the rules
// for how a block may extend the chain.
package database

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/qledger/blockchain/foundation/ledger/genesis"
)

// Serializer interface represents the behavior required to be implemented by
// any package providing support for the persistence of blocks.
type Serializer interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by
// any package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// Database manages data related to the blockchain. The latest block, the
// set of unspent outputs and the cumulative work move together under one
// mutex so a reader never observes a half-applied block.
type Database struct {
	mu          sync.RWMutex
	genesis     genesis.Genesis
	latestBlock Block
	utxo        *UTXOSet
	work        *big.Int
	storage     Serializer
	evHandler   func(v string, args ...any)
}

// New constructs a new database and applies any existing blocks from
// storage. Every stored block is re-validated, a corrupt store does not
// produce a running node.
func New(genesis genesis.Genesis, storage Serializer, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis:   genesis,
		utxo:      NewUTXOSet(),
		work:      big.NewInt(0),
		storage:   storage,
		evHandler: evHandler,
	}

	// Read all the blocks from storage and rebuild the unspent output set
	// from scratch.
	iter := db.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		if err := block.ValidateBlock(db.latestBlock, evHandler); err != nil {
			return nil, fmt.Errorf("stored block %d invalid: %w", blockData.Header.Number, err)
		}

		if err := applyTransactions(block, db.utxo, genesis.MiningReward); err != nil {
			return nil, fmt.Errorf("stored block %d invalid: %w", blockData.Header.Number, err)
		}

		db.latestBlock = block
		db.work = db.work.Add(db.work, block.Header.Work())
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.storage.Close()
}

// =============================================================================

// ApplyBlock validates the specified block against the current latest block
// and, if it passes, makes it the new latest block, updating the unspent
// output set and persisting the block. Any failure leaves the database
// unchanged.
func (db *Database) ApplyBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := block.ValidateBlock(db.latestBlock, db.evHandler); err != nil {
		return err
	}

	// Run the transactions against a clone. The authoritative set is only
	// replaced once everything in the block is known good.
	scratch := db.utxo.Clone()
	if err := applyTransactions(block, scratch, db.genesis.MiningReward); err != nil {
		return err
	}

	if err := db.storage.Write(NewBlockData(block)); err != nil {
		return err
	}

	db.latestBlock = block
	db.utxo = scratch
	db.work = new(big.Int).Add(db.work, block.Header.Work())

	return nil
}

// Replace re-derives the entire chain state from the specified blocks,
// starting at genesis. If every block validates, the chain, the unspent
// output set and storage are atomically replaced. Used by the reconciler
// when adopting a peer's chain.
func (db *Database) Replace(blocks []Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(blocks) == 0 {
		return errors.New("candidate chain has no blocks")
	}

	var latestBlock Block
	scratch := NewUTXOSet()
	work := big.NewInt(0)

	for _, block := range blocks {
		if err := block.ValidateBlock(latestBlock, db.evHandler); err != nil {
			return fmt.Errorf("candidate block %d invalid: %w", block.Header.Number, err)
		}

		if err := applyTransactions(block, scratch, db.genesis.MiningReward); err != nil {
			return fmt.Errorf("candidate block %d invalid: %w", block.Header.Number, err)
		}

		latestBlock = block
		work = work.Add(work, block.Header.Work())
	}

	if err := db.storage.Reset(); err != nil {
		return err
	}

	for _, block := range blocks {
		if err := db.storage.Write(NewBlockData(block)); err != nil {
			return err
		}
	}

	db.latestBlock = latestBlock
	db.utxo = scratch
	db.work = work

	return nil
}

// =============================================================================

// LatestBlock returns the current latest block. For block 0 this is the
// implicit genesis block with the zero hash.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// CumulativeWork returns the total work represented by the chain.
func (db *Database) CumulativeWork() *big.Int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return new(big.Int).Set(db.work)
}

// Balance returns the unspent value owned by the specified account.
func (db *Database) Balance(accountID AccountID) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.utxo.Balance(accountID)
}

// Balances returns the unspent value per account. If an account is
// specified, only that account is included.
func (db *Database) Balances(accountID AccountID) map[AccountID]uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if accountID != "" {
		return map[AccountID]uint64{accountID: db.utxo.Balance(accountID)}
	}

	return db.utxo.Balances()
}

// UTXOByAccount returns the unspent outputs owned by the specified account.
func (db *Database) UTXOByAccount(accountID AccountID) []UTXO {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.utxo.OwnedBy(accountID)
}

// CopyUTXOSet returns a clone of the authoritative unspent output set for
// multi-step validation protocols.
func (db *Database) CopyUTXOSet() *UTXOSet {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.utxo.Clone()
}

// ValidateTransaction checks the specified transaction against the current
// unspent output set and returns the fee it would pay.
func (db *Database) ValidateTransaction(tx Tx) (fee uint64, err error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return ValidateTransaction(tx, db.utxo)
}

// GetBlock searches the blockchain for the specified block number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blockData, err := db.storage.GetBlock(num)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// ForEach returns an iterator to walk through all the blocks in storage,
// starting with block number 1.
func (db *Database) ForEach() DBIterator {
	return DBIterator{iterator: db.storage.ForEach()}
}

// =============================================================================

// DBIterator provides support for iterating over blocks in storage,
// converting them to database blocks.
type DBIterator struct {
	iterator Iterator
}

// Next retrieves the next block from storage.
func (di *DBIterator) Next() (BlockData, error) {
	return di.iterator.Next()
}

// Done returns the end of chain value.
func (di *DBIterator) Done() bool {
	return di.iterator.Done()
}

// =============================================================================

// applyTransactions runs every transaction in the block against the
// specified set. The coinbase must be the first transaction and may not
// claim more than the mining reward plus the fees paid by the block's other
// transactions. Transactions are applied in order, so a transaction may
// spend an output created earlier in the same block but never later.
func applyTransactions(block Block, set *UTXOSet, miningReward uint64) error {
	txs := block.Trans.Values()
	if len(txs) == 0 {
		return fmt.Errorf("block %d has no transactions", block.Header.Number)
	}

	var fees uint64
	for i, tx := range txs {
		if tx.IsCoinbase() {
			if i != 0 {
				return fmt.Errorf("coinbase at position %d, must be first", i)
			}
			if tx.Block != block.Header.Number {
				return fmt.Errorf("coinbase minted for block %d inside block %d", tx.Block, block.Header.Number)
			}
			if err := set.ApplyTransaction(tx); err != nil {
				return err
			}
			continue
		}

		fee, err := ValidateTransaction(tx, set)
		if err != nil {
			return fmt.Errorf("tx[%s]: %w", tx.TxID(), err)
		}

		if err := set.ApplyTransaction(tx); err != nil {
			return fmt.Errorf("tx[%s]: %w", tx.TxID(), err)
		}

		fees += fee
	}

	if txs[0].IsCoinbase() {
		if claimed := txs[0].OutputSum(); claimed > miningReward+fees {
			return fmt.Errorf("coinbase claims %d, cap %d: %w", claimed, miningReward+fees, ErrExcessiveReward)
		}
	}

	return nil
}
