package state

import (
	"context"
	"errors"

	"github.com/qledger/blockchain/foundation/ledger/database"
)

// ErrNoTransactions is returned when mining is attempted and there are no
// usable transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	defer s.evHandler("state: MineNewBlock: MINING: completed")

	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Are there enough transactions in the pool.
	if s.mempool.Count() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	// Pick the best transactions from the mempool, leaving room for the
	// coinbase at the head of the block.
	txs := s.mempool.PickBest(int(s.genesis.TransPerBlock) - 1)

	s.evHandler("state: MineNewBlock: MINING: validate %d selected transactions", len(txs))

	// Re-validate the selection against a snapshot of the current chain
	// state. Transactions whose inputs were spent since admission are stale
	// and dropped from the pool. Spends of outputs created earlier in this
	// same block are fine because validation runs in block order.
	scratch := s.db.CopyUTXOSet()

	var trans []database.Tx
	var fees uint64
	for _, tx := range txs {
		fee, err := database.ValidateTransaction(tx, scratch)
		if err != nil {
			s.evHandler("state: MineNewBlock: MINING: WARNING: drop stale tx[%s]: %s", tx.TxID(), err)
			s.mempool.Delete(tx)
			continue
		}

		if err := scratch.ApplyTransaction(tx); err != nil {
			s.evHandler("state: MineNewBlock: MINING: WARNING: drop stale tx[%s]: %s", tx.TxID(), err)
			s.mempool.Delete(tx)
			continue
		}

		trans = append(trans, tx)
		fees += fee
	}

	if len(trans) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	// The coinbase mints the mining reward plus the fees paid by the
	// transactions in this block. It must be the first transaction and it
	// carries the number of the block being mined.
	coinbase := database.NewCoinbaseTx(s.beneficiaryID, s.genesis.MiningReward+fees, s.db.LatestBlock().Header.Number+1)
	trans = append([]database.Tx{coinbase}, trans...)

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	// Attempt to create a new block by solving the POW puzzle. This can
	// be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		BeneficiaryID: s.beneficiaryID,
		Difficulty:    s.genesis.Difficulty,
		PrevBlock:     s.db.LatestBlock(),
		Trans:         trans,
		EvHandler:     s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	if err := s.validateUpdateDatabase(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if it passes, writes the block to the local chain. An in-flight mining
// operation is cancelled since this block wins the race.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]",
		block.Header.PrevBlockHash, block.Hash(), len(block.Trans.Values()))
	defer s.evHandler("state: ProcessProposedBlock: completed")

	if err := s.validateUpdateDatabase(block); err != nil {
		return err
	}

	// If we are mining the same block, give up. The peer republished first.
	s.Worker.SignalCancelMining()

	return nil
}

// =============================================================================

// validateUpdateDatabase takes the block and validates the block against
// the consensus rules. If the block passes, then the state of the node is
// updated including removing the mined transactions from the mempool.
func (s *State) validateUpdateDatabase(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: validateUpdateDatabase: validate block and transactions")

	if err := s.db.ApplyBlock(block); err != nil {
		return err
	}

	s.evHandler("state: validateUpdateDatabase: remove block transactions from mempool")

	for _, tx := range block.Trans.Values() {
		if tx.IsCoinbase() {
			continue
		}

		s.evHandler("state: validateUpdateDatabase: tx[%s] removed from mempool", tx.TxID())
		s.mempool.Delete(tx)
	}

	s.blockEvent(block)

	return nil
}

// blockEvent publishes the acceptance of a block for anyone listening on
// the events stream.
func (s *State) blockEvent(block database.Block) {
	s.evHandler("viewer: blk[%d] hash[%s] beneficiary[%s] trans[%d]",
		block.Header.Number, block.Hash(), block.Header.BeneficiaryID, len(block.Trans.Values()))
}
