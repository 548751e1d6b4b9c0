package state

import (
	"fmt"

	"github.com/qledger/blockchain/foundation/ledger/database"
)

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion
// into the mempool after validating it against the current chain state.
func (s *State) UpsertWalletTransaction(tx database.Tx) error {
	s.evHandler("state: UpsertWalletTransaction: tx[%s]", tx.TxID())

	fee, err := s.admitTransaction(tx)
	if err != nil {
		return err
	}

	s.evHandler("state: UpsertWalletTransaction: tx[%s]: fee[%d]: SHARE and MINE", tx.TxID(), fee)

	// Share the transaction with the rest of the network and signal a
	// mining operation.
	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}

// UpsertNodeTransaction accepts a transaction shared by another node for
// inclusion into the mempool.
func (s *State) UpsertNodeTransaction(tx database.Tx) error {
	s.evHandler("state: UpsertNodeTransaction: tx[%s]", tx.TxID())

	if _, err := s.admitTransaction(tx); err != nil {
		return err
	}

	s.Worker.SignalStartMining()

	return nil
}

// admitTransaction validates the transaction against the authoritative
// unspent output set and adds it to the mempool with the fee it pays. The
// fee is locked in at admission. If the chain moves underneath the
// transaction, mining validation prunes it.
func (s *State) admitTransaction(tx database.Tx) (uint64, error) {
	if tx.IsCoinbase() {
		return 0, fmt.Errorf("coinbase transactions cannot be submitted")
	}

	fee, err := s.db.ValidateTransaction(tx)
	if err != nil {
		return 0, err
	}

	if _, err := s.mempool.Upsert(tx, fee); err != nil {
		return 0, err
	}

	return fee, nil
}
