package database

import (
	"sort"
	"sync"
)

// UTXO is a read model of one unspent output for queries and wallet use.
type UTXO struct {
	TxID    string    `json:"tx_id"`
	Index   uint32    `json:"index"`
	OwnerID AccountID `json:"owner_id"`
	Amount  uint64    `json:"amount"`
}

// UTXOSet maintains the set of unspent outputs. All value in the ledger
// lives here. The set is safe for concurrent use, but multi-step read
// protocols should work on a Clone.
type UTXOSet struct {
	outputs map[OutputRef]TxOut
	mu      sync.RWMutex
}

// NewUTXOSet constructs an empty set of unspent outputs.
func NewUTXOSet() *UTXOSet {
	return &UTXOSet{
		outputs: make(map[OutputRef]TxOut),
	}
}

// Contains reports whether the referenced output is unspent.
func (us *UTXOSet) Contains(ref OutputRef) bool {
	us.mu.RLock()
	defer us.mu.RUnlock()

	_, exists := us.outputs[ref]
	return exists
}

// Get returns the referenced output if it is unspent.
func (us *UTXOSet) Get(ref OutputRef) (TxOut, bool) {
	us.mu.RLock()
	defer us.mu.RUnlock()

	txout, exists := us.outputs[ref]
	return txout, exists
}

// Count returns the number of unspent outputs in the set.
func (us *UTXOSet) Count() int {
	us.mu.RLock()
	defer us.mu.RUnlock()

	return len(us.outputs)
}

// ApplyTransaction updates the set with the effects of the specified
// transaction. Every referenced input must be unspent and referenced only
// once or the set is left unchanged. Inputs are removed and outputs
// inserted as one unit.
func (us *UTXOSet) ApplyTransaction(tx Tx) error {
	us.mu.Lock()
	defer us.mu.Unlock()

	refs := make([]OutputRef, len(tx.Inputs))
	seen := make(map[OutputRef]bool, len(tx.Inputs))
	for i, txin := range tx.Inputs {
		ref := txin.OutputRef()
		if seen[ref] {
			return ErrDuplicateInput
		}
		seen[ref] = true

		if _, exists := us.outputs[ref]; !exists {
			return ErrMissingInput
		}
		refs[i] = ref
	}

	for _, ref := range refs {
		delete(us.outputs, ref)
	}

	txID := tx.TxID()
	for i, txout := range tx.Outputs {
		us.outputs[OutputRef{TxID: txID, Index: uint32(i)}] = txout
	}

	return nil
}

// Balance returns the total unspent value owned by the specified account.
func (us *UTXOSet) Balance(owner AccountID) uint64 {
	us.mu.RLock()
	defer us.mu.RUnlock()

	var balance uint64
	for _, txout := range us.outputs {
		if txout.OwnerID == owner {
			balance += txout.Amount
		}
	}

	return balance
}

// Balances returns the unspent value per account across the whole set.
func (us *UTXOSet) Balances() map[AccountID]uint64 {
	us.mu.RLock()
	defer us.mu.RUnlock()

	balances := make(map[AccountID]uint64)
	for _, txout := range us.outputs {
		balances[txout.OwnerID] += txout.Amount
	}

	return balances
}

// OwnedBy returns the unspent outputs owned by the specified account in a
// stable order.
func (us *UTXOSet) OwnedBy(owner AccountID) []UTXO {
	us.mu.RLock()
	defer us.mu.RUnlock()

	var utxos []UTXO
	for ref, txout := range us.outputs {
		if txout.OwnerID == owner {
			utxos = append(utxos, UTXO{
				TxID:    ref.TxID,
				Index:   ref.Index,
				OwnerID: txout.OwnerID,
				Amount:  txout.Amount,
			})
		}
	}

	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].TxID != utxos[j].TxID {
			return utxos[i].TxID < utxos[j].TxID
		}
		return utxos[i].Index < utxos[j].Index
	})

	return utxos
}

// Clone returns an independent copy of the set. Validation works on clones
// so a failed apply never touches the authoritative set.
func (us *UTXOSet) Clone() *UTXOSet {
	us.mu.RLock()
	defer us.mu.RUnlock()

	outputs := make(map[OutputRef]TxOut, len(us.outputs))
	for ref, txout := range us.outputs {
		outputs[ref] = txout
	}

	return &UTXOSet{
		outputs: outputs,
	}
}

// Equal reports whether two sets hold exactly the same unspent outputs.
func (us *UTXOSet) Equal(other *UTXOSet) bool {
	us.mu.RLock()
	defer us.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if len(us.outputs) != len(other.outputs) {
		return false
	}

	for ref, txout := range us.outputs {
		otherOut, exists := other.outputs[ref]
		if !exists || otherOut != txout {
			return false
		}
	}

	return true
}
