package database

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/qledger/blockchain/foundation/ledger/signature"
)

// TxIn references an unspent output and carries the unlocking proof for it.
// The proof is an ECDSA signature over the transaction payload, which covers
// every field except the proofs themselves.
type TxIn struct {
	TxID  string   `json:"tx_id"` // Transaction that produced the output being spent.
	Index uint32   `json:"index"` // Position of the output in that transaction.
	V     *big.Int `json:"v"`     // Recovery identifier.
	R     *big.Int `json:"r"`     // First coordinate of the ECDSA signature.
	S     *big.Int `json:"s"`     // Second coordinate of the ECDSA signature.
}

// OutputRef returns the key for the output this input spends.
func (txin TxIn) OutputRef() OutputRef {
	return OutputRef{TxID: txin.TxID, Index: txin.Index}
}

// TxOut represents a spendable unit of value locked to an owner.
type TxOut struct {
	OwnerID AccountID `json:"owner_id"` // Account the value is locked to.
	Amount  uint64    `json:"amount"`   // Value carried by this output.
}

// OutputRef uniquely identifies an output across the entire chain.
type OutputRef struct {
	TxID  string `json:"tx_id"`
	Index uint32 `json:"index"`
}

// String implements the fmt.Stringer interface for logging.
func (ref OutputRef) String() string {
	return fmt.Sprintf("%s:%d", ref.TxID, ref.Index)
}

// =============================================================================

// Tx is the transactional information between two parties. A transaction
// with no inputs is a coinbase transaction that mints the mining reward.
type Tx struct {
	Inputs    []TxIn  `json:"inputs"`
	Outputs   []TxOut `json:"outputs"`
	Block     uint64  `json:"block"`     // Block a coinbase mints for. Zero otherwise.
	TimeStamp uint64  `json:"timestamp"` // Time the transaction was created.
}

// NewTx constructs a new unsigned transaction from the specified inputs and
// outputs. Call SignInput for each input before submitting.
func NewTx(inputs []TxIn, outputs []TxOut) (Tx, error) {
	if len(outputs) == 0 {
		return Tx{}, errors.New("transaction must have at least one output")
	}

	for _, txout := range outputs {
		if !txout.OwnerID.IsAccountID() {
			return Tx{}, fmt.Errorf("output owner is not properly formatted: %q", txout.OwnerID)
		}
	}

	tx := Tx{
		Inputs:    inputs,
		Outputs:   outputs,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
	}

	return tx, nil
}

// NewCoinbaseTx constructs the transaction that mints new value to the
// beneficiary of the specified block. It has no inputs and needs no
// signature. The block number is part of the payload so every block's
// coinbase gets a unique id and its outputs can never collide in the
// unspent set.
func NewCoinbaseTx(beneficiaryID AccountID, amount uint64, blockNumber uint64) Tx {
	return Tx{
		Outputs:   []TxOut{{OwnerID: beneficiaryID, Amount: amount}},
		Block:     blockNumber,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
	}
}

// =============================================================================

// txPayload is the canonical signing and identity form of a transaction. It
// carries everything except the unlocking proofs so the id is stable across
// signing and every input signs the same document.
type txPayload struct {
	Inputs    []OutputRef `json:"inputs"`
	Outputs   []TxOut     `json:"outputs"`
	Block     uint64      `json:"block"`
	TimeStamp uint64      `json:"timestamp"`
}

// payload returns the proof-free form of the transaction.
func (tx Tx) payload() txPayload {
	inputs := make([]OutputRef, len(tx.Inputs))
	for i, txin := range tx.Inputs {
		inputs[i] = txin.OutputRef()
	}

	return txPayload{
		Inputs:    inputs,
		Outputs:   tx.Outputs,
		Block:     tx.Block,
		TimeStamp: tx.TimeStamp,
	}
}

// TxID returns the unique identifier for the transaction, a hash of the
// payload. Two transactions with the same inputs, outputs and timestamp are
// the same transaction no matter who signed them.
func (tx Tx) TxID() string {
	return signature.Hash(tx.payload())
}

// IsCoinbase reports whether this transaction mints new value.
func (tx Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// OutputSum returns the total value carried by the transaction's outputs.
func (tx Tx) OutputSum() uint64 {
	var sum uint64
	for _, txout := range tx.Outputs {
		sum += txout.Amount
	}
	return sum
}

// SignInput signs the transaction payload with the specified private key and
// stores the proof on input i. The owner of the referenced output must be
// the account derived from this key or validation will fail.
func (tx *Tx) SignInput(i int, privateKey *ecdsa.PrivateKey) error {
	if i < 0 || i >= len(tx.Inputs) {
		return fmt.Errorf("input index %d out of range", i)
	}

	v, r, s, err := signature.Sign(tx.payload(), privateKey)
	if err != nil {
		return err
	}

	tx.Inputs[i].V = v
	tx.Inputs[i].R = r
	tx.Inputs[i].S = s

	return nil
}

// InputOwner recovers the account that produced the proof on input i.
func (tx Tx) InputOwner(i int) (AccountID, error) {
	if i < 0 || i >= len(tx.Inputs) {
		return "", fmt.Errorf("input index %d out of range", i)
	}

	txin := tx.Inputs[i]
	if txin.V == nil || txin.R == nil || txin.S == nil {
		return "", errors.New("input is not signed")
	}

	if err := signature.VerifySignature(txin.V, txin.R, txin.S); err != nil {
		return "", err
	}

	address, err := signature.FromAddress(tx.payload(), txin.V, txin.R, txin.S)
	if err != nil {
		return "", err
	}

	return AccountID(address), nil
}

// =============================================================================

// Hash implements the merkle Hashable interface for providing a hash of the
// transaction to the merkle tree.
func (tx Tx) Hash() ([]byte, error) {
	str := tx.TxID()

	// Remove the 0x prefix from the hash.
	return hex.DecodeString(str[2:])
}

// Equals implements the merkle Hashable interface for comparing two
// transactions. If the ids match, the transactions are the same.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.TxID() == otherTx.TxID()
}
