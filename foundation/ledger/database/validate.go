package database

import (
	"errors"
	"fmt"
)

// ValidateTransaction checks a non-coinbase transaction against the
// specified view of unspent outputs and returns the fee it pays. The view is
// not modified. Coinbase transactions are validated by their position in a
// block, not here.
func ValidateTransaction(tx Tx, view *UTXOSet) (fee uint64, err error) {
	if tx.IsCoinbase() {
		return 0, errors.New("coinbase transaction cannot be submitted")
	}

	if len(tx.Outputs) == 0 {
		return 0, errors.New("transaction has no outputs")
	}

	// Each output may be referenced once across the whole transaction.
	seen := make(map[OutputRef]struct{}, len(tx.Inputs))

	var inputSum uint64
	for i, txin := range tx.Inputs {
		ref := txin.OutputRef()

		if _, dup := seen[ref]; dup {
			return 0, fmt.Errorf("input %d references %s twice: %w", i, ref, ErrDuplicateInput)
		}
		seen[ref] = struct{}{}

		txout, exists := view.Get(ref)
		if !exists {
			return 0, fmt.Errorf("input %d references %s: %w", i, ref, ErrMissingInput)
		}

		owner, err := tx.InputOwner(i)
		if err != nil {
			return 0, fmt.Errorf("input %d: %s: %w", i, err, ErrInvalidSignature)
		}
		if owner != txout.OwnerID {
			return 0, fmt.Errorf("input %d signed by %s, owned by %s: %w", i, owner, txout.OwnerID, ErrInvalidSignature)
		}

		inputSum += txout.Amount
	}

	outputSum := tx.OutputSum()
	if inputSum < outputSum {
		return 0, fmt.Errorf("inputs %d, outputs %d: %w", inputSum, outputSum, ErrInsufficientFunds)
	}

	return inputSum - outputSum, nil
}
