// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"strings"

	"github.com/qledger/blockchain/foundation/ledger/database"
)

// List of different select strategies.
const (
	StrategyFee = "fee"
)

// Item pairs a pending transaction with the fee it offered at admission.
type Item struct {
	Tx  database.Tx
	Fee uint64
}

// Func defines a function that takes the pending items and selects howMany
// of them in its own order. Pass -1 for all of them.
type Func func(items []Item, howMany int) []database.Tx

// strategies maps a strategy to its selection function.
var strategies = map[string]Func{
	StrategyFee: feeSelect,
}

// Retrieve returns the selection function for the specified strategy.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strings.ToLower(strategy)]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}
