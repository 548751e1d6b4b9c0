package selector

import (
	"sort"

	"github.com/qledger/blockchain/foundation/ledger/database"
)

// feeSelect selects the transactions paying the highest fees. Ties keep
// their relative order so repeated selections are stable.
var feeSelect = func(items []Item, howMany int) []database.Tx {
	sorted := make([]Item, len(items))
	copy(sorted, items)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Fee > sorted[j].Fee
	})

	if howMany < 0 || howMany > len(sorted) {
		howMany = len(sorted)
	}

	txs := make([]database.Tx, 0, howMany)
	for _, item := range sorted[:howMany] {
		txs = append(txs, item.Tx)
	}

	return txs
}
