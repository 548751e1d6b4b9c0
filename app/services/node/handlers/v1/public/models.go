package public

import (
	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/qledger/blockchain/foundation/nameservice"
)

// actInfo represents the account and balance information served to clients.
type actInfo struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance uint64             `json:"balance"`
}

// txIn is the input view with the owner resolved through the name service.
type txIn struct {
	TxID      string `json:"tx_id"`
	Index     uint32 `json:"index"`
	Owner     string `json:"owner"`
	OwnerName string `json:"owner_name"`
}

// txOut is the output view with the owner resolved through the name service.
type txOut struct {
	Owner     database.AccountID `json:"owner"`
	OwnerName string             `json:"owner_name"`
	Amount    uint64             `json:"amount"`
}

// tx represents the transaction information served to clients.
type tx struct {
	ID        string  `json:"id"`
	Coinbase  bool    `json:"coinbase"`
	Inputs    []txIn  `json:"inputs"`
	Outputs   []txOut `json:"outputs"`
	TimeStamp uint64  `json:"timestamp"`
}

// newTx constructs a client transaction view from a database transaction.
func newTx(dbTx database.Tx, ns *nameservice.NameService) tx {
	inputs := make([]txIn, len(dbTx.Inputs))
	for i, in := range dbTx.Inputs {
		input := txIn{
			TxID:  in.TxID,
			Index: in.Index,
		}

		if owner, err := dbTx.InputOwner(i); err == nil {
			input.Owner = string(owner)
			input.OwnerName = ns.Lookup(owner)
		}

		inputs[i] = input
	}

	outputs := make([]txOut, len(dbTx.Outputs))
	for i, out := range dbTx.Outputs {
		outputs[i] = txOut{
			Owner:     out.OwnerID,
			OwnerName: ns.Lookup(out.OwnerID),
			Amount:    out.Amount,
		}
	}

	return tx{
		ID:        dbTx.TxID(),
		Coinbase:  dbTx.IsCoinbase(),
		Inputs:    inputs,
		Outputs:   outputs,
		TimeStamp: dbTx.TimeStamp,
	}
}
