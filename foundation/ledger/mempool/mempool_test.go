package mempool_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/qledger/blockchain/foundation/ledger/mempool"
)

const (
	success = "✓"
	failed  = "✗"
)

// newTx constructs a distinct unsigned transaction for pool testing.
func newTx(t *testing.T, ownerID database.AccountID, amount uint64, stamp uint64) database.Tx {
	t.Helper()

	return database.Tx{
		Inputs:    []database.TxIn{{TxID: "0xaa", Index: uint32(stamp)}},
		Outputs:   []database.TxOut{{OwnerID: ownerID, Amount: amount}},
		TimeStamp: stamp,
	}
}

func TestCRUD(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	ownerID := database.PublicKeyToAccountID(key.PublicKey)

	t.Log("Given the need to manage transactions in the pool.")
	{
		t.Logf("\tTest 0:\tWhen adding, removing and clearing transactions.")
		{
			mp, err := mempool.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to create the mempool: %v", failed, err)
			}

			tx1 := newTx(t, ownerID, 5, 1)
			tx2 := newTx(t, ownerID, 5, 2)

			if _, err := mp.Upsert(tx1, 1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to upsert a transaction: %v", failed, err)
			}
			if _, err := mp.Upsert(tx2, 2); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to upsert a transaction: %v", failed, err)
			}
			if mp.Count() != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould have 2 transactions in the pool, got %d.", failed, mp.Count())
			}
			t.Logf("\t%s\tTest 0:\tShould have 2 transactions in the pool.", success)

			// Upserting the same transaction must not grow the pool.
			if _, err := mp.Upsert(tx1, 1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to upsert a transaction again: %v", failed, err)
			}
			if mp.Count() != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould still have 2 transactions in the pool, got %d.", failed, mp.Count())
			}
			t.Logf("\t%s\tTest 0:\tShould still have 2 transactions in the pool.", success)

			if err := mp.Delete(tx1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to delete a transaction: %v", failed, err)
			}
			if mp.Count() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould have 1 transaction in the pool, got %d.", failed, mp.Count())
			}
			t.Logf("\t%s\tTest 0:\tShould have 1 transaction in the pool.", success)

			mp.Truncate()
			if mp.Count() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould have an empty pool, got %d.", failed, mp.Count())
			}
			t.Logf("\t%s\tTest 0:\tShould have an empty pool.", success)
		}
	}
}

func TestPickBest(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	ownerID := database.PublicKeyToAccountID(key.PublicKey)

	t.Log("Given the need to select the highest fee transactions.")
	{
		t.Logf("\tTest 0:\tWhen picking 2 of 3 transactions.")
		{
			mp, err := mempool.NewWithStrategy("fee")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to create the mempool: %v", failed, err)
			}

			fees := map[uint64]uint64{1: 1, 2: 5, 3: 3}
			for stamp, fee := range fees {
				if _, err := mp.Upsert(newTx(t, ownerID, 5, stamp), fee); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to upsert a transaction: %v", failed, err)
				}
			}

			picked := mp.PickBest(2)
			if len(picked) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould pick 2 transactions, got %d.", failed, len(picked))
			}
			t.Logf("\t%s\tTest 0:\tShould pick 2 transactions.", success)

			// The picked transactions must be the ones paying fees 5 and 3.
			want := map[uint64]bool{2: true, 3: true}
			for _, tx := range picked {
				if !want[tx.TimeStamp] {
					t.Errorf("\t%s\tTest 0:\tShould pick the highest fee transactions, got stamp %d.", failed, tx.TimeStamp)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould pick the highest fee transactions.", success)

			if got := mp.PickBest(-1); len(got) != 3 {
				t.Errorf("\t%s\tTest 0:\tShould pick all transactions with -1, got %d.", failed, len(got))
			} else {
				t.Logf("\t%s\tTest 0:\tShould pick all transactions with -1.", success)
			}
		}
	}
}
