package database_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/qledger/blockchain/foundation/ledger/database"
)

const (
	success = "✓"
	failed  = "✗"
)

func TestApplyTransaction(t *testing.T) {
	miner, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	minerID := database.PublicKeyToAccountID(miner.PublicKey)

	alice, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	aliceID := database.PublicKeyToAccountID(alice.PublicKey)

	t.Log("Given the need to verify unspent outputs move atomically.")
	{
		t.Logf("\tTest 0:\tWhen applying a coinbase and then spending it.")
		{
			set := database.NewUTXOSet()

			coinbase := database.NewCoinbaseTx(minerID, 10, 1)
			if err := set.ApplyTransaction(coinbase); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply the coinbase: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to apply the coinbase.", success)

			if balance := set.Balance(minerID); balance != 10 {
				t.Fatalf("\t%s\tTest 0:\tShould have a balance of 10, got %d.", failed, balance)
			}
			t.Logf("\t%s\tTest 0:\tShould have a balance of 10.", success)

			spend, err := database.NewTx(
				[]database.TxIn{{TxID: coinbase.TxID(), Index: 0}},
				[]database.TxOut{{OwnerID: aliceID, Amount: 6}, {OwnerID: minerID, Amount: 4}},
			)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to create the spend: %v", failed, err)
			}
			if err := spend.SignInput(0, miner); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the spend: %v", failed, err)
			}

			if err := set.ApplyTransaction(spend); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply the spend: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to apply the spend.", success)

			if balance := set.Balance(aliceID); balance != 6 {
				t.Errorf("\t%s\tTest 0:\tShould have alice balance 6, got %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 0:\tShould have alice balance 6.", success)
			}
			if balance := set.Balance(minerID); balance != 4 {
				t.Errorf("\t%s\tTest 0:\tShould have miner balance 4, got %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 0:\tShould have miner balance 4.", success)
			}

			if err := set.ApplyTransaction(spend); !errors.Is(err, database.ErrMissingInput) {
				t.Errorf("\t%s\tTest 0:\tShould reject the same spend a second time: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reject the same spend a second time.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen a transaction references a missing output.")
		{
			set := database.NewUTXOSet()

			coinbase := database.NewCoinbaseTx(minerID, 10, 1)
			if err := set.ApplyTransaction(coinbase); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to apply the coinbase: %v", failed, err)
			}

			spend, err := database.NewTx(
				[]database.TxIn{
					{TxID: coinbase.TxID(), Index: 0},
					{TxID: coinbase.TxID(), Index: 9},
				},
				[]database.TxOut{{OwnerID: aliceID, Amount: 10}},
			)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to create the spend: %v", failed, err)
			}

			if err := set.ApplyTransaction(spend); !errors.Is(err, database.ErrMissingInput) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the spend: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the spend.", success)

			if balance := set.Balance(minerID); balance != 10 {
				t.Errorf("\t%s\tTest 1:\tShould leave the set unchanged, miner balance %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 1:\tShould leave the set unchanged.", success)
			}
		}

		t.Logf("\tTest 2:\tWhen working on a clone of the set.")
		{
			set := database.NewUTXOSet()

			coinbase := database.NewCoinbaseTx(minerID, 10, 1)
			if err := set.ApplyTransaction(coinbase); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to apply the coinbase: %v", failed, err)
			}

			clone := set.Clone()

			spend, err := database.NewTx(
				[]database.TxIn{{TxID: coinbase.TxID(), Index: 0}},
				[]database.TxOut{{OwnerID: aliceID, Amount: 10}},
			)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to create the spend: %v", failed, err)
			}
			if err := spend.SignInput(0, miner); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to sign the spend: %v", failed, err)
			}

			if err := clone.ApplyTransaction(spend); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to apply the spend to the clone: %v", failed, err)
			}

			if balance := set.Balance(minerID); balance != 10 {
				t.Errorf("\t%s\tTest 2:\tShould leave the original set unchanged, miner balance %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 2:\tShould leave the original set unchanged.", success)
			}

			if set.Equal(clone) {
				t.Errorf("\t%s\tTest 2:\tShould report the sets are different.", failed)
			} else {
				t.Logf("\t%s\tTest 2:\tShould report the sets are different.", success)
			}
		}

		t.Logf("\tTest 3:\tWhen a transaction references the same output twice.")
		{
			set := database.NewUTXOSet()

			coinbase := database.NewCoinbaseTx(minerID, 10, 1)
			if err := set.ApplyTransaction(coinbase); err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to apply the coinbase: %v", failed, err)
			}

			// The output exists, so the duplicate would survive an
			// existence check and be spent once while funding twice.
			spend := database.Tx{
				Inputs: []database.TxIn{
					{TxID: coinbase.TxID(), Index: 0},
					{TxID: coinbase.TxID(), Index: 0},
				},
				Outputs: []database.TxOut{{OwnerID: aliceID, Amount: 20}},
			}

			if err := set.ApplyTransaction(spend); !errors.Is(err, database.ErrDuplicateInput) {
				t.Fatalf("\t%s\tTest 3:\tShould reject the duplicate spend: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould reject the duplicate spend.", success)

			if balance := set.Balance(minerID); balance != 10 {
				t.Errorf("\t%s\tTest 3:\tShould leave the set unchanged, miner balance %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 3:\tShould leave the set unchanged.", success)
			}
		}

		t.Logf("\tTest 4:\tWhen two blocks mint identical rewards.")
		{
			set := database.NewUTXOSet()

			coinbase1 := database.NewCoinbaseTx(minerID, 10, 1)
			coinbase2 := database.NewCoinbaseTx(minerID, 10, 2)

			if coinbase1.TxID() == coinbase2.TxID() {
				t.Fatalf("\t%s\tTest 4:\tShould give each block's coinbase a unique id.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould give each block's coinbase a unique id.", success)

			if err := set.ApplyTransaction(coinbase1); err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to apply the first coinbase: %v", failed, err)
			}
			if err := set.ApplyTransaction(coinbase2); err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to apply the second coinbase: %v", failed, err)
			}

			// Neither reward may overwrite the other in the set.
			if count := set.Count(); count != 2 {
				t.Errorf("\t%s\tTest 4:\tShould hold both rewards, got %d outputs.", failed, count)
			} else {
				t.Logf("\t%s\tTest 4:\tShould hold both rewards.", success)
			}
			if balance := set.Balance(minerID); balance != 20 {
				t.Errorf("\t%s\tTest 4:\tShould have miner balance 20, got %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 4:\tShould have miner balance 20.", success)
			}
		}
	}
}

func TestValidateTransaction(t *testing.T) {
	miner, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	minerID := database.PublicKeyToAccountID(miner.PublicKey)

	alice, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	aliceID := database.PublicKeyToAccountID(alice.PublicKey)

	set := database.NewUTXOSet()
	coinbase := database.NewCoinbaseTx(minerID, 10, 1)
	if err := set.ApplyTransaction(coinbase); err != nil {
		t.Fatalf("\t%s\tShould be able to apply the coinbase: %v", failed, err)
	}

	t.Log("Given the need to verify transactions against the unspent set.")
	{
		t.Logf("\tTest 0:\tWhen the transaction is properly funded and signed.")
		{
			tx, err := database.NewTx(
				[]database.TxIn{{TxID: coinbase.TxID(), Index: 0}},
				[]database.TxOut{{OwnerID: aliceID, Amount: 7}},
			)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to create the transaction: %v", failed, err)
			}
			if err := tx.SignInput(0, miner); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the transaction: %v", failed, err)
			}

			fee, err := database.ValidateTransaction(tx, set)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to validate the transaction: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to validate the transaction.", success)

			if fee != 3 {
				t.Errorf("\t%s\tTest 0:\tShould compute a fee of 3, got %d.", failed, fee)
			} else {
				t.Logf("\t%s\tTest 0:\tShould compute a fee of 3.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen the transaction is signed by the wrong key.")
		{
			tx, err := database.NewTx(
				[]database.TxIn{{TxID: coinbase.TxID(), Index: 0}},
				[]database.TxOut{{OwnerID: aliceID, Amount: 7}},
			)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to create the transaction: %v", failed, err)
			}
			if err := tx.SignInput(0, alice); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to sign the transaction: %v", failed, err)
			}

			if _, err := database.ValidateTransaction(tx, set); !errors.Is(err, database.ErrInvalidSignature) {
				t.Errorf("\t%s\tTest 1:\tShould reject the transaction: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reject the transaction.", success)
			}
		}

		t.Logf("\tTest 2:\tWhen the transaction spends more than it funds.")
		{
			tx, err := database.NewTx(
				[]database.TxIn{{TxID: coinbase.TxID(), Index: 0}},
				[]database.TxOut{{OwnerID: aliceID, Amount: 11}},
			)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to create the transaction: %v", failed, err)
			}
			if err := tx.SignInput(0, miner); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to sign the transaction: %v", failed, err)
			}

			if _, err := database.ValidateTransaction(tx, set); !errors.Is(err, database.ErrInsufficientFunds) {
				t.Errorf("\t%s\tTest 2:\tShould reject the transaction: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 2:\tShould reject the transaction.", success)
			}
		}

		t.Logf("\tTest 3:\tWhen the transaction references the same output twice.")
		{
			tx, err := database.NewTx(
				[]database.TxIn{
					{TxID: coinbase.TxID(), Index: 0},
					{TxID: coinbase.TxID(), Index: 0},
				},
				[]database.TxOut{{OwnerID: aliceID, Amount: 7}},
			)
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to create the transaction: %v", failed, err)
			}
			if err := tx.SignInput(0, miner); err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to sign the transaction: %v", failed, err)
			}
			if err := tx.SignInput(1, miner); err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to sign the transaction: %v", failed, err)
			}

			if _, err := database.ValidateTransaction(tx, set); !errors.Is(err, database.ErrDuplicateInput) {
				t.Errorf("\t%s\tTest 3:\tShould reject the transaction: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 3:\tShould reject the transaction.", success)
			}
		}
	}
}
