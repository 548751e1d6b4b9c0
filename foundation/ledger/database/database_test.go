package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/qledger/blockchain/foundation/ledger/database/storage/memory"
	"github.com/qledger/blockchain/foundation/ledger/genesis"
)

// testGenesis uses a low difficulty so mining in tests is instant.
func testGenesis() genesis.Genesis {
	return genesis.Genesis{
		Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       29,
		TransPerBlock: 10,
		Difficulty:    1,
		MiningReward:  10,
	}
}

func nopEv(v string, args ...any) {}

// mineBlock performs the proof of work for the specified transactions and
// returns the solved block without applying it.
func mineBlock(t *testing.T, db *database.Database, beneficiaryID database.AccountID, trans []database.Tx) database.Block {
	t.Helper()

	// Block timestamps have millisecond resolution and must be strictly
	// increasing. Test mining is near instant.
	time.Sleep(2 * time.Millisecond)

	block, err := database.POW(context.Background(), database.POWArgs{
		BeneficiaryID: beneficiaryID,
		Difficulty:    testGenesis().Difficulty,
		PrevBlock:     db.LatestBlock(),
		Trans:         trans,
		EvHandler:     nopEv,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

func TestChainLifecycle(t *testing.T) {
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

	t.Log("Given the need to verify value moves through mined blocks.")
	{
		t.Logf("\tTest 0:\tWhen mining a reward and then spending it.")
		{
			storage, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to create storage: %v", failed, err)
			}

			db, err := database.New(testGenesis(), storage, nopEv)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to create the database: %v", failed, err)
			}

			// Mine the first block with just the reward.
			coinbase1 := database.NewCoinbaseTx(minerID, 10, 1)
			block1 := mineBlock(t, db, minerID, []database.Tx{coinbase1})
			if err := db.ApplyBlock(block1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply block 1: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to apply block 1.", success)

			if balance := db.Balance(minerID); balance != 10 {
				t.Fatalf("\t%s\tTest 0:\tShould have miner balance 10, got %d.", failed, balance)
			}
			t.Logf("\t%s\tTest 0:\tShould have miner balance 10.", success)

			// The miner sends 5 to alice with a fee of 1.
			spend, err := database.NewTx(
				[]database.TxIn{{TxID: coinbase1.TxID(), Index: 0}},
				[]database.TxOut{{OwnerID: aliceID, Amount: 5}, {OwnerID: minerID, Amount: 4}},
			)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to create the spend: %v", failed, err)
			}
			if err := spend.SignInput(0, miner); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the spend: %v", failed, err)
			}

			// The second coinbase claims the reward plus the fee.
			coinbase2 := database.NewCoinbaseTx(minerID, 11, 2)
			block2 := mineBlock(t, db, minerID, []database.Tx{coinbase2, spend})
			if err := db.ApplyBlock(block2); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply block 2: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to apply block 2.", success)

			if balance := db.Balance(aliceID); balance != 5 {
				t.Errorf("\t%s\tTest 0:\tShould have alice balance 5, got %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 0:\tShould have alice balance 5.", success)
			}
			if balance := db.Balance(minerID); balance != 15 {
				t.Errorf("\t%s\tTest 0:\tShould have miner balance 15, got %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 0:\tShould have miner balance 15.", success)
			}

			// Rebuild the database from the same storage and compare.
			db2, err := database.New(testGenesis(), storage, nopEv)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to replay the database: %v", failed, err)
			}
			if !db.CopyUTXOSet().Equal(db2.CopyUTXOSet()) {
				t.Errorf("\t%s\tTest 0:\tShould rebuild the same unspent set from storage.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould rebuild the same unspent set from storage.", success)
			}
			if db.CumulativeWork().Cmp(db2.CumulativeWork()) != 0 {
				t.Errorf("\t%s\tTest 0:\tShould rebuild the same cumulative work from storage.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould rebuild the same cumulative work from storage.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen the coinbase claims more than reward plus fees.")
		{
			storage, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to create storage: %v", failed, err)
			}

			db, err := database.New(testGenesis(), storage, nopEv)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to create the database: %v", failed, err)
			}

			coinbase := database.NewCoinbaseTx(minerID, 12, 1)
			block := mineBlock(t, db, minerID, []database.Tx{coinbase})

			if err := db.ApplyBlock(block); !errors.Is(err, database.ErrExcessiveReward) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the block.", success)

			if db.LatestBlock().Header.Number != 0 {
				t.Errorf("\t%s\tTest 1:\tShould leave the chain unchanged.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould leave the chain unchanged.", success)
			}
		}

		t.Logf("\tTest 2:\tWhen a block does not extend the latest block.")
		{
			storage, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to create storage: %v", failed, err)
			}

			db, err := database.New(testGenesis(), storage, nopEv)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to create the database: %v", failed, err)
			}

			coinbase1 := database.NewCoinbaseTx(minerID, 10, 1)
			block1 := mineBlock(t, db, minerID, []database.Tx{coinbase1})

			coinbase2 := database.NewCoinbaseTx(minerID, 10, 1)
			stale := mineBlock(t, db, minerID, []database.Tx{coinbase2})

			if err := db.ApplyBlock(block1); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to apply block 1: %v", failed, err)
			}

			// The stale block was mined against block 0 and arrives after
			// block 1 was accepted.
			if err := db.ApplyBlock(stale); !errors.Is(err, database.ErrBadLinkage) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the stale block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the stale block.", success)
		}

		t.Logf("\tTest 3:\tWhen a block hash does not meet the difficulty.")
		{
			storage, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to create storage: %v", failed, err)
			}

			db, err := database.New(testGenesis(), storage, nopEv)
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to create the database: %v", failed, err)
			}

			coinbase := database.NewCoinbaseTx(minerID, 10, 1)
			block := mineBlock(t, db, minerID, []database.Tx{coinbase})

			// Tampering with the solved block invalidates the proof of work.
			block.Header.Nonce++
			for block.Hash()[2] == '0' {
				block.Header.Nonce++
			}

			if err := db.ApplyBlock(block); !errors.Is(err, database.ErrBadProofOfWork) {
				t.Fatalf("\t%s\tTest 3:\tShould reject the tampered block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould reject the tampered block.", success)
		}

		t.Logf("\tTest 4:\tWhen a block arrives from a chain two blocks ahead.")
		{
			storageA, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to create storage: %v", failed, err)
			}
			dbA, err := database.New(testGenesis(), storageA, nopEv)
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to create the database: %v", failed, err)
			}

			storageB, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to create storage: %v", failed, err)
			}
			dbB, err := database.New(testGenesis(), storageB, nopEv)
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to create the database: %v", failed, err)
			}

			// Grow the peer chain three blocks past our empty chain.
			var ahead database.Block
			for i := 1; i <= 3; i++ {
				coinbase := database.NewCoinbaseTx(minerID, 10, uint64(i))
				ahead = mineBlock(t, dbB, minerID, []database.Tx{coinbase})
				if err := dbB.ApplyBlock(ahead); err != nil {
					t.Fatalf("\t%s\tTest 4:\tShould be able to apply block %d: %v", failed, i, err)
				}
			}

			// Block 3 against a chain at block 0 signals divergence, not a
			// simple bad extension.
			if err := dbA.ApplyBlock(ahead); !errors.Is(err, database.ErrChainForked) {
				t.Fatalf("\t%s\tTest 4:\tShould report the chain as forked: %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould report the chain as forked.", success)

			if dbA.LatestBlock().Header.Number != 0 {
				t.Errorf("\t%s\tTest 4:\tShould leave the local chain unchanged.", failed)
			} else {
				t.Logf("\t%s\tTest 4:\tShould leave the local chain unchanged.", success)
			}
		}
	}
}

func TestPOWCancellation(t *testing.T) {
	miner, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	minerID := database.PublicKeyToAccountID(miner.PublicKey)

	t.Log("Given the need to verify mining abandons the search when cancelled.")
	{
		t.Logf("\tTest 0:\tWhen the context is cancelled during the search.")
		{
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(50*time.Millisecond, cancel)

			// A difficulty this high cannot be solved in the cancellation
			// window, so the search must end on the context.
			coinbase := database.NewCoinbaseTx(minerID, 10, 1)
			_, err := database.POW(ctx, database.POWArgs{
				BeneficiaryID: minerID,
				Difficulty:    8,
				PrevBlock:     database.Block{},
				Trans:         []database.Tx{coinbase},
				EvHandler:     nopEv,
			})

			if !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest 0:\tShould return the context error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould return the context error.", success)
		}

		t.Logf("\tTest 1:\tWhen the context is cancelled before the search.")
		{
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			coinbase := database.NewCoinbaseTx(minerID, 10, 1)
			_, err := database.POW(ctx, database.POWArgs{
				BeneficiaryID: minerID,
				Difficulty:    8,
				PrevBlock:     database.Block{},
				Trans:         []database.Tx{coinbase},
				EvHandler:     nopEv,
			})

			if !errors.Is(err, context.Canceled) {
				t.Errorf("\t%s\tTest 1:\tShould return the context error: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 1:\tShould return the context error.", success)
			}
		}
	}
}

func TestReplace(t *testing.T) {
	miner1, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	miner1ID := database.PublicKeyToAccountID(miner1.PublicKey)

	miner2, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}
	miner2ID := database.PublicKeyToAccountID(miner2.PublicKey)

	// buildChain mines count reward blocks on a fresh database and returns
	// the database and its blocks.
	buildChain := func(t *testing.T, beneficiaryID database.AccountID, count int) (*database.Database, []database.Block) {
		storage, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create storage: %v", failed, err)
		}

		db, err := database.New(testGenesis(), storage, nopEv)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create the database: %v", failed, err)
		}

		var blocks []database.Block
		for i := 0; i < count; i++ {
			coinbase := database.NewCoinbaseTx(beneficiaryID, 10, uint64(i+1))
			block := mineBlock(t, db, beneficiaryID, []database.Tx{coinbase})
			if err := db.ApplyBlock(block); err != nil {
				t.Fatalf("\t%s\tShould be able to apply block %d: %v", failed, i+1, err)
			}
			blocks = append(blocks, block)
		}

		return db, blocks
	}

	t.Log("Given the need to verify a chain can be replaced by re-derivation.")
	{
		t.Logf("\tTest 0:\tWhen replacing a chain with a longer valid chain.")
		{
			dbA, _ := buildChain(t, miner1ID, 1)
			dbB, blocksB := buildChain(t, miner2ID, 3)

			if err := dbA.Replace(blocksB); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to replace the chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to replace the chain.", success)

			if dbA.LatestBlock().Hash() != dbB.LatestBlock().Hash() {
				t.Errorf("\t%s\tTest 0:\tShould have the same latest block as the source chain.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould have the same latest block as the source chain.", success)
			}

			if !dbA.CopyUTXOSet().Equal(dbB.CopyUTXOSet()) {
				t.Errorf("\t%s\tTest 0:\tShould derive the same unspent set as the source chain.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould derive the same unspent set as the source chain.", success)
			}

			if balance := dbA.Balance(miner1ID); balance != 0 {
				t.Errorf("\t%s\tTest 0:\tShould have no balance for the replaced miner, got %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 0:\tShould have no balance for the replaced miner.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen the candidate chain contains an invalid block.")
		{
			dbA, _ := buildChain(t, miner1ID, 1)
			_, blocksB := buildChain(t, miner2ID, 3)

			// Corrupt the middle of the candidate.
			blocksB[1].Header.PrevBlockHash = blocksB[0].Header.PrevBlockHash

			before := dbA.LatestBlock().Hash()

			if err := dbA.Replace(blocksB); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject the candidate chain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the candidate chain.", success)

			if dbA.LatestBlock().Hash() != before {
				t.Errorf("\t%s\tTest 1:\tShould leave the local chain unchanged.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould leave the local chain unchanged.", success)
			}

			if balance := dbA.Balance(miner1ID); balance != 10 {
				t.Errorf("\t%s\tTest 1:\tShould leave the local balances unchanged, got %d.", failed, balance)
			} else {
				t.Logf("\t%s\tTest 1:\tShould leave the local balances unchanged.", success)
			}
		}
	}
}
