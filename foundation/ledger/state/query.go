package state

import (
	"math/big"

	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/qledger/blockchain/foundation/ledger/genesis"
	"github.com/qledger/blockchain/foundation/ledger/peer"
)

// QueryLatest represents a query to the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Host returns a copy of host information.
func (s *State) Host() string {
	return s.host
}

// LatestBlock returns a copy of the current latest block.
func (s *State) LatestBlock() database.Block {
	return s.db.LatestBlock()
}

// CumulativeWork returns the total work represented by the local chain.
func (s *State) CumulativeWork() *big.Int {
	return s.db.CumulativeWork()
}

// Mempool returns a copy of the mempool.
func (s *State) Mempool() []database.Tx {
	return s.mempool.Copy()
}

// MempoolLength returns the current length of the mempool.
func (s *State) MempoolLength() int {
	return s.mempool.Count()
}

// Balances returns the unspent value per account. An empty account id
// returns every account.
func (s *State) Balances(accountID database.AccountID) map[database.AccountID]uint64 {
	return s.db.Balances(accountID)
}

// UTXOByAccount returns the spendable outputs owned by the specified
// account.
func (s *State) UTXOByAccount(accountID database.AccountID) []database.UTXO {
	return s.db.UTXOByAccount(accountID)
}

// QueryBlocksByNumber returns the set of blocks based on block numbers.
// This function reads the blockchain from storage.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	if from == QueryLatest {
		from = s.db.LatestBlock().Header.Number
		to = from
	}

	if to == QueryLatest {
		to = s.db.LatestBlock().Header.Number
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		block, err := s.db.GetBlock(i)
		if err != nil {
			s.evHandler("state: QueryBlocksByNumber: WARNING: block %d: %s", i, err)
			return nil
		}

		out = append(out, block)
	}

	return out
}

// QueryBlocksByAccount returns the set of blocks that involve the specified
// account, either as a spender or a receiver. An empty account id returns
// all blocks.
func (s *State) QueryBlocksByAccount(accountID database.AccountID) []database.Block {
	var out []database.Block

	iter := s.db.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			s.evHandler("state: QueryBlocksByAccount: WARNING: %s", err)
			return nil
		}

		block, err := database.ToBlock(blockData)
		if err != nil {
			s.evHandler("state: QueryBlocksByAccount: WARNING: %s", err)
			return nil
		}

		if accountID == "" || blockInvolvesAccount(block, accountID) {
			out = append(out, block)
		}
	}

	return out
}

// blockInvolvesAccount reports whether the account received an output or
// signed an input in any of the block's transactions.
func blockInvolvesAccount(block database.Block, accountID database.AccountID) bool {
	for _, tx := range block.Trans.Values() {
		for _, txout := range tx.Outputs {
			if txout.OwnerID == accountID {
				return true
			}
		}

		for i := range tx.Inputs {
			owner, err := tx.InputOwner(i)
			if err != nil {
				continue
			}
			if owner == accountID {
				return true
			}
		}
	}

	return false
}

// =============================================================================

// KnownExternalPeers retrieves a copy of the known peer list without this
// node.
func (s *State) KnownExternalPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// KnownPeers retrieves a copy of the full known peer list which includes
// this node as well.
func (s *State) KnownPeers() []peer.Peer {
	return s.knownPeers.Copy("")
}

// AddKnownPeer provides the ability to add a new peer to the known peer
// list. Reports whether the peer was new.
func (s *State) AddKnownPeer(pr peer.Peer) bool {
	return s.knownPeers.Add(pr)
}

// RemoveKnownPeer provides the ability to remove a peer from the known
// peer list.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}
