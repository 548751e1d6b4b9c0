package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/qledger/blockchain/foundation/ledger/peer"
)

// ErrStaleReorg is returned when a candidate chain does not carry strictly
// more cumulative work than the local chain. Ties go to the incumbent.
var ErrStaleReorg = errors.New("candidate chain does not exceed local work")

// ProcessRemoteChain evaluates a complete candidate chain from a peer and
// adopts it if it represents strictly more work than the local chain. The
// candidate is fully re-derived from genesis, a single invalid block
// rejects the whole chain and the local state is untouched.
func (s *State) ProcessRemoteChain(blocks []database.Block) error {
	s.evHandler("state: ProcessRemoteChain: started: candidate blocks[%d]", len(blocks))
	defer s.evHandler("state: ProcessRemoteChain: completed")

	if len(blocks) == 0 {
		return fmt.Errorf("empty candidate: %w", ErrStaleReorg)
	}

	candidateWork := big.NewInt(0)
	for _, block := range blocks {
		candidateWork = candidateWork.Add(candidateWork, block.Header.Work())
	}

	// The work comparison and the swap must be one critical section. A block
	// accepted between the two could raise local work past the candidate's.
	s.mu.Lock()
	defer s.mu.Unlock()

	localWork := s.db.CumulativeWork()
	s.evHandler("state: ProcessRemoteChain: candidate work[%v] local work[%v]", candidateWork, localWork)

	if candidateWork.Cmp(localWork) <= 0 {
		return fmt.Errorf("candidate work %v, local work %v: %w", candidateWork, localWork, ErrStaleReorg)
	}

	if err := s.db.Replace(blocks); err != nil {
		return err
	}

	// Transactions orphaned by the replaced chain are not re-admitted. The
	// mempool keeps what it has and mining validation prunes anything the
	// new chain made stale.

	s.blockEvent(blocks[len(blocks)-1])

	return nil
}

// Reconcile asks the specified peer for its complete chain and attempts to
// adopt it. Called when a fork has been detected.
func (s *State) Reconcile(pr peer.Peer) error {
	s.evHandler("state: Reconcile: started: peer[%s]", pr.Host)
	defer s.evHandler("state: Reconcile: completed")

	blocks, err := s.NetRequestPeerChain(pr)
	if err != nil {
		return err
	}

	return s.ProcessRemoteChain(blocks)
}

// Reorganize corrects an identified fork. Mining is stopped while a full
// resynchronization with the network runs in the background.
func (s *State) Reorganize() error {

	// Don't allow mining to continue.
	s.turnOffMining()

	// Resync the state of the blockchain.
	s.resyncWG.Add(1)
	go func() {
		s.evHandler("state: Reorganize: started")
		defer func() {
			s.turnOnMining()
			s.evHandler("state: Reorganize: completed")
			s.resyncWG.Done()
		}()

		s.Worker.Sync()
	}()

	return nil
}
