package worker

import (
	"errors"

	"github.com/qledger/blockchain/foundation/ledger/database"
)

// Sync updates the peer list, mempool and blocks. Runs before the worker
// loops start and again whenever a fork forces a resynchronization.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, pr := range w.state.KnownExternalPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		// Retrieve the mempool from the peer.
		pool, err := w.state.NetRequestPeerMempool(pr)
		if err != nil {
			w.evHandler("worker: sync: retrievePeerMempool: %s: ERROR: %s", pr.Host, err)
			continue
		}
		for _, tx := range pool {
			w.evHandler("worker: sync: retrievePeerMempool: %s: Add Tx: %s", pr.Host, tx.TxID())
			if err := w.state.UpsertNodeTransaction(tx); err != nil {
				w.evHandler("worker: sync: retrievePeerMempool: %s: WARNING: %s", pr.Host, err)
			}
		}

		// If this peer has blocks we don't have, we need to add them.
		if peerStatus.LatestBlockNumber > w.state.LatestBlock().Header.Number {
			w.evHandler("worker: sync: writePeerBlocks: %s: latestBlockNumber[%d]", pr.Host, peerStatus.LatestBlockNumber)

			if err := w.state.NetRequestPeerBlocks(pr); err != nil {
				w.evHandler("worker: sync: writePeerBlocks: %s: ERROR %s", pr.Host, err)

				// The peer's chain diverged from ours. Pull their whole
				// chain and let the work comparison decide.
				if errors.Is(err, database.ErrChainForked) {
					if err := w.state.Reconcile(pr); err != nil {
						w.evHandler("worker: sync: reconcile: %s: ERROR %s", pr.Host, err)
					}
				}
			}
		}
	}
}
