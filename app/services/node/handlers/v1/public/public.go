// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qledger/blockchain/business/web/errs"
	"github.com/qledger/blockchain/foundation/events"
	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/qledger/blockchain/foundation/ledger/state"
	"github.com/qledger/blockchain/foundation/nameservice"
	"github.com/qledger/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
	WS    websocket.Upgrader
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.Genesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Accounts returns the current balances for all accounts or the specified
// account.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var accountID database.AccountID

	accountStr := web.Param(r, "account")
	if accountStr != "" {
		var err error
		accountID, err = database.ToAccountID(accountStr)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	balances := h.State.Balances(accountID)

	acts := make([]actInfo, 0, len(balances))
	for account, balance := range balances {
		act := actInfo{
			Account: account,
			Name:    h.NS.Lookup(account),
			Balance: balance,
		}
		acts = append(acts, act)
	}

	resp := struct {
		LatestBlock string    `json:"lastest_block"`
		Uncommitted int       `json:"uncommitted"`
		Accounts    []actInfo `json:"accounts"`
	}{
		LatestBlock: h.State.LatestBlock().Hash(),
		Uncommitted: h.State.MempoolLength(),
		Accounts:    acts,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// UTXOList returns the spendable outputs owned by the specified account.
// Wallets use this to build transactions.
func (h Handlers) UTXOList(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	utxos := h.State.UTXOByAccount(accountID)
	if utxos == nil {
		utxos = []database.UTXO{}
	}

	return web.Respond(ctx, w, utxos, http.StatusOK)
}

// BlocksByAccount returns the blocks involving the specified account. If
// no account is specified, all blocks are returned.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var accountID database.AccountID

	accountStr := web.Param(r, "account")
	if accountStr != "" {
		var err error
		accountID, err = database.ToAccountID(accountStr)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	blocks := h.State.QueryBlocksByAccount(accountID)

	blockData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.Mempool()

	resp := make([]tx, 0, len(txs))
	for _, trn := range txs {
		resp = append(resp, newTx(trn, h.NS))
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitWalletTransaction adds a new signed transaction to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var signedTx database.Tx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("add user tran", "traceid", v.TraceID, "tx", signedTx.TxID())

	if err := h.State.UpsertWalletTransaction(signedTx); err != nil {
		switch {
		case errors.Is(err, database.ErrMissingInput),
			errors.Is(err, database.ErrDuplicateInput),
			errors.Is(err, database.ErrInsufficientFunds),
			errors.Is(err, database.ErrInvalidSignature):
			return errs.NewTrusted(err, http.StatusBadRequest)
		default:
			return fmt.Errorf("unable to upsert transaction into mempool: %w", err)
		}
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	h.Log.Infow("websocket open", "path", "/v1/events", "traceid", v.TraceID)

	// Set the pong handler to log the receiving of pings.
	c.SetPongHandler(func(appData string) error {
		h.Log.Infow("pong", "path", "/v1/events", "traceid", v.TraceID)
		return nil
	})

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
