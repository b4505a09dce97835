package bookie

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"LedgerGuard/internal/checker"
	"LedgerGuard/internal/ledger"
	"LedgerGuard/internal/logger"
	"LedgerGuard/internal/network"
	"LedgerGuard/internal/wire"
)

const (
	// defaultReadTimeout bounds one read round trip, dial included.
	defaultReadTimeout = 10 * time.Second
)

// Client performs asynchronous entry reads against bookies. Every
// ReadEntry call completes its callback exactly once on a separate
// goroutine; after Close, calls complete with CodeClientClosed. Transport
// failures and timeouts complete with CodeReadError. The checker treats
// them as bad fragments and never retries, so retry policy (if ever
// added) belongs here.
type Client struct {
	node    *network.Node // node dials and caches peer connections
	timeout time.Duration // timeout bounds one read round trip

	closed atomic.Bool // closed short-circuits new completions
	dialMu sync.Mutex  // dialMu serializes dialing per client
}

// NewClient creates a read client on top of the given node. A timeout of
// zero selects the default.
func NewClient(node *network.Node, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultReadTimeout
	}

	return &Client{node: node, timeout: timeout}
}

// ReadEntry asks the bookie at addr for one entry. It returns immediately;
// cb fires exactly once on a completion goroutine.
func (c *Client) ReadEntry(addr ledger.BookieID, ledgerID int64,
	entryID ledger.EntryID, cb checker.ReadCallback) {

	go c.readEntry(addr, ledgerID, entryID, cb)
}

// Close marks the client closed. In-flight reads are not canceled, but
// every completion from now on reports CodeClientClosed.
func (c *Client) Close() {
	c.closed.Store(true)
}

// readEntry performs one read round trip and delivers the completion.
func (c *Client) readEntry(addr ledger.BookieID, ledgerID int64,
	entryID ledger.EntryID, cb checker.ReadCallback) {

	if c.closed.Load() {
		cb(ledger.CodeClientClosed, ledgerID, entryID, nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	peer, err := c.peer(ctx, string(addr))
	if err != nil {
		logger.Debug("bookie unreachable", "bookie", addr, "error", err)
		cb(c.failureCode(), ledgerID, entryID, nil)

		return
	}

	respData, err := peer.Request(ctx, wire.EncodeReadRequest(&wire.ReadRequest{
		LedgerID: ledgerID,
		EntryID:  entryID,
	}))
	if err != nil {
		logger.Debug("read request failed",
			"bookie", addr, "ledger", ledgerID, "entry", entryID, "error", err)
		cb(c.failureCode(), ledgerID, entryID, nil)

		return
	}

	resp, err := wire.DecodeReadResponse(respData)
	if err != nil {
		logger.Warn("malformed read response", "bookie", addr, "error", err)
		cb(c.failureCode(), ledgerID, entryID, nil)

		return
	}

	cb(resp.Code, resp.LedgerID, resp.EntryID, resp.Payload)
}

// peer returns a connected peer for the address, dialing if necessary.
func (c *Client) peer(ctx context.Context, addr string) (*network.Peer, error) {
	if p := c.node.GetPeer(addr); p != nil {
		return p, nil
	}

	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	// Another read may have dialed while we waited for the lock.
	if p := c.node.GetPeer(addr); p != nil {
		return p, nil
	}

	return c.node.ConnectContext(ctx, addr)
}

// failureCode classifies a local failure: CodeClientClosed once the client
// is closed, CodeReadError otherwise.
func (c *Client) failureCode() ledger.ResultCode {
	if c.closed.Load() {
		return ledger.CodeClientClosed
	}

	return ledger.CodeReadError
}
