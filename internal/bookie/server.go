package bookie

import (
	"errors"

	"LedgerGuard/internal/ledger"
	"LedgerGuard/internal/logger"
	"LedgerGuard/internal/network"
	"LedgerGuard/internal/store"
	"LedgerGuard/internal/wire"
)

// Server answers entry reads from the local entry store.
type Server struct {
	node  *network.Node // node accepts read-protocol connections
	store *store.Store  // store holds this bookie's entries
}

// NewServer creates a bookie server and registers its request handler on
// the node.
func NewServer(node *network.Node, st *store.Store) *Server {
	s := &Server{node: node, store: st}
	node.OnRequest(s.handleRequest)

	return s
}

// handleRequest decodes one read request and answers it.
func (s *Server) handleRequest(_ *network.Peer, data []byte) ([]byte, error) {
	req, err := wire.DecodeReadRequest(data)
	if err != nil {
		return nil, err
	}

	return wire.EncodeReadResponse(s.read(req)), nil
}

// read resolves a request against the entry store.
func (s *Server) read(req *wire.ReadRequest) *wire.ReadResponse {
	resp := &wire.ReadResponse{
		LedgerID: req.LedgerID,
		EntryID:  req.EntryID,
	}

	payload, err := s.store.GetEntry(req.LedgerID, int64(req.EntryID))

	switch {
	case errors.Is(err, store.ErrNoSuchLedger):
		resp.Code = ledger.CodeNoSuchLedger
	case errors.Is(err, store.ErrNoSuchEntry):
		resp.Code = ledger.CodeNoSuchEntry
	case err != nil:
		// Corruption and storage failures are indistinguishable to the
		// auditor: the entry is not readable.
		logger.Warn("entry read failed",
			"ledger", req.LedgerID, "entry", req.EntryID, "error", err)
		resp.Code = ledger.CodeReadError
	default:
		resp.Code = ledger.CodeOK
		resp.Payload = payload
	}

	return resp
}
