package wire

import (
	"encoding/binary"
	"fmt"

	"LedgerGuard/internal/ledger"
)

// Message types for the read protocol.
const (
	msgTypeReadRequest  = 0x01 // Request to read one entry
	msgTypeReadResponse = 0x02 // Response carrying a result code and payload
)

// Result code bytes on the wire. Unknown bytes decode as CodeReadError so
// that new or foreign codes are treated uniformly as "bad".
const (
	codeOK           = 0x00
	codeNoSuchEntry  = 0x01
	codeNoSuchLedger = 0x02
	codeClientClosed = 0x03
	codeReadError    = 0x04
)

// ReadRequest asks a bookie for one entry.
type ReadRequest struct {
	LedgerID int64          // LedgerID identifies the ledger
	EntryID  ledger.EntryID // EntryID identifies the entry within the ledger
}

// EncodeReadRequest encodes a read request to bytes.
// Format: [1B type] [8B ledgerID] [8B entryID]
func EncodeReadRequest(req *ReadRequest) []byte {
	buf := make([]byte, 17)
	buf[0] = msgTypeReadRequest
	binary.BigEndian.PutUint64(buf[1:9], uint64(req.LedgerID))
	binary.BigEndian.PutUint64(buf[9:17], uint64(req.EntryID))

	return buf
}

// DecodeReadRequest decodes a read request from bytes.
func DecodeReadRequest(data []byte) (*ReadRequest, error) {
	if len(data) < 17 {
		return nil, fmt.Errorf("read request too short: %d < 17", len(data))
	}

	if data[0] != msgTypeReadRequest {
		return nil, fmt.Errorf("invalid message type: 0x%02x", data[0])
	}

	return &ReadRequest{
		LedgerID: int64(binary.BigEndian.Uint64(data[1:9])),
		EntryID:  ledger.EntryID(binary.BigEndian.Uint64(data[9:17])),
	}, nil
}

// ReadResponse is a bookie's answer to a read request.
type ReadResponse struct {
	Code     ledger.ResultCode // Code classifies the outcome
	LedgerID int64             // LedgerID echoes the request
	EntryID  ledger.EntryID    // EntryID echoes the request
	Payload  []byte            // Payload is the entry data, only on CodeOK
}

// EncodeReadResponse encodes a read response to bytes.
// Format: [1B type] [1B code] [8B ledgerID] [8B entryID] [4B payloadLen] [payload]
func EncodeReadResponse(resp *ReadResponse) []byte {
	payloadLen := len(resp.Payload)
	buf := make([]byte, 22+payloadLen)

	buf[0] = msgTypeReadResponse
	buf[1] = codeToByte(resp.Code)
	binary.BigEndian.PutUint64(buf[2:10], uint64(resp.LedgerID))
	binary.BigEndian.PutUint64(buf[10:18], uint64(resp.EntryID))
	binary.BigEndian.PutUint32(buf[18:22], uint32(payloadLen))

	if payloadLen > 0 {
		copy(buf[22:], resp.Payload)
	}

	return buf
}

// DecodeReadResponse decodes a read response from bytes.
func DecodeReadResponse(data []byte) (*ReadResponse, error) {
	if len(data) < 22 {
		return nil, fmt.Errorf("read response too short: %d < 22", len(data))
	}

	if data[0] != msgTypeReadResponse {
		return nil, fmt.Errorf("invalid message type: 0x%02x", data[0])
	}

	payloadLen := binary.BigEndian.Uint32(data[18:22])

	if len(data) < 22+int(payloadLen) {
		return nil, fmt.Errorf("payload truncated: need %d, have %d", 22+payloadLen, len(data))
	}

	resp := &ReadResponse{
		Code:     byteToCode(data[1]),
		LedgerID: int64(binary.BigEndian.Uint64(data[2:10])),
		EntryID:  ledger.EntryID(binary.BigEndian.Uint64(data[10:18])),
	}

	if payloadLen > 0 {
		resp.Payload = make([]byte, payloadLen)
		copy(resp.Payload, data[22:22+payloadLen])
	}

	return resp, nil
}

// codeToByte maps a result code to its wire byte.
func codeToByte(rc ledger.ResultCode) byte {
	switch rc {
	case ledger.CodeOK:
		return codeOK
	case ledger.CodeNoSuchEntry:
		return codeNoSuchEntry
	case ledger.CodeNoSuchLedger:
		return codeNoSuchLedger
	case ledger.CodeClientClosed:
		return codeClientClosed
	default:
		return codeReadError
	}
}

// byteToCode maps a wire byte to a result code.
func byteToCode(b byte) ledger.ResultCode {
	switch b {
	case codeOK:
		return ledger.CodeOK
	case codeNoSuchEntry:
		return ledger.CodeNoSuchEntry
	case codeNoSuchLedger:
		return ledger.CodeNoSuchLedger
	case codeClientClosed:
		return ledger.CodeClientClosed
	default:
		return ledger.CodeReadError
	}
}
