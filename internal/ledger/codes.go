package ledger

// ResultCode classifies the outcome of an entry read or a fragment check.
// The values are stable because they cross the read protocol wire.
type ResultCode int

const (
	// CodeOK means the operation succeeded.
	CodeOK ResultCode = 0

	// CodeNoSuchEntry means the bookie has the ledger but not the entry.
	CodeNoSuchEntry ResultCode = 1

	// CodeNoSuchLedger means the bookie has never seen the ledger.
	CodeNoSuchLedger ResultCode = 2

	// CodeClientClosed means the read client was closed before completion.
	CodeClientClosed ResultCode = 3

	// CodeReadError covers transport and storage failures.
	CodeReadError ResultCode = 4

	// CodeInvalidFragment marks a fragment whose stored-range bounds
	// contradict each other.
	CodeInvalidFragment ResultCode = 5
)

func (rc ResultCode) String() string {
	switch rc {
	case CodeOK:
		return "OK"
	case CodeNoSuchEntry:
		return "NO_SUCH_ENTRY"
	case CodeNoSuchLedger:
		return "NO_SUCH_LEDGER"
	case CodeClientClosed:
		return "CLIENT_CLOSED"
	case CodeReadError:
		return "READ_ERROR"
	case CodeInvalidFragment:
		return "INVALID_FRAGMENT"
	default:
		return "UNKNOWN"
	}
}
