// Package errors provides structured, coded domain errors and their mapping
// onto the wire protocol's error envelope.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Engine rejections
	CodeMoveOutOfBounds  Code = "MOVE_OUT_OF_BOUNDS"
	CodeCellOccupied     Code = "CELL_OCCUPIED"
	CodeWrongTurn        Code = "WRONG_TURN"
	CodeSessionConcluded Code = "SESSION_CONCLUDED"

	// Coordinator / message errors
	CodeMessageEmpty   Code = "MESSAGE_EMPTY"
	CodeMessageTooLong Code = "MESSAGE_TOO_LONG"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeStoreConflict Code = "STORE_CONFLICT"
	CodeStoreFailure  Code = "STORE_FAILURE"
)

// JSON-RPC error codes carried on the wire. The -327xx range follows the
// JSON-RPC 2.0 specification; the -320xx range is reserved for domain
// rejections.
const (
	RPCParseError     = -32700
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603

	RPCMoveOutOfBounds  = -32000
	RPCCellOccupied     = -32001
	RPCWrongTurn        = -32002
	RPCSessionConcluded = -32003
	RPCStoreConflict    = -32004
)

// RPCCode maps a domain code onto its wire error code. Codes without a
// dedicated wire mapping surface as internal errors so store internals are
// never leaked to callers.
func (c Code) RPCCode() int {
	switch c {
	case CodeMoveOutOfBounds:
		return RPCMoveOutOfBounds
	case CodeCellOccupied:
		return RPCCellOccupied
	case CodeWrongTurn:
		return RPCWrongTurn
	case CodeSessionConcluded:
		return RPCSessionConcluded
	case CodeStoreConflict:
		return RPCStoreConflict
	case CodeMessageEmpty, CodeMessageTooLong:
		return RPCInvalidParams
	default:
		return RPCInternalError
	}
}
