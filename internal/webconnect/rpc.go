package webconnect

import "encoding/json"

// JSONRPCVersion is the protocol version set on every envelope
const JSONRPCVersion = "2.0"

// RPCRequest is a JSON-RPC request sent by a dapp over a connection
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is the error member of a JSON-RPC response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCResponse answers an RPCRequest with the same id
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// ErrUserRejected is sent back when the wallet user declines a request
var ErrUserRejected = &RPCError{Code: -32000, Message: "User rejected the request"}
