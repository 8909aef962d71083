package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the protocol version written on every response.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes used by the bridge.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is a JSON-RPC request as sent by the agent.
// Params and ID are kept raw so they can be echoed byte-for-byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message) }

// Errorf builds an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Response carries exactly one of Result or Error. A nil Error means success,
// in which case Result is written even when it is nil.
type Response struct {
	ID     json.RawMessage
	Result any
	Error  *Error
}

// NewResult builds a success response.
func NewResult(id json.RawMessage, result any) Response {
	return Response{ID: id, Result: result}
}

// NewError builds an error response.
func NewError(id json.RawMessage, err *Error) Response {
	return Response{ID: id, Error: err}
}

var null = json.RawMessage("null")

// MarshalJSON writes {"jsonrpc","id","result"|"error"} and never both.
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(bytes.TrimSpace(id)) == 0 {
		id = null
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *Error          `json:"error"`
		}{Version, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{Version, id, r.Result})
}

// UnmarshalJSON accepts either shape. A response carrying both result and
// error is rejected.
func (r *Response) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Error != nil && raw.Result != nil {
		return fmt.Errorf("jsonrpc: response has both result and error")
	}
	r.ID = raw.ID
	r.Error = raw.Error
	r.Result = nil
	if raw.Error == nil && raw.Result != nil {
		var v any
		if err := json.Unmarshal(raw.Result, &v); err != nil {
			return err
		}
		r.Result = v
	}
	return nil
}
