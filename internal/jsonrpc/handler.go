package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
)

// Invoker resolves a method against the host's tools. Failures are reported
// as *Error values; an Invoker must not panic.
type Invoker interface {
	Invoke(ctx context.Context, method string, params json.RawMessage) (any, *Error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, method string, params json.RawMessage) (any, *Error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, method string, params json.RawMessage) (any, *Error) {
	return f(ctx, method, params)
}

// Handler turns one JSON-RPC request into one JSON-RPC response.
type Handler struct {
	invoker Invoker
}

// NewHandler returns a Handler dispatching to inv.
func NewHandler(inv Invoker) *Handler {
	return &Handler{invoker: inv}
}

// Handle always returns a well-formed response. The request id is echoed
// whenever it can be recovered and is null otherwise.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) Response {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return NewError(nil, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: expected object"})
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return NewError(nil, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: " + err.Error()})
	}
	id := fields["id"]

	var method string
	if m, ok := fields["method"]; ok {
		if err := json.Unmarshal(m, &method); err != nil {
			return NewError(id, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: method must be a string"})
		}
	}
	if method == "" {
		return NewError(id, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: missing method"})
	}
	if h.invoker == nil {
		return NewError(id, Errorf(CodeMethodNotFound, "Method not found: %s", method))
	}

	result, rpcErr := h.invoker.Invoke(ctx, method, fields["params"])
	if rpcErr != nil {
		return NewError(id, rpcErr)
	}
	return NewResult(id, result)
}
