package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/gaspardpetit/agentbridge/internal/jsonrpc"
	"github.com/gaspardpetit/agentbridge/internal/logx"
)

// Dispatcher invokes tools by name. Registration is swapped wholesale; a
// call in progress keeps the snapshot it started with.
type Dispatcher struct {
	set atomic.Pointer[Set]
}

// NewDispatcher returns a Dispatcher serving s.
func NewDispatcher(s *Set) *Dispatcher {
	d := &Dispatcher{}
	d.Register(s)
	return d
}

// Register replaces the whole registration set.
func (d *Dispatcher) Register(s *Set) {
	if s == nil {
		s = &Set{byName: map[string]Tool{}}
	}
	d.set.Store(s)
}

// Invoke resolves params against the tool's declared parameters and calls it.
// It implements jsonrpc.Invoker; no failure escapes as a panic or Go error.
func (d *Dispatcher) Invoke(ctx context.Context, name string, params json.RawMessage) (any, *jsonrpc.Error) {
	t, ok := d.set.Load().Lookup(name)
	if !ok {
		return nil, jsonrpc.Errorf(jsonrpc.CodeMethodNotFound, "Method not found: %s", name)
	}
	args, rpcErr := bindArgs(t, params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return call(ctx, t, args)
}

func call(ctx context.Context, t Tool, args []any) (result any, rpcErr *jsonrpc.Error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Log.Error().Str("tool", t.Name).Interface("panic", r).Msg("tool panicked")
			result = nil
			rpcErr = jsonrpc.Errorf(jsonrpc.CodeInternalError, "%v", r)
		}
	}()
	v, err := t.Fn(ctx, args)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	return v, nil
}

// bindArgs turns raw params into the positional argument list.
func bindArgs(t Tool, params json.RawMessage) ([]any, *jsonrpc.Error) {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return checkArity(t, nil)
	}
	switch trimmed[0] {
	case '[':
		var args []any
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "Invalid params: %v", err)
		}
		return checkArity(t, args)
	case '{':
		var named map[string]any
		if err := json.Unmarshal(trimmed, &named); err != nil {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "Invalid params: %v", err)
		}
		if len(named) == 0 {
			return checkArity(t, nil)
		}
		args := make([]any, 0, len(t.Params))
		for _, p := range t.Params {
			v, ok := named[p.Name]
			if !ok {
				if p.Optional {
					args = append(args, nil)
					continue
				}
				return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "Missing parameter: %s", p.Name)
			}
			args = append(args, v)
		}
		return args, nil
	default:
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "Invalid params: expected array or object"}
	}
}

func checkArity(t Tool, args []any) ([]any, *jsonrpc.Error) {
	if len(args) > len(t.Params) || len(args) < t.required() {
		return nil, &jsonrpc.Error{
			Code:    jsonrpc.CodeInvalidParams,
			Message: fmt.Sprintf("Invalid params: %s expects %s, got %d", t.Name, arity(t), len(args)),
		}
	}
	if args == nil {
		args = []any{}
	}
	for len(args) < len(t.Params) {
		args = append(args, nil)
	}
	return args, nil
}

func arity(t Tool) string {
	req, all := t.required(), len(t.Params)
	if req == all {
		return fmt.Sprintf("%d argument(s)", all)
	}
	return fmt.Sprintf("%d to %d argument(s)", req, all)
}
