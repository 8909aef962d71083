package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaspardpetit/agentbridge/internal/jsonrpc"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	s, err := NewSet(
		Tool{
			Name:        "countWords",
			Description: "Count the number of words in a text",
			Params:      []Param{{Name: "text", Type: "string", Description: "The text to analyze"}},
			Fn: func(_ context.Context, args []any) (any, error) {
				s, err := String(args, 0)
				if err != nil {
					return nil, err
				}
				return len(strings.Fields(s)), nil
			},
		},
		Tool{
			Name:   "sub",
			Params: []Param{{Name: "a", Type: "number"}, {Name: "b", Type: "number"}},
			Fn: func(_ context.Context, args []any) (any, error) {
				a, err := Float(args, 0)
				if err != nil {
					return nil, err
				}
				b, err := Float(args, 1)
				if err != nil {
					return nil, err
				}
				return a - b, nil
			},
		},
		Tool{
			Name:   "greet",
			Params: []Param{{Name: "name", Type: "string"}, {Name: "title", Type: "string", Optional: true}},
			Fn: func(_ context.Context, args []any) (any, error) {
				if args[1] == nil {
					return "hello " + args[0].(string), nil
				}
				return "hello " + args[1].(string) + " " + args[0].(string), nil
			},
		},
		Tool{
			Name: "fail",
			Fn: func(context.Context, []any) (any, error) {
				return nil, errors.New("disk on fire")
			},
		},
		Tool{
			Name: "panic",
			Fn: func(context.Context, []any) (any, error) {
				panic("unexpected")
			},
		},
		Tool{
			Name: "nothing",
			Fn: func(_ context.Context, args []any) (any, error) {
				return len(args), nil
			},
		},
	)
	require.NoError(t, err)
	return s
}

func TestInvokePositional(t *testing.T) {
	d := NewDispatcher(testSet(t))
	v, rpcErr := d.Invoke(context.Background(), "sub", json.RawMessage(`[5, 2]`))
	require.Nil(t, rpcErr)
	assert.Equal(t, float64(3), v)

	v, rpcErr = d.Invoke(context.Background(), "countWords", json.RawMessage(`["a b c"]`))
	require.Nil(t, rpcErr)
	assert.Equal(t, 3, v)
}

func TestInvokeNamedUsesDeclaredOrder(t *testing.T) {
	d := NewDispatcher(testSet(t))
	v, rpcErr := d.Invoke(context.Background(), "sub", json.RawMessage(`{"b": 2, "a": 10, "extra": true}`))
	require.Nil(t, rpcErr)
	assert.Equal(t, float64(8), v)
}

func TestInvokeNamedMissingRequired(t *testing.T) {
	d := NewDispatcher(testSet(t))
	for _, raw := range []string{`{"a": 1}`, `{"b": 1}`} {
		_, rpcErr := d.Invoke(context.Background(), "sub", json.RawMessage(raw))
		require.NotNil(t, rpcErr, raw)
		assert.Equal(t, jsonrpc.CodeInvalidParams, rpcErr.Code)
	}
}

func TestInvokeNamedOptional(t *testing.T) {
	d := NewDispatcher(testSet(t))
	v, rpcErr := d.Invoke(context.Background(), "greet", json.RawMessage(`{"name":"Ada"}`))
	require.Nil(t, rpcErr)
	assert.Equal(t, "hello Ada", v)

	v, rpcErr = d.Invoke(context.Background(), "greet", json.RawMessage(`{"name":"Ada","title":"Dr"}`))
	require.Nil(t, rpcErr)
	assert.Equal(t, "hello Dr Ada", v)

	v, rpcErr = d.Invoke(context.Background(), "greet", json.RawMessage(`["Ada"]`))
	require.Nil(t, rpcErr)
	assert.Equal(t, "hello Ada", v)
}

func TestInvokeEmptyParamsIsEmptyPositionalCall(t *testing.T) {
	d := NewDispatcher(testSet(t))
	for _, raw := range []string{``, `null`, `[]`, `{}`} {
		v, rpcErr := d.Invoke(context.Background(), "nothing", json.RawMessage(raw))
		require.Nil(t, rpcErr, raw)
		assert.Equal(t, 0, v)
	}
	_, rpcErr := d.Invoke(context.Background(), "countWords", nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, jsonrpc.CodeInvalidParams, rpcErr.Code)
}

func TestInvokeArity(t *testing.T) {
	d := NewDispatcher(testSet(t))
	_, rpcErr := d.Invoke(context.Background(), "sub", json.RawMessage(`[1, 2, 3]`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, jsonrpc.CodeInvalidParams, rpcErr.Code)

	_, rpcErr = d.Invoke(context.Background(), "sub", json.RawMessage(`"scalar"`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, jsonrpc.CodeInvalidParams, rpcErr.Code)
}

func TestInvokeMethodNotFound(t *testing.T) {
	d := NewDispatcher(testSet(t))
	_, rpcErr := d.Invoke(context.Background(), "foo", json.RawMessage(`[]`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, rpcErr.Code)
	assert.Equal(t, "Method not found: foo", rpcErr.Message)
}

func TestInvokeToolFailureBecomesInternalError(t *testing.T) {
	d := NewDispatcher(testSet(t))
	_, rpcErr := d.Invoke(context.Background(), "fail", nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, jsonrpc.CodeInternalError, rpcErr.Code)
	assert.Equal(t, "disk on fire", rpcErr.Message)

	_, rpcErr = d.Invoke(context.Background(), "panic", nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, jsonrpc.CodeInternalError, rpcErr.Code)
	assert.Equal(t, "unexpected", rpcErr.Message)

	_, rpcErr = d.Invoke(context.Background(), "countWords", json.RawMessage(`[42]`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, jsonrpc.CodeInternalError, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "must be of type string")
}

func TestRegisterSwapsWholesale(t *testing.T) {
	d := NewDispatcher(testSet(t))
	only := MustSet(Tool{Name: "ping", Fn: func(context.Context, []any) (any, error) { return "pong", nil }})
	d.Register(only)

	_, rpcErr := d.Invoke(context.Background(), "sub", json.RawMessage(`[1,1]`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, rpcErr.Code)

	v, rpcErr := d.Invoke(context.Background(), "ping", nil)
	require.Nil(t, rpcErr)
	assert.Equal(t, "pong", v)

	d.Register(nil)
	_, rpcErr = d.Invoke(context.Background(), "ping", nil)
	require.NotNil(t, rpcErr)
}

func TestDispatcherIsAnInvoker(t *testing.T) {
	var _ jsonrpc.Invoker = NewDispatcher(nil)
}
