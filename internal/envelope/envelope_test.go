package envelope

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaspardpetit/agentbridge/internal/jsonrpc"
)

func TestDecodeRejectsUnparseable(t *testing.T) {
	cases := map[string]string{
		"empty":        ``,
		"not json":     `hello`,
		"array":        `[1,2]`,
		"missing type": `{"id":"x","data":{}}`,
		"unknown type": `{"type":"ping"}`,
		"bad json":     `{"type":`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnparseable))
		})
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	e, err := Decode([]byte(`{"type":"agent_response","data":{"response":"hi","user_name":"Ann"},"extra":1}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAgentResponse, e.Type)
	r, err := e.AgentResponse()
	require.NoError(t, err)
	assert.Equal(t, "hi", r.Response)
}

func TestRoundTrip(t *testing.T) {
	call, err := NewRPCCall(json.RawMessage(`"call-1"`), jsonrpc.Request{Method: "countWords", Params: json.RawMessage(`["a b"]`), ID: json.RawMessage(`7`)})
	require.NoError(t, err)
	setup, err := NewSetup(Setup{UserMessage: "hello", UserName: "Ann"})
	require.NoError(t, err)
	resp, err := NewRPCResponse(json.RawMessage(`42`), jsonrpc.NewResult(json.RawMessage(`7`), 2))
	require.NoError(t, err)
	final, err := NewAgentResponse(AgentResponse{Response: "done"})
	require.NoError(t, err)

	for _, e := range []Envelope{call, setup, resp, final} {
		b, err := Encode(e)
		require.NoError(t, err)
		got, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestSetupPayload(t *testing.T) {
	e, err := NewSetup(Setup{UserMessage: "hello", UserName: "Ann"})
	require.NoError(t, err)
	b, err := Encode(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"setup","data":{"user_message":"hello","user_name":"Ann","available_functions":{}}}`, string(b))

	s, err := e.Setup()
	require.NoError(t, err)
	assert.Equal(t, "Ann", s.UserName)
}

func TestRPCResponseEchoesOuterID(t *testing.T) {
	e, err := NewRPCResponse(json.RawMessage(`"abc"`), jsonrpc.NewError(json.RawMessage(`1`), &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "Method not found: foo"}))
	require.NoError(t, err)
	b, err := Encode(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"rpc_response","id":"abc","data":{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found: foo"}}}`, string(b))

	r, err := e.RPCResponse()
	require.NoError(t, err)
	require.NotNil(t, r.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, r.Error.Code)
}

func TestRPCResponseWithoutCallIDCarriesNull(t *testing.T) {
	call, err := Decode([]byte(`{"type":"rpc_call","data":{"jsonrpc":"2.0","method":"countWords","params":["a"]}}`))
	require.NoError(t, err)
	require.Nil(t, call.ID)

	e, err := NewRPCResponse(call.ID, jsonrpc.NewResult(nil, 1))
	require.NoError(t, err)
	b, err := Encode(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"rpc_response","id":null,"data":{"jsonrpc":"2.0","id":null,"result":1}}`, string(b))
}

func TestNullFieldsNormalised(t *testing.T) {
	e, err := Decode([]byte(`{"type":"agent_response","id":null,"data":null}`))
	require.NoError(t, err)
	assert.Nil(t, e.ID)
	r, err := e.AgentResponse()
	require.NoError(t, err)
	assert.Equal(t, "", r.Response)
}
