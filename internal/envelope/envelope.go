package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gaspardpetit/agentbridge/internal/jsonrpc"
)

// ErrUnparseable is returned by Decode for frames that are not a JSON object
// or whose type is missing or unknown.
var ErrUnparseable = errors.New("envelope: unparseable")

// Type enumerates envelope types.
type Type string

const (
	TypeSetup         Type = "setup"
	TypeRPCCall       Type = "rpc_call"
	TypeRPCResponse   Type = "rpc_response"
	TypeAgentResponse Type = "agent_response"
)

// Known reports whether t is one of the four recognized types.
func (t Type) Known() bool {
	switch t {
	case TypeSetup, TypeRPCCall, TypeRPCResponse, TypeAgentResponse:
		return true
	}
	return false
}

// Envelope is the unit exchanged on the wire. ID and Data are raw JSON so the
// correlation token is echoed exactly as the peer sent it.
type Envelope struct {
	Type Type            `json:"type"`
	ID   json.RawMessage `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Setup is the payload of the first envelope of a turn.
type Setup struct {
	UserMessage        string          `json:"user_message"`
	UserName           string          `json:"user_name"`
	AvailableFunctions json.RawMessage `json:"available_functions"`
}

// AgentResponse is the payload of the terminal envelope. The echo fields
// are informational.
type AgentResponse struct {
	Response    string `json:"response"`
	UserMessage string `json:"user_message,omitempty"`
	UserName    string `json:"user_name,omitempty"`
}

// Decode parses one text frame. Unknown top-level fields are ignored.
func Decode(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: not an object", ErrUnparseable)
	}
	var e Envelope
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrUnparseable)
	}
	if !e.Type.Known() {
		return Envelope{}, fmt.Errorf("%w: unknown type %q", ErrUnparseable, e.Type)
	}
	if isNull(e.ID) {
		e.ID = nil
	}
	if isNull(e.Data) {
		e.Data = nil
	}
	return e, nil
}

// Encode renders e as one text frame.
func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// NewSetup builds the setup envelope.
func NewSetup(s Setup) (Envelope, error) {
	if len(s.AvailableFunctions) == 0 {
		s.AvailableFunctions = json.RawMessage("{}")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeSetup, Data: data}, nil
}

// NewRPCCall wraps a JSON-RPC request under the correlation id.
func NewRPCCall(id json.RawMessage, req jsonrpc.Request) (Envelope, error) {
	if req.JSONRPC == "" {
		req.JSONRPC = jsonrpc.Version
	}
	data, err := json.Marshal(req)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeRPCCall, ID: id, Data: data}, nil
}

// NewRPCResponse wraps a JSON-RPC response under the correlation id of the
// rpc_call it answers. A call that carried no id is answered with "id":null.
func NewRPCResponse(id json.RawMessage, resp jsonrpc.Response) (Envelope, error) {
	if len(bytes.TrimSpace(id)) == 0 {
		id = json.RawMessage("null")
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeRPCResponse, ID: id, Data: data}, nil
}

// NewAgentResponse builds the terminal envelope.
func NewAgentResponse(r AgentResponse) (Envelope, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeAgentResponse, Data: data}, nil
}

// AgentResponse decodes the payload of an agent_response envelope.
func (e Envelope) AgentResponse() (AgentResponse, error) {
	var r AgentResponse
	if e.Type != TypeAgentResponse {
		return r, fmt.Errorf("envelope: %s is not %s", e.Type, TypeAgentResponse)
	}
	if len(e.Data) == 0 {
		return r, nil
	}
	err := json.Unmarshal(e.Data, &r)
	return r, err
}

// Setup decodes the payload of a setup envelope.
func (e Envelope) Setup() (Setup, error) {
	var s Setup
	if e.Type != TypeSetup {
		return s, fmt.Errorf("envelope: %s is not %s", e.Type, TypeSetup)
	}
	err := json.Unmarshal(e.Data, &s)
	return s, err
}

// RPCResponse decodes the payload of an rpc_response envelope.
func (e Envelope) RPCResponse() (jsonrpc.Response, error) {
	var r jsonrpc.Response
	if e.Type != TypeRPCResponse {
		return r, fmt.Errorf("envelope: %s is not %s", e.Type, TypeRPCResponse)
	}
	err := json.Unmarshal(e.Data, &r)
	return r, err
}

// IDKey returns a comparable form of the correlation id.
func (e Envelope) IDKey() string { return string(bytes.TrimSpace(e.ID)) }

func isNull(b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
