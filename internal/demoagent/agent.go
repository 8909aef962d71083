// Package demoagent is a small conversational agent speaking the bridge
// wire protocol. It greets the user and analyses the message with the
// host's string tools.
package demoagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/agentbridge/internal/envelope"
	"github.com/gaspardpetit/agentbridge/internal/jsonrpc"
	"github.com/gaspardpetit/agentbridge/internal/logx"
	"github.com/gaspardpetit/agentbridge/internal/transport"
)

// DefaultRPCTimeout bounds each tool call.
const DefaultRPCTimeout = 5 * time.Second

// ErrNoSetup is returned when the connection ends before a setup arrives.
var ErrNoSetup = errors.New("demoagent: no setup received")

// Conn is the connection surface the agent needs.
type Conn interface {
	SendText(ctx context.Context, text []byte) error
	ReceiveText(ctx context.Context) ([]byte, error)
	Close() error
}

// Agent serves one conversation per WebSocket connection.
type Agent struct {
	RPCTimeout time.Duration
	ReadLimit  int64
}

// New returns an Agent with the given per-call timeout.
func New(rpcTimeout time.Duration) *Agent {
	if rpcTimeout <= 0 {
		rpcTimeout = DefaultRPCTimeout
	}
	return &Agent{RPCTimeout: rpcTimeout}
}

// ServeHTTP upgrades the request and runs one conversation.
func (a *Agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		logx.Log.Error().Err(err).Msg("websocket accept")
		return
	}
	conn := transport.Wrap(ws, a.ReadLimit)
	defer conn.Close()
	if err := a.Serve(r.Context(), conn); err != nil {
		logx.Log.Warn().Err(err).Msg("conversation ended")
	}
}

// Serve waits for setup, runs the analysis and sends the final answer.
// The connection is closed before Serve returns.
func (a *Agent) Serve(ctx context.Context, conn Conn) error {
	defer conn.Close()
	setup, err := awaitSetup(ctx, conn)
	if err != nil {
		return err
	}
	c := &call{conn: conn, timeout: a.RPCTimeout, lg: logx.Log.With().Str("user", setup.UserName).Logger()}
	c.lg.Info().Str("message", setup.UserMessage).Msg("analysis starting")
	c.lg.Debug().RawJSON("available_functions", nonEmpty(setup.AvailableFunctions)).Msg("function metadata")

	answer := analyse(ctx, c, setup.UserName, setup.UserMessage)

	env, err := envelope.NewAgentResponse(envelope.AgentResponse{
		Response:    answer,
		UserMessage: setup.UserMessage,
		UserName:    setup.UserName,
	})
	if err != nil {
		return err
	}
	b, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	if err := conn.SendText(ctx, b); err != nil {
		return fmt.Errorf("send agent_response: %w", err)
	}
	c.lg.Info().Msg("analysis completed")
	return nil
}

func nonEmpty(b json.RawMessage) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("{}")
	}
	return b
}

func awaitSetup(ctx context.Context, conn Conn) (envelope.Setup, error) {
	for {
		raw, err := conn.ReceiveText(ctx)
		if err != nil {
			return envelope.Setup{}, fmt.Errorf("%w: %w", ErrNoSetup, err)
		}
		env, err := envelope.Decode(raw)
		if err != nil || env.Type != envelope.TypeSetup {
			logx.Log.Debug().Msg("ignoring frame before setup")
			continue
		}
		return env.Setup()
	}
}

// analyse composes the greeting and the message analysis. A failed tool call
// ends the analysis early; the failure is explained in the answer.
func analyse(ctx context.Context, c *call, name, msg string) string {
	parts := []string{
		fmt.Sprintf("Hello %s!", name),
		fmt.Sprintf("I'm analyzing your message \"%s\"...", msg),
	}
	finish := func(err error) string {
		parts = append(parts, fmt.Sprintf(" Sorry, I could not finish: %v.", err))
		return strings.Join(parts, " ")
	}

	lengthV, err := c.invoke(ctx, "getStringLength", msg)
	if err != nil {
		return finish(err)
	}
	length := number(lengthV)
	parts = append(parts, fmt.Sprintf(" It has %s characters.", format(lengthV)))

	words, err := c.invoke(ctx, "countWords", msg)
	if err != nil {
		return finish(err)
	}
	parts = append(parts, fmt.Sprintf(" It contains %s word(s) and %s characters total.", format(words), format(lengthV)))

	revV, err := c.invoke(ctx, "reverseString", msg)
	if err != nil {
		return finish(err)
	}
	reversed := format(revV)
	parts = append(parts, fmt.Sprintf(" When reversed, it becomes: \"%s\".", reversed))

	switch {
	case length <= 3:
		parts = append(parts, " That's quite a short message!")
	case length > 20:
		parts = append(parts, " That's a nice long message!")
	}
	if strings.EqualFold(msg, reversed) {
		parts = append(parts, " Interesting! Your message is a palindrome, it reads the same forwards and backwards!")
	}
	return strings.Join(parts, " ")
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return "null"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

type call struct {
	conn    Conn
	timeout time.Duration
	lg      zerolog.Logger
}

// invoke sends one rpc_call and waits for the rpc_response carrying the same
// envelope id. Unrelated frames are ignored.
func (c *call) invoke(ctx context.Context, method string, params ...any) (any, error) {
	id := uuid.NewString()
	rawID, _ := json.Marshal(id)
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	env, err := envelope.NewRPCCall(rawID, jsonrpc.Request{JSONRPC: jsonrpc.Version, Method: method, Params: rawParams, ID: rawID})
	if err != nil {
		return nil, err
	}
	b, err := envelope.Encode(env)
	if err != nil {
		return nil, err
	}
	c.lg.Debug().Str("method", method).Str("id", id).Msg("rpc call")
	if err := c.conn.SendText(ctx, b); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	for {
		raw, err := c.conn.ReceiveText(cctx)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				return nil, fmt.Errorf("%s timed out after %s", method, c.timeout)
			}
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		in, err := envelope.Decode(raw)
		if err != nil || in.Type != envelope.TypeRPCResponse || in.IDKey() != string(rawID) {
			continue
		}
		resp, err := in.RPCResponse()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("RPC Error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		c.lg.Debug().Str("method", method).Interface("result", resp.Result).Msg("rpc result")
		return resp.Result, nil
	}
}
