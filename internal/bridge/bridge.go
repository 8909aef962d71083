package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/agentbridge/internal/envelope"
	"github.com/gaspardpetit/agentbridge/internal/jsonrpc"
	"github.com/gaspardpetit/agentbridge/internal/logx"
	"github.com/gaspardpetit/agentbridge/internal/metrics"
	"github.com/gaspardpetit/agentbridge/internal/tools"
	"github.com/gaspardpetit/agentbridge/internal/transport"
)

// DefaultTimeout is the per-turn budget measured from session start.
const DefaultTimeout = 15 * time.Second

// Responses substituted for the agent's answer on a soft failure.
const (
	CommunicationError = "Communication error with agent"
	NoResponse         = "No response received from agent"
)

// ErrAgentUnavailable wraps every hard failure: the turn produced nothing
// worth returning to the user.
var ErrAgentUnavailable = errors.New("bridge: agent unavailable")

// Transport is the subset of *transport.Conn a session needs.
type Transport interface {
	SendText(ctx context.Context, text []byte) error
	ReceiveText(ctx context.Context) ([]byte, error)
	Close() error
}

// DialFunc opens the per-turn connection.
type DialFunc func(ctx context.Context, url string) (Transport, error)

// Config configures a Bridge.
type Config struct {
	AgentURL  string
	Timeout   time.Duration
	ReadLimit int64
	// Dial overrides the WebSocket dialer, mainly for tests.
	Dial DialFunc
}

// Bridge runs conversation turns against one agent endpoint. It holds no
// per-turn state and is safe for concurrent use.
type Bridge struct {
	cfg Config
}

// New returns a Bridge with defaults applied.
func New(cfg Config) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dial == nil {
		limit := cfg.ReadLimit
		cfg.Dial = func(ctx context.Context, url string) (Transport, error) {
			return transport.Dial(ctx, url, transport.Options{ReadLimit: limit})
		}
	}
	return &Bridge{cfg: cfg}
}

// AgentURL reports the configured agent endpoint.
func (b *Bridge) AgentURL() string { return b.cfg.AgentURL }

// Direction of a logged envelope relative to the bridge.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Entry is one line of the message log.
type Entry struct {
	Direction Direction         `json:"direction"`
	Envelope  envelope.Envelope `json:"envelope"`
}

// Status tells how a turn ended. Anything but StatusCompleted means Response
// is a substitute text, not the agent's answer.
type Status string

const (
	StatusCompleted       Status = "completed"
	StatusTimedOut        Status = "timed_out"
	StatusTransportFailed Status = "transport_failed"
	StatusClosed          Status = "closed"
)

// Result is the outcome of one turn.
type Result struct {
	Response string  `json:"response"`
	Messages []Entry `json:"messages"`
	Status   Status  `json:"status"`
}

// RunTurn performs one full conversation turn: dial, send setup, serve the
// agent's tool calls until it answers, then close. Soft failures return a
// Result with a substitute Response; hard failures return an error wrapping
// ErrAgentUnavailable, or the caller's context error.
func (b *Bridge) RunTurn(ctx context.Context, userMessage, userName string, set *tools.Set) (*Result, error) {
	id := uuid.NewString()
	s := &session{
		id:      id,
		cfg:     b.cfg,
		handler: jsonrpc.NewHandler(tools.NewDispatcher(set)),
		tools:   set,
		lg:      logx.Log.With().Str("session_id", id).Logger(),
	}
	start := time.Now()
	metrics.TurnStart()
	res, err := s.run(ctx, userMessage, userName)
	outcome := "error"
	if res != nil {
		outcome = string(res.Status)
	}
	metrics.TurnEnd(outcome, time.Since(start))
	return res, err
}

type state int

const (
	stateIdle state = iota
	stateSetupSent
	stateAwaiting
	stateDispatching
	stateDone
	stateTimedOut
	stateTransportFailed
	statePeerClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSetupSent:
		return "setup_sent"
	case stateAwaiting:
		return "awaiting_message"
	case stateDispatching:
		return "dispatching"
	case stateDone:
		return "done"
	case stateTimedOut:
		return "timed_out"
	case stateTransportFailed:
		return "transport_failed"
	case statePeerClosed:
		return "peer_closed"
	}
	return "unknown"
}

type session struct {
	id      string
	cfg     Config
	handler *jsonrpc.Handler
	tools   *tools.Set
	lg      zerolog.Logger

	state    state
	msgs     []Entry
	received int
}

func (s *session) enter(st state) {
	s.lg.Trace().Stringer("from", s.state).Stringer("to", st).Msg("state")
	s.state = st
}

func (s *session) run(ctx context.Context, userMessage, userName string) (*Result, error) {
	tctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	conn, err := s.cfg.Dial(tctx, s.cfg.AgentURL)
	if err != nil {
		s.lg.Error().Err(err).Str("url", s.cfg.AgentURL).Msg("dial agent")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}
	defer conn.Close()

	available, err := json.Marshal(s.tools.Metadata())
	if err != nil {
		return nil, fmt.Errorf("%w: encode tool metadata: %v", ErrAgentUnavailable, err)
	}
	setup, err := envelope.NewSetup(envelope.Setup{UserMessage: userMessage, UserName: userName, AvailableFunctions: available})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	if err := s.send(tctx, conn, setup); err != nil {
		s.lg.Error().Err(err).Msg("send setup")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: send setup: %w", ErrAgentUnavailable, err)
	}
	s.enter(stateSetupSent)
	s.lg.Debug().Str("user", userName).Int("tools", s.tools.Len()).Msg("setup sent")

	for {
		s.enter(stateAwaiting)
		raw, err := conn.ReceiveText(tctx)
		if err != nil {
			return s.fail(ctx, tctx, err)
		}
		env, err := envelope.Decode(raw)
		if err != nil {
			s.lg.Debug().Err(err).Msg("discarding frame")
			metrics.RecordDiscarded()
			continue
		}
		switch env.Type {
		case envelope.TypeAgentResponse:
			s.record(Received, env)
			ar, err := env.AgentResponse()
			if err != nil {
				s.lg.Debug().Err(err).Msg("agent_response payload")
			}
			s.enter(stateDone)
			s.lg.Info().Int("messages", len(s.msgs)).Msg("turn completed")
			return s.result(ar.Response, StatusCompleted), nil
		case envelope.TypeRPCCall:
			s.record(Received, env)
			s.enter(stateDispatching)
			if err := s.answer(tctx, conn, env); err != nil {
				return s.fail(ctx, tctx, err)
			}
		default:
			s.lg.Debug().Str("type", string(env.Type)).Msg("discarding unexpected envelope")
			metrics.RecordDiscarded()
		}
	}
}

func (s *session) answer(ctx context.Context, conn Transport, call envelope.Envelope) error {
	resp := s.handler.Handle(ctx, call.Data)
	method := methodOf(call.Data)
	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	label := method
	if _, ok := s.tools.Lookup(method); !ok {
		label = "unknown"
	}
	metrics.RecordRPCCall(label, code)
	s.lg.Debug().Str("method", method).Int("code", code).Msg("rpc call handled")

	out, err := envelope.NewRPCResponse(call.ID, resp)
	if err != nil {
		// the tool returned a value that cannot be encoded
		s.lg.Warn().Err(err).Str("method", method).Msg("encode rpc result")
		out, err = envelope.NewRPCResponse(call.ID, jsonrpc.NewError(resp.ID, jsonrpc.Errorf(jsonrpc.CodeInternalError, "%v", err)))
		if err != nil {
			return err
		}
	}
	return s.send(ctx, conn, out)
}

// send encodes, writes and logs env. The entry is appended only once the
// frame went out.
func (s *session) send(ctx context.Context, conn Transport, env envelope.Envelope) error {
	b, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	if err := conn.SendText(ctx, b); err != nil {
		return err
	}
	s.record(Sent, env)
	return nil
}

func (s *session) record(d Direction, env envelope.Envelope) {
	s.msgs = append(s.msgs, Entry{Direction: d, Envelope: env})
	if d == Received {
		s.received++
	}
	metrics.RecordEnvelope(string(d), string(env.Type))
}

// fail maps a receive or send error to the turn outcome. A timeout is always
// soft. A broken or closed connection is soft only if the agent had already
// sent something this turn.
func (s *session) fail(parent, tctx context.Context, err error) (*Result, error) {
	if parent.Err() != nil {
		s.lg.Warn().Err(parent.Err()).Stringer("state", s.state).Msg("turn aborted by caller")
		return nil, parent.Err()
	}
	if errors.Is(err, transport.ErrTimeout) || errors.Is(tctx.Err(), context.DeadlineExceeded) {
		s.lg.Warn().Dur("timeout", s.cfg.Timeout).Stringer("state", s.state).Msg("agent timed out")
		s.enter(stateTimedOut)
		return s.result(CommunicationError, StatusTimedOut), nil
	}
	if errors.Is(err, transport.ErrPeerClosed) {
		s.enter(statePeerClosed)
		if s.received == 0 {
			s.lg.Error().Msg("agent closed before sending anything")
			return nil, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
		}
		s.lg.Warn().Msg("agent closed without a response")
		return s.result(NoResponse, StatusClosed), nil
	}
	s.enter(stateTransportFailed)
	if s.received == 0 {
		s.lg.Error().Err(err).Msg("transport failed before the agent sent anything")
		return nil, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}
	s.lg.Warn().Err(err).Msg("transport failed")
	return s.result(CommunicationError, StatusTransportFailed), nil
}

func (s *session) result(response string, status Status) *Result {
	msgs := s.msgs
	if msgs == nil {
		msgs = []Entry{}
	}
	return &Result{Response: response, Messages: msgs, Status: status}
}

func methodOf(data json.RawMessage) string {
	var m struct {
		Method any `json:"method"`
	}
	if json.Unmarshal(data, &m) != nil {
		return ""
	}
	name, _ := m.Method.(string)
	return name
}
