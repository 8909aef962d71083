package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gaspardpetit/agentbridge/internal/bridge"
	"github.com/gaspardpetit/agentbridge/internal/logx"
	"github.com/gaspardpetit/agentbridge/internal/serverstate"
	"github.com/gaspardpetit/agentbridge/internal/tools"
)

const maxChatBody = 1 << 20

// TurnRunner runs one conversation turn. *bridge.Bridge implements it.
type TurnRunner interface {
	RunTurn(ctx context.Context, userMessage, userName string, set *tools.Set) (*bridge.Result, error)
}

// ToolSource yields the registration snapshot offered on each turn.
type ToolSource func() *tools.Set

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	FirstName string `json:"firstName"`
	Message   string `json:"message"`
}

// ChatResponse is the success body of POST /chat.
type ChatResponse struct {
	Success  bool           `json:"success"`
	Response string         `json:"response"`
	Status   bridge.Status  `json:"status"`
	Messages []bridge.Entry `json:"messages"`
}

// ChatHandler serves POST /chat.
type ChatHandler struct {
	Turns TurnRunner
	Tools ToolSource
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if serverstate.IsDraining() {
		writeError(w, http.StatusServiceUnavailable, "draining")
		return
	}
	var req ChatRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "Name required")
		return
	}

	var set *tools.Set
	if h.Tools != nil {
		set = h.Tools()
	}
	res, err := h.Turns.RunTurn(r.Context(), req.Message, req.FirstName, set)
	noteTurn(r.Context(), req.FirstName, res, err)
	if err != nil {
		logx.Log.Error().Err(err).Str("request_id", chiMiddleware.GetReqID(r.Context())).Msg("chat turn failed")
		writeError(w, http.StatusInternalServerError, "Failed to communicate with agent: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Success:  true,
		Response: res.Response,
		Status:   res.Status,
		Messages: res.Messages,
	})
}
