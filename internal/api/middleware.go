package api

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/agentbridge/internal/bridge"
	"github.com/gaspardpetit/agentbridge/internal/logx"
)

// maxLoggedBody caps the request body echoed at debug level.
const maxLoggedBody = 4 << 10

// statusRecorder keeps the status code for the access log. It must stay
// hijackable for WebSocket upgrades.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("hijacker not supported")
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// turnNote is filled by the chat handler so the access line can say how the
// turn ended.
type turnNote struct {
	user     string
	status   bridge.Status
	messages int
	err      error
}

type turnNoteKey struct{}

func withTurnNote(ctx context.Context) (context.Context, *turnNote) {
	n := &turnNote{}
	return context.WithValue(ctx, turnNoteKey{}, n), n
}

// noteTurn records the outcome of a chat turn on the request, if the
// request logger is installed.
func noteTurn(ctx context.Context, user string, res *bridge.Result, err error) {
	n, ok := ctx.Value(turnNoteKey{}).(*turnNote)
	if !ok {
		return
	}
	n.user, n.err = user, err
	if res != nil {
		n.status = res.Status
		n.messages = len(res.Messages)
	}
}

// MiddlewareChain returns the middleware applied to every route.
func MiddlewareChain() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chiMiddleware.RequestID,
		chiMiddleware.Recoverer,
		requestLogger,
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := chiMiddleware.GetReqID(r.Context())
		if zerolog.GlobalLevel() <= zerolog.DebugLevel && r.Body != nil {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
			if len(body) > maxLoggedBody {
				body = body[:maxLoggedBody]
			}
			logx.Log.Debug().Str("request_id", reqID).Str("method", r.Method).Str("path", r.URL.Path).Bytes("body", body).Msg("http request")
		}
		ctx, note := withTurnNote(r.Context())
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r.WithContext(ctx))

		ev := logx.Log.Info()
		if sr.status >= http.StatusInternalServerError {
			ev = logx.Log.Warn()
		}
		ev = ev.Str("request_id", reqID).Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", sr.status).Dur("elapsed", time.Since(start))
		if note.user != "" {
			ev = ev.Str("user", note.user)
			if note.err != nil {
				ev = ev.AnErr("agent_error", note.err)
			} else {
				ev = ev.Str("turn_status", string(note.status)).Int("messages", note.messages)
			}
		}
		ev.Msg("http")
	})
}
