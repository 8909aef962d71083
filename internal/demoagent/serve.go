package demoagent

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gaspardpetit/agentbridge/internal/logx"
)

// ShutdownGrace bounds how long ServeUntilContext waits for open requests.
const ShutdownGrace = 5 * time.Second

// Handler mounts the agent at path. Any other path answers 404.
func (a *Agent) Handler(path string) http.Handler {
	if path == "" {
		path = "/"
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle(path, a)
	return r
}

// ServeUntilContext listens on addr and serves handler until ctx is done.
// It returns the resolved listen address and a channel closed once the
// server has shut down, letting conversations in progress finish for up to
// the shutdown grace period.
func ServeUntilContext(ctx context.Context, addr string, handler http.Handler) (string, <-chan struct{}, error) {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			logx.Log.Warn().Err(err).Msg("agent shutdown")
		}
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logx.Log.Error().Err(err).Msg("agent serve")
		}
	}()
	return ln.Addr().String(), done, nil
}
