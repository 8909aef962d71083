package api

import (
	"net/http"

	"github.com/gaspardpetit/agentbridge/internal/serverstate"
)

// HealthHandler reports the lifecycle state. Anything but ready answers 503
// so load balancers stop routing new chats.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	st := serverstate.Snapshot()
	code := http.StatusOK
	if st.Status != serverstate.StatusReady {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}
