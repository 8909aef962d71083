package api

import (
	"net/http"
)

// ToolsHandler serves GET /api/tools: the same object the agent receives as
// available_functions.
func ToolsHandler(src ToolSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src().Metadata())
	}
}
