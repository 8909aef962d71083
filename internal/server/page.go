package server

import (
	_ "embed"
	"net/http"
)

//go:embed chat.html
var chatHTML []byte

// ChatPageHandler serves the embedded chat page.
func ChatPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(chatHTML)
	}
}
