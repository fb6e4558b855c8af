// Package site serves the embedded landing pages under /docs/.
package site

import (
	"context"
	"errors"
	"net/http"
)

// Error constants
var (
	ErrServe = errors.New("docs site serve failed")
)

// Register attaches the docs site routes to mux. /docs redirects to /docs/.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/docs/", NewRootHandler())
}

// RootHandler serves the embedded site files.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.StripPrefix("/docs/", http.FileServer(FS()))}
}

// ServeHTTP handles GET /docs/ requests.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, ErrServe.Error(), http.StatusMethodNotAllowed)
		return
	}
	h.files.ServeHTTP(w, r)
}
