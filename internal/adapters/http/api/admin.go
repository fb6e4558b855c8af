package api

import (
	"context"
	"net/http"

	"github.com/okian/tally/internal/domain/types"
)

// AdminDependencies defines the interface for administrative operations.
type AdminDependencies interface {
	DeleteAll(ctx context.Context) (types.DeleteSummary, error)
}

// AdminHandler handles administrative requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleDeleteAll handles DELETE /admin/data requests. Writes racing the
// delete may or may not survive it.
func (h *AdminHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_all"
	if !allow(w, r, op, http.MethodDelete) {
		return
	}
	res, err := h.deps.DeleteAll(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
