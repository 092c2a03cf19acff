package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/erp-billing/internal/common"
)

// Handler exposes the audit trail of a bill.
type Handler struct {
	Service Service
}

// List returns a page of audit entries for the bill in the URL.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Enabled {
		common.JSONError(w, http.StatusNotFound, "AUDIT_DISABLED", "audit trail is not enabled", nil)
		return
	}
	q := common.ParsePageQuery(r, 50, 200)
	entries, err := h.Service.List(r.Context(), chi.URLParam(r, "id"), q.Size, q.Page*q.Size)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit entries", nil)
		return
	}
	common.JSON(w, http.StatusOK, entries)
}
