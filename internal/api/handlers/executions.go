package handlers

import (
	"net/http"

	"flowcanvas/internal/common"
	"flowcanvas/internal/designs"

	"github.com/go-chi/chi/v5"
)

// ExecuteDesign handles POST /designs/{id}/execute. It returns the pending
// execution immediately; the engine drives it in the background.
func (h *Handler) ExecuteDesign(w http.ResponseWriter, r *http.Request) {
	req := &designs.ExecuteRequest{}
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, req); err != nil {
			common.WriteError(w, r, err)
			return
		}
	}

	execution, err := h.service.Execute(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusAccepted, execution)
}

// GetExecution handles GET /executions/{executionID}.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := h.service.GetExecution(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, execution)
}

// ListExecutions handles GET /designs/{id}/executions.
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := &designs.ExecutionFilter{
		PaginationRequest: parsePagination(r),
		DesignID:          chi.URLParam(r, "id"),
		Status:            r.URL.Query().Get("status"),
	}

	items, total, err := h.service.ListExecutions(r.Context(), filter)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if items == nil {
		items = []*designs.Execution{}
	}
	meta := common.NewPaginationResponse(filter.Page, filter.PageSize, total)
	common.WriteJSONWithMeta(w, r, http.StatusOK, items, meta)
}

// CancelExecution handles POST /executions/{executionID}/cancel. By the time
// the response goes out the execution is in a terminal state.
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := h.service.CancelExecution(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, execution)
}
