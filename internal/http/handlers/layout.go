package handlers

import (
	"net/http"

	"github.com/andreasstove999/bnpl-storefront/internal/layout"
)

// LayoutHandler lets clients without their own layout logic ask where the
// checkout summary card goes.
type LayoutHandler struct {
	Defaults layout.Options
}

type stickyRequest struct {
	Geometry layout.Geometry `json:"geometry"`
	Options  *layout.Options `json:"options,omitempty"`
}

type stickyResponse struct {
	Style *layout.Style `json:"style"`
}

func (h *LayoutHandler) Sticky(w http.ResponseWriter, r *http.Request) {
	var req stickyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	opts := h.Defaults
	if req.Options != nil {
		opts = *req.Options
	}
	writeJSON(w, http.StatusOK, stickyResponse{Style: layout.Compute(req.Geometry, opts)})
}
