package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

// InternalHandlers serve scheduler-triggered maintenance. The route group is guarded by OIDC
// service-to-service authentication.
type InternalHandlers struct {
	system services.SystemService
}

// NewInternalHandlers constructs internal maintenance handlers.
func NewInternalHandlers(system services.SystemService) *InternalHandlers {
	return &InternalHandlers{system: system}
}

// Routes registers /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/maintenance/cleanup", h.cleanup)
}

type cleanupResponse struct {
	IdempotencyKeys int `json:"idempotency_keys"`
	GuestCarts      int `json:"guest_carts"`
}

func (h *InternalHandlers) cleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		writeUnavailable(ctx, w, "maintenance")
		return
	}
	result, err := h.system.Cleanup(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cleanupResponse{
		IdempotencyKeys: result.IdempotencyKeys,
		GuestCarts:      result.GuestCarts,
	})
}
