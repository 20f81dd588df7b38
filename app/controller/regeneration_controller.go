package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"armario-estampados/models"
	"armario-estampados/repository"
	"armario-estampados/service"
)

// ReprocessRunner runs one reprocessing batch on demand
type ReprocessRunner interface {
	RunOnce(ctx context.Context) (service.ReprocessReport, error)
}

// RegenerationController handles HTTP requests for server-side HD regeneration
type RegenerationController struct {
	regeneration service.RegenerationServiceInterface
	repository   repository.CustomizationRepositoryInterface
	reprocess    ReprocessRunner
}

// NewRegenerationController creates a new RegenerationController. reprocess may be nil.
func NewRegenerationController(regeneration service.RegenerationServiceInterface, repo repository.CustomizationRepositoryInterface, reprocess ReprocessRunner) *RegenerationController {
	return &RegenerationController{regeneration: regeneration, repository: repo, reprocess: reprocess}
}

// Regenerate handles POST /regenerate
// Example request:
// {
//   "orderId": "ord_123",
//   "customization": {"printSize": "A4", "sides": {"front": {...}, "back": {...}}},
//   "mockupUrls": {"front": "https://cdn.example/hoodie-front.png"},
//   "productInfo": {"productId": "hoodie-basic", "color": "negro"}
// }
// Example response:
// {
//   "front": {"mockupUrl": "https://...", "hdUrl": "https://..."},
//   "back": {"mockupUrl": "", "hdUrl": ""}
// }
func (c *RegenerationController) Regenerate(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("📥 Regenerate request received")

	var req models.RegenerationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := c.regeneration.Regenerate(r.Context(), req, "api")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetFiles handles GET /orders/{orderId}/files
func (c *RegenerationController) GetFiles(w http.ResponseWriter, r *http.Request) {
	result, err := c.regeneration.GetFiles(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetLineItems handles GET /orders/{orderId}/line-items
func (c *RegenerationController) GetLineItems(w http.ResponseWriter, r *http.Request) {
	items, err := c.repository.GetLineItemsByOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// FlagForReprocess handles POST /orders/{orderId}/reprocess
func (c *RegenerationController) FlagForReprocess(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if err := c.repository.FlagForRegeneration(r.Context(), orderID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"orderId": orderID, "status": "pending"})
}

// RunReprocess handles POST /admin/reprocess/run
func (c *RegenerationController) RunReprocess(w http.ResponseWriter, r *http.Request) {
	if c.reprocess == nil {
		http.Error(w, "Reprocessing is not configured", http.StatusNotFound)
		return
	}
	report, err := c.reprocess.RunOnce(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
