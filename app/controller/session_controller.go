package controller

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"armario-estampados/bgremoval"
	"armario-estampados/customization"
	"armario-estampados/models"
	"armario-estampados/service"
	"armario-estampados/transform"
)

// SessionController handles HTTP requests for customization sessions
type SessionController struct {
	sessions service.SessionServiceInterface
}

// NewSessionController creates a new SessionController
func NewSessionController(sessions service.SessionServiceInterface) *SessionController {
	return &SessionController{sessions: sessions}
}

// DesignRequest places or patches the design element of a side.
// Transform is the initial placement and only accepted when the design is created.
type DesignRequest struct {
	SourceURL *string              `json:"sourceUrl"`
	IsVector  *bool                `json:"isVector"`
	Color     *string              `json:"color"`
	Width     *float64             `json:"width"`
	Height    *float64             `json:"height"`
	Transform *transform.Transform `json:"transform"`
}

// ColorsRequest patches the garment colours of a side
type ColorsRequest struct {
	BackgroundColor *string `json:"backgroundColor"`
	MockupColor     *string `json:"mockupColor"`
	MockupURL       *string `json:"mockupUrl"`
}

// TextRequest creates or patches a text element. Transform is only accepted on creation;
// placed texts move through /manipulate.
type TextRequest struct {
	Content   *string              `json:"content"`
	Font      *string              `json:"font"`
	Color     *string              `json:"color"`
	Size      *float64             `json:"size"`
	Transform *transform.Transform `json:"transform"`
}

// CleanBackgroundRequest selects the removal tolerance
type CleanBackgroundRequest struct {
	Tolerance *int `json:"tolerance"`
}

// session resolves the {id} URL parameter
func (c *SessionController) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sess, err := c.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func sideParam(r *http.Request) (models.Side, error) {
	side, err := models.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	return side, nil
}

// Create handles POST /sessions
// Example request:
// POST /sessions
// {
//   "productId": "hoodie-basic",
//   "productType": "BU",
//   "printSize": "A4",
//   "mockupUrls": {"front": "https://cdn.example/hoodie-front.png"},
//   "mockupColor": "negro"
// }
func (c *SessionController) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := c.sessions.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.View())
}

// Get handles GET /sessions/{id}
func (c *SessionController) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// Delete handles DELETE /sessions/{id}
func (c *SessionController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPrintSize handles PUT /sessions/{id}/print-size
func (c *SessionController) SetPrintSize(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	var req struct {
		PrintSize string `json:"printSize"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	size, err := models.ParsePrintSize(req.PrintSize)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err))
		return
	}
	if err := sess.SetPrintSize(size); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// PutDesign handles PUT /sessions/{id}/sides/{side}/design
// Example request:
// {
//   "sourceUrl": "https://cdn.example/designs/dog.png",
//   "isVector": false,
//   "transform": {"position": {"x": 0, "y": -0.1}, "scale": 1, "rotation": 0}
// }
func (c *SessionController) PutDesign(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req DesignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := customization.Patch{
		SourceURL: req.SourceURL,
		IsVector:  req.IsVector,
		Color:     req.Color,
		Width:     req.Width,
		Height:    req.Height,
		Placement: req.Transform,
	}
	if err := sess.Update(side, customization.KindDesign, patch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// DeleteDesign handles DELETE /sessions/{id}/sides/{side}/design
func (c *SessionController) DeleteDesign(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := sess.Manipulate(service.ManipulateRequest{Side: side, Kind: customization.KindDesign, Action: service.ActionRemove}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// PutColors handles PUT /sessions/{id}/sides/{side}/colors
func (c *SessionController) PutColors(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ColorsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := customization.Patch{BackgroundColor: req.BackgroundColor, MockupColor: req.MockupColor, MockupURL: req.MockupURL}
	if err := sess.Update(side, customization.KindColors, patch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// AddText handles POST /sessions/{id}/sides/{side}/texts
func (c *SessionController) AddText(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text := models.TextElement{}
	if req.Content != nil {
		text.Content = *req.Content
	}
	if req.Font != nil {
		text.Font = *req.Font
	}
	if req.Color != nil {
		text.Color = *req.Color
	}
	if req.Size != nil {
		text.Size = *req.Size
	}
	if req.Transform != nil {
		text.Transform = *req.Transform
	}
	id, err := sess.AddText(side, text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateText handles PATCH /sessions/{id}/sides/{side}/texts/{textId}
func (c *SessionController) UpdateText(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := customization.Patch{
		TextID:    chi.URLParam(r, "textId"),
		Content:   req.Content,
		Font:      req.Font,
		Color:     req.Color,
		Size:      req.Size,
		Placement: req.Transform,
	}
	if err := sess.Update(side, customization.KindText, patch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// DeleteText handles DELETE /sessions/{id}/sides/{side}/texts/{textId}
func (c *SessionController) DeleteText(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.RemoveText(side, chi.URLParam(r, "textId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /sessions/{id}/sides/{side}/reset
func (c *SessionController) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Reset(side); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// Manipulate handles POST /sessions/{id}/manipulate
// Example request:
// {"side": "front", "kind": "design", "action": "drag", "dx": 12, "dy": -4}
func (c *SessionController) Manipulate(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	var req service.ManipulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := sess.Manipulate(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transform":       t,
		"displayRotation": transform.DisplayRotation(t.Rotation),
	})
}

// Preview handles GET /sessions/{id}/sides/{side}/preview
func (c *SessionController) Preview(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := sess.Preview(r.Context(), side)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("❌ Failed to write preview")
	}
}

// CleanBackground handles POST /sessions/{id}/sides/{side}/clean-background
func (c *SessionController) CleanBackground(w http.ResponseWriter, r *http.Request) {
	side, err := sideParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CleanBackgroundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tolerance := bgremoval.DefaultTolerance
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}
	url, err := c.sessions.CleanBackground(r.Context(), chi.URLParam(r, "id"), side, tolerance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cleanedUrl": url})
}

// AddToCart handles POST /sessions/{id}/cart
// Example request:
// {"orderId": "ord_123", "qty": 2}
// Example response:
// {
//   "lineItemId": 41,
//   "quote": {"unitPrice": 16000, "lineTotal": 32000, "formatted": "$32.000", ...},
//   "captures": {"front": {"previewUrl": "...", "productionUrl": "..."}},
//   "captureSource": "client",
//   "violations": []
// }
func (c *SessionController) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req service.AddToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := c.sessions.AddToCart(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
