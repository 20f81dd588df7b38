package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"armario-estampados/capture"
	"armario-estampados/compositor"
	"armario-estampados/customization"
	"armario-estampados/manipulation"
	"armario-estampados/metrics"
	"armario-estampados/models"
	"armario-estampados/pricing"
	"armario-estampados/repository"
	"armario-estampados/transform"
)

// DefaultSessionTTL is how long an untouched session survives the sweep
const DefaultSessionTTL = 2 * time.Hour

// SessionOptions configures every session the service creates
type SessionOptions struct {
	PreviewSize    int
	ProductionSize int
	Capture        capture.Options
	BoundsPolicy   manipulation.BoundsPolicy
	TTL            time.Duration
}

// Session is one product in configuration. It owns the state store and everything that
// reads from it. UI operations are serialized by mu.
type Session struct {
	ID          string
	ProductID   string
	ProductType string
	CreatedAt   time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	checkout   atomic.Bool
	store      *customization.Store
	controller *manipulation.Controller
	compositor *compositor.Compositor
	pipeline   *capture.Pipeline
}

// SessionView is the JSON representation of a session
type SessionView struct {
	ID          string                    `json:"id"`
	ProductID   string                    `json:"productId"`
	ProductType string                    `json:"productType"`
	State       models.CustomizationState `json:"state"`
	Violations  []customization.Violation `json:"violations"`
	Focus       string                    `json:"focus"`
	CreatedAt   string                    `json:"createdAt"`
}

// View snapshots the session
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	violations := s.store.Validate()
	if violations == nil {
		violations = []customization.Violation{}
	}
	return SessionView{
		ID:          s.ID,
		ProductID:   s.ProductID,
		ProductType: s.ProductType,
		State:       s.store.Snapshot(),
		Violations:  violations,
		Focus:       s.controller.State().String(),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
}

// Store exposes the session's single source of truth
func (s *Session) Store() *customization.Store { return s.store }

// Update merges a patch into one element. Transforms are never overwritten from outside:
// an initial Placement is accepted on creation, every later change goes through Manipulate.
func (s *Session) Update(side models.Side, kind customization.ElementKind, patch customization.Patch) error {
	if patch.Transform != nil {
		return fmt.Errorf("%w: transform changes go through manipulate", ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Update(side, kind, patch)
}

// AddText places a new text element and returns its id
func (s *Session) AddText(side models.Side, text models.TextElement) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AddText(side, text)
}

// RemoveText deletes a text element
func (s *Session) RemoveText(side models.Side, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.controller.Target(); ok && t.Kind == customization.KindText && t.TextID == id {
		s.controller.Deselect()
	}
	return s.store.RemoveText(side, id)
}

// Reset clears one side
func (s *Session) Reset(side models.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.Deselect()
	return s.store.Reset(side)
}

// SetPrintSize changes the print size tier
func (s *Session) SetPrintSize(size models.PrintSize) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetPrintSize(size)
}

// Manipulation actions accepted by Manipulate
const (
	ActionDrag      = "drag"
	ActionScale     = "scale"
	ActionRotate    = "rotate"
	ActionScaleUp   = "scale_up"
	ActionScaleDown = "scale_down"
	ActionRotateCW  = "rotate_cw"
	ActionRotateCCW = "rotate_ccw"
	ActionRemove    = "remove"
	ActionSelect    = "select"
	ActionDeselect  = "deselect"
)

// ManipulateRequest is one complete gesture or button press on an element
type ManipulateRequest struct {
	Side   models.Side               `json:"side"`
	Kind   customization.ElementKind `json:"kind"`
	TextID string                    `json:"textId,omitempty"`
	Action string                    `json:"action"`
	DX     float64                   `json:"dx,omitempty"`    // preview pixels
	DY     float64                   `json:"dy,omitempty"`    // preview pixels
	Delta  float64                   `json:"delta,omitempty"` // scale units or degrees
}

// Manipulate focuses the addressed element and runs the action through the controller.
// Continuous gestures are begun and ended within the call. The returned transform is the
// committed one; it is zero after a remove.
func (s *Session) Manipulate(req ManipulateRequest) (transform.Transform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.controller
	if req.Action == ActionDeselect {
		c.Deselect()
		return transform.Transform{}, nil
	}
	if c.State() != manipulation.Idle && c.State() != manipulation.Selected {
		c.Deselect()
	}
	if err := c.Select(manipulation.Target{Side: req.Side, Kind: req.Kind, TextID: req.TextID}); err != nil {
		return transform.Transform{}, err
	}

	var err error
	switch req.Action {
	case ActionSelect:
	case ActionDrag:
		err = gesture(c.BeginDrag, func() error { return c.Drag(req.DX, req.DY) }, c.End)
	case ActionScale:
		err = gesture(c.BeginScale, func() error { return c.Scale(req.Delta) }, c.End)
	case ActionRotate:
		err = gesture(c.BeginRotate, func() error { return c.Rotate(req.Delta) }, c.End)
	case ActionScaleUp:
		err = c.ScaleUp()
	case ActionScaleDown:
		err = c.ScaleDown()
	case ActionRotateCW:
		err = c.RotateClockwise()
	case ActionRotateCCW:
		err = c.RotateCounterClockwise()
	case ActionRemove:
		return transform.Transform{}, c.Remove()
	default:
		return transform.Transform{}, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Action)
	}
	if err != nil {
		return transform.Transform{}, err
	}
	return s.transformOf(req.Side, req.Kind, req.TextID)
}

func gesture(begin, step, end func() error) error {
	if err := begin(); err != nil {
		return err
	}
	if err := step(); err != nil {
		_ = end()
		return err
	}
	return end()
}

func (s *Session) transformOf(side models.Side, kind customization.ElementKind, textID string) (transform.Transform, error) {
	st, _, err := s.store.SideSnapshot(side)
	if err != nil {
		return transform.Transform{}, err
	}
	if kind == customization.KindDesign && st.Design != nil {
		return st.Design.Transform, nil
	}
	for _, t := range st.Texts {
		if t.ID == textID {
			return t.Transform, nil
		}
	}
	return transform.Transform{}, fmt.Errorf("%w: %s %s", customization.ErrUnknownTarget, side, kind)
}

// Preview paints the side and returns the preview surface as JPEG. A side without elements
// still shows the bare garment.
func (s *Session) Preview(ctx context.Context, side models.Side) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.compositor.Paint(ctx, side); err != nil {
		return nil, err
	}
	surface, err := s.compositor.Surface(side, models.VariantPreview)
	if err != nil {
		return nil, err
	}
	var img image.Image
	img, err = surface.Rasterize(ctx)
	if errors.Is(err, capture.ErrNotReady) {
		st, _, serr := s.store.SideSnapshot(side)
		if serr != nil {
			return nil, serr
		}
		if st.Empty() {
			size := s.compositor.PreviewSize()
			img, err = s.compositor.Render(ctx, st, size, size, true)
		}
	}
	if err != nil {
		return nil, err
	}
	return capture.EncodePreview(img, s.compositor.PreviewSize(), capture.DefaultPreviewQuality)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// CreateSessionRequest starts a configuration
type CreateSessionRequest struct {
	ProductID   string                 `json:"productId"`
	ProductType string                 `json:"productType"`
	PrintSize   string                 `json:"printSize"`
	Sides       []string               `json:"sides,omitempty"`
	MockupURLs  map[models.Side]string `json:"mockupUrls,omitempty"`
	MockupColor string                 `json:"mockupColor,omitempty"`
}

// AddToCartRequest is the checkout capture input
type AddToCartRequest struct {
	OrderID string `json:"orderId"`
	Qty     int    `json:"qty"`
}

// AddToCartResult is what the cart receives for the line item
type AddToCartResult struct {
	LineItemID    int64                                  `json:"lineItemId"`
	Quote         *models.PricingQuote                   `json:"quote"`
	Captures      map[models.Side]models.SideCaptureURLs `json:"captures"`
	CaptureSource string                                 `json:"captureSource"`
	Violations    []customization.Violation              `json:"violations"`
}

// SessionService keeps configuration sessions in memory
// Implements SessionServiceInterface
type SessionService struct {
	loader     compositor.ImageLoader
	fonts      *compositor.FontBook
	storage    Storage
	background *BackgroundService
	pricing    *pricing.Engine
	repo       repository.CustomizationRepositoryInterface
	fallback   Regenerator
	opts       SessionOptions
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a new SessionService. fallback may be nil.
func NewSessionService(
	loader compositor.ImageLoader,
	fonts *compositor.FontBook,
	storage Storage,
	background *BackgroundService,
	engine *pricing.Engine,
	repo repository.CustomizationRepositoryInterface,
	fallback Regenerator,
	opts SessionOptions,
) *SessionService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.Capture == (capture.Options{}) {
		opts.Capture = capture.DefaultOptions()
	}
	return &SessionService{
		loader:     loader,
		fonts:      fonts,
		storage:    storage,
		background: background,
		pricing:    engine,
		repo:       repo,
		fallback:   fallback,
		opts:       opts,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

// Ensure SessionService implements SessionServiceInterface
var _ SessionServiceInterface = (*SessionService)(nil)

// Create starts a session with an empty state for the requested sides
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, fmt.Errorf("%w: productId is required", ErrInvalidRequest)
	}
	size, err := models.ParsePrintSize(req.PrintSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	var sides []models.Side
	for _, raw := range req.Sides {
		side, err := models.ParseSide(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		sides = append(sides, side)
	}

	store, err := customization.New(size, sides...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for side, url := range req.MockupURLs {
		patch := customization.Patch{MockupURL: &url}
		if req.MockupColor != "" {
			patch.MockupColor = &req.MockupColor
		}
		if err := store.Update(side, customization.KindColors, patch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	comp := compositor.New(store, s.loader, s.fonts, compositor.Options{
		PreviewSize:    s.opts.PreviewSize,
		ProductionSize: s.opts.ProductionSize,
	})
	now := s.now()
	sess := &Session{
		ID:          uuid.NewString(),
		ProductID:   req.ProductID,
		ProductType: req.ProductType,
		CreatedAt:   now,
		lastSeen:    now,
		store:       store,
		controller: manipulation.New(store,
			manipulation.WithBoundsPolicy(s.opts.BoundsPolicy),
			manipulation.WithSurfaceSize(comp.PreviewSize(), comp.PreviewSize())),
		compositor: comp,
		pipeline:   capture.NewPipeline(s.storage, s.opts.Capture),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	metrics.SetActiveSessions(count)

	log.Info().Str("session_id", sess.ID).Str("product_id", req.ProductID).Str("print_size", string(size)).Msg("🆕 Customization session created")
	return sess, nil
}

// Get returns a live session and marks it as used
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// Delete ends a session
func (s *SessionService) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.background != nil {
		s.background.Forget(id)
	}
	metrics.SetActiveSessions(count)
	log.Info().Str("session_id", id).Msg("🗑️  Customization session deleted")
	return nil
}

// Sweep removes sessions idle for longer than the TTL and returns how many it removed
func (s *SessionService) Sweep() int {
	cutoff := s.now().Add(-s.opts.TTL)
	var expired []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) && !sess.checkout.Load() {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	for _, id := range expired {
		if s.background != nil {
			s.background.Forget(id)
		}
	}
	metrics.SetActiveSessions(count)
	if len(expired) > 0 {
		log.Info().Int("expired", len(expired)).Int("active", count).Msg("🧹 Expired customization sessions")
	}
	return len(expired)
}

// Count returns the number of live sessions
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanBackground runs a background removal pass on the side's design
func (s *SessionService) CleanBackground(ctx context.Context, id string, side models.Side, tolerance int) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if s.background == nil {
		return "", fmt.Errorf("%w: background removal is not configured", ErrInvalidRequest)
	}
	return s.background.Clean(ctx, sess.store, sess.ID, side, tolerance)
}

// AddToCart paints every customized side, captures preview and production files in one
// pipeline run and persists the line item. Capture failures that are transient fall back to
// server-side regeneration when one is configured; nothing is persisted otherwise.
func (s *SessionService) AddToCart(ctx context.Context, id string, req AddToCartRequest) (*AddToCartResult, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !sess.checkout.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: checkout already in progress for session %s", capture.ErrBusy, id)
	}
	defer sess.checkout.Store(false)

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrInvalidRequest)
	}
	if req.Qty <= 0 {
		req.Qty = 1
	}

	snap, err := paintForCheckout(ctx, sess)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.Quote(pricing.QuoteInput{
		ProductType: sess.ProductType,
		ProductID:   sess.ProductID,
		PrintSize:   snap.state.PrintSize,
		Sides:       len(snap.sides),
		Qty:         req.Qty,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	log.Info().Str("session_id", id).Str("order_id", orderID).Int("sides", len(snap.sides)).Msg("🛒 Add to cart started")

	captures, source, err := s.captureSides(ctx, sess, orderID, snap)
	if err != nil {
		return nil, err
	}

	item := &models.LineItemCustomization{
		OrderID:       orderID,
		ProductID:     sess.ProductID,
		PrintSize:     snap.state.PrintSize,
		UnitPrice:     quote.UnitPrice,
		Customization: snap.serialized,
		Captures:      captures,
		CaptureSource: source,
	}
	lineItemID, err := s.repo.SaveLineItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to save line item: %w", err)
	}

	violations := customization.Violations(snap.state)
	if violations == nil {
		violations = []customization.Violation{}
	}
	log.Info().Str("session_id", id).Str("order_id", orderID).Int64("line_item_id", lineItemID).Str("source", source).Msg("✅ Added to cart")
	return &AddToCartResult{
		LineItemID:    lineItemID,
		Quote:         quote,
		Captures:      captures,
		CaptureSource: source,
		Violations:    violations,
	}, nil
}

// checkoutSnapshot is the state a checkout captures. It is taken together with the paint
// so the persisted line item always describes what was rasterized.
type checkoutSnapshot struct {
	sides      []models.Side
	state      models.CustomizationState
	serialized []byte
	revisions  map[models.Side]uint64
}

func paintForCheckout(ctx context.Context, sess *Session) (*checkoutSnapshot, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sides := sess.compositor.CustomizedSides()
	if len(sides) == 0 {
		return nil, fmt.Errorf("%w: no customized side to capture", capture.ErrNotReady)
	}
	for _, side := range sides {
		if err := sess.compositor.Paint(ctx, side); err != nil {
			return nil, err
		}
	}

	// revisions first: a change landing before the snapshot then fails the post-capture check
	revisions := make(map[models.Side]uint64)
	for _, side := range sess.store.Sides() {
		revisions[side] = sess.store.Revision(side)
	}
	state := sess.store.Snapshot()
	serialized, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize customization: %w", err)
	}
	return &checkoutSnapshot{sides: sides, state: state, serialized: serialized, revisions: revisions}, nil
}

// changed reports whether any side moved past the revision the snapshot was taken at
func (c *checkoutSnapshot) changed(store *customization.Store) bool {
	for side, rev := range c.revisions {
		if store.Revision(side) != rev {
			return true
		}
	}
	return false
}

func (s *SessionService) captureSides(ctx context.Context, sess *Session, orderID string, snap *checkoutSnapshot) (map[models.Side]models.SideCaptureURLs, string, error) {
	targets, err := sess.compositor.Targets(snap.sides...)
	if err != nil {
		return nil, "", err
	}
	artifacts, err := sess.pipeline.Run(ctx, orderID, targets)
	if err == nil {
		if snap.changed(sess.store) {
			s.discard(ctx, artifacts)
			return nil, "", fmt.Errorf("%w: customization changed during capture", capture.ErrNotReady)
		}
		return capture.URLs(artifacts), "client", nil
	}
	s.discard(ctx, artifacts)
	if !capture.IsTransient(err) || s.fallback == nil {
		return nil, "", err
	}

	log.Warn().Err(err).Str("order_id", orderID).Msg("⚠️  Client capture failed, falling back to server regeneration")
	result, ferr := s.fallback.Regenerate(ctx, models.RegenerationRequest{
		OrderID:       orderID,
		Customization: snap.state,
		ProductInfo:   models.ProductInfo{ProductID: sess.ProductID},
	})
	if ferr != nil {
		return nil, "", fmt.Errorf("%w (regeneration fallback failed: %v)", err, ferr)
	}
	captures := make(map[models.Side]models.SideCaptureURLs, len(snap.sides))
	for _, side := range snap.sides {
		files := result.For(side)
		captures[side] = models.SideCaptureURLs{PreviewURL: files.MockupURL, ProductionURL: files.HDURL}
	}
	return captures, "regeneration", nil
}

// discard deletes the uploaded artifacts of an abandoned capture run, best-effort
func (s *SessionService) discard(ctx context.Context, artifacts []models.CaptureArtifact) {
	timeout := s.opts.Capture.UploadTimeout
	if timeout <= 0 {
		timeout = capture.DefaultOptions().UploadTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	for _, a := range artifacts {
		if a.RemoteURL == "" {
			continue
		}
		if err := s.storage.Delete(ctx, a.RemoteURL); err != nil {
			log.Warn().Err(err).Str("url", a.RemoteURL).Msg("⚠️  Failed to delete abandoned capture")
		}
	}
}
