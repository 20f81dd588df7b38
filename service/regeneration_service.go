package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"armario-estampados/cache"
	"armario-estampados/capture"
	"armario-estampados/customization"
	"armario-estampados/metrics"
	"armario-estampados/models"
	"armario-estampados/repository"
)

// orderFilesTTL bounds how long a generated file set is served from cache
const orderFilesTTL = 24 * time.Hour

// RegenerationOptions sizes regenerated outputs
type RegenerationOptions struct {
	ProductionSize int
	PreviewSize    int
	PreviewQuality int
}

// RegenerationService rebuilds production files from persisted customization only
// Implements RegenerationServiceInterface
type RegenerationService struct {
	renderer Renderer
	storage  Storage
	repo     repository.CustomizationRepositoryInterface
	cache    cache.Store
	opts     RegenerationOptions
}

// NewRegenerationService creates a new RegenerationService
func NewRegenerationService(renderer Renderer, storage Storage, repo repository.CustomizationRepositoryInterface, store cache.Store, opts RegenerationOptions) *RegenerationService {
	if opts.ProductionSize <= 0 {
		opts.ProductionSize = 3500
	}
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = capture.DefaultPreviewMaxEdge
	}
	if opts.PreviewQuality <= 0 {
		opts.PreviewQuality = capture.DefaultPreviewQuality
	}
	return &RegenerationService{renderer: renderer, storage: storage, repo: repo, cache: store, opts: opts}
}

// Ensure RegenerationService implements RegenerationServiceInterface
var _ RegenerationServiceInterface = (*RegenerationService)(nil)

// Fallback exposes the service as a checkout Regenerator running in-process
func (s *RegenerationService) Fallback() Regenerator {
	return RegeneratorFunc(func(ctx context.Context, req models.RegenerationRequest) (*models.RegenerationResult, error) {
		return s.Regenerate(ctx, req, "checkout")
	})
}

// Regenerate renders every customized side at production size (transparent, no garment) and
// as a garment mockup, uploads both and swaps them in for the order's previous files
func (s *RegenerationService) Regenerate(ctx context.Context, req models.RegenerationRequest, trigger string) (result *models.RegenerationResult, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordRegeneration(trigger, time.Since(start), err == nil)
	}()

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrInvalidRequest)
	}
	state, err := customization.Normalize(req.Customization)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	log.Info().Str("order_id", orderID).Str("trigger", trigger).Msg("🔄 Starting HD regeneration")

	var sides []models.Side
	for _, side := range models.AllSides {
		st := state.Sides[side]
		if st.Empty() {
			continue
		}
		if u, ok := req.MockupURLs[side]; ok && u != "" {
			st.MockupURL = u
		}
		if st.MockupColor == "" {
			st.MockupColor = req.ProductInfo.Color
		}
		sides = append(sides, side)
	}
	if len(sides) == 0 {
		return nil, fmt.Errorf("%w: order %s", ErrNothingToRender, orderID)
	}

	var (
		mu       sync.Mutex
		files    []models.GeneratedFile
		uploaded []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, side := range sides {
		st := state.Sides[side]
		g.Go(func() error {
			hdURL, err := s.renderAndUpload(gctx, orderID, side, st, models.VariantProduction)
			if hdURL != "" {
				mu.Lock()
				uploaded = append(uploaded, hdURL)
				mu.Unlock()
			}
			if err != nil {
				return err
			}
			mockupURL, err := s.renderAndUpload(gctx, orderID, side, st, models.VariantPreview)
			if mockupURL != "" {
				mu.Lock()
				uploaded = append(uploaded, mockupURL)
				mu.Unlock()
			}
			if err != nil {
				return err
			}

			mu.Lock()
			files = append(files, models.GeneratedFile{OrderID: orderID, Side: side, MockupURL: mockupURL, HDURL: hdURL})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.deleteAll(ctx, uploaded)
		return nil, err
	}

	previous, err := s.repo.ReplaceGeneratedFiles(ctx, orderID, files)
	if err != nil {
		s.deleteAll(ctx, uploaded)
		return nil, fmt.Errorf("failed to persist generated files: %w", err)
	}

	keep := make(map[string]bool, len(uploaded))
	for _, u := range uploaded {
		keep[u] = true
	}
	var stale []string
	for _, f := range previous {
		for _, u := range []string{f.HDURL, f.MockupURL} {
			if u != "" && !keep[u] {
				stale = append(stale, u)
			}
		}
	}
	s.deleteAll(ctx, stale)

	result = resultFromFiles(files)
	s.storeCached(ctx, orderID, result)

	log.Info().Str("order_id", orderID).Int("sides", len(files)).Dur("took", time.Since(start)).Msg("🎉 HD regeneration completed")
	return result, nil
}

// renderAndUpload returns the URL of anything it uploaded even when it fails afterwards
func (s *RegenerationService) renderAndUpload(ctx context.Context, orderID string, side models.Side, st *models.SideState, variant models.CaptureVariant) (string, error) {
	var (
		data        []byte
		contentType string
		key         string
	)
	switch variant {
	case models.VariantProduction:
		img, err := s.renderer.RenderSide(ctx, st, s.opts.ProductionSize, false)
		if err != nil {
			return "", fmt.Errorf("failed to render %s production file: %w", side, err)
		}
		if data, err = capture.EncodeProduction(img); err != nil {
			return "", err
		}
		contentType = "image/png"
		key = fmt.Sprintf("%s/regenerated/%s-hd-%s.png", orderID, side, uuid.NewString())
	default:
		img, err := s.renderer.RenderSide(ctx, st, s.opts.PreviewSize, true)
		if err != nil {
			return "", fmt.Errorf("failed to render %s mockup: %w", side, err)
		}
		if data, err = capture.EncodePreview(img, s.opts.PreviewSize, s.opts.PreviewQuality); err != nil {
			return "", err
		}
		contentType = "image/jpeg"
		key = fmt.Sprintf("%s/regenerated/%s-mockup-%s.jpg", orderID, side, uuid.NewString())
	}

	url, err := s.storage.Upload(ctx, capture.UploadRequest{
		OrderID:     orderID,
		Side:        side,
		Variant:     variant,
		Key:         key,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return "", &capture.UploadError{Side: side, Variant: variant, OrderID: orderID, Err: err}
	}
	log.Debug().Str("order_id", orderID).Str("side", string(side)).Str("variant", string(variant)).Msg("📤 Regenerated file uploaded")
	return url, nil
}

func (s *RegenerationService) deleteAll(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := s.storage.Delete(ctx, u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("⚠️  Failed to delete generated file")
		}
	}
}

// RegenerateOrder regenerates from the order's most recent customized line item.
// Generated files are keyed by order and side, so an order keeps one file set.
func (s *RegenerationService) RegenerateOrder(ctx context.Context, orderID string, trigger string) (*models.RegenerationResult, error) {
	items, err := s.repo.GetLineItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}
	latest := items[len(items)-1]

	var state models.CustomizationState
	if err := json.Unmarshal(latest.Customization, &state); err != nil {
		return nil, fmt.Errorf("%w: stored customization of line item %d: %v", ErrInvalidRequest, latest.ID, err)
	}

	return s.Regenerate(ctx, models.RegenerationRequest{
		OrderID:       orderID,
		Customization: state,
		ProductInfo:   models.ProductInfo{ProductID: latest.ProductID},
	}, trigger)
}

// GetFiles serves the order's generated files, cache first
func (s *RegenerationService) GetFiles(ctx context.Context, orderID string) (*models.RegenerationResult, error) {
	key := cache.Key{Entity: cache.EntityOrderFiles, ID: orderID}
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("⚠️  Cache read failed")
		} else if ok {
			var cached models.RegenerationResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	files, err := s.repo.ListGeneratedFiles(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrOrderNotFound, orderID)
	}
	result := resultFromFiles(files)
	s.storeCached(ctx, orderID, result)
	return result, nil
}

func (s *RegenerationService) storeCached(ctx context.Context, orderID string, result *models.RegenerationResult) {
	if s.cache == nil {
		return
	}
	key := cache.Key{Entity: cache.EntityOrderFiles, ID: orderID}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("⚠️  Cache invalidation failed")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, orderFilesTTL); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("⚠️  Cache write failed")
	}
}

func resultFromFiles(files []models.GeneratedFile) *models.RegenerationResult {
	result := &models.RegenerationResult{}
	for _, f := range files {
		result.Set(f.Side, models.SideFiles{MockupURL: f.MockupURL, HDURL: f.HDURL})
	}
	return result
}

// IsNotFound reports whether err means the order has nothing persisted
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrOrderNotFound) || errors.Is(err, ErrSessionNotFound)
}
