package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"armario-estampados/metrics"
	"armario-estampados/models"
)

// Options tunes encoding and upload
type Options struct {
	UploadTimeout  time.Duration
	PreviewMaxEdge int
	PreviewQuality int
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		UploadTimeout:  60 * time.Second,
		PreviewMaxEdge: DefaultPreviewMaxEdge,
		PreviewQuality: DefaultPreviewQuality,
	}
}

// Pipeline validates, rasterizes, encodes and uploads surfaces.
// A pipeline belongs to one session and accepts one run at a time.
type Pipeline struct {
	uploader Uploader
	opts     Options
	inFlight atomic.Bool
}

// NewPipeline creates a Pipeline. Zero option values fall back to DefaultOptions.
func NewPipeline(uploader Uploader, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = def.UploadTimeout
	}
	if opts.PreviewMaxEdge <= 0 {
		opts.PreviewMaxEdge = def.PreviewMaxEdge
	}
	if opts.PreviewQuality <= 0 {
		opts.PreviewQuality = def.PreviewQuality
	}
	return &Pipeline{uploader: uploader, opts: opts}
}

// Busy reports whether a run is in flight
func (p *Pipeline) Busy() bool {
	return p.inFlight.Load()
}

func (p *Pipeline) acquire() error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (p *Pipeline) release() {
	p.inFlight.Store(false)
}

// Capture runs a single surface through the pipeline
func (p *Pipeline) Capture(ctx context.Context, orderID string, s Surface, variant models.CaptureVariant) (models.CaptureArtifact, error) {
	if err := p.acquire(); err != nil {
		return models.CaptureArtifact{}, err
	}
	defer p.release()

	if err := s.IsReady(); err != nil {
		return models.CaptureArtifact{}, p.notReady(s, variant, err)
	}
	return p.capture(ctx, orderID, s, variant)
}

// Run captures every target in order. All surfaces are validated before the first upload so
// a stale or empty side never leaves a partial set of remote files behind.
func (p *Pipeline) Run(ctx context.Context, orderID string, targets []Target) ([]models.CaptureArtifact, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: nothing to capture", ErrNotReady)
	}
	for _, t := range targets {
		if err := t.Surface.IsReady(); err != nil {
			return nil, p.notReady(t.Surface, t.Variant, err)
		}
	}

	artifacts := make([]models.CaptureArtifact, 0, len(targets))
	for _, t := range targets {
		a, err := p.capture(ctx, orderID, t.Surface, t.Variant)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, a)
	}
	log.Info().Str("order_id", orderID).Int("artifacts", len(artifacts)).Msg("✅ Capture run completed")
	return artifacts, nil
}

func (p *Pipeline) notReady(s Surface, variant models.CaptureVariant, err error) error {
	metrics.RecordCapture(string(variant), "not_ready", 0)
	if !errors.Is(err, ErrNotReady) {
		err = fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return fmt.Errorf("%s %s surface: %w", s.Side(), variant, err)
}

func (p *Pipeline) capture(ctx context.Context, orderID string, s Surface, variant models.CaptureVariant) (models.CaptureArtifact, error) {
	start := time.Now()
	artifact := models.CaptureArtifact{Side: s.Side(), Variant: variant, Status: models.CaptureStatusPending}

	img, err := s.Rasterize(ctx)
	if err != nil {
		metrics.RecordCapture(string(variant), "rasterize_failed", time.Since(start))
		return artifact, fmt.Errorf("failed to rasterize %s %s surface: %w", s.Side(), variant, err)
	}

	switch variant {
	case models.VariantPreview:
		artifact.ContentType = "image/jpeg"
		artifact.Data, err = EncodePreview(img, p.opts.PreviewMaxEdge, p.opts.PreviewQuality)
	case models.VariantProduction:
		artifact.ContentType = "image/png"
		artifact.Data, err = EncodeProduction(img)
	default:
		err = fmt.Errorf("unknown capture variant %q", variant)
	}
	if err != nil {
		metrics.RecordCapture(string(variant), "encode_failed", time.Since(start))
		return artifact, err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, p.opts.UploadTimeout)
	defer cancel()

	url, err := p.uploader.Upload(uploadCtx, UploadRequest{
		OrderID:     orderID,
		Side:        artifact.Side,
		Variant:     variant,
		Key:         objectKey(orderID, artifact.Side, variant),
		ContentType: artifact.ContentType,
		Data:        artifact.Data,
	})
	if err != nil {
		artifact.Status = models.CaptureStatusFailed
		metrics.RecordCapture(string(variant), "upload_failed", time.Since(start))
		log.Error().Err(err).Str("order_id", orderID).Str("side", string(artifact.Side)).Str("variant", string(variant)).Msg("❌ Capture upload failed")
		return artifact, &UploadError{Side: artifact.Side, Variant: variant, OrderID: orderID, Err: err}
	}

	artifact.RemoteURL = url
	artifact.Status = models.CaptureStatusUploaded
	metrics.RecordCapture(string(variant), "uploaded", time.Since(start))
	log.Info().Str("side", string(artifact.Side)).Str("variant", string(variant)).Int("bytes", len(artifact.Data)).Msg("📤 Capture uploaded")
	return artifact, nil
}

func objectKey(orderID string, side models.Side, variant models.CaptureVariant) string {
	ext := "png"
	if variant == models.VariantPreview {
		ext = "jpg"
	}
	prefix := orderID
	if prefix == "" {
		prefix = "draft"
	}
	return fmt.Sprintf("%s/%s-%s-%s.%s", prefix, side, variant, uuid.NewString(), ext)
}

// URLs groups uploaded artifacts per side
func URLs(artifacts []models.CaptureArtifact) map[models.Side]models.SideCaptureURLs {
	out := make(map[models.Side]models.SideCaptureURLs)
	for _, a := range artifacts {
		if a.Status != models.CaptureStatusUploaded {
			continue
		}
		u := out[a.Side]
		switch a.Variant {
		case models.VariantPreview:
			u.PreviewURL = a.RemoteURL
		case models.VariantProduction:
			u.ProductionURL = a.RemoteURL
		}
		out[a.Side] = u
	}
	return out
}
