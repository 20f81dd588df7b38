package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"armario-estampados/asset"
	"armario-estampados/bgremoval"
	"armario-estampados/capture"
	"armario-estampados/compositor"
	"armario-estampados/customization"
	"armario-estampados/metrics"
	"armario-estampados/models"
)

type passKey struct {
	scope string
	side  models.Side
}

// BackgroundService runs background removal passes for a design element and writes the
// cleaned derivative back to the store. Passes are numbered per scope and side; only the
// newest pass may write.
type BackgroundService struct {
	loader  compositor.ImageLoader
	storage Storage

	mu     sync.Mutex
	passes map[passKey]uint64
}

// NewBackgroundService creates a new BackgroundService
func NewBackgroundService(loader compositor.ImageLoader, storage Storage) *BackgroundService {
	return &BackgroundService{loader: loader, storage: storage, passes: make(map[passKey]uint64)}
}

func (b *BackgroundService) begin(k passKey) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passes[k]++
	return b.passes[k]
}

// Forget drops the pass counters of a scope
func (b *BackgroundService) Forget(scope string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.passes {
		if k.scope == scope {
			delete(b.passes, k)
		}
	}
}

// Clean removes the flat background of the side's design and stores the cleaned URL.
// It always starts from the original source, so re-running with another tolerance never
// compounds. A pass overtaken by a newer one, or by a design change, returns ErrSuperseded.
func (b *BackgroundService) Clean(ctx context.Context, store *customization.Store, scope string, side models.Side, tolerance int) (url string, err error) {
	defer func() {
		metrics.RecordBackgroundRemoval(backgroundOutcome(err))
	}()

	if err := bgremoval.ValidateTolerance(tolerance); err != nil {
		return "", err
	}
	st, _, err := store.SideSnapshot(side)
	if err != nil {
		return "", err
	}
	if st.Design == nil {
		return "", fmt.Errorf("%w: %s has no design element", customization.ErrUnknownTarget, side)
	}
	source := st.Design.SourceURL

	k := passKey{scope: scope, side: side}
	seq := b.begin(k)
	log.Info().Str("scope", scope).Str("side", string(side)).Uint64("pass", seq).Int("tolerance", tolerance).Msg("🧹 Background removal started")

	src, err := b.loader.Load(ctx, source)
	if err != nil {
		return "", fmt.Errorf("failed to load design: %w", err)
	}
	cleaned, err := bgremoval.RemoveFlatBackground(src, tolerance)
	if err != nil {
		return "", err
	}
	data, err := capture.EncodeProduction(cleaned)
	if err != nil {
		return "", err
	}
	if !b.current(k, seq) {
		return "", ErrSuperseded
	}

	url, err = b.storage.Upload(ctx, capture.UploadRequest{
		Side:        side,
		Variant:     models.VariantProduction,
		Key:         fmt.Sprintf("drafts/%s/%s-cleaned-%s.png", scope, side, uuid.NewString()),
		ContentType: "image/png",
		Data:        data,
	})
	if err != nil {
		return "", &capture.UploadError{Side: side, Variant: models.VariantProduction, Err: err}
	}

	if err := b.commit(store, k, seq, side, source, url); err != nil {
		if derr := b.storage.Delete(ctx, url); derr != nil {
			log.Warn().Err(derr).Str("url", url).Msg("⚠️  Failed to delete discarded cleaned design")
		}
		return "", err
	}
	log.Info().Str("scope", scope).Str("side", string(side)).Uint64("pass", seq).Msg("✅ Background removal applied")
	return url, nil
}

func (b *BackgroundService) current(k passKey, seq uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.passes[k] == seq
}

// commit writes the cleaned URL only if seq is still the newest pass and the design still
// points at the source the pass started from
func (b *BackgroundService) commit(store *customization.Store, k passKey, seq uint64, side models.Side, source, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.passes[k] != seq {
		return ErrSuperseded
	}
	st, _, err := store.SideSnapshot(side)
	if err != nil {
		return err
	}
	if st.Design == nil || st.Design.SourceURL != source {
		return ErrSuperseded
	}
	return store.Update(side, customization.KindDesign, customization.Patch{CleanedURL: &url})
}

func backgroundOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, bgremoval.ErrInvalidTolerance):
		return "invalid"
	case errors.Is(err, asset.ErrTainted):
		return "tainted"
	case errors.Is(err, asset.ErrDecode):
		return "decode_error"
	default:
		return "error"
	}
}
