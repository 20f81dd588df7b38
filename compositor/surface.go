package compositor

import (
	"context"
	"fmt"
	"image"
	"sync"

	"armario-estampados/asset"
	"armario-estampados/capture"
	"armario-estampados/models"
)

// Surface is one rendered view of a side: the interactive preview or the off-screen
// production canvas. It satisfies capture.Surface.
type Surface struct {
	side     models.Side
	variant  models.CaptureVariant
	width    int
	height   int
	revision func() uint64

	mu      sync.RWMutex
	canvas  *image.NRGBA
	painted bool
	rev     uint64
	stats   Stats
}

var _ capture.Surface = (*Surface)(nil)

func newSurface(side models.Side, variant models.CaptureVariant, w, h int, revision func() uint64) *Surface {
	return &Surface{side: side, variant: variant, width: w, height: h, revision: revision}
}

// Side returns the garment side
func (s *Surface) Side() models.Side { return s.side }

// Variant returns the capture intent this surface serves
func (s *Surface) Variant() models.CaptureVariant { return s.variant }

// Interactive reports whether pointer input targets this surface
func (s *Surface) Interactive() bool { return s.variant == models.VariantPreview }

// Dimensions returns the pixel size
func (s *Surface) Dimensions() (int, int) { return s.width, s.height }

// IsReady checks size, freshness and content
func (s *Surface) IsReady() error {
	if s.width <= 0 || s.height <= 0 {
		return fmt.Errorf("%w: surface has no size", capture.ErrNotReady)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.painted || s.canvas == nil {
		return fmt.Errorf("%w: surface never painted", capture.ErrNotReady)
	}
	if cur := s.revision(); s.rev != cur {
		return fmt.Errorf("%w: painted at revision %d, state is at %d", capture.ErrNotReady, s.rev, cur)
	}
	if s.stats.Nodes == 0 {
		return fmt.Errorf("%w: no renderable content", capture.ErrNotReady)
	}
	return nil
}

// Rasterize returns the painted canvas. Tainted content makes the pixels unreadable.
func (s *Surface) Rasterize(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.IsReady(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.stats.Tainted) > 0 {
		return nil, fmt.Errorf("%w: %s", asset.ErrTainted, s.stats.Tainted[0])
	}
	return s.canvas, nil
}

// Revision returns the store revision the surface was last painted at
func (s *Surface) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// commit swaps in a freshly painted canvas; earlier revisions never overwrite newer ones
func (s *Surface) commit(canvas *image.NRGBA, rev uint64, stats Stats) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.painted && rev < s.rev {
		return false
	}
	s.canvas, s.rev, s.stats, s.painted = canvas, rev, stats, true
	return true
}
