// Package compositor renders customization state onto the preview and production surfaces of
// each garment side.
package compositor

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"armario-estampados/capture"
	"armario-estampados/customization"
	"armario-estampados/models"
)

const (
	// DefaultPreviewSize is the edge of the interactive surface
	DefaultPreviewSize = 600
	// DefaultProductionSize is the edge of the manufacturing surface
	DefaultProductionSize = 3500
)

// Options sizes the surfaces
type Options struct {
	PreviewSize    int
	ProductionSize int
}

type surfaceKey struct {
	side    models.Side
	variant models.CaptureVariant
}

// Compositor owns the two surfaces of every side declared in the store
type Compositor struct {
	*Renderer
	store    *customization.Store
	opts     Options
	surfaces map[surfaceKey]*Surface
}

// New creates the surfaces for every side of store. Zero sizes fall back to the defaults.
func New(store *customization.Store, loader ImageLoader, fonts *FontBook, opts Options) *Compositor {
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = DefaultPreviewSize
	}
	if opts.ProductionSize <= 0 {
		opts.ProductionSize = DefaultProductionSize
	}
	c := &Compositor{
		Renderer: NewRenderer(loader, fonts),
		store:    store,
		opts:     opts,
		surfaces: make(map[surfaceKey]*Surface),
	}
	for _, side := range store.Sides() {
		rev := func() uint64 { return store.Revision(side) }
		c.surfaces[surfaceKey{side, models.VariantPreview}] = newSurface(side, models.VariantPreview, opts.PreviewSize, opts.PreviewSize, rev)
		c.surfaces[surfaceKey{side, models.VariantProduction}] = newSurface(side, models.VariantProduction, opts.ProductionSize, opts.ProductionSize, rev)
	}
	return c
}

// Surface returns the surface for side and variant
func (c *Compositor) Surface(side models.Side, variant models.CaptureVariant) (*Surface, error) {
	s, ok := c.surfaces[surfaceKey{side, variant}]
	if !ok {
		return nil, fmt.Errorf("%w: no %s surface for side %q", customization.ErrUnknownTarget, variant, side)
	}
	return s, nil
}

// PreviewSize returns the interactive surface edge in pixels
func (c *Compositor) PreviewSize() int { return c.opts.PreviewSize }

// Paint renders the side's current state onto both of its surfaces
func (c *Compositor) Paint(ctx context.Context, side models.Side) error {
	start := time.Now()
	st, rev, err := c.store.SideSnapshot(side)
	if err != nil {
		return err
	}
	preview, err := c.Surface(side, models.VariantPreview)
	if err != nil {
		return err
	}
	production, err := c.Surface(side, models.VariantProduction)
	if err != nil {
		return err
	}

	sources, err := c.load(ctx, st)
	if err != nil {
		return fmt.Errorf("failed to paint %s: %w", side, err)
	}

	var previewStats, productionStats Stats
	previewCanvas := image.NewNRGBA(image.Rect(0, 0, c.opts.PreviewSize, c.opts.PreviewSize))
	productionCanvas := image.NewNRGBA(image.Rect(0, 0, c.opts.ProductionSize, c.opts.ProductionSize))

	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		previewStats, err = c.draw(previewCanvas, st, sources, true)
		return err
	})
	g.Go(func() error {
		var err error
		productionStats, err = c.draw(productionCanvas, st, sources, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to paint %s: %w", side, err)
	}

	preview.commit(previewCanvas, rev, previewStats)
	production.commit(productionCanvas, rev, productionStats)

	log.Debug().Str("side", string(side)).Uint64("revision", rev).Int("nodes", productionStats.Nodes).
		Dur("took", time.Since(start)).Msg("🎨 Side painted")
	return nil
}

// PaintAll paints every side
func (c *Compositor) PaintAll(ctx context.Context) error {
	for _, side := range c.store.Sides() {
		if err := c.Paint(ctx, side); err != nil {
			return err
		}
	}
	return nil
}

// CustomizedSides lists the sides holding at least one element
func (c *Compositor) CustomizedSides() []models.Side {
	snap := c.store.Snapshot()
	var out []models.Side
	for _, side := range c.store.Sides() {
		if !snap.Sides[side].Empty() {
			out = append(out, side)
		}
	}
	return out
}

// Targets returns preview and production capture targets for the given sides
func (c *Compositor) Targets(sides ...models.Side) ([]capture.Target, error) {
	targets := make([]capture.Target, 0, 2*len(sides))
	for _, side := range sides {
		for _, v := range []models.CaptureVariant{models.VariantPreview, models.VariantProduction} {
			s, err := c.Surface(side, v)
			if err != nil {
				return nil, err
			}
			targets = append(targets, capture.Target{Surface: s, Variant: v})
		}
	}
	return targets, nil
}
