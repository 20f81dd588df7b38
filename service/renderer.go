package service

import (
	"context"
	"image"

	"armario-estampados/compositor"
	"armario-estampados/models"
)

// Renderer turns persisted side state into pixels without any client surface.
// withGarment selects the mockup composite instead of the transparent production file.
type Renderer interface {
	RenderSide(ctx context.Context, st *models.SideState, size int, withGarment bool) (image.Image, error)
}

// NativeRenderer renders with the same compositor the sessions use
type NativeRenderer struct {
	renderer *compositor.Renderer
}

var _ Renderer = (*NativeRenderer)(nil)

// NewNativeRenderer creates a NativeRenderer
func NewNativeRenderer(loader compositor.ImageLoader, fonts *compositor.FontBook) *NativeRenderer {
	return &NativeRenderer{renderer: compositor.NewRenderer(loader, fonts)}
}

// RenderSide draws st on a size×size canvas
func (n *NativeRenderer) RenderSide(ctx context.Context, st *models.SideState, size int, withGarment bool) (image.Image, error) {
	return n.renderer.Render(ctx, st, size, size, withGarment)
}
