package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPreviewMaxEdge bounds preview captures
	DefaultPreviewMaxEdge = 800
	// DefaultPreviewQuality is the JPEG quality of preview captures
	DefaultPreviewQuality = 82
)

// EncodePreview flattens img onto white, downsizes it to fit maxEdge and encodes JPEG
func EncodePreview(img image.Image, maxEdge, quality int) ([]byte, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty raster", ErrNotReady)
	}

	flat := imaging.New(b.Dx(), b.Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var out image.Image = flat
	if maxEdge > 0 && (b.Dx() > maxEdge || b.Dy() > maxEdge) {
		log.Debug().Int("width", b.Dx()).Int("height", b.Dy()).Int("max", maxEdge).Msg("🔄 Resizing preview capture")
		out = imaging.Fit(flat, maxEdge, maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode preview to JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeProduction encodes img losslessly with its transparency
func EncodeProduction(img image.Image) ([]byte, error) {
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty raster", ErrNotReady)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return nil, fmt.Errorf("failed to encode production file to PNG: %w", err)
	}
	return buf.Bytes(), nil
}
