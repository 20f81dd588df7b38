package asset

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// VectorRasterSize is the longest edge, in pixels, vector designs are rasterized at.
// It matches the default production surface so vectors are never upscaled there.
var VectorRasterSize = 3500

// IsSVG sniffs an SVG document
func IsSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.TrimSpace(head)
	if bytes.HasPrefix(head, []byte("<svg")) {
		return true
	}
	return bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg"))
}

// RasterizeSVG renders an SVG document so that its longest edge is maxEdge pixels
func RasterizeSVG(data []byte, maxEdge int) (*image.NRGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		return nil, fmt.Errorf("%w: svg has no viewBox size", ErrDecode)
	}

	ratio := float64(maxEdge) / math.Max(vw, vh)
	w, h := int(math.Round(vw*ratio)), int(math.Round(vh*ratio))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	// NRGBA keeps recolouring and alpha tests straightforward downstream
	out := image.NewNRGBA(rgba.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, rgba.At(x, y))
		}
	}
	return out, nil
}
