// Package asset loads design and mockup images for rendering. Remote images are fetched
// without credentials and checked for a CORS grant the way a browser would, so an image that
// could not be read back after drawing is reported as tainted instead of rendering blank.
package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	// ErrDecode reports a missing or undecodable image
	ErrDecode = errors.New("image could not be decoded")
	// ErrTainted reports a cross-origin image served without a CORS grant
	ErrTainted = errors.New("image is cross-origin without permission (tainted)")
)

// Source is a decoded image together with its read permission
type Source struct {
	URL     string
	Image   image.Image
	Tainted bool
}

// Readable returns ErrTainted for tainted sources and ErrDecode for empty ones
func (s Source) Readable() error {
	if s.Image == nil {
		return fmt.Errorf("%w: no image for %q", ErrDecode, s.URL)
	}
	if s.Tainted {
		return fmt.Errorf("%w: %s", ErrTainted, s.URL)
	}
	return nil
}

// Decode decodes PNG, JPEG, GIF, BMP or TIFF bytes honouring EXIF orientation.
// SVG documents are rasterized at VectorRasterSize.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if IsSVG(data) {
		return RasterizeSVG(data, VectorRasterSize)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}
