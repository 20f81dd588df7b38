// Package bgremoval makes a flat, corner-touching background transparent.
//
// The reference colour is always the top-left pixel. Distance is Euclidean in 8-bit RGB
// space with alpha ignored, and tolerance is expressed in that unit: 0 removes exact
// matches only, 80 removes most of a typical image. Backgrounds that are not flat or do not
// touch the corner are a known limitation.
package bgremoval

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"armario-estampados/asset"
)

const (
	MinTolerance = 0
	MaxTolerance = 80
	// DefaultTolerance is used when a caller does not pick one
	DefaultTolerance = 30
)

// ErrInvalidTolerance is an input error, never retried
var ErrInvalidTolerance = errors.New("tolerance out of range")

// Distance returns the Euclidean RGB distance between two colours
func Distance(a, b color.NRGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// ValidateTolerance checks the allowed range
func ValidateTolerance(tolerance int) error {
	if tolerance < MinTolerance || tolerance > MaxTolerance {
		return fmt.Errorf("%w: %d (allowed %d..%d)", ErrInvalidTolerance, tolerance, MinTolerance, MaxTolerance)
	}
	return nil
}

// RemoveFlatBackground returns a copy of src where every pixel within tolerance of the
// top-left pixel has alpha 0. All other pixels are unchanged.
func RemoveFlatBackground(src asset.Source, tolerance int) (*image.NRGBA, error) {
	if err := ValidateTolerance(tolerance); err != nil {
		return nil, err
	}
	if err := src.Readable(); err != nil {
		return nil, err
	}
	if src.Image.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", asset.ErrDecode)
	}

	out := imaging.Clone(src.Image)
	w, h := out.Rect.Dx(), out.Rect.Dy()
	ref := out.NRGBAAt(0, 0)
	limit := float64(tolerance)

	for y := 0; y < h; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			px := color.NRGBA{R: row[x], G: row[x+1], B: row[x+2]}
			if Distance(px, ref) <= limit {
				row[x+3] = 0
			}
		}
	}
	return out, nil
}

// TransparentMask reports which pixels of img are fully transparent
func TransparentMask(img *image.NRGBA) []bool {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	mask := make([]bool, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask = append(mask, img.Pix[y*img.Stride+x*4+3] == 0)
		}
	}
	return mask
}
