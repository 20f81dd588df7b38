package bgremoval

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armario-estampados/asset"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func solidWithLogo() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.SetNRGBA(x, y, red)
		}
	}
	for y := 4; y < 6; y++ {
		for x := 4; x < 6; x++ {
			img.SetNRGBA(x, y, blue)
		}
	}
	return img
}

func TestRemoveFlatBackground_RedSquareBlueLogo(t *testing.T) {
	out, err := RemoveFlatBackground(asset.Source{Image: solidWithLogo()}, 30)
	require.NoError(t, err)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			a := out.NRGBAAt(x, y).A
			if x >= 4 && x < 6 && y >= 4 && y < 6 {
				assert.Equal(t, uint8(255), a, "logo pixel %d,%d", x, y)
				assert.Equal(t, blue, out.NRGBAAt(x, y))
			} else {
				assert.Equal(t, uint8(0), a, "background pixel %d,%d", x, y)
			}
		}
	}
}

func TestRemoveFlatBackground_DoesNotMutateSource(t *testing.T) {
	src := solidWithLogo()
	_, err := RemoveFlatBackground(asset.Source{Image: src}, 10)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), src.NRGBAAt(0, 0).A)
}

func TestRemoveFlatBackground_ToleranceZeroExactOnly(t *testing.T) {
	img := solidWithLogo()
	img.SetNRGBA(9, 9, color.NRGBA{R: 254, A: 255})

	out, err := RemoveFlatBackground(asset.Source{Image: img}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(9, 9).A)
}

func TestRemoveFlatBackground_ToleranceMonotonic(t *testing.T) {
	// gradient away from the corner colour
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 9), G: uint8(y * 7), B: uint8((x + y) * 3), A: 255})
		}
	}
	src := asset.Source{Image: img}

	prev, err := RemoveFlatBackground(src, MinTolerance)
	require.NoError(t, err)
	prevMask := TransparentMask(prev)
	for tol := 5; tol <= MaxTolerance; tol += 5 {
		next, err := RemoveFlatBackground(src, tol)
		require.NoError(t, err)
		nextMask := TransparentMask(next)
		for i := range prevMask {
			if prevMask[i] {
				assert.True(t, nextMask[i], "pixel %d cleared at lower tolerance but kept at %d", i, tol)
			}
		}
		prevMask = nextMask
	}
}

func TestRemoveFlatBackground_Errors(t *testing.T) {
	_, err := RemoveFlatBackground(asset.Source{Image: solidWithLogo()}, 81)
	assert.ErrorIs(t, err, ErrInvalidTolerance)

	_, err = RemoveFlatBackground(asset.Source{Image: solidWithLogo()}, -1)
	assert.ErrorIs(t, err, ErrInvalidTolerance)

	_, err = RemoveFlatBackground(asset.Source{}, 30)
	assert.ErrorIs(t, err, asset.ErrDecode)

	_, err = RemoveFlatBackground(asset.Source{Image: solidWithLogo(), Tainted: true}, 30)
	assert.ErrorIs(t, err, asset.ErrTainted)
}

func TestRemoveFlatBackground_NonZeroOrigin(t *testing.T) {
	base := solidWithLogo()
	sub := base.SubImage(image.Rect(4, 4, 10, 10))

	out, err := RemoveFlatBackground(asset.Source{Image: sub}, 30)
	require.NoError(t, err)
	// the corner of the sub image is the blue logo, so the logo is the background now
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(5, 5).A)
}
