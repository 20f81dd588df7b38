package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustApply(t *testing.T, tr Transform, p Property, d Delta) Transform {
	t.Helper()
	out, err := ApplyDelta(tr, p, d)
	require.NoError(t, err)
	return out
}

func TestApplyDelta_ScaleSteps(t *testing.T) {
	tr := Identity()
	for i := 0; i < 3; i++ {
		tr = mustApply(t, tr, PropertyScale, ScaleBy(0.1))
	}
	assert.InDelta(t, 1.3, tr.Scale, 1e-9)
}

func TestApplyDelta_ScaleClampsAtBounds(t *testing.T) {
	tr := mustApply(t, Identity(), PropertyScale, ScaleBy(10))
	assert.Equal(t, MaxScale, tr.Scale)

	tr = mustApply(t, Identity(), PropertyScale, ScaleBy(-5))
	assert.Equal(t, MinScale, tr.Scale)
}

func TestApplyDelta_ScaleRoundTrip(t *testing.T) {
	for _, start := range []float64{0.5, 1, 1.7, 2.4} {
		for _, d := range []float64{0.05, 0.1, 0.3} {
			tr := Transform{Scale: start}
			tr = mustApply(t, tr, PropertyScale, ScaleBy(d))
			tr = mustApply(t, tr, PropertyScale, ScaleBy(-d))
			assert.InDelta(t, ClampScale(start), tr.Scale, 1e-9, "start=%v d=%v", start, d)
		}
	}
}

func TestApplyDelta_RotationComposesAdditively(t *testing.T) {
	tr := Transform{Scale: 1, Rotation: 170}
	tr = mustApply(t, tr, PropertyRotation, RotateBy(15))
	tr = mustApply(t, tr, PropertyRotation, RotateBy(200))
	assert.Equal(t, 385.0, tr.Rotation)
	assert.Equal(t, 25.0, DisplayRotation(tr.Rotation))
}

func TestApplyDelta_PositionUnclamped(t *testing.T) {
	tr := mustApply(t, Identity(), PropertyPosition, MoveBy(0.9, -2))
	assert.Equal(t, Point{X: 0.9, Y: -2}, tr.Position)
}

func TestApplyDelta_IsPure(t *testing.T) {
	in := Transform{Position: Point{X: 0.1}, Scale: 1.2, Rotation: 30}
	a := mustApply(t, in, PropertyScale, ScaleBy(0.1))
	b := mustApply(t, in, PropertyScale, ScaleBy(0.1))
	assert.Equal(t, a, b)
	assert.Equal(t, 1.2, in.Scale)
}

func TestApplyDelta_UnknownProperty(t *testing.T) {
	_, err := ApplyDelta(Identity(), Property("skew"), ScaleBy(1))
	assert.Error(t, err)
}

func TestDisplayRotation(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		180:  180,
		-180: 180,
		181:  -179,
		540:  180,
		-190: 170,
		720:  0,
	}
	for in, want := range cases {
		assert.InDelta(t, want, DisplayRotation(in), 1e-9, "in=%v", in)
	}
}

func TestMatrix_ResolutionIndependent(t *testing.T) {
	tr := Transform{Position: Point{X: 0.1, Y: -0.2}, Scale: 1.5, Rotation: 30}
	small := Matrix(tr, 600, 600)
	large := Matrix(tr, 3500, 3500)

	// translation scales with the surface, the linear part does not
	assert.InDelta(t, small[2]*3500/600, large[2], 1e-6)
	assert.InDelta(t, small[5]*3500/600, large[5], 1e-6)
	for _, i := range []int{0, 1, 3, 4} {
		assert.InDelta(t, small[i], large[i], 1e-12)
	}
	assert.InDelta(t, 1.5*math.Cos(math.Pi/6), large[0], 1e-9)
}

func TestBounds(t *testing.T) {
	b := Bounds(Transform{Scale: 2}, 0.2, 0.1)
	assert.InDelta(t, -0.2, b.MinX, 1e-9)
	assert.InDelta(t, 0.1, b.MaxY, 1e-9)

	rotated := Bounds(Transform{Scale: 1, Rotation: 90}, 0.4, 0.2)
	assert.InDelta(t, 0.1, rotated.MaxX, 1e-9)
	assert.InDelta(t, 0.2, rotated.MaxY, 1e-9)

	outer := Rect{MinX: -0.5, MinY: -0.5, MaxX: 0.5, MaxY: 0.5}
	assert.True(t, b.Contains(outer))
	assert.False(t, Bounds(Transform{Scale: 3}, 0.5, 0.5).Contains(outer))
}
