// Package transform holds the placement math shared by every surface: position, scale and
// rotation of an element, expressed in normalized surface units so the same value renders
// identically on a 600px preview and a 3500px production canvas.
package transform

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

const (
	// MinScale and MaxScale bound every committed scale value
	MinScale = 0.3
	MaxScale = 3.0
)

// Property names the transform component a delta applies to
type Property string

const (
	PropertyPosition Property = "position"
	PropertyScale    Property = "scale"
	PropertyRotation Property = "rotation"
)

// Point is an offset from the surface centre in normalized units (1.0 = full surface edge)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform places one element on a surface
type Transform struct {
	Position Point   `json:"position"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"` // degrees, stored unwrapped
}

// Delta is a relative change. Value is used for scale and rotation, Offset for position.
type Delta struct {
	Value  float64
	Offset Point
}

// Rect is an axis aligned box in normalized units, origin at the surface centre
type Rect struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Contains reports whether r lies entirely inside o
func (r Rect) Contains(o Rect) bool {
	return o.MinX <= r.MinX && o.MinY <= r.MinY && r.MaxX <= o.MaxX && r.MaxY <= o.MaxY
}

// Identity returns a centred, unscaled, unrotated transform
func Identity() Transform {
	return Transform{Scale: 1}
}

// ScaleBy builds a scale delta
func ScaleBy(d float64) Delta { return Delta{Value: d} }

// RotateBy builds a rotation delta in degrees
func RotateBy(d float64) Delta { return Delta{Value: d} }

// MoveBy builds a position delta in normalized units
func MoveBy(dx, dy float64) Delta { return Delta{Offset: Point{X: dx, Y: dy}} }

// ClampScale bounds s to [MinScale, MaxScale]
func ClampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// ApplyDelta returns t with d applied to the given property.
// Scale is clamped, rotation is accumulated without wrapping and position is added unclamped;
// bounds enforcement needs surface context and belongs to the caller.
func ApplyDelta(t Transform, p Property, d Delta) (Transform, error) {
	switch p {
	case PropertyScale:
		t.Scale = ClampScale(t.Scale + d.Value)
	case PropertyRotation:
		t.Rotation += d.Value
	case PropertyPosition:
		t.Position.X += d.Offset.X
		t.Position.Y += d.Offset.Y
	default:
		return t, fmt.Errorf("unknown transform property %q", p)
	}
	return t, nil
}

// DisplayRotation wraps an angle in degrees into (-180, 180]
func DisplayRotation(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r <= -180 {
		r += 360
	} else if r > 180 {
		r -= 360
	}
	return r
}

// Normalize fills a zero scale with 1 and clamps the rest. Used at deserialization boundaries.
func Normalize(t Transform) Transform {
	if t.Scale == 0 {
		t.Scale = 1
	}
	t.Scale = ClampScale(t.Scale)
	return t
}

// Matrix maps element-local pixel coordinates (origin at the element centre, unscaled) to
// pixel coordinates on a surface of the given size: translate · rotate · scale.
func Matrix(t Transform, surfaceW, surfaceH float64) f64.Aff3 {
	rad := t.Rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	translate := mat.NewDense(3, 3, []float64{
		1, 0, surfaceW/2 + t.Position.X*surfaceW,
		0, 1, surfaceH/2 + t.Position.Y*surfaceH,
		0, 0, 1,
	})
	rotate := mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	})
	scale := mat.NewDense(3, 3, []float64{
		t.Scale, 0, 0,
		0, t.Scale, 0,
		0, 0, 1,
	})

	var rs, m mat.Dense
	rs.Mul(rotate, scale)
	m.Mul(translate, &rs)

	return f64.Aff3{
		m.At(0, 0), m.At(0, 1), m.At(0, 2),
		m.At(1, 0), m.At(1, 1), m.At(1, 2),
	}
}

// Bounds returns the axis aligned box covered by a w×h element (normalized, at scale 1)
// once t is applied. Surfaces are square so rotation is computed in normalized space.
func Bounds(t Transform, w, h float64) Rect {
	rad := t.Rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	hw, hh := w*t.Scale/2, h*t.Scale/2

	r := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, c := range [4]Point{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}} {
		x := c.X*cos - c.Y*sin + t.Position.X
		y := c.X*sin + c.Y*cos + t.Position.Y
		r.MinX = math.Min(r.MinX, x)
		r.MinY = math.Min(r.MinY, y)
		r.MaxX = math.Max(r.MaxX, x)
		r.MaxY = math.Max(r.MaxY, y)
	}
	return r
}
