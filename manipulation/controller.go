// Package manipulation turns pointer gestures and button presses into Transform updates on
// the customization store. The controller keeps only which element has focus and which
// gesture is active; positions, scales and angles are always read from and written to the
// store.
package manipulation

import (
	"errors"
	"fmt"
	"math"

	"armario-estampados/customization"
	"armario-estampados/models"
	"armario-estampados/transform"
)

const (
	// ScaleStep is the delta applied by the scale buttons
	ScaleStep = 0.1
	// RotationStep is the delta in degrees applied by the rotation buttons
	RotationStep = 15.0
)

// ErrInvalidTransition is returned for operations not allowed in the current state
var ErrInvalidTransition = errors.New("invalid manipulation transition")

// State of the controller
type State int

const (
	Idle State = iota
	Selected
	Dragging
	Scaling
	Rotating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Dragging:
		return "dragging"
	case Scaling:
		return "scaling"
	case Rotating:
		return "rotating"
	default:
		return "unknown"
	}
}

// BoundsPolicy decides what happens when a drag would move an element's centre outside the
// printable area. Extent overflow is flagged by the store under either policy.
type BoundsPolicy int

const (
	// BoundsClamp keeps the element centre inside the printable area
	BoundsClamp BoundsPolicy = iota
	// BoundsFlag lets the element move freely and relies on validation flags
	BoundsFlag
)

// Target addresses the focused element
type Target struct {
	Side   models.Side
	Kind   customization.ElementKind // KindDesign or KindText
	TextID string
}

// Controller is not safe for concurrent use; the owning session serializes calls
type Controller struct {
	store    *customization.Store
	state    State
	target   Target
	policy   BoundsPolicy
	surfaceW float64
	surfaceH float64
}

// Option configures a Controller
type Option func(*Controller)

// WithBoundsPolicy overrides the default BoundsClamp policy
func WithBoundsPolicy(p BoundsPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithSurfaceSize sets the preview surface size in pixels used to normalize pointer deltas
func WithSurfaceSize(w, h int) Option {
	return func(c *Controller) {
		if w > 0 && h > 0 {
			c.surfaceW, c.surfaceH = float64(w), float64(h)
		}
	}
}

// New creates a controller in the Idle state
func New(store *customization.Store, opts ...Option) *Controller {
	c := &Controller{store: store, state: Idle, surfaceW: 600, surfaceH: 600}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state
func (c *Controller) State() State { return c.state }

// Target returns the focused element; only meaningful outside Idle
func (c *Controller) Target() (Target, bool) {
	return c.target, c.state != Idle
}

// Select focuses an element. Allowed from Idle and Selected.
func (c *Controller) Select(t Target) error {
	if c.state != Idle && c.state != Selected {
		return fmt.Errorf("%w: select while %s", ErrInvalidTransition, c.state)
	}
	if t.Kind != customization.KindDesign && t.Kind != customization.KindText {
		return fmt.Errorf("%w: cannot select %q", customization.ErrUnknownTarget, t.Kind)
	}
	if _, err := c.read(t); err != nil {
		return err
	}
	c.target = t
	c.state = Selected
	return nil
}

// Deselect returns to Idle from any state
func (c *Controller) Deselect() {
	c.state = Idle
	c.target = Target{}
}

// BeginDrag starts a pointer drag on the focused element
func (c *Controller) BeginDrag() error { return c.begin(Dragging) }

// BeginScale starts a pinch/handle scale gesture
func (c *Controller) BeginScale() error { return c.begin(Scaling) }

// BeginRotate starts a rotation handle gesture
func (c *Controller) BeginRotate() error { return c.begin(Rotating) }

func (c *Controller) begin(next State) error {
	if c.state != Selected {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, next, c.state)
	}
	c.state = next
	return nil
}

// End finishes the active gesture
func (c *Controller) End() error {
	switch c.state {
	case Dragging, Scaling, Rotating:
		c.state = Selected
		return nil
	}
	return fmt.Errorf("%w: end while %s", ErrInvalidTransition, c.state)
}

// Drag moves the element by a pointer delta in preview pixels
func (c *Controller) Drag(dxPx, dyPx float64) error {
	if c.state != Dragging {
		return fmt.Errorf("%w: drag while %s", ErrInvalidTransition, c.state)
	}
	return c.mutate(transform.PropertyPosition, transform.MoveBy(dxPx/c.surfaceW, dyPx/c.surfaceH))
}

// Scale applies a continuous scale delta during a Scaling gesture
func (c *Controller) Scale(delta float64) error {
	if c.state != Scaling {
		return fmt.Errorf("%w: scale while %s", ErrInvalidTransition, c.state)
	}
	return c.mutate(transform.PropertyScale, transform.ScaleBy(delta))
}

// Rotate applies a continuous rotation delta in degrees during a Rotating gesture
func (c *Controller) Rotate(delta float64) error {
	if c.state != Rotating {
		return fmt.Errorf("%w: rotate while %s", ErrInvalidTransition, c.state)
	}
	return c.mutate(transform.PropertyRotation, transform.RotateBy(delta))
}

// ScaleUp is the "+" button
func (c *Controller) ScaleUp() error { return c.discrete(transform.PropertyScale, ScaleStep) }

// ScaleDown is the "-" button
func (c *Controller) ScaleDown() error { return c.discrete(transform.PropertyScale, -ScaleStep) }

// RotateClockwise is the rotate-right button
func (c *Controller) RotateClockwise() error {
	return c.discrete(transform.PropertyRotation, RotationStep)
}

// RotateCounterClockwise is the rotate-left button
func (c *Controller) RotateCounterClockwise() error {
	return c.discrete(transform.PropertyRotation, -RotationStep)
}

func (c *Controller) discrete(p transform.Property, d float64) error {
	if c.state != Selected {
		return fmt.Errorf("%w: %s button while %s", ErrInvalidTransition, p, c.state)
	}
	return c.mutate(p, transform.Delta{Value: d})
}

// Remove deletes the focused element and returns to Idle. Not undoable here.
func (c *Controller) Remove() error {
	if c.state == Idle {
		return fmt.Errorf("%w: remove while idle", ErrInvalidTransition)
	}
	var err error
	if c.target.Kind == customization.KindText {
		err = c.store.RemoveText(c.target.Side, c.target.TextID)
	} else {
		err = c.store.RemoveDesign(c.target.Side)
	}
	c.Deselect()
	return err
}

// mutate reads the last committed transform, applies the delta and writes it back
func (c *Controller) mutate(p transform.Property, d transform.Delta) error {
	current, err := c.read(c.target)
	if err != nil {
		// element vanished underneath us
		c.Deselect()
		return err
	}
	next, err := transform.ApplyDelta(current, p, d)
	if err != nil {
		return err
	}
	if p == transform.PropertyPosition && c.policy == BoundsClamp {
		area := c.store.PrintSize().Printable()
		next.Position.X = math.Max(area.MinX, math.Min(area.MaxX, next.Position.X))
		next.Position.Y = math.Max(area.MinY, math.Min(area.MaxY, next.Position.Y))
	}
	return c.store.Update(c.target.Side, c.target.Kind, customization.Patch{TextID: c.target.TextID, Transform: &next})
}

func (c *Controller) read(t Target) (transform.Transform, error) {
	st, _, err := c.store.SideSnapshot(t.Side)
	if err != nil {
		return transform.Transform{}, err
	}
	switch t.Kind {
	case customization.KindDesign:
		if st.Design == nil {
			return transform.Transform{}, fmt.Errorf("%w: no design on %s", customization.ErrUnknownTarget, t.Side)
		}
		return st.Design.Transform, nil
	case customization.KindText:
		for _, text := range st.Texts {
			if text.ID == t.TextID {
				return text.Transform, nil
			}
		}
		return transform.Transform{}, fmt.Errorf("%w: text %q on %s", customization.ErrUnknownTarget, t.TextID, t.Side)
	}
	return transform.Transform{}, fmt.Errorf("%w: kind %q", customization.ErrUnknownTarget, t.Kind)
}
