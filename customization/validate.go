package customization

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"armario-estampados/models"
	"armario-estampados/transform"
)

// Violation flags an element whose transformed extent leaves the printable area.
// Elements are never clipped; the flag is reported to the UI and to checkout.
type Violation struct {
	Side      models.Side    `json:"side"`
	Kind      ElementKind    `json:"kind"`
	TextID    string         `json:"textId,omitempty"`
	Bounds    transform.Rect `json:"bounds"`
	Printable transform.Rect `json:"printable"`
}

func (v Violation) String() string {
	if v.Kind == KindText {
		return fmt.Sprintf("%s text %s exceeds printable area", v.Side, v.TextID)
	}
	return fmt.Sprintf("%s %s exceeds printable area", v.Side, v.Kind)
}

// Validate reports every element outside the printable area of the chosen print size
func (s *Store) Validate() []Violation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Violations(s.state)
}

// Violations computes bounds violations for any state
func Violations(state models.CustomizationState) []Violation {
	printable := state.PrintSize.Printable()
	var out []Violation
	for _, side := range models.AllSides {
		st, ok := state.Sides[side]
		if !ok || st == nil {
			continue
		}
		if d := st.Design; d != nil {
			b := transform.Bounds(d.Transform, d.Width, d.Height)
			if !b.Contains(printable) {
				out = append(out, Violation{Side: side, Kind: KindDesign, Bounds: b, Printable: printable})
			}
		}
		for _, t := range st.Texts {
			b := transform.Bounds(t.Transform, t.ApproxWidth(), t.Size)
			if !b.Contains(printable) {
				out = append(out, Violation{Side: side, Kind: KindText, TextID: t.ID, Bounds: b, Printable: printable})
			}
		}
	}
	return out
}

// Normalize validates a state crossing the serialization boundary and fills defaults
// that older payloads may omit. It never mutates its argument.
func Normalize(state models.CustomizationState) (models.CustomizationState, error) {
	if !state.PrintSize.Valid() {
		return models.CustomizationState{}, fmt.Errorf("%w: print size %q", ErrInvalidState, state.PrintSize)
	}
	if len(state.Sides) == 0 {
		return models.CustomizationState{}, fmt.Errorf("%w: no sides declared", ErrInvalidState)
	}

	out := state.Clone()
	for side, st := range out.Sides {
		if _, err := models.ParseSide(string(side)); err != nil || side != models.Side(strings.ToLower(string(side))) {
			return models.CustomizationState{}, fmt.Errorf("%w: side %q", ErrInvalidState, side)
		}
		if st == nil {
			out.Sides[side] = &models.SideState{Texts: []models.TextElement{}}
			continue
		}
		if d := st.Design; d != nil {
			if strings.TrimSpace(d.SourceURL) == "" {
				return models.CustomizationState{}, fmt.Errorf("%w: %s design without source url", ErrInvalidState, side)
			}
			if err := checkTransform(d.Transform); err != nil {
				return models.CustomizationState{}, fmt.Errorf("%w: %s design: %v", ErrInvalidState, side, err)
			}
			if d.Width <= 0 {
				d.Width = DefaultElementExtent
			}
			if d.Height <= 0 {
				d.Height = DefaultElementExtent
			}
			d.Transform = transform.Normalize(d.Transform)
		}
		seen := make(map[string]bool, len(st.Texts))
		for i := range st.Texts {
			t := &st.Texts[i]
			if err := checkTransform(t.Transform); err != nil {
				return models.CustomizationState{}, fmt.Errorf("%w: %s text %d: %v", ErrInvalidState, side, i, err)
			}
			if t.ID == "" || seen[t.ID] {
				t.ID = uuid.NewString()
			}
			seen[t.ID] = true
			*t = withTextDefaults(*t)
		}
	}
	return out, nil
}

// zero scale is accepted as "unset"; anything else must already be in range
func checkTransform(t transform.Transform) error {
	if t.Scale == 0 {
		return nil
	}
	if t.Scale < transform.MinScale || t.Scale > transform.MaxScale {
		return fmt.Errorf("scale %v outside [%v, %v]", t.Scale, transform.MinScale, transform.MaxScale)
	}
	return nil
}
