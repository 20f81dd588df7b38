package models

import (
	"fmt"
	"strings"

	"armario-estampados/transform"
)

// PrintSize selects the price tier and the maximum printable area
type PrintSize string

const (
	PrintSizeA3 PrintSize = "A3"
	PrintSizeA4 PrintSize = "A4"
	PrintSizeA5 PrintSize = "A5"
	PrintSizeA6 PrintSize = "A6"
)

// printableHalfExtent is half the printable square per size, in normalized surface units.
// Each ISO step down halves the area, so the edge shrinks by 1/√2.
var printableHalfExtent = map[PrintSize]float64{
	PrintSizeA3: 0.45,
	PrintSizeA4: 0.318,
	PrintSizeA5: 0.225,
	PrintSizeA6: 0.159,
}

// ParsePrintSize accepts "a4", " A4 " etc.
func ParsePrintSize(s string) (PrintSize, error) {
	p := PrintSize(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := printableHalfExtent[p]; !ok {
		return "", fmt.Errorf("invalid print size %q. Valid sizes: A3, A4, A5, A6", s)
	}
	return p, nil
}

// Valid reports whether p is one of the known sizes
func (p PrintSize) Valid() bool {
	_, ok := printableHalfExtent[p]
	return ok
}

// Printable returns the printable area centred on the surface
func (p PrintSize) Printable() transform.Rect {
	e := printableHalfExtent[p]
	return transform.Rect{MinX: -e, MinY: -e, MaxX: e, MaxY: e}
}

// Side identifies a garment face
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// AllSides lists the sides in render order
var AllSides = []Side{SideFront, SideBack}

// ParseSide validates a side identifier
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideFront:
		return SideFront, nil
	case SideBack:
		return SideBack, nil
	}
	return "", fmt.Errorf("invalid side %q. Valid sides: front, back", s)
}

// VisualElement is a placed image or vector graphic
type VisualElement struct {
	SourceURL  string              `json:"sourceUrl"`
	IsVector   bool                `json:"isVector"`
	CleanedURL string              `json:"cleanedUrl,omitempty"` // background-removed derivative
	Color      string              `json:"color,omitempty"`      // recolour, vector only
	Width      float64             `json:"width"`                // normalized width at scale 1
	Height     float64             `json:"height"`               // normalized height at scale 1
	Transform  transform.Transform `json:"transform"`
}

// RenderURL returns the cleaned derivative when present
func (v VisualElement) RenderURL() string {
	if v.CleanedURL != "" {
		return v.CleanedURL
	}
	return v.SourceURL
}

// TextElement is placed typography
type TextElement struct {
	ID        string              `json:"id"`
	Content   string              `json:"content"`
	Font      string              `json:"font"`
	Color     string              `json:"color"`
	Size      float64             `json:"size"` // line height relative to surface height
	Transform transform.Transform `json:"transform"`
}

// ApproxWidth estimates the normalized text width at scale 1
func (t TextElement) ApproxWidth() float64 {
	return float64(len([]rune(t.Content))) * t.Size * 0.6
}

// SideState is the customization of one garment face
type SideState struct {
	Design          *VisualElement `json:"designElement,omitempty"`
	Texts           []TextElement  `json:"textElements"` // back-to-front
	BackgroundColor string         `json:"backgroundColor,omitempty"`
	MockupColor     string         `json:"mockupColor,omitempty"`
	MockupURL       string         `json:"mockupUrl,omitempty"`
}

// Empty reports whether the side carries no elements
func (s *SideState) Empty() bool {
	return s == nil || (s.Design == nil && len(s.Texts) == 0)
}

// Clone returns a deep copy
func (s *SideState) Clone() *SideState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Design != nil {
		d := *s.Design
		c.Design = &d
	}
	c.Texts = append([]TextElement(nil), s.Texts...)
	if c.Texts == nil {
		c.Texts = []TextElement{}
	}
	return &c
}

// CustomizationState is the root aggregate for one product in configuration
type CustomizationState struct {
	PrintSize PrintSize           `json:"printSize"`
	Sides     map[Side]*SideState `json:"sides"`
}

// Clone returns a deep copy
func (c CustomizationState) Clone() CustomizationState {
	out := CustomizationState{PrintSize: c.PrintSize, Sides: make(map[Side]*SideState, len(c.Sides))}
	for side, s := range c.Sides {
		out.Sides[side] = s.Clone()
	}
	return out
}
