// Package customization holds the single source of truth of a product in configuration.
// Every other component reads a snapshot from the Store and writes through it; nothing keeps
// a private copy of positions or colours.
package customization

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"armario-estampados/models"
	"armario-estampados/transform"
)

var (
	// ErrUnknownTarget is a programming error: the addressed side/element does not exist
	ErrUnknownTarget = errors.New("unknown customization target")
	// ErrInvalidState is returned when serialized data fails validation
	ErrInvalidState = errors.New("invalid customization state")
)

const (
	DefaultElementExtent = 0.5
	DefaultTextSize      = 0.08
	DefaultFont          = "Go"
	DefaultTextColor     = "#000000"
)

// ElementKind addresses a part of a side
type ElementKind string

const (
	KindDesign ElementKind = "design"
	KindText   ElementKind = "text"
	KindColors ElementKind = "colors"
)

// Patch is a partial change; nil fields are left untouched
type Patch struct {
	TextID string // required for KindText

	SourceURL  *string
	IsVector   *bool
	CleanedURL *string
	Width      *float64
	Height     *float64

	Content *string
	Font    *string
	Size    *float64

	Color     *string // design recolour or text colour
	Transform *transform.Transform

	// Placement is the initial transform of a design created by this patch. It is
	// rejected for an element that already exists; later moves go through Transform.
	Placement *transform.Transform

	BackgroundColor *string
	MockupColor     *string
	MockupURL       *string
}

// Store is safe for concurrent use
type Store struct {
	mu        sync.RWMutex
	state     models.CustomizationState
	revisions map[models.Side]uint64
}

// New creates a store with one empty SideState per declared side (front and back by default)
func New(size models.PrintSize, sides ...models.Side) (*Store, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: print size %q", ErrInvalidState, size)
	}
	if len(sides) == 0 {
		sides = models.AllSides
	}
	state := models.CustomizationState{PrintSize: size, Sides: make(map[models.Side]*models.SideState, len(sides))}
	for _, side := range sides {
		if _, err := models.ParseSide(string(side)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		state.Sides[side] = &models.SideState{Texts: []models.TextElement{}}
	}
	return newStore(state), nil
}

// FromState validates state and wraps a copy of it
func FromState(state models.CustomizationState) (*Store, error) {
	normalized, err := Normalize(state)
	if err != nil {
		return nil, err
	}
	return newStore(normalized), nil
}

func newStore(state models.CustomizationState) *Store {
	s := &Store{state: state, revisions: make(map[models.Side]uint64, len(state.Sides))}
	for side := range state.Sides {
		s.revisions[side] = 1
	}
	return s
}

// side must be called with the lock held
func (s *Store) side(side models.Side) (*models.SideState, error) {
	st, ok := s.state.Sides[side]
	if !ok {
		return nil, fmt.Errorf("%w: side %q is not declared", ErrUnknownTarget, side)
	}
	return st, nil
}

func (s *Store) touch(side models.Side) {
	s.revisions[side]++
}

// Update merges patch into the element addressed by side and kind
func (s *Store) Update(side models.Side, kind ElementKind, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.side(side)
	if err != nil {
		return err
	}

	switch kind {
	case KindDesign:
		if err := applyDesignPatch(st, patch); err != nil {
			return err
		}
	case KindText:
		if patch.Placement != nil {
			return fmt.Errorf("%w: text already placed, move it with relative deltas", ErrInvalidState)
		}
		idx := textIndex(st, patch.TextID)
		if idx < 0 {
			return fmt.Errorf("%w: text %q on %s", ErrUnknownTarget, patch.TextID, side)
		}
		applyTextPatch(&st.Texts[idx], patch)
	case KindColors:
		if patch.BackgroundColor != nil {
			st.BackgroundColor = *patch.BackgroundColor
		}
		if patch.MockupColor != nil {
			st.MockupColor = *patch.MockupColor
		}
		if patch.MockupURL != nil {
			st.MockupURL = *patch.MockupURL
		}
	default:
		return fmt.Errorf("%w: element kind %q", ErrUnknownTarget, kind)
	}

	s.touch(side)
	return nil
}

func applyDesignPatch(st *models.SideState, p Patch) error {
	if st.Design == nil {
		if p.SourceURL == nil || *p.SourceURL == "" {
			return fmt.Errorf("%w: no design element to update", ErrUnknownTarget)
		}
		st.Design = &models.VisualElement{
			Width:     DefaultElementExtent,
			Height:    DefaultElementExtent,
			Transform: transform.Identity(),
		}
		if p.Placement != nil {
			st.Design.Transform = transform.Normalize(*p.Placement)
		}
	} else if p.Placement != nil {
		return fmt.Errorf("%w: design already placed, move it with relative deltas", ErrInvalidState)
	}
	d := st.Design
	if p.SourceURL != nil && *p.SourceURL != d.SourceURL {
		d.SourceURL = *p.SourceURL
		// derivative belongs to the previous source
		d.CleanedURL = ""
	}
	if p.CleanedURL != nil {
		d.CleanedURL = *p.CleanedURL
	}
	if p.IsVector != nil {
		d.IsVector = *p.IsVector
	}
	if p.Color != nil {
		d.Color = *p.Color
	}
	if p.Width != nil && *p.Width > 0 {
		d.Width = *p.Width
	}
	if p.Height != nil && *p.Height > 0 {
		d.Height = *p.Height
	}
	if p.Transform != nil {
		d.Transform = transform.Normalize(*p.Transform)
	}
	return nil
}

func applyTextPatch(t *models.TextElement, p Patch) {
	if p.Content != nil {
		t.Content = *p.Content
	}
	if p.Font != nil {
		t.Font = *p.Font
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Size != nil && *p.Size > 0 {
		t.Size = *p.Size
	}
	if p.Transform != nil {
		t.Transform = transform.Normalize(*p.Transform)
	}
}

func textIndex(st *models.SideState, id string) int {
	for i := range st.Texts {
		if st.Texts[i].ID == id {
			return i
		}
	}
	return -1
}

// AddText appends a text element on top of the side and returns its id
func (s *Store) AddText(side models.Side, text models.TextElement) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.side(side)
	if err != nil {
		return "", err
	}
	text = withTextDefaults(text)
	if textIndex(st, text.ID) >= 0 {
		text.ID = uuid.NewString()
	}
	st.Texts = append(st.Texts, text)
	s.touch(side)
	return text.ID, nil
}

func withTextDefaults(t models.TextElement) models.TextElement {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Font == "" {
		t.Font = DefaultFont
	}
	if t.Color == "" {
		t.Color = DefaultTextColor
	}
	if t.Size <= 0 {
		t.Size = DefaultTextSize
	}
	t.Transform = transform.Normalize(t.Transform)
	return t
}

// RemoveText deletes one text element
func (s *Store) RemoveText(side models.Side, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.side(side)
	if err != nil {
		return err
	}
	idx := textIndex(st, id)
	if idx < 0 {
		return fmt.Errorf("%w: text %q on %s", ErrUnknownTarget, id, side)
	}
	st.Texts = append(st.Texts[:idx], st.Texts[idx+1:]...)
	s.touch(side)
	return nil
}

// RemoveDesign clears the design element of a side
func (s *Store) RemoveDesign(side models.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.side(side)
	if err != nil {
		return err
	}
	if st.Design == nil {
		return fmt.Errorf("%w: no design element on %s", ErrUnknownTarget, side)
	}
	st.Design = nil
	s.touch(side)
	return nil
}

// Reset clears one side back to empty, keeping its colours
func (s *Store) Reset(side models.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.side(side)
	if err != nil {
		return err
	}
	st.Design = nil
	st.Texts = []models.TextElement{}
	s.touch(side)
	return nil
}

// SetPrintSize changes the print size; every side's printable bounds change with it
func (s *Store) SetPrintSize(size models.PrintSize) error {
	if !size.Valid() {
		return fmt.Errorf("%w: print size %q", ErrInvalidState, size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PrintSize = size
	for side := range s.state.Sides {
		s.touch(side)
	}
	return nil
}

// PrintSize returns the chosen print size
func (s *Store) PrintSize() models.PrintSize {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PrintSize
}

// Snapshot returns a deep copy of the whole state
func (s *Store) Snapshot() models.CustomizationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// SideSnapshot returns a copy of one side together with its revision
func (s *Store) SideSnapshot(side models.Side) (*models.SideState, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, err := s.side(side)
	if err != nil {
		return nil, 0, err
	}
	return st.Clone(), s.revisions[side], nil
}

// Revision increases on every change to the side
func (s *Store) Revision(side models.Side) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revisions[side]
}

// Sides lists the declared sides in render order
func (s *Store) Sides() []models.Side {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Side, 0, len(s.state.Sides))
	for _, side := range models.AllSides {
		if _, ok := s.state.Sides[side]; ok {
			out = append(out, side)
		}
	}
	return out
}

// Serialize returns the JSON form persisted into the order line item
func (s *Store) Serialize() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.Marshal(s.state)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize customization: %w", err)
	}
	return data, nil
}

// Deserialize parses and validates a serialized state
func Deserialize(data []byte) (*Store, error) {
	var state models.CustomizationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return FromState(state)
}
