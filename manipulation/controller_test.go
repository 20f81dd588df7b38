package manipulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armario-estampados/customization"
	"armario-estampados/models"
	"armario-estampados/transform"
)

func setup(t *testing.T, opts ...Option) (*customization.Store, *Controller, string) {
	t.Helper()
	store, err := customization.New(models.PrintSizeA4)
	require.NoError(t, err)
	src := "https://cdn/logo.png"
	require.NoError(t, store.Update(models.SideFront, customization.KindDesign, customization.Patch{SourceURL: &src}))
	id, err := store.AddText(models.SideFront, models.TextElement{Content: "Max"})
	require.NoError(t, err)
	return store, New(store, opts...), id
}

func designTransform(t *testing.T, s *customization.Store) transform.Transform {
	t.Helper()
	st, _, err := s.SideSnapshot(models.SideFront)
	require.NoError(t, err)
	require.NotNil(t, st.Design)
	return st.Design.Transform
}

var design = Target{Side: models.SideFront, Kind: customization.KindDesign}

func TestController_Transitions(t *testing.T) {
	_, c, _ := setup(t)
	assert.Equal(t, Idle, c.State())

	assert.ErrorIs(t, c.BeginDrag(), ErrInvalidTransition)
	require.NoError(t, c.Select(design))
	assert.Equal(t, Selected, c.State())

	require.NoError(t, c.BeginDrag())
	assert.Equal(t, Dragging, c.State())
	assert.ErrorIs(t, c.BeginScale(), ErrInvalidTransition)
	assert.ErrorIs(t, c.Select(design), ErrInvalidTransition)
	require.NoError(t, c.End())
	assert.Equal(t, Selected, c.State())

	require.NoError(t, c.BeginRotate())
	assert.Equal(t, Rotating, c.State())
	require.NoError(t, c.End())
	assert.ErrorIs(t, c.End(), ErrInvalidTransition)

	c.Deselect()
	assert.Equal(t, Idle, c.State())
	_, focused := c.Target()
	assert.False(t, focused)
}

func TestController_SelectMissingElement(t *testing.T) {
	_, c, _ := setup(t)
	err := c.Select(Target{Side: models.SideBack, Kind: customization.KindDesign})
	assert.ErrorIs(t, err, customization.ErrUnknownTarget)
	assert.Equal(t, Idle, c.State())
}

func TestController_ScaleButtons(t *testing.T) {
	s, c, _ := setup(t)
	require.NoError(t, c.Select(design))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.ScaleUp())
	}
	assert.InDelta(t, 1.3, designTransform(t, s).Scale, 1e-9)

	for i := 0; i < 40; i++ {
		require.NoError(t, c.ScaleDown())
	}
	assert.Equal(t, transform.MinScale, designTransform(t, s).Scale)
}

func TestController_ContinuousScaleClamps(t *testing.T) {
	s, c, _ := setup(t)
	require.NoError(t, c.Select(design))
	require.NoError(t, c.BeginScale())
	require.NoError(t, c.Scale(10))
	require.NoError(t, c.End())
	assert.Equal(t, transform.MaxScale, designTransform(t, s).Scale)
}

func TestController_RotationButtonsUnclamped(t *testing.T) {
	s, c, _ := setup(t)
	require.NoError(t, c.Select(design))
	for i := 0; i < 30; i++ {
		require.NoError(t, c.RotateClockwise())
	}
	assert.Equal(t, 450.0, designTransform(t, s).Rotation)
	require.NoError(t, c.RotateCounterClockwise())
	assert.Equal(t, 435.0, designTransform(t, s).Rotation)
}

func TestController_ButtonsOnlyWhenSelected(t *testing.T) {
	_, c, _ := setup(t)
	assert.ErrorIs(t, c.ScaleUp(), ErrInvalidTransition)
	require.NoError(t, c.Select(design))
	require.NoError(t, c.BeginDrag())
	assert.ErrorIs(t, c.RotateClockwise(), ErrInvalidTransition)
	assert.ErrorIs(t, c.Scale(0.1), ErrInvalidTransition)
}

func TestController_DragNormalizesPixels(t *testing.T) {
	s, c, _ := setup(t, WithSurfaceSize(600, 600))
	require.NoError(t, c.Select(design))
	require.NoError(t, c.BeginDrag())
	require.NoError(t, c.Drag(60, -30))
	require.NoError(t, c.Drag(30, 0))
	require.NoError(t, c.End())

	pos := designTransform(t, s).Position
	assert.InDelta(t, 0.15, pos.X, 1e-9)
	assert.InDelta(t, -0.05, pos.Y, 1e-9)
}

func TestController_DragClampPolicy(t *testing.T) {
	s, c, _ := setup(t, WithSurfaceSize(100, 100))
	require.NoError(t, c.Select(design))
	require.NoError(t, c.BeginDrag())
	require.NoError(t, c.Drag(1000, -1000))

	area := models.PrintSizeA4.Printable()
	pos := designTransform(t, s).Position
	assert.Equal(t, area.MaxX, pos.X)
	assert.Equal(t, area.MinY, pos.Y)
}

func TestController_DragFlagPolicy(t *testing.T) {
	s, c, _ := setup(t, WithSurfaceSize(100, 100), WithBoundsPolicy(BoundsFlag))
	require.NoError(t, c.Select(design))
	require.NoError(t, c.BeginDrag())
	require.NoError(t, c.Drag(100, 0))

	assert.Equal(t, 1.0, designTransform(t, s).Position.X)
	violations := s.Validate()
	require.NotEmpty(t, violations)
	assert.Equal(t, customization.KindDesign, violations[0].Kind)
}

func TestController_TextTargetWritesThroughStore(t *testing.T) {
	s, c, id := setup(t)
	require.NoError(t, c.Select(Target{Side: models.SideFront, Kind: customization.KindText, TextID: id}))
	require.NoError(t, c.RotateClockwise())

	st, _, _ := s.SideSnapshot(models.SideFront)
	assert.Equal(t, 15.0, st.Texts[0].Transform.Rotation)
	assert.Equal(t, 0.0, st.Design.Transform.Rotation)
}

func TestController_ReadsLastCommittedValue(t *testing.T) {
	s, c, _ := setup(t)
	require.NoError(t, c.Select(design))
	require.NoError(t, c.ScaleUp())

	// an external writer (e.g. undo restoring a snapshot) changes the committed value
	restored := transform.Transform{Scale: 2}
	require.NoError(t, s.Update(models.SideFront, customization.KindDesign, customization.Patch{Transform: &restored}))

	require.NoError(t, c.ScaleUp())
	assert.InDelta(t, 2.1, designTransform(t, s).Scale, 1e-9)
}

func TestController_RemoveIsTerminal(t *testing.T) {
	s, c, id := setup(t)
	require.NoError(t, c.Select(Target{Side: models.SideFront, Kind: customization.KindText, TextID: id}))
	require.NoError(t, c.Remove())
	assert.Equal(t, Idle, c.State())

	st, _, _ := s.SideSnapshot(models.SideFront)
	assert.Empty(t, st.Texts)
	assert.NotNil(t, st.Design)

	require.NoError(t, c.Select(design))
	require.NoError(t, c.Remove())
	st, _, _ = s.SideSnapshot(models.SideFront)
	assert.True(t, st.Empty())
	assert.ErrorIs(t, c.Remove(), ErrInvalidTransition)
}

func TestController_ElementRemovedUnderneath(t *testing.T) {
	s, c, _ := setup(t)
	require.NoError(t, c.Select(design))
	require.NoError(t, s.RemoveDesign(models.SideFront))

	assert.ErrorIs(t, c.ScaleUp(), customization.ErrUnknownTarget)
	assert.Equal(t, Idle, c.State())
}
