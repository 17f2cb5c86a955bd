package editor

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academyCards/internal/card"
	"academyCards/internal/repository"
	"academyCards/internal/units"
)

func newEditor(t *testing.T, category card.Category) (*Editor, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	e := New(store, store)
	_, err := e.Create(category, "test")
	require.NoError(t, err)
	return e, store
}

func px(mm float64) float64 { return units.MMToPx(mm) }

func TestAddFieldRejectsDuplicatesAndUnknownNames(t *testing.T) {
	e, _ := newEditor(t, card.MaleStudent)

	f, ok := e.AddField(card.NameFullName)
	require.True(t, ok)
	assert.Equal(t, card.KindText, f.Kind)

	_, ok = e.AddField(card.NameFullName)
	assert.False(t, ok, "duplicate semantic name is a no-op")

	_, ok = e.AddField(card.NameTeacherPhoto)
	assert.False(t, ok, "teacher photo is not in the student vocabulary")

	_, ok = e.AddField("nonsense")
	assert.False(t, ok)

	assert.Len(t, e.Template().Fields, 1)
}

func TestAddFieldWithoutTemplate(t *testing.T) {
	e := New(repository.NewMemoryStore(), nil)
	_, ok := e.AddField(card.NameFullName)
	assert.False(t, ok)
	assert.ErrorIs(t, e.Save(context.Background()), ErrNoTemplate)
}

func TestUniquenessInvariantUnderRandomAdds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, category := range card.Categories {
		e, _ := newEditor(t, category)
		vocab := card.Vocabulary(category)
		names := append([]card.SemanticName{"bogus", card.NameTeacherPhoto}, namesOf(vocab)...)
		for i := 0; i < 200; i++ {
			e.AddField(names[rng.Intn(len(names))])
		}
		seen := map[card.SemanticName]bool{}
		for _, f := range e.Template().Fields {
			assert.False(t, seen[f.Name], "duplicate %s", f.Name)
			seen[f.Name] = true
		}
		assert.NoError(t, e.Template().Validate())
	}
}

func namesOf(vocab []card.VocabularyEntry) []card.SemanticName {
	out := make([]card.SemanticName, 0, len(vocab))
	for _, v := range vocab {
		out = append(out, v.Name)
	}
	return out
}

func TestDragClampsToTemplateBounds(t *testing.T) {
	tpl := card.NewTemplate(card.MaleStudent, "")
	tpl.Fields = append(tpl.Fields, card.Field{
		ID: "f1", Name: card.NameFullName, Kind: card.KindText,
		X: 70, Y: 10, Width: 30, Height: 8,
	})
	e := New(repository.NewMemoryStore(), nil)
	e.Edit(tpl)

	require.True(t, e.BeginDrag("f1", Point{X: px(70), Y: px(10)}))
	f, ok := e.ContinueDrag(Point{X: px(90), Y: px(10)})
	require.True(t, ok)
	assert.InDelta(t, 55.6, f.X, 1e-9)
	assert.InDelta(t, 10, f.Y, 1e-9)

	f, _ = e.ContinueDrag(Point{X: px(-40), Y: px(500)})
	assert.Equal(t, 0.0, f.X)
	assert.InDelta(t, card.StandardHeightMM-8, f.Y, 1e-9)

	e.EndDrag()
	_, ok = e.ContinueDrag(Point{X: 0, Y: 0})
	assert.False(t, ok, "moves after EndDrag are ignored")

	sel, ok := e.Selected()
	require.True(t, ok)
	assert.Equal(t, 0.0, sel.X, "last clamped position is final")
}

func TestDragKeepsPointerOffset(t *testing.T) {
	e, _ := newEditor(t, card.FemaleStudent)
	f, _ := e.AddField(card.NameStudentPhoto)

	grab := Point{X: px(f.X + 3), Y: px(f.Y + 4)}
	require.True(t, e.BeginDrag(f.ID, grab))
	moved, ok := e.ContinueDrag(Point{X: px(f.X + 13), Y: px(f.Y + 9)})
	require.True(t, ok)
	assert.InDelta(t, f.X+10, moved.X, 1e-9)
	assert.InDelta(t, f.Y+5, moved.Y, 1e-9)
}

func TestDragHonoursZoom(t *testing.T) {
	e, _ := newEditor(t, card.MaleStudent)
	e.SetZoom(2)
	f, _ := e.AddField(card.NameFullName)

	require.True(t, e.BeginDrag(f.ID, Point{X: 2 * px(f.X), Y: 2 * px(f.Y)}))
	moved, _ := e.ContinueDrag(Point{X: 2 * px(f.X+6), Y: 2 * px(f.Y)})
	assert.InDelta(t, f.X+6, moved.X, 1e-9)
}

func TestBoundsInvariantUnderRandomDrags(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e, _ := newEditor(t, card.MaleTeacher)
	for _, entry := range card.Vocabulary(card.MaleTeacher) {
		e.AddField(entry.Name)
	}
	fields := e.Template().Fields

	for i := 0; i < 500; i++ {
		f := fields[rng.Intn(len(fields))]
		start := Point{X: rng.Float64()*2000 - 1000, Y: rng.Float64()*2000 - 1000}
		require.True(t, e.BeginDrag(f.ID, start))
		for j := 0; j < 5; j++ {
			moved, ok := e.ContinueDrag(Point{X: rng.Float64()*4000 - 2000, Y: rng.Float64()*4000 - 2000})
			require.True(t, ok)
			tpl := e.Template()
			assert.GreaterOrEqual(t, moved.X, 0.0)
			assert.LessOrEqual(t, moved.X, tpl.Width-moved.Width+1e-9)
			assert.GreaterOrEqual(t, moved.Y, 0.0)
			assert.LessOrEqual(t, moved.Y, tpl.Height-moved.Height+1e-9)
		}
		e.EndDrag()
	}
	assert.NoError(t, e.Template().Validate())
}

func TestBeginDragUnknownField(t *testing.T) {
	e, _ := newEditor(t, card.MaleStudent)
	assert.False(t, e.BeginDrag("missing", Point{}))
	assert.False(t, e.Dragging())
}

func TestRemoveFieldClearsSelection(t *testing.T) {
	e, _ := newEditor(t, card.MaleStudent)
	a, _ := e.AddField(card.NameFullName)
	b, _ := e.AddField(card.NameQRCode)

	require.True(t, e.Select(a.ID))
	assert.True(t, e.RemoveField(b.ID))
	sel, ok := e.Selected()
	require.True(t, ok, "removing another field keeps selection")
	assert.Equal(t, a.ID, sel.ID)

	assert.True(t, e.RemoveField(a.ID))
	_, ok = e.Selected()
	assert.False(t, ok)
	assert.False(t, e.RemoveField(a.ID))

	_, ok = e.AddField(card.NameFullName)
	assert.True(t, ok, "a removed name can be added again")
}

func TestUpdateFieldStyleIsVisibleThroughSelection(t *testing.T) {
	e, _ := newEditor(t, card.MaleStudent)
	f, _ := e.AddField(card.NameFullName)
	require.True(t, e.Select(f.ID))

	color := "#ff0000"
	align := card.AlignCenter
	_, err := e.UpdateFieldStyle(f.ID, card.StylePatch{Color: &color, Align: &align})
	require.NoError(t, err)

	sel, ok := e.Selected()
	require.True(t, ok)
	assert.Equal(t, "#ff0000", sel.Text.Color)
	assert.Equal(t, card.AlignCenter, sel.Text.Align)

	family := "Comic Sans"
	_, err = e.UpdateFieldStyle(f.ID, card.StylePatch{FontFamily: &family})
	assert.Error(t, err)

	_, err = e.UpdateFieldStyle("missing", card.StylePatch{Color: &color})
	assert.NoError(t, err)
}

func TestUpdateImageScale(t *testing.T) {
	e, _ := newEditor(t, card.MaleEmployee)
	f, _ := e.AddField(card.NameEmployeePhoto)

	scale := 1.5
	updated, err := e.UpdateFieldStyle(f.ID, card.StylePatch{Scale: &scale})
	require.NoError(t, err)
	assert.Equal(t, 1.5, updated.ImageScale())

	neg := -1.0
	_, err = e.UpdateFieldStyle(f.ID, card.StylePatch{Scale: &neg})
	assert.Error(t, err)
}

func TestResizeFieldReclampsPosition(t *testing.T) {
	e, _ := newEditor(t, card.MaleStudent)
	f, _ := e.AddField(card.NameFullName)
	_, ok := e.MoveField(f.ID, 50, 40)
	require.True(t, ok)

	resized, err := e.ResizeField(f.ID, 60, 20)
	require.NoError(t, err)
	assert.InDelta(t, card.StandardWidthMM-60, resized.X, 1e-9)
	assert.InDelta(t, card.StandardHeightMM-20, resized.Y, 1e-9)

	resized, err = e.ResizeField(f.ID, 500, 500)
	require.NoError(t, err)
	assert.Equal(t, card.StandardWidthMM, resized.Width)
	assert.Equal(t, 0.0, resized.X)

	_, err = e.ResizeField(f.ID, 0, 5)
	assert.Error(t, err)
}

func TestSaveWritesStoreAndLastEditedSlot(t *testing.T) {
	ctx := context.Background()
	e, store := newEditor(t, card.FemaleEmployee)
	e.AddField(card.NameFullName)
	require.NoError(t, e.SetBackground("data:image/png;base64,AAAA"))
	require.NoError(t, e.SetBackgroundScale(150))
	require.NoError(t, e.SetBackgroundOffset(1, -1))
	assert.Error(t, e.SetBackgroundScale(-5))
	require.NoError(t, e.Save(ctx))

	tpl := e.Template()
	stored, err := store.Get(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl, stored)

	last, err := store.LastEdited(ctx)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, last.ID)

	reopened := New(store, store)
	got, err := reopened.Open(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.BackgroundImageScale)
	_, ok := reopened.Selected()
	assert.False(t, ok)
}

func TestAvailableExcludesPlacedNames(t *testing.T) {
	e, _ := newEditor(t, card.MaleStudent)
	before := len(e.Available())
	e.AddField(card.NameQRCode)
	after := e.Available()
	assert.Len(t, after, before-1)
	for _, entry := range after {
		assert.NotEqual(t, card.NameQRCode, entry.Name)
	}
}
