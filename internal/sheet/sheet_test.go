package sheet

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academyCards/internal/card"
	"academyCards/internal/render"
)

func TestComputeLayoutA4(t *testing.T) {
	l, err := ComputeLayout(DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 2, l.Columns)
	assert.Equal(t, 5, l.Rows)
	assert.Equal(t, 10, l.Capacity)
}

func TestComputeLayoutDegenerateSheets(t *testing.T) {
	l, err := ComputeLayout(Settings{
		SheetWidthMM: 50, SheetHeightMM: 30,
		CardWidthMM: card.StandardWidthMM, CardHeightMM: card.StandardHeightMM,
		MarginMM: 20, SpacingMM: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Columns)
	assert.Equal(t, 1, l.Rows)
	assert.Equal(t, 1, l.Capacity)

	_, err = ComputeLayout(Settings{SheetWidthMM: 0, SheetHeightMM: 10, CardWidthMM: 1, CardHeightMM: 1})
	assert.Error(t, err)
	_, err = ComputeLayout(Settings{SheetWidthMM: 10, SheetHeightMM: 10, CardWidthMM: 1, CardHeightMM: 1, MarginMM: -1})
	assert.Error(t, err)
}

func record(id string) card.Record {
	return card.Record{Category: card.MaleStudent, Values: map[string]string{
		card.KeyRegistrationNumber: id,
		card.KeyFirstName:          "طالب",
		card.KeyLastName:           id,
	}}
}

func TestCapacityLawUnderRandomConfigurations(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		s := Settings{
			SheetWidthMM:  1 + rng.Float64()*400,
			SheetHeightMM: 1 + rng.Float64()*400,
			CardWidthMM:   1 + rng.Float64()*100,
			CardHeightMM:  1 + rng.Float64()*100,
			MarginMM:      rng.Float64() * 50,
			SpacingMM:     rng.Float64() * 10,
		}
		l, err := ComputeLayout(s)
		require.NoError(t, err)
		require.GreaterOrEqual(t, l.Columns, 1)
		require.GreaterOrEqual(t, l.Rows, 1)
		require.Equal(t, l.Columns*l.Rows, l.Capacity)

		sel := NewSelection(l)
		for j := 0; j < l.Capacity+5 && j < 300; j++ {
			_, _ = sel.AddCard(record(fmt.Sprintf("R%d", j)))
			require.LessOrEqual(t, sel.Len(), l.Capacity)
		}
	}
}

func TestSelectionAddRemove(t *testing.T) {
	l, err := ComputeLayout(Settings{
		SheetWidthMM: 100, SheetHeightMM: 70,
		CardWidthMM: card.StandardWidthMM, CardHeightMM: card.StandardHeightMM,
		MarginMM: 5, SpacingMM: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 1, l.Capacity)

	sel := NewSelection(l)
	added, err := sel.AddCard(record("A"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = sel.AddCard(record("A"))
	require.NoError(t, err)
	assert.False(t, added, "duplicate identity is a no-op")

	_, err = sel.AddCard(record("B"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 1, sel.Len())

	_, err = sel.AddCard(card.Record{})
	assert.ErrorIs(t, err, ErrMissingIdentity)

	assert.False(t, sel.RemoveCard("B"))
	assert.True(t, sel.RemoveCard("A"))
	assert.Zero(t, sel.Len())

	added, err = sel.AddCard(record("B"))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestPlacementsAreRowMajor(t *testing.T) {
	l, err := ComputeLayout(DefaultSettings())
	require.NoError(t, err)

	ps := l.Placements(5)
	require.Len(t, ps, 5)
	assert.Equal(t, []int{0, 1, 0, 1, 0}, []int{ps[0].Column, ps[1].Column, ps[2].Column, ps[3].Column, ps[4].Column})
	assert.Equal(t, []int{0, 0, 1, 1, 2}, []int{ps[0].Row, ps[1].Row, ps[2].Row, ps[3].Row, ps[4].Row})
	assert.InDelta(t, 5+85.6+2, ps[1].XMM, 1e-9)
	assert.InDelta(t, 5+53.98+2, ps[2].YMM, 1e-9)

	assert.Len(t, l.Placements(50), 10)
}

func newComposer() *Composer {
	r := render.NewRenderer(nil, render.Options{
		Encoder: func([]byte, int) ([]byte, error) { return nil, fmt.Errorf("qr disabled") },
		Now:     func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	return NewComposer(nil, r)
}

func TestComposeSheet(t *testing.T) {
	tpl := card.NewTemplate(card.MaleStudent, "default")
	entry, _ := card.Lookup(card.MaleStudent, card.NameFullName)
	tpl.Fields = append(tpl.Fields, tpl.NewField(entry))
	templates := map[card.Category]*card.Template{card.MaleStudent: tpl}

	l, err := ComputeLayout(DefaultSettings())
	require.NoError(t, err)
	sel := NewSelection(l)
	for _, id := range []string{"S1", "S2", "S3"} {
		_, err := sel.AddCard(record(id))
		require.NoError(t, err)
	}
	teacher := card.Record{Category: card.FemaleTeacher, Values: map[string]string{card.KeyRegistrationNumber: "T1"}}
	_, err = sel.AddCard(teacher)
	require.NoError(t, err)

	s, err := newComposer().ComposeSelection(context.Background(), templates, sel)
	require.NoError(t, err)
	require.Len(t, s.Cells, 4)
	assert.Equal(t, "S1", s.Cells[0].RecordID)
	assert.Equal(t, 1, s.Cells[1].Column)
	assert.Equal(t, 1, s.Cells[2].Row)
	assert.True(t, s.Cells[3].Result.NoTemplate())

	html, err := s.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "طالب S1")
	assert.Contains(t, html, "grid-template-columns: repeat(2, 85.60mm)")
	assert.Contains(t, html, "size: 210.00mm 297.00mm")
	assert.Equal(t, 1, strings.Count(html, `class="no-template"`))
	assert.NotContains(t, html, "<button")
	assert.NotContains(t, html, "ZgotmplZ")
}

func TestComposeRejectsOverflow(t *testing.T) {
	l, err := ComputeLayout(Settings{
		SheetWidthMM: 90, SheetHeightMM: 60,
		CardWidthMM: card.StandardWidthMM, CardHeightMM: card.StandardHeightMM,
	})
	require.NoError(t, err)
	_, err = newComposer().Compose(context.Background(), nil, []card.Record{record("A"), record("B")}, l)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}
