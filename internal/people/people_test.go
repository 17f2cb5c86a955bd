package people

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"academyCards/internal/card"
	"academyCards/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Prepare(db, "sqlite"))
	return NewStore(db)
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	n, err := s.Import(context.Background(), []card.Record{
		{Category: card.MaleStudent, Values: map[string]string{
			card.KeyRegistrationNumber: "st-001",
			card.KeyFirstName:          "أحمد",
			card.KeyLastName:           "محمد",
			card.KeyBirthDate:          "02/09/2010",
		}},
		{Category: card.FemaleTeacher, Values: map[string]string{
			card.KeyRegistrationNumber: "TE-9",
			card.KeyFirstName:          "ليلى",
			card.KeyBirthDate:          "1985-04-20",
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "male_student/ST-001", RecordKey(card.MaleStudent, "  st-001 "))
	assert.NotEqual(t, RecordKey(card.MaleStudent, "1"), RecordKey(card.FemaleStudent, "1"))
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	rec, err := s.Verify(ctx, "ST-001", "2010-09-02")
	require.NoError(t, err)
	assert.Equal(t, card.MaleStudent, rec.Category)
	assert.Equal(t, "أحمد محمد", rec.FullName())
	assert.Equal(t, "ST-001", rec.ID())

	_, err = s.Verify(ctx, "st-001", "2010-09-03")
	assert.ErrorIs(t, err, ErrBirthDateMismatch)
	_, err = s.Verify(ctx, "st-001", "yesterday")
	assert.ErrorIs(t, err, ErrBirthDateMismatch)
	_, err = s.Verify(ctx, "nobody", "2010-09-02")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportOverwritesByRegistrationNumber(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	_, err := s.Import(ctx, []card.Record{{Category: card.FemaleTeacher, Values: map[string]string{
		card.KeyRegistrationNumber: "te-9",
		card.KeyFirstName:          "ليلى",
		card.KeySubject:            "كيمياء",
	}}})
	require.NoError(t, err)

	rec, err := s.ByRegistration(ctx, "TE-9")
	require.NoError(t, err)
	assert.Equal(t, "كيمياء", rec.Get(card.KeySubject))

	_, err = s.Import(ctx, []card.Record{{Category: "alien", Values: map[string]string{card.KeyRegistrationNumber: "x"}}})
	assert.Error(t, err)
	_, err = s.Import(ctx, []card.Record{{Category: card.MaleStudent}})
	assert.Error(t, err)
}

func TestImportKeepsLastDuplicateInBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.Import(ctx, []card.Record{
		{Category: card.MaleEmployee, Values: map[string]string{
			card.KeyRegistrationNumber: "em-4",
			card.KeyDepartment:         "المحاسبة",
		}},
		{Category: card.MaleStudent, Values: map[string]string{card.KeyRegistrationNumber: "st-2"}},
		{Category: card.MaleEmployee, Values: map[string]string{
			card.KeyRegistrationNumber: " EM-4 ",
			card.KeyDepartment:         "الإدارة",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := s.ByRegistration(ctx, "EM-4")
	require.NoError(t, err)
	assert.Equal(t, "الإدارة", rec.Get(card.KeyDepartment))
}

func TestByRegistrationsKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	records, missing, err := s.ByRegistrations(context.Background(), []string{"TE-9", "ghost", "st-001"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TE-9", records[0].ID())
	assert.Equal(t, "ST-001", records[1].ID())
	assert.Equal(t, []string{"ghost"}, missing)
}
