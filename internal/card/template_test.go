package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTemplateDefaults(t *testing.T) {
	tpl := NewTemplate(MaleStudent, "")

	assert.NotEmpty(t, tpl.ID)
	assert.Equal(t, "male_student", tpl.Name)
	assert.Equal(t, StandardWidthMM, tpl.Width)
	assert.Equal(t, StandardHeightMM, tpl.Height)
	assert.Equal(t, 100.0, tpl.BackgroundImageScale)
	assert.NoError(t, tpl.Validate())
}

func TestNewFieldDefaultsByKind(t *testing.T) {
	tpl := NewTemplate(FemaleTeacher, "teachers")

	photo, ok := Lookup(FemaleTeacher, NameTeacherPhoto)
	require.True(t, ok)
	img := tpl.NewField(photo)
	assert.Equal(t, KindImage, img.Kind)
	assert.Equal(t, 1.0, img.ImageScale())
	assert.Nil(t, img.Text)

	name, ok := Lookup(FemaleTeacher, NameFullName)
	require.True(t, ok)
	txt := tpl.NewField(name)
	require.NotNil(t, txt.Text)
	assert.Equal(t, DefaultFontFamily, txt.Text.FontFamily)

	assert.Greater(t, img.Width*img.Height, txt.Width*txt.Height, "images default larger than text")
}

func TestNewFieldFitsTinyTemplate(t *testing.T) {
	tpl := NewTemplate(MaleEmployee, "tiny")
	tpl.Width, tpl.Height = 10, 4

	entry, _ := Lookup(MaleEmployee, NameEmployeePhoto)
	f := tpl.NewField(entry)
	assert.Equal(t, 10.0, f.Width)
	assert.Equal(t, 4.0, f.Height)
	assert.Equal(t, 0.0, f.X)
	assert.Equal(t, 0.0, f.Y)

	tpl.Fields = append(tpl.Fields, f)
	assert.NoError(t, tpl.Validate())
}

func TestClampPosition(t *testing.T) {
	tpl := NewTemplate(MaleStudent, "")
	f := Field{Width: 30, Height: 10}

	x, y := tpl.ClampPosition(f, 90, -3)
	assert.InDelta(t, 55.6, x, 1e-9)
	assert.Equal(t, 0.0, y)

	x, y = tpl.ClampPosition(f, -1, 100)
	assert.Equal(t, 0.0, x)
	assert.InDelta(t, StandardHeightMM-10, y, 1e-9)
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	tpl := NewTemplate(MaleStudent, "")
	entry, _ := Lookup(MaleStudent, NameFullName)
	tpl.Fields = append(tpl.Fields, tpl.NewField(entry), tpl.NewField(entry))

	assert.ErrorContains(t, tpl.Validate(), "duplicate field name")
}

func TestValidateRejectsOutOfBounds(t *testing.T) {
	tpl := NewTemplate(MaleStudent, "")
	entry, _ := Lookup(MaleStudent, NameFullName)
	f := tpl.NewField(entry)
	f.X = tpl.Width
	tpl.Fields = append(tpl.Fields, f)

	assert.ErrorContains(t, tpl.Validate(), "out of bounds")
}

func TestValidateRejectsOutOfVocabulary(t *testing.T) {
	cases := map[string]Field{
		"unknown name":        {Name: "bogusName", Kind: KindText},
		"other role's photo":  {Name: NameTeacherPhoto, Kind: KindImage},
		"kind does not match": {Name: NameFullName, Kind: KindImage},
	}
	for label, f := range cases {
		t.Run(label, func(t *testing.T) {
			tpl := NewTemplate(MaleStudent, "")
			f.ID = "f1"
			f.Width, f.Height = 10, 5
			tpl.Fields = append(tpl.Fields, f)

			assert.Error(t, tpl.Validate())
			data, err := Marshal(tpl)
			require.NoError(t, err)
			_, err = Unmarshal(data)
			assert.Error(t, err)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	tpl := NewTemplate(FemaleStudent, "طالبات 2024")
	tpl.BackgroundImage = "data:image/png;base64,iVBORw0KGgo="
	tpl.BackgroundImageScale = 120
	tpl.BackgroundImageX = 1.5
	tpl.BackgroundImageY = -2
	for _, name := range []SemanticName{NameFullName, NameStudentPhoto, NameQRCode, NameBirthDate} {
		entry, ok := Lookup(FemaleStudent, name)
		require.True(t, ok)
		tpl.Fields = append(tpl.Fields, tpl.NewField(entry))
	}
	tpl.Fields[0].Text.FontWeight = WeightBold
	tpl.Fields[0].Text.Color = "#1a2b3c"
	tpl.Fields[1].Image.Scale = 0.75

	data, err := Marshal(tpl)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, tpl, got)
}

func TestUnmarshalRejectsInvalid(t *testing.T) {
	_, err := Unmarshal([]byte(`{"id":"x","type":"alien","width":10,"height":10}`))
	assert.ErrorContains(t, err, "unknown category")

	_, err = Unmarshal([]byte(`{not json`))
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	tpl := NewTemplate(MaleStudent, "")
	entry, _ := Lookup(MaleStudent, NameFullName)
	tpl.Fields = append(tpl.Fields, tpl.NewField(entry))

	clone := tpl.Clone()
	clone.Fields[0].Text.Color = "#ffffff"
	clone.Fields[0].X = 40

	assert.Equal(t, "#000000", tpl.Fields[0].Text.Color)
	assert.Equal(t, 5.0, tpl.Fields[0].X)
}

func TestStylePatchApply(t *testing.T) {
	tpl := NewTemplate(MaleStudent, "")
	entry, _ := Lookup(MaleStudent, NameFullName)
	f := tpl.NewField(entry)

	size := 14.0
	bold := WeightBold
	require.NoError(t, StylePatch{FontSize: &size, FontWeight: &bold}.Apply(&f))
	assert.Equal(t, 14.0, f.Text.FontSize)
	assert.Equal(t, WeightBold, f.Text.FontWeight)
	assert.Equal(t, "#000000", f.Text.Color)

	bad := "red"
	assert.Error(t, StylePatch{Color: &bad}.Apply(&f))
	assert.Equal(t, "#000000", f.Text.Color, "invalid patch leaves field untouched")

	scale := 2.0
	require.NoError(t, StylePatch{Scale: &scale}.Apply(&f))
	assert.Nil(t, f.Image, "scale is ignored for text fields")
}

func TestVocabularyPerCategory(t *testing.T) {
	for _, c := range Categories {
		vocab := Vocabulary(c)
		require.NotEmpty(t, vocab, c)
		seen := map[SemanticName]bool{}
		photos := 0
		for _, e := range vocab {
			assert.False(t, seen[e.Name], "duplicate %s in %s", e.Name, c)
			seen[e.Name] = true
			assert.True(t, e.Kind.Valid())
			assert.NotEmpty(t, e.Label)
			if e.Name.IsPhoto() {
				photos++
				assert.Equal(t, KindImage, e.Kind)
			}
		}
		assert.Equal(t, 1, photos, c)
	}
	assert.Nil(t, Vocabulary("alien"))

	_, ok := Lookup(MaleStudent, NameTeacherPhoto)
	assert.False(t, ok)
}

func TestRecordAccessors(t *testing.T) {
	r := Record{Category: MaleStudent, Values: map[string]string{
		KeyFirstName:          "أحمد",
		KeyLastName:           " محمد ",
		KeyRegistrationNumber: "STU-2024-0001",
		KeyPhoto:              "data:image/png;base64,AAAA",
	}}

	assert.Equal(t, "أحمد محمد", r.FullName())
	assert.Equal(t, "STU-2024-0001", r.ID())
	assert.Equal(t, "data:image/png;base64,AAAA", r.Photo(NameStudentPhoto))
	assert.Equal(t, "", Record{}.Get(KeyEmail))
	assert.Equal(t, "", Record{}.FullName())
}
