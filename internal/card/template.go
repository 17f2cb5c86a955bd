package card

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// 标准 ID-1 证件卡尺寸（毫米）。
const (
	StandardWidthMM  = 85.6
	StandardHeightMM = 53.98
)

// 新字段相对模板原点的默认偏移（毫米）。
const defaultFieldOffsetMM = 5.0

// Template 是可复用的卡片设计：类别、物理尺寸、背景与有序字段集合。
// 字段顺序即绘制顺序（z 轴）。
type Template struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Category             Category `json:"type"`
	Width                float64  `json:"width"`
	Height               float64  `json:"height"`
	BackgroundImage      string   `json:"backgroundImage,omitempty"`
	BackgroundImageScale float64  `json:"backgroundImageScale"`
	BackgroundImageX     float64  `json:"backgroundImageX"`
	BackgroundImageY     float64  `json:"backgroundImageY"`
	Fields               []Field  `json:"fields"`
}

// NewTemplate 为指定类别创建一个空白的标准尺寸模板。
func NewTemplate(category Category, name string) *Template {
	if name == "" {
		name = string(category)
	}
	return &Template{
		ID:                   uuid.NewString(),
		Name:                 name,
		Category:             category,
		Width:                StandardWidthMM,
		Height:               StandardHeightMM,
		BackgroundImageScale: 100,
		Fields:               []Field{},
	}
}

// FieldIndex 返回字段下标，不存在时返回 -1。
func (t *Template) FieldIndex(id string) int {
	for i := range t.Fields {
		if t.Fields[i].ID == id {
			return i
		}
	}
	return -1
}

// Field returns a pointer into t.Fields so callers can mutate in place.
func (t *Template) Field(id string) (*Field, bool) {
	idx := t.FieldIndex(id)
	if idx < 0 {
		return nil, false
	}
	return &t.Fields[idx], true
}

// HasName reports whether a field with the semantic name is already placed.
func (t *Template) HasName(name SemanticName) bool {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return true
		}
	}
	return false
}

// NewField builds a field for entry with default geometry and style.
// The field is sized and positioned so that it fits inside t.
func (t *Template) NewField(entry VocabularyEntry) Field {
	w, h := DefaultSize(entry.Kind)
	f := Field{
		ID:     uuid.NewString(),
		Name:   entry.Name,
		Kind:   entry.Kind,
		Label:  entry.Label,
		X:      defaultFieldOffsetMM,
		Y:      defaultFieldOffsetMM,
		Width:  w,
		Height: h,
	}
	switch entry.Kind {
	case KindText, KindDate, KindNumber:
		style := DefaultTextStyle()
		f.Text = &style
	case KindImage:
		f.Image = &ImageStyle{Scale: 1}
	case KindQRCode:
	}
	t.Fit(&f)
	return f
}

// Fit 将字段尺寸限制在模板内，再把位置夹到 [0, 模板尺寸-字段尺寸]。
func (t *Template) Fit(f *Field) {
	f.Width = math.Min(f.Width, t.Width)
	f.Height = math.Min(f.Height, t.Height)
	f.X, f.Y = t.ClampPosition(*f, f.X, f.Y)
}

// ClampPosition clamps a candidate top-left corner per axis so that f stays
// within the template: x ∈ [0, Width-f.Width], y ∈ [0, Height-f.Height].
func (t *Template) ClampPosition(f Field, x, y float64) (float64, float64) {
	return clamp(x, 0, t.Width-f.Width), clamp(y, 0, t.Height-f.Height)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// boundsEpsilon 容忍 JSON 浮点往返带来的微小误差。
const boundsEpsilon = 1e-9

// Validate 检查模板不变量：合法类别、正尺寸、字段在边界内、语义名唯一，
// 且每个语义名都属于该类别的词表，类型与词表一致。
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template id is required")
	}
	if !t.Category.Valid() {
		return fmt.Errorf("template %s: unknown category %q", t.ID, t.Category)
	}
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("template %s: width and height must be positive", t.ID)
	}
	if t.BackgroundImageScale < 0 {
		return fmt.Errorf("template %s: background scale must not be negative", t.ID)
	}

	ids := make(map[string]struct{}, len(t.Fields))
	names := make(map[SemanticName]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
		if _, dup := ids[f.ID]; dup {
			return fmt.Errorf("template %s: duplicate field id %s", t.ID, f.ID)
		}
		ids[f.ID] = struct{}{}
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("template %s: duplicate field name %s", t.ID, f.Name)
		}
		names[f.Name] = struct{}{}

		entry, ok := Lookup(t.Category, f.Name)
		if !ok {
			return fmt.Errorf("template %s: field name %q is not available for %s", t.ID, f.Name, t.Category)
		}
		if entry.Kind != f.Kind {
			return fmt.Errorf("template %s: field %s must be %s, got %s", t.ID, f.Name, entry.Kind, f.Kind)
		}

		if f.X < -boundsEpsilon || f.Y < -boundsEpsilon ||
			f.X+f.Width > t.Width+boundsEpsilon || f.Y+f.Height > t.Height+boundsEpsilon {
			return fmt.Errorf("template %s: field %s (%s) is out of bounds", t.ID, f.ID, f.Name)
		}
	}
	return nil
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	out := *t
	out.Fields = make([]Field, len(t.Fields))
	for i, f := range t.Fields {
		if f.Text != nil {
			style := *f.Text
			f.Text = &style
		}
		if f.Image != nil {
			img := *f.Image
			f.Image = &img
		}
		out.Fields[i] = f
	}
	return &out
}

// Marshal 序列化为持久化 JSON。
func Marshal(t *Template) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}
	return data, nil
}

// Unmarshal 从持久化 JSON 还原模板并校验不变量。
func Unmarshal(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal template: %w", err)
	}
	if t.Fields == nil {
		t.Fields = []Field{}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
