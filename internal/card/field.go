package card

import (
	"fmt"
	"regexp"
)

// Kind 决定字段的渲染策略。
type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindQRCode Kind = "qrcode"
	KindDate   Kind = "date"
	KindNumber Kind = "number"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindQRCode, KindDate, KindNumber:
		return true
	default:
		return false
	}
}

// Textual 表示该类字段携带文字样式。
func (k Kind) Textual() bool {
	switch k {
	case KindText, KindDate, KindNumber:
		return true
	case KindImage, KindQRCode:
		return false
	default:
		return false
	}
}

type FontWeight string

const (
	WeightNormal FontWeight = "normal"
	WeightBold   FontWeight = "bold"
)

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// FontFamilies 是编辑器允许的字体集合。
var FontFamilies = []string{"Cairo", "Tajawal", "Amiri", "Arial"}

const DefaultFontFamily = "Cairo"

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// TextStyle 仅对 text/date/number 字段有效。
type TextStyle struct {
	FontSize   float64    `json:"fontSize"`
	FontWeight FontWeight `json:"fontWeight"`
	FontFamily string     `json:"fontFamily"`
	Color      string     `json:"color"`
	Align      Align      `json:"textAlign"`
}

// DefaultTextStyle returns the style given to freshly added text fields.
func DefaultTextStyle() TextStyle {
	return TextStyle{
		FontSize:   10,
		FontWeight: WeightNormal,
		FontFamily: DefaultFontFamily,
		Color:      "#000000",
		Align:      AlignRight,
	}
}

// Validate 校验字号、字重、字体、颜色与对齐方式。
func (s TextStyle) Validate() error {
	if s.FontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %v", s.FontSize)
	}
	switch s.FontWeight {
	case WeightNormal, WeightBold:
	default:
		return fmt.Errorf("unknown font weight %q", s.FontWeight)
	}
	if !knownFamily(s.FontFamily) {
		return fmt.Errorf("unknown font family %q", s.FontFamily)
	}
	if !hexColorPattern.MatchString(s.Color) {
		return fmt.Errorf("invalid color %q", s.Color)
	}
	switch s.Align {
	case AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("unknown alignment %q", s.Align)
	}
	return nil
}

func knownFamily(family string) bool {
	for _, f := range FontFamilies {
		if f == family {
			return true
		}
	}
	return false
}

// ImageStyle 仅对 image 字段有效。
type ImageStyle struct {
	Scale float64 `json:"scale"`
}

// Field 是模板上一个已定位、带样式的语义内容槽。几何量均为毫米，原点为模板左上角。
type Field struct {
	ID     string       `json:"id"`
	Name   SemanticName `json:"name"`
	Kind   Kind         `json:"kind"`
	Label  string       `json:"label"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Width  float64      `json:"width"`
	Height float64      `json:"height"`
	Text   *TextStyle   `json:"text,omitempty"`
	Image  *ImageStyle  `json:"image,omitempty"`
}

// StylePatch 是 UpdateFieldStyle 的部分更新，nil 表示不修改。
type StylePatch struct {
	FontSize   *float64    `json:"fontSize,omitempty"`
	FontWeight *FontWeight `json:"fontWeight,omitempty"`
	FontFamily *string     `json:"fontFamily,omitempty"`
	Color      *string     `json:"color,omitempty"`
	Align      *Align      `json:"textAlign,omitempty"`
	Scale      *float64    `json:"scale,omitempty"`
}

// Apply merges the patch into f. Text attributes are ignored for non-textual
// kinds and scale is ignored for non-image kinds. Invalid values leave the
// field untouched and return an error.
func (p StylePatch) Apply(f *Field) error {
	if f.Kind.Textual() {
		style := DefaultTextStyle()
		if f.Text != nil {
			style = *f.Text
		}
		if p.FontSize != nil {
			style.FontSize = *p.FontSize
		}
		if p.FontWeight != nil {
			style.FontWeight = *p.FontWeight
		}
		if p.FontFamily != nil {
			style.FontFamily = *p.FontFamily
		}
		if p.Color != nil {
			style.Color = *p.Color
		}
		if p.Align != nil {
			style.Align = *p.Align
		}
		if err := style.Validate(); err != nil {
			return err
		}
		f.Text = &style
	}
	if f.Kind == KindImage && p.Scale != nil {
		if *p.Scale < 0 {
			return fmt.Errorf("image scale must not be negative, got %v", *p.Scale)
		}
		f.Image = &ImageStyle{Scale: *p.Scale}
	}
	return nil
}

// DefaultSize returns the width/height in mm a new field of the kind starts with.
func DefaultSize(k Kind) (width, height float64) {
	switch k {
	case KindImage:
		return 20, 25
	case KindQRCode:
		return 18, 18
	case KindText, KindDate, KindNumber:
		return 35, 6
	default:
		return 35, 6
	}
}

// Validate 检查字段自身的一致性（不含模板边界，边界见 Template.Validate）。
func (f Field) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("field id is required")
	}
	if !f.Kind.Valid() {
		return fmt.Errorf("field %s: unknown kind %q", f.ID, f.Kind)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("field %s: width and height must be positive", f.ID)
	}
	if f.Kind.Textual() && f.Text != nil {
		if err := f.Text.Validate(); err != nil {
			return fmt.Errorf("field %s: %w", f.ID, err)
		}
	}
	if f.Kind == KindImage && f.Image != nil && f.Image.Scale < 0 {
		return fmt.Errorf("field %s: image scale must not be negative", f.ID)
	}
	return nil
}

// TextStyleOrDefault never returns nil for textual kinds.
func (f Field) TextStyleOrDefault() TextStyle {
	if f.Text != nil {
		return *f.Text
	}
	return DefaultTextStyle()
}

// ImageScale 返回图片缩放系数，缺省为 1。
func (f Field) ImageScale() float64 {
	if f.Image == nil {
		return 1
	}
	return f.Image.Scale
}
