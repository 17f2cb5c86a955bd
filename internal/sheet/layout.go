// Package sheet 负责把多张卡片排到固定尺寸的打印纸上：网格计算、选卡、整页文档生成。
package sheet

import (
	"fmt"
	"math"

	"academyCards/internal/card"
)

// A4 纸张与默认间距（毫米）。
const (
	A4WidthMM        = 210.0
	A4HeightMM       = 297.0
	DefaultMarginMM  = 5.0
	DefaultSpacingMM = 2.0
)

// Settings 描述纸张、卡片与间距，全部以毫米计。
type Settings struct {
	SheetWidthMM  float64 `json:"sheet_width_mm"`
	SheetHeightMM float64 `json:"sheet_height_mm"`
	CardWidthMM   float64 `json:"card_width_mm"`
	CardHeightMM  float64 `json:"card_height_mm"`
	MarginMM      float64 `json:"margin_mm"`
	SpacingMM     float64 `json:"spacing_mm"`
}

// DefaultSettings returns A4 with standard ID-1 cards.
func DefaultSettings() Settings {
	return Settings{
		SheetWidthMM:  A4WidthMM,
		SheetHeightMM: A4HeightMM,
		CardWidthMM:   card.StandardWidthMM,
		CardHeightMM:  card.StandardHeightMM,
		MarginMM:      DefaultMarginMM,
		SpacingMM:     DefaultSpacingMM,
	}
}

func (s Settings) Validate() error {
	if s.SheetWidthMM <= 0 || s.SheetHeightMM <= 0 {
		return fmt.Errorf("sheet size must be positive, got %vx%v", s.SheetWidthMM, s.SheetHeightMM)
	}
	if s.CardWidthMM <= 0 || s.CardHeightMM <= 0 {
		return fmt.Errorf("card size must be positive, got %vx%v", s.CardWidthMM, s.CardHeightMM)
	}
	if s.MarginMM < 0 || s.SpacingMM < 0 {
		return fmt.Errorf("margin and spacing must not be negative")
	}
	return nil
}

// Layout 是一张纸上的整数网格。
type Layout struct {
	Settings Settings `json:"settings"`
	Columns  int      `json:"columns"`
	Rows     int      `json:"rows"`
	Capacity int      `json:"capacity"`
}

// Placement 是网格中第 Index 个位置（行优先）。
type Placement struct {
	Index  int     `json:"index"`
	Column int     `json:"column"`
	Row    int     `json:"row"`
	XMM    float64 `json:"x_mm"`
	YMM    float64 `json:"y_mm"`
}

// ComputeLayout 计算每行、每页可容纳的卡片数，两者至少为 1。
func ComputeLayout(s Settings) (Layout, error) {
	if err := s.Validate(); err != nil {
		return Layout{}, err
	}
	cols := fitCount(s.SheetWidthMM, s.MarginMM, s.SpacingMM, s.CardWidthMM)
	rows := fitCount(s.SheetHeightMM, s.MarginMM, s.SpacingMM, s.CardHeightMM)
	return Layout{
		Settings: s,
		Columns:  cols,
		Rows:     rows,
		Capacity: cols * rows,
	}, nil
}

func fitCount(extent, margin, spacing, size float64) int {
	n := int(math.Floor((extent - 2*margin + spacing) / (size + spacing)))
	if n < 1 {
		return 1
	}
	return n
}

// Placements 返回前 n 个位置，按从左到右、从上到下排列；n 超过容量时截断。
func (l Layout) Placements(n int) []Placement {
	if n > l.Capacity {
		n = l.Capacity
	}
	if n < 0 {
		n = 0
	}
	s := l.Settings
	out := make([]Placement, n)
	for i := 0; i < n; i++ {
		col, row := i%l.Columns, i/l.Columns
		out[i] = Placement{
			Index:  i,
			Column: col,
			Row:    row,
			XMM:    s.MarginMM + float64(col)*(s.CardWidthMM+s.SpacingMM),
			YMM:    s.MarginMM + float64(row)*(s.CardHeightMM+s.SpacingMM),
		}
	}
	return out
}
