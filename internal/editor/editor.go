// Package editor 实现卡片设计器的交互状态：添加/删除字段、拖拽定位（带边界夹紧）、样式修改与保存。
//
// Editor 不是并发安全的：一次会话由单个管理员、单个 goroutine 驱动。
package editor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"academyCards/internal/card"
	"academyCards/internal/repository"
	"academyCards/internal/units"
)

// ErrNoTemplate 表示尚未创建或打开模板。
var ErrNoTemplate = errors.New("no template is open")

// Point 是画布坐标系中的指针位置（像素，原点为模板左上角）。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Editor 持有当前编辑的模板以及唯一的选中状态 selectedID。
// 选中字段的属性总是通过查找模板得到，不保存第二份副本。
type Editor struct {
	store repository.Store
	slot  repository.LastEditedSlot

	tpl        *card.Template
	selectedID string

	// zoom 是画布显示缩放，指针像素先除以 zoom 再换算毫米。
	zoom float64

	dragging    bool
	dragOffsetX float64
	dragOffsetY float64
}

// New 创建编辑器。slot 可以为 nil，此时保存不会更新最近编辑槽。
func New(store repository.Store, slot repository.LastEditedSlot) *Editor {
	return &Editor{store: store, slot: slot, zoom: 1}
}

// SetZoom sets the canvas display zoom; non-positive values reset it to 1.
func (e *Editor) SetZoom(zoom float64) {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		zoom = 1
	}
	e.zoom = zoom
}

// Create 为类别开一个空白模板。
func (e *Editor) Create(category card.Category, name string) (*card.Template, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	e.reset(card.NewTemplate(category, name))
	return e.tpl.Clone(), nil
}

// Open loads a stored template by id.
func (e *Editor) Open(ctx context.Context, id string) (*card.Template, error) {
	tpl, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e.reset(tpl)
	return e.tpl.Clone(), nil
}

// Edit 直接接管一个已有模板（调用方需保证其有效）。
func (e *Editor) Edit(tpl *card.Template) {
	e.reset(tpl.Clone())
}

func (e *Editor) reset(tpl *card.Template) {
	e.tpl = tpl
	e.selectedID = ""
	e.dragging = false
	e.dragOffsetX, e.dragOffsetY = 0, 0
}

// Template returns a copy of the template under edit, or nil.
func (e *Editor) Template() *card.Template {
	if e.tpl == nil {
		return nil
	}
	return e.tpl.Clone()
}

// Save 覆盖保存到仓库，并更新最近编辑槽。
func (e *Editor) Save(ctx context.Context) error {
	if e.tpl == nil {
		return ErrNoTemplate
	}
	if err := e.store.Save(ctx, e.tpl); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	if e.slot != nil {
		if err := e.slot.SetLastEdited(ctx, e.tpl); err != nil {
			return fmt.Errorf("update last edited slot: %w", err)
		}
	}
	return nil
}

// Available 返回类别词汇中尚未放置到模板上的语义字段。
func (e *Editor) Available() []card.VocabularyEntry {
	if e.tpl == nil {
		return nil
	}
	var out []card.VocabularyEntry
	for _, entry := range card.Vocabulary(e.tpl.Category) {
		if !e.tpl.HasName(entry.Name) {
			out = append(out, entry)
		}
	}
	return out
}

// AddField appends a field for the semantic name. Names outside the
// category vocabulary, or already placed, are silently ignored and
// reported as added=false.
func (e *Editor) AddField(name card.SemanticName) (card.Field, bool) {
	if e.tpl == nil {
		return card.Field{}, false
	}
	entry, ok := card.Lookup(e.tpl.Category, name)
	if !ok || e.tpl.HasName(name) {
		return card.Field{}, false
	}
	f := e.tpl.NewField(entry)
	e.tpl.Fields = append(e.tpl.Fields, f)
	return f, true
}

// RemoveField deletes the field and clears the selection if it was selected.
func (e *Editor) RemoveField(id string) bool {
	if e.tpl == nil {
		return false
	}
	idx := e.tpl.FieldIndex(id)
	if idx < 0 {
		return false
	}
	e.tpl.Fields = append(e.tpl.Fields[:idx], e.tpl.Fields[idx+1:]...)
	if e.selectedID == id {
		e.selectedID = ""
		e.dragging = false
	}
	return true
}

// Select 选中字段；空 id 清除选中。
func (e *Editor) Select(id string) bool {
	if id == "" {
		e.selectedID = ""
		return true
	}
	if e.tpl == nil || e.tpl.FieldIndex(id) < 0 {
		return false
	}
	e.selectedID = id
	return true
}

// Selected 通过查找模板返回当前选中字段。
func (e *Editor) Selected() (card.Field, bool) {
	if e.tpl == nil || e.selectedID == "" {
		return card.Field{}, false
	}
	f, ok := e.tpl.Field(e.selectedID)
	if !ok {
		return card.Field{}, false
	}
	return *f, true
}

// Dragging reports whether a drag is in progress.
func (e *Editor) Dragging() bool {
	return e.dragging
}

// BeginDrag 选中字段并记录指针在字段框内的偏移（毫米）。
func (e *Editor) BeginDrag(id string, pointer Point) bool {
	if e.tpl == nil {
		return false
	}
	f, ok := e.tpl.Field(id)
	if !ok {
		return false
	}
	px, py := e.pointerMM(pointer)
	e.selectedID = id
	e.dragging = true
	e.dragOffsetX = px - f.X
	e.dragOffsetY = py - f.Y
	return true
}

// ContinueDrag moves the selected field so that the recorded offset stays
// under the pointer, clamping each axis by the field's own size:
// x ∈ [0, template.Width-field.Width], y ∈ [0, template.Height-field.Height].
func (e *Editor) ContinueDrag(pointer Point) (card.Field, bool) {
	if e.tpl == nil || !e.dragging {
		return card.Field{}, false
	}
	f, ok := e.tpl.Field(e.selectedID)
	if !ok {
		e.dragging = false
		return card.Field{}, false
	}
	px, py := e.pointerMM(pointer)
	f.X, f.Y = e.tpl.ClampPosition(*f, px-e.dragOffsetX, py-e.dragOffsetY)
	return *f, true
}

// EndDrag 结束拖拽，字段保持最后一次夹紧后的位置；选中状态保留。
func (e *Editor) EndDrag() {
	e.dragging = false
	e.dragOffsetX, e.dragOffsetY = 0, 0
}

func (e *Editor) pointerMM(p Point) (float64, float64) {
	return units.PxToMM(p.X / e.zoom), units.PxToMM(p.Y / e.zoom)
}

// MoveField 直接设置字段位置（毫米），同样受边界夹紧。
func (e *Editor) MoveField(id string, x, y float64) (card.Field, bool) {
	if e.tpl == nil {
		return card.Field{}, false
	}
	f, ok := e.tpl.Field(id)
	if !ok {
		return card.Field{}, false
	}
	f.X, f.Y = e.tpl.ClampPosition(*f, x, y)
	return *f, true
}

// ResizeField sets width/height in mm. Sizes are limited to the template
// dimensions and the position is re-clamped; non-positive sizes are rejected.
func (e *Editor) ResizeField(id string, width, height float64) (card.Field, error) {
	if e.tpl == nil {
		return card.Field{}, ErrNoTemplate
	}
	if width <= 0 || height <= 0 {
		return card.Field{}, fmt.Errorf("field size must be positive, got %vx%v", width, height)
	}
	f, ok := e.tpl.Field(id)
	if !ok {
		return card.Field{}, fmt.Errorf("field %s not found", id)
	}
	f.Width, f.Height = width, height
	e.tpl.Fit(f)
	return *f, nil
}

// UpdateFieldStyle merges the patch into the field. An unknown id is a no-op.
func (e *Editor) UpdateFieldStyle(id string, patch card.StylePatch) (card.Field, error) {
	if e.tpl == nil {
		return card.Field{}, ErrNoTemplate
	}
	f, ok := e.tpl.Field(id)
	if !ok {
		return card.Field{}, nil
	}
	if err := patch.Apply(f); err != nil {
		return *f, err
	}
	return *f, nil
}

// Rename 修改模板名称。
func (e *Editor) Rename(name string) error {
	if e.tpl == nil {
		return ErrNoTemplate
	}
	if name != "" {
		e.tpl.Name = name
	}
	return nil
}

// SetBackground 设置背景图（data URI 或对象存储 key），空字符串表示移除背景。
func (e *Editor) SetBackground(image string) error {
	if e.tpl == nil {
		return ErrNoTemplate
	}
	e.tpl.BackgroundImage = image
	return nil
}

// SetBackgroundScale sets the background zoom in percent.
func (e *Editor) SetBackgroundScale(percent float64) error {
	if e.tpl == nil {
		return ErrNoTemplate
	}
	if percent < 0 {
		return fmt.Errorf("background scale must not be negative, got %v", percent)
	}
	e.tpl.BackgroundImageScale = percent
	return nil
}

// SetBackgroundOffset 设置背景偏移（毫米）。
func (e *Editor) SetBackgroundOffset(x, y float64) error {
	if e.tpl == nil {
		return ErrNoTemplate
	}
	e.tpl.BackgroundImageX = x
	e.tpl.BackgroundImageY = y
	return nil
}
