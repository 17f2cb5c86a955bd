package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"academyCards/internal/api/middleware"
	"academyCards/internal/card"
	"academyCards/internal/editor"
	"academyCards/internal/render"
	"academyCards/internal/repository"
	"academyCards/internal/storage"
	"academyCards/internal/tasks"
)

// TemplateHandler 暴露卡片设计器：每个请求从仓库打开模板、修改、保存（最后写入者胜出）。
type TemplateHandler struct {
	store    repository.Store
	slot     repository.LastEditedSlot
	enqueuer TaskEnqueuer
}

// NewTemplateHandler 构造设计器处理器。slot 与 enqueuer 可以为 nil。
func NewTemplateHandler(store repository.Store, slot repository.LastEditedSlot, enqueuer TaskEnqueuer) *TemplateHandler {
	return &TemplateHandler{store: store, slot: slot, enqueuer: enqueuer}
}

type templateListItem struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Category   card.Category `json:"type"`
	FieldCount int           `json:"fieldCount"`
}

type createTemplateRequest struct {
	Category card.Category `json:"category" binding:"required"`
	Name     string        `json:"name"`
}

type addFieldRequest struct {
	Name card.SemanticName `json:"name" binding:"required"`
}

type resizeFieldRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type dragFieldRequest struct {
	Start editor.Point   `json:"start"`
	Moves []editor.Point `json:"moves"`
	Zoom  float64        `json:"zoom"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

type backgroundRequest struct {
	Image *string  `json:"image"`
	Scale *float64 `json:"scale"`
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
}

// GET /v1/templates?category=
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	categories := card.Categories
	if raw := c.Query("category"); raw != "" {
		category := card.Category(raw)
		if !category.Valid() {
			BadRequest(c, "unknown category")
			return
		}
		categories = []card.Category{category}
	}

	items := make([]templateListItem, 0)
	for _, category := range categories {
		list, err := h.store.ListByCategory(c.Request.Context(), category)
		if err != nil {
			middleware.LoggerFromContext(c).Error("list templates failed", slog.Any("error", err))
			Internal(c, "failed to list templates")
			return
		}
		for _, t := range list {
			items = append(items, templateListItem{ID: t.ID, Name: t.Name, Category: t.Category, FieldCount: len(t.Fields)})
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// POST /v1/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	e := editor.New(h.store, h.slot)
	if _, err := e.Create(req.Category, req.Name); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusCreated, e.Template())
}

// GET /v1/templates/last-edited
func (h *TemplateHandler) GetLastEdited(c *gin.Context) {
	if h.slot == nil {
		NotFound(c, "no recently edited template")
		return
	}
	tpl, err := h.slot.LastEdited(c.Request.Context())
	if errors.Is(err, repository.ErrNotFound) {
		NotFound(c, "no recently edited template")
		return
	}
	if err != nil {
		middleware.LoggerFromContext(c).Error("read last edited slot failed", slog.Any("error", err))
		Internal(c, "failed to load template")
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	e, ok := h.open(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.Template())
}

// PUT /v1/templates/:id
// 整体覆盖：路径中的 id 为准，类别不可修改。
func (h *TemplateHandler) PutTemplate(c *gin.Context) {
	e, ok := h.open(c)
	if !ok {
		return
	}

	var tpl card.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		BadRequest(c, err.Error())
		return
	}
	tpl.ID = c.Param("id")
	if tpl.Category != e.Template().Category {
		BadRequest(c, "template category cannot change")
		return
	}
	if tpl.Fields == nil {
		tpl.Fields = []card.Field{}
	}
	if err := tpl.Validate(); err != nil {
		BadRequest(c, err.Error())
		return
	}

	e.Edit(&tpl)
	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusOK, e.Template())
}

// DELETE /v1/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		NotFound(c, "template not found")
		return
	}
	if err != nil {
		middleware.LoggerFromContext(c).Error("delete template failed", slog.Any("error", err))
		Internal(c, "failed to delete template")
		return
	}
	if h.slot != nil {
		// 模板已删除，槽清理失败只记录日志。
		if err := h.slot.ClearLastEdited(c.Request.Context(), c.Param("id")); err != nil {
			middleware.LoggerFromContext(c).Warn("clear last edited slot failed", slog.Any("error", err))
		}
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/vocabulary?category=
func (h *TemplateHandler) GetVocabulary(c *gin.Context) {
	category := card.Category(c.Query("category"))
	if !category.Valid() {
		BadRequest(c, "unknown category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": card.Vocabulary(category)})
}

// GET /v1/templates/:id/available-fields
// 返回尚未放置到模板上的语义字段。
func (h *TemplateHandler) GetAvailableFields(c *gin.Context) {
	e, ok := h.open(c)
	if !ok {
		return
	}
	items := e.Available()
	if items == nil {
		items = []card.VocabularyEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// POST /v1/templates/:id/fields
// 词汇外或已放置的语义名是静默 no-op，以 added=false 告知。
func (h *TemplateHandler) AddField(c *gin.Context) {
	var req addFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	e, ok := h.open(c)
	if !ok {
		return
	}

	field, added := e.AddField(req.Name)
	if !added {
		c.JSON(http.StatusOK, gin.H{"added": false})
		return
	}
	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": true, "field": field})
}

// DELETE /v1/templates/:id/fields/:fieldId
func (h *TemplateHandler) RemoveField(c *gin.Context) {
	e, ok := h.open(c)
	if !ok {
		return
	}
	if !e.RemoveField(c.Param("fieldId")) {
		c.JSON(http.StatusOK, gin.H{"removed": false})
		return
	}
	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// PATCH /v1/templates/:id/fields/:fieldId/style
func (h *TemplateHandler) UpdateFieldStyle(c *gin.Context) {
	var patch card.StylePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}
	e, ok := h.openField(c)
	if !ok {
		return
	}

	field, err := e.UpdateFieldStyle(c.Param("fieldId"), patch)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": field})
}

// PATCH /v1/templates/:id/fields/:fieldId/size
func (h *TemplateHandler) ResizeField(c *gin.Context) {
	var req resizeFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	e, ok := h.openField(c)
	if !ok {
		return
	}

	field, err := e.ResizeField(c.Param("fieldId"), req.Width, req.Height)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": field})
}

// POST /v1/templates/:id/fields/:fieldId/drag
// 一次请求重放整段拖拽：begin(start) → continue(moves...) → end，最后一次夹紧位置即结果。
func (h *TemplateHandler) DragField(c *gin.Context) {
	var req dragFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	e, ok := h.openField(c)
	if !ok {
		return
	}

	e.SetZoom(req.Zoom)
	if !e.BeginDrag(c.Param("fieldId"), req.Start) {
		NotFound(c, "field not found")
		return
	}
	for _, p := range req.Moves {
		e.ContinueDrag(p)
	}
	e.EndDrag()

	field, _ := e.Selected()
	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": field})
}

// PATCH /v1/templates/:id/name
func (h *TemplateHandler) RenameTemplate(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		BadRequest(c, "name is required")
		return
	}
	e, ok := h.open(c)
	if !ok {
		return
	}
	_ = e.Rename(name)
	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusOK, e.Template())
}

// PATCH /v1/templates/:id/background
// image 为空字符串表示移除背景；非 data URI 时必须是已上传的资产 key。
func (h *TemplateHandler) UpdateBackground(c *gin.Context) {
	var req backgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	e, ok := h.open(c)
	if !ok {
		return
	}

	if req.Image != nil {
		image := *req.Image
		if image != "" && !render.IsDataURI(image) && !storage.IsValidAssetKey(image) {
			BadRequest(c, "invalid background image")
			return
		}
		_ = e.SetBackground(image)
	}
	if req.Scale != nil {
		if err := e.SetBackgroundScale(*req.Scale); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}
	if req.X != nil || req.Y != nil {
		tpl := e.Template()
		x, y := tpl.BackgroundImageX, tpl.BackgroundImageY
		if req.X != nil {
			x = *req.X
		}
		if req.Y != nil {
			y = *req.Y
		}
		_ = e.SetBackgroundOffset(x, y)
	}

	if !h.save(c, e) {
		return
	}
	c.JSON(http.StatusOK, e.Template())
}

// open 按路径 id 打开模板；失败时已写出响应。
func (h *TemplateHandler) open(c *gin.Context) (*editor.Editor, bool) {
	e := editor.New(h.store, h.slot)
	_, err := e.Open(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		NotFound(c, "template not found")
		return nil, false
	}
	if err != nil {
		middleware.LoggerFromContext(c).Error("open template failed", slog.Any("error", err))
		Internal(c, "failed to load template")
		return nil, false
	}
	return e, true
}

func (h *TemplateHandler) openField(c *gin.Context) (*editor.Editor, bool) {
	e, ok := h.open(c)
	if !ok {
		return nil, false
	}
	if !e.Select(c.Param("fieldId")) {
		NotFound(c, "field not found")
		return nil, false
	}
	return e, true
}

// save 持久化并异步刷新缩略图；缩略图入队失败只记日志。
func (h *TemplateHandler) save(c *gin.Context, e *editor.Editor) bool {
	log := middleware.LoggerFromContext(c)
	if err := e.Save(c.Request.Context()); err != nil {
		log.Error("save template failed", slog.Any("error", err))
		Internal(c, "failed to save template")
		return false
	}

	if h.enqueuer == nil {
		return true
	}
	tpl := e.Template()
	task, err := tasks.NewTemplatePreviewTask(tpl.ID, middleware.GetCorrelationID(c))
	if err == nil {
		_, err = h.enqueuer.EnqueueContext(c.Request.Context(), task, asynq.TaskID(tasks.PreviewTaskID(tpl.ID)))
	}
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Warn("enqueue template preview failed", slog.String("template_id", tpl.ID), slog.Any("error", err))
	}
	return true
}
