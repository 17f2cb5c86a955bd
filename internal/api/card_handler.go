package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"academyCards/internal/api/middleware"
	"academyCards/internal/card"
	"academyCards/internal/database"
	"academyCards/internal/people"
	"academyCards/internal/render"
	"academyCards/internal/repository"
	"academyCards/internal/tasks"
)

const maxRenderScale = 10

// PeopleLookup 是 API 层用到的人员查询能力。
type PeopleLookup interface {
	ByRegistration(ctx context.Context, registrationNumber string) (card.Record, error)
	Verify(ctx context.Context, registrationNumber, birthDate string) (card.Record, error)
}

// CardOptions 为卡片端点的可调参数。
type CardOptions struct {
	DesignerPath string
	DefaultScale float64
}

// CardHandler 负责单卡渲染、验证与导出。
type CardHandler struct {
	db         *gorm.DB
	templates  repository.Store
	people     PeopleLookup
	renderer   *render.Renderer
	rasterizer *render.Rasterizer
	enqueuer   TaskEnqueuer
	limiter    *VerifyLimiter
	opts       CardOptions
}

func NewCardHandler(
	db *gorm.DB,
	templates repository.Store,
	peopleLookup PeopleLookup,
	renderer *render.Renderer,
	rasterizer *render.Rasterizer,
	enqueuer TaskEnqueuer,
	limiter *VerifyLimiter,
	opts CardOptions,
) *CardHandler {
	if opts.DesignerPath == "" {
		opts.DesignerPath = "/designer"
	}
	if opts.DefaultScale <= 0 {
		opts.DefaultScale = 1
	}
	return &CardHandler{
		db:         db,
		templates:  templates,
		people:     peopleLookup,
		renderer:   renderer,
		rasterizer: rasterizer,
		enqueuer:   enqueuer,
		limiter:    limiter,
		opts:       opts,
	}
}

type verifyRequest struct {
	RegistrationNumber string `json:"registrationNumber" binding:"required"`
	BirthDate          string `json:"birthDate" binding:"required"`
}

type exportRequest struct {
	RegistrationNumber string  `json:"registrationNumber" binding:"required"`
	Scale              float64 `json:"scale"`
	SessionID          string  `json:"sessionId"`
}

// GET /v1/cards/render?registration=&category=&scale=&format=
// 不带 registration 时用空记录渲染类别模板（字段显示标签），用于设计器预览。
func (h *CardHandler) RenderCard(c *gin.Context) {
	scale, ok := h.scale(c, c.Query("scale"))
	if !ok {
		return
	}

	rec, ok := h.recordFromQuery(c)
	if !ok {
		return
	}

	res, ok := h.render(c, rec, scale)
	if !ok {
		return
	}
	if res.NoTemplate() {
		NoTemplate(c, h.designerAction(rec.Category))
		return
	}

	if c.Query("format") == "html" {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := render.WriteHTML(c.Writer, res.Card); err != nil {
			middleware.LoggerFromContext(c).Error("write card html failed", slog.Any("error", err))
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /v1/cards/png?registration=&scale=
// 同步导出 PNG，适合单张预览；批量导出请走 /v1/cards/export。
func (h *CardHandler) RenderPNG(c *gin.Context) {
	scale, ok := h.scale(c, c.Query("scale"))
	if !ok {
		return
	}
	rec, ok := h.recordFromQuery(c)
	if !ok {
		return
	}
	res, ok := h.render(c, rec, scale)
	if !ok {
		return
	}
	if res.NoTemplate() {
		NoTemplate(c, h.designerAction(rec.Category))
		return
	}

	data, err := h.rasterizer.PNG(res.Card)
	if err != nil {
		middleware.LoggerFromContext(c).Error("rasterize card failed", slog.Any("error", err))
		Internal(c, "failed to export card")
		return
	}
	filename := rec.ID()
	if filename == "" {
		filename = string(rec.Category)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.png"`, url.PathEscape(filename)))
	c.Data(http.StatusOK, "image/png", data)
}

// POST /v1/cards/verify
// 注册号与出生日期同时匹配才返回卡片；两种不匹配给出相同响应，避免枚举注册号。
func (h *CardHandler) VerifyCard(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if _, err := people.NormalizeDate(req.BirthDate); err != nil {
		BadRequest(c, "invalid birth date")
		return
	}
	if !h.allowVerify(c) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	rec, err := h.people.Verify(c.Request.Context(), req.RegistrationNumber, req.BirthDate)
	if errors.Is(err, people.ErrNotFound) || errors.Is(err, people.ErrBirthDateMismatch) {
		NotFound(c, "no matching record")
		return
	}
	if err != nil {
		middleware.LoggerFromContext(c).Error("verify person failed", slog.Any("error", err))
		Internal(c, "failed to verify")
		return
	}

	res, ok := h.render(c, rec, h.opts.DefaultScale)
	if !ok {
		return
	}
	if res.NoTemplate() {
		NoTemplate(c, h.designerAction(rec.Category))
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /v1/cards/export
func (h *CardHandler) ExportCard(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !validSessionID(req.SessionID) {
		BadRequest(c, "invalid session")
		return
	}
	scale, ok := h.scale(c, strconv.FormatFloat(req.Scale, 'f', -1, 64))
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.people.ByRegistration(ctx, req.RegistrationNumber); err != nil {
		if errors.Is(err, people.ErrNotFound) {
			NotFound(c, "person not found")
			return
		}
		middleware.LoggerFromContext(c).Error("query person failed", slog.Any("error", err))
		Internal(c, "failed to query person")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	artifact := &database.Artifact{
		Kind:          database.ArtifactCardPNG,
		SessionID:     req.SessionID,
		CorrelationID: correlationID,
	}
	taskID, err := enqueueArtifact(ctx, h.db, h.enqueuer, artifact, func(id uint) (*asynq.Task, error) {
		return tasks.NewCardExportTask(tasks.CardExportPayload{
			ArtifactID:         id,
			RegistrationNumber: req.RegistrationNumber,
			Scale:              scale,
			SessionID:          req.SessionID,
			CorrelationID:      correlationID,
		})
	})
	if err != nil {
		middleware.LoggerFromContext(c).Error("enqueue card export failed", slog.Any("error", err))
		Internal(c, "failed to enqueue card export")
		return
	}
	Accepted(c, artifact.ID, taskID)
}

func (h *CardHandler) recordFromQuery(c *gin.Context) (card.Record, bool) {
	registration := strings.TrimSpace(c.Query("registration"))
	if registration == "" {
		category := card.Category(c.Query("category"))
		if !category.Valid() {
			BadRequest(c, "registration or category is required")
			return card.Record{}, false
		}
		return card.Record{Category: category}, true
	}

	rec, err := h.people.ByRegistration(c.Request.Context(), registration)
	if errors.Is(err, people.ErrNotFound) {
		NotFound(c, "person not found")
		return card.Record{}, false
	}
	if err != nil {
		middleware.LoggerFromContext(c).Error("query person failed", slog.Any("error", err))
		Internal(c, "failed to query person")
		return card.Record{}, false
	}
	return rec, true
}

// render 取类别最近保存的模板渲染；没有模板时返回 no-template 终态而非错误。
func (h *CardHandler) render(c *gin.Context, rec card.Record, scale float64) (render.Result, bool) {
	ctx := c.Request.Context()
	tpl, err := repository.ForCategory(ctx, h.templates, rec.Category)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		middleware.LoggerFromContext(c).Error("load template failed", slog.Any("error", err))
		Internal(c, "failed to load template")
		return render.Result{}, false
	}
	return h.renderer.Render(ctx, tpl, rec, scale), true
}

func (h *CardHandler) scale(c *gin.Context, raw string) (float64, bool) {
	if raw == "" || raw == "0" {
		return h.opts.DefaultScale, true
	}
	scale, err := strconv.ParseFloat(raw, 64)
	if err != nil || scale <= 0 || scale > maxRenderScale {
		BadRequest(c, "scale must be in (0, 10]")
		return 0, false
	}
	return scale, true
}

func (h *CardHandler) designerAction(category card.Category) string {
	return h.opts.DesignerPath + "?category=" + url.QueryEscape(string(category))
}

func (h *CardHandler) allowVerify(c *gin.Context) bool {
	ok, err := h.limiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		// Redis 不可用时放行，验证本身仍需两项同时匹配。
		middleware.LoggerFromContext(c).Warn("verify rate counter failed", slog.Any("error", err))
		return true
	}
	return ok
}
