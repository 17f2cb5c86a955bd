package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"academyCards/internal/api/middleware"
	"academyCards/internal/card"
	"academyCards/internal/database"
	"academyCards/internal/repository"
	"academyCards/internal/sheet"
	"academyCards/internal/tasks"
)

// PeopleBatch 按顺序批量查询人员，缺失的注册号单独返回。
type PeopleBatch interface {
	ByRegistrations(ctx context.Context, numbers []string) ([]card.Record, []string, error)
}

// PrintHandler 负责整页排版：网格计算、HTML 文档与异步 PDF。
type PrintHandler struct {
	db        *gorm.DB
	templates repository.Store
	people    PeopleBatch
	composer  *sheet.Composer
	enqueuer  TaskEnqueuer
	defaults  sheet.Settings
}

func NewPrintHandler(
	db *gorm.DB,
	templates repository.Store,
	peopleBatch PeopleBatch,
	composer *sheet.Composer,
	enqueuer TaskEnqueuer,
	defaults sheet.Settings,
) *PrintHandler {
	return &PrintHandler{
		db:        db,
		templates: templates,
		people:    peopleBatch,
		composer:  composer,
		enqueuer:  enqueuer,
		defaults:  defaults,
	}
}

// settingsRequest 中为 0 的项使用服务端默认值。
type settingsRequest struct {
	SheetWidthMM  float64  `json:"sheet_width_mm"`
	SheetHeightMM float64  `json:"sheet_height_mm"`
	CardWidthMM   float64  `json:"card_width_mm"`
	CardHeightMM  float64  `json:"card_height_mm"`
	MarginMM      *float64 `json:"margin_mm"`
	SpacingMM     *float64 `json:"spacing_mm"`
}

type layoutRequest struct {
	Settings settingsRequest `json:"settings"`
	Count    int             `json:"count"`
}

type sheetRequest struct {
	Settings            settingsRequest `json:"settings"`
	RegistrationNumbers []string        `json:"registrationNumbers" binding:"required"`
	SessionID           string          `json:"sessionId"`
}

func (h *PrintHandler) settings(req settingsRequest) sheet.Settings {
	s := h.defaults
	if req.SheetWidthMM != 0 {
		s.SheetWidthMM = req.SheetWidthMM
	}
	if req.SheetHeightMM != 0 {
		s.SheetHeightMM = req.SheetHeightMM
	}
	if req.CardWidthMM != 0 {
		s.CardWidthMM = req.CardWidthMM
	}
	if req.CardHeightMM != 0 {
		s.CardHeightMM = req.CardHeightMM
	}
	if req.MarginMM != nil {
		s.MarginMM = *req.MarginMM
	}
	if req.SpacingMM != nil {
		s.SpacingMM = *req.SpacingMM
	}
	return s
}

// POST /v1/print/layout
func (h *PrintHandler) ComputeLayout(c *gin.Context) {
	var req layoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	layout, err := sheet.ComputeLayout(h.settings(req.Settings))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"layout":     layout,
		"placements": layout.Placements(req.Count),
	})
}

// POST /v1/print/sheet
// 返回可直接打印的整页 HTML；缺失的注册号与缺少模板的类别通过响应头告知。
func (h *PrintHandler) ComposeSheet(c *gin.Context) {
	var req sheetRequest
	sel, missing, ok := h.selection(c, &req)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	templates, missingTemplates, err := repository.ForRecords(ctx, h.templates, sel.Records())
	if err != nil {
		middleware.LoggerFromContext(c).Error("load templates failed", slog.Any("error", err))
		Internal(c, "failed to load templates")
		return
	}

	composed, err := h.composer.ComposeSelection(ctx, templates, sel)
	if err != nil {
		middleware.LoggerFromContext(c).Error("compose sheet failed", slog.Any("error", err))
		Internal(c, "failed to compose sheet")
		return
	}

	if len(missing) > 0 {
		c.Header("X-Missing-Records", strings.Join(missing, ","))
	}
	if len(missingTemplates) > 0 {
		c.Header("X-Missing-Templates", strings.Join(missingTemplates, ","))
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := sheet.WriteHTML(c.Writer, composed); err != nil {
		middleware.LoggerFromContext(c).Error("write sheet html failed", slog.Any("error", err))
	}
}

// POST /v1/print/sheet/pdf
// 先同步校验容量（超出时 409 且不入队），再把去重后的注册号按顺序交给 worker。
func (h *PrintHandler) EnqueueSheetPDF(c *gin.Context) {
	var req sheetRequest
	sel, _, ok := h.selection(c, &req)
	if !ok {
		return
	}
	if !validSessionID(req.SessionID) {
		BadRequest(c, "invalid session")
		return
	}
	if sel.Len() == 0 {
		NotFound(c, "no matching records")
		return
	}

	numbers := make([]string, 0, sel.Len())
	for _, rec := range sel.Records() {
		numbers = append(numbers, rec.ID())
	}

	ctx := c.Request.Context()
	correlationID := middleware.GetCorrelationID(c)
	artifact := &database.Artifact{
		Kind:          database.ArtifactSheetPDF,
		SessionID:     req.SessionID,
		CorrelationID: correlationID,
	}
	taskID, err := enqueueArtifact(ctx, h.db, h.enqueuer, artifact, func(id uint) (*asynq.Task, error) {
		return tasks.NewSheetPrintTask(tasks.SheetPrintPayload{
			ArtifactID:          id,
			RegistrationNumbers: numbers,
			Settings:            sel.Layout().Settings,
			SessionID:           req.SessionID,
			CorrelationID:       correlationID,
		})
	})
	if err != nil {
		middleware.LoggerFromContext(c).Error("enqueue sheet print failed", slog.Any("error", err))
		Internal(c, "failed to enqueue sheet print")
		return
	}
	Accepted(c, artifact.ID, taskID)
}

// selection 解析请求、计算网格并按顺序选卡。超出容量时写出 409 并返回 ok=false。
func (h *PrintHandler) selection(c *gin.Context, req *sheetRequest) (*sheet.Selection, []string, bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		BadRequest(c, err.Error())
		return nil, nil, false
	}
	layout, err := sheet.ComputeLayout(h.settings(req.Settings))
	if err != nil {
		BadRequest(c, err.Error())
		return nil, nil, false
	}

	records, missing, err := h.people.ByRegistrations(c.Request.Context(), req.RegistrationNumbers)
	if err != nil {
		middleware.LoggerFromContext(c).Error("query people failed", slog.Any("error", err))
		Internal(c, "failed to query people")
		return nil, nil, false
	}

	sel := sheet.NewSelection(layout)
	for _, rec := range records {
		if _, err := sel.AddCard(rec); err != nil {
			if errors.Is(err, sheet.ErrCapacityExceeded) {
				CapacityExceeded(c, err.Error())
				return nil, nil, false
			}
			middleware.LoggerFromContext(c).Warn("skip record", slog.Any("error", err))
		}
	}
	return sel, missing, true
}
