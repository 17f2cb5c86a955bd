package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"academyCards/internal/api/middleware"
	"academyCards/internal/card"
)

const maxImportBatch = 1000

// PeopleImporter 写入注册服务同步过来的人员记录。
type PeopleImporter interface {
	Import(ctx context.Context, records []card.Record) (int, error)
}

// PeopleHandler 只服务内部同步：注册表单由其它系统负责，本服务保存只读副本。
type PeopleHandler struct {
	importer PeopleImporter
}

func NewPeopleHandler(importer PeopleImporter) *PeopleHandler {
	return &PeopleHandler{importer: importer}
}

type importPeopleRequest struct {
	Records []card.Record `json:"records" binding:"required"`
}

// POST /internal/people
func (h *PeopleHandler) ImportPeople(c *gin.Context) {
	var req importPeopleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if len(req.Records) > maxImportBatch {
		Error(c, http.StatusRequestEntityTooLarge, "too many records")
		return
	}

	n, err := h.importer.Import(c.Request.Context(), req.Records)
	if err != nil {
		middleware.LoggerFromContext(c).Warn("import people failed", slog.Any("error", err))
		BadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}
