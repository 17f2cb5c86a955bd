package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"academyCards/internal/errcode"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// ErrorWithCode 附带 errcode 业务码，前端据此区分容量不足、缺少模板等情况。
func ErrorWithCode(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

func CapacityExceeded(c *gin.Context, msg string) {
	ErrorWithCode(c, http.StatusConflict, errcode.CapacityExceeded, msg)
}

// NoTemplate 是渲染的独立终态：告知调用方去设计器为该类别创建模板。
func NoTemplate(c *gin.Context, action string) {
	c.JSON(http.StatusOK, gin.H{
		"state":  "no-template",
		"code":   errcode.TemplateMissing,
		"action": action,
	})
}

// Accepted 返回异步任务已入队的响应。
func Accepted(c *gin.Context, artifactID uint, taskID string) {
	c.JSON(http.StatusAccepted, gin.H{
		"artifactId": artifactID,
		"taskId":     taskID,
		"status":     "pending",
	})
}
