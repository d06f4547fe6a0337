package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/scanerr"
	"github.com/docuvault/docscan/internal/service/scan"
	"github.com/docuvault/docscan/pkg/logger"
)

type ScanHandler struct {
	service scan.Service
	logger  logger.Logger
}

// StartScanResponse 定义扫描启动响应结构
type StartScanResponse struct {
	TaskID  string `json:"taskId,omitempty"`
	Started bool   `json:"started"`
	State   string `json:"state"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewScanHandler(service scan.Service, logger logger.Logger) *ScanHandler {
	return &ScanHandler{
		service: service,
		logger:  logger,
	}
}

// StartScan 启动扫描（可选的选项覆盖在请求体中）
func (h *ScanHandler) StartScan(c *gin.Context) {
	var overrides *models.ScanOptions
	if c.Request.ContentLength > 0 {
		var opts models.ScanOptions
		if err := c.ShouldBindJSON(&opts); err != nil {
			h.handleError(c, http.StatusBadRequest, "Invalid scan options", err)
			return
		}
		overrides = &opts
	}

	taskID, started, err := h.service.StartScan(c.Request.Context(), overrides)
	if err != nil {
		h.handleScanError(c, "Failed to start scan", err)
		return
	}

	c.JSON(http.StatusOK, StartScanResponse{
		TaskID:  taskID,
		Started: started,
		State:   string(h.service.State()),
	})
}

// StopScan 请求停止当前扫描
func (h *ScanHandler) StopScan(c *gin.Context) {
	if err := h.service.StopScan(c.Request.Context()); err != nil {
		h.handleScanError(c, "Failed to stop scan", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stop requested",
		"state":   string(h.service.State()),
	})
}

// RetryFailed 重试失败的资产
func (h *ScanHandler) RetryFailed(c *gin.Context) {
	attempted, recovered, err := h.service.RetryFailed(c.Request.Context())
	if err != nil {
		h.handleScanError(c, "Failed to retry failed assets", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempted": attempted,
		"recovered": recovered,
	})
}

// Reset 清除扫描状态（保留文档）
func (h *ScanHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		h.handleScanError(c, "Failed to reset scan state", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Scan state reset"})
}

// GetState 返回调度器当前状态
func (h *ScanHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": string(h.service.State())})
}

// GetProgress 返回当前进度快照
func (h *ScanHandler) GetProgress(c *gin.Context) {
	progress, err := h.service.GetProgress(c.Request.Context())
	if err != nil {
		h.handleScanError(c, "Failed to get progress", err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// Events 通过 SSE 推送进度更新, 客户端断开即取消订阅
func (h *ScanHandler) Events(c *gin.Context) {
	ch, cancel := h.service.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case progress, ok := <-ch:
			if !ok {
				return false
			}
			data, err := json.Marshal(progress)
			if err != nil {
				return false
			}
			c.SSEvent("progress", string(data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetHistory 返回扫描历史（最新优先）
func (h *ScanHandler) GetHistory(c *gin.Context) {
	history, err := h.service.History(c.Request.Context())
	if err != nil {
		h.handleScanError(c, "Failed to get history", err)
		return
	}
	if history == nil {
		history = []models.ScanHistoryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// GetStats 返回失败统计
func (h *ScanHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.handleScanError(c, "Failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetTaskStatus 查询队列任务状态
func (h *ScanHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	status, err := h.service.TaskStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleScanError(c, "Failed to get task status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// handleScanError 将领域错误映射到 HTTP 状态码
func (h *ScanHandler) handleScanError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scan.ErrScanActive):
		status = http.StatusConflict
	case scanerr.IsKind(err, scanerr.KindDeviceConditionUnmet):
		status = http.StatusPreconditionFailed
	case scanerr.IsKind(err, scanerr.KindPermissionDenied):
		status = http.StatusForbidden
	}
	h.handleError(c, status, message, err)
}

// handleError 统一错误处理
func (h *ScanHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
