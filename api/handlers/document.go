package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/service/scan"
	"github.com/docuvault/docscan/internal/store"
	"github.com/docuvault/docscan/pkg/logger"
)

type DocumentHandler struct {
	service scan.Service
	logger  logger.Logger
}

func NewDocumentHandler(service scan.Service, logger logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger,
	}
}

// ListDocuments 列出所有已识别的文档（最新优先）
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context())
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}
	if docs == nil {
		docs = []*models.DocumentRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     len(docs),
	})
}

// GetDocument 获取单个文档
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		h.handleError(c, http.StatusBadRequest, "Document ID is required", nil)
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.handleDocumentError(c, "Failed to get document", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// UpdateDocument 修改用户可编辑字段
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		h.handleError(c, http.StatusBadRequest, "Document ID is required", nil)
		return
	}

	var update models.DocumentFieldUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid update payload", err)
		return
	}

	doc, err := h.service.UpdateDocument(c.Request.Context(), id, update)
	if err != nil {
		h.handleDocumentError(c, "Failed to update document", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// DeleteDocument 删除文档并释放其内容哈希
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		h.handleError(c, http.StatusBadRequest, "Document ID is required", nil)
		return
	}

	if err := h.service.DeleteDocument(c.Request.Context(), id); err != nil {
		h.handleDocumentError(c, "Failed to delete document", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Document deleted",
		"id":      id,
	})
}

func (h *DocumentHandler) handleDocumentError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	h.handleError(c, status, message, err)
}

// handleError 统一错误处理
func (h *DocumentHandler) handleError(c *gin.Context, status int, message string, err error) {
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
