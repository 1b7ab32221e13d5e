package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"blocpage/internal/contact"
	"blocpage/internal/content"
)

// ContactHandler 暴露名片识别与导出接口。
// 协作者未注入时返回 501，接口契约保持稳定。
type ContactHandler struct {
	extractor contact.Extractor
	exporter  contact.CardExporter
	logger    *slog.Logger
}

// NewContactHandler 构造 ContactHandler，extractor/exporter 可以为 nil。
func NewContactHandler(extractor contact.Extractor, exporter contact.CardExporter, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		extractor: extractor,
		exporter:  exporter,
		logger:    logger,
	}
}

// ExtractCard 从上传的名片图片中识别联系人字段。
// 识别结果先过 profile-card 的净化校验再返回。
func (h *ContactHandler) ExtractCard(c *gin.Context) {
	if _, ok := userIDFromContext(c); !ok {
		AbortUnauthorized(c)
		return
	}

	if h.extractor == nil {
		Error(c, http.StatusNotImplemented, "card extraction not available")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer reader.Close()

	mimeType := file.Header.Get("Content-Type")
	raw, err := h.extractor.Extract(c.Request.Context(), reader, mimeType)
	if err != nil {
		h.logger.Error("extract card failed", slog.Any("error", err))
		Internal(c, "failed to extract card")
		return
	}

	validated := content.Validate(content.BlockProfileCard, raw)
	c.JSON(http.StatusOK, gin.H{"card": validated})
}

type exportCardRequest struct {
	Card map[string]any `json:"card" binding:"required"`
}

// ExportCard 把 profile-card 内容导出为可下载的联系人文件。
func (h *ContactHandler) ExportCard(c *gin.Context) {
	if _, ok := userIDFromContext(c); !ok {
		AbortUnauthorized(c)
		return
	}

	if h.exporter == nil {
		Error(c, http.StatusNotImplemented, "card export not available")
		return
	}

	var req exportCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	card := content.Validate(content.BlockProfileCard, req.Card)
	result, err := h.exporter.Export(c.Request.Context(), card)
	if err != nil {
		h.logger.Error("export card failed", slog.Any("error", err))
		Internal(c, "failed to export card")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
