package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blocpage/internal/content"
	"blocpage/internal/database"
	"blocpage/internal/migration"
	"blocpage/internal/render"
)

// PublicHandler 负责无需登录的公开页面访问。
type PublicHandler struct {
	db       *gorm.DB
	migrator *migration.Migrator
	logger   *slog.Logger
}

// NewPublicHandler 构造 PublicHandler。
func NewPublicHandler(db *gorm.DB, migrator *migration.Migrator, logger *slog.Logger) *PublicHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicHandler{db: db, migrator: migrator, logger: logger}
}

// GetPublicPage 按用户名渲染其激活页面的公开视图。
// 旧版数据在首次访问时按需迁移，访客永远看到规范形态。
func (h *PublicHandler) GetPublicPage(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		NotFound(c, "page not found")
		return
	}

	ctx := c.Request.Context()
	var user database.User
	if err := h.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "page not found")
			return
		}
		h.logger.Error("public page user lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if h.migrator != nil && !user.Migrated {
		if _, err := h.migrator.Migrate(ctx, user.ID); err != nil {
			h.logger.Error("public page migration failed",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.Any("error", err),
			)
			Internal(c, "internal error")
			return
		}
	}

	doc := content.Document{Background: content.DefaultBackground()}
	var profile database.Profile
	err := h.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", user.ID, true).
		First(&profile).Error
	switch {
	case err == nil:
		// 坏数据不能打碎公开页：记录后降级为空页占位。
		if decoded, decErr := content.DecodeDocument(profile.Content); decErr == nil {
			doc = decoded
		} else {
			h.logger.Warn("public page content unreadable, serving placeholder",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.Any("error", decErr),
			)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 没有激活页面：渲染空页占位。
	default:
		h.logger.Error("public page profile lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	html, err := render.Render(doc, render.ModePublic)
	if err != nil {
		h.logger.Error("public page render failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}
