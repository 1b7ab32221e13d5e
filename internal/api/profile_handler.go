package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"blocpage/internal/api/middleware"
	"blocpage/internal/content"
	"blocpage/internal/database"
	"blocpage/internal/migration"
	"blocpage/internal/render"
	"blocpage/internal/storage"
	"blocpage/internal/tasks"
)

// ProfileHandler 负责处理与页面相关的 API 请求。
type ProfileHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	storage     *storage.Client
	migrator    *migration.Migrator
	maxProfiles int
}

// NewProfileHandler 构造 ProfileHandler。
func NewProfileHandler(db *gorm.DB, asynqClient *asynq.Client, storageClient *storage.Client, migrator *migration.Migrator, maxProfiles int) *ProfileHandler {
	return &ProfileHandler{
		db:          db,
		asynqClient: asynqClient,
		storage:     storageClient,
		migrator:    migrator,
		maxProfiles: maxProfiles,
	}
}

var errInvalidProfileName = errors.New("invalid profile name")

var profileNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-_]{0,63}$`)

// 与路由静态段冲突的名称不允许作为页面名。
var reservedProfileNames = map[string]bool{
	"active":  true,
	"preview": true,
}

type createProfileRequest struct {
	Name    string         `json:"name" binding:"required"`
	Content datatypes.JSON `json:"content"`
}

type updateProfileRequest struct {
	Content datatypes.JSON `json:"content" binding:"required"`
}

type profileListItem struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	IsActive    bool      `json:"is_active"`
	SnapshotKey string    `json:"snapshot_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type profileResponse struct {
	ID        uint           `json:"id"`
	Name      string         `json:"name"`
	Content   datatypes.JSON `json:"content"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CreateProfile 保存一个新的命名页面，超过限额则拒绝。
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if !profileNamePattern.MatchString(name) || reservedProfileNames[name] {
		BadRequest(c, "invalid profile name")
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	if err := h.ensureMigrated(ctx, userID); err != nil {
		Internal(c, "failed to prepare account data")
		return
	}

	var count int64
	if err := h.db.WithContext(ctx).
		Model(&database.Profile{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to count profiles")
		return
	}

	if h.maxProfiles > 0 && count >= int64(h.maxProfiles) {
		Forbidden(c, "profile limit reached")
		return
	}

	var exists database.Profile
	if err := h.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&exists).Error; err == nil {
		Conflict(c, "profile name already taken")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		Internal(c, "failed to query profiles")
		return
	}

	encoded, err := normalizeProfileContent(req.Content)
	if err != nil {
		BadRequest(c, "invalid page content")
		return
	}

	profile := database.Profile{
		UserID:  userID,
		Name:    name,
		Content: encoded,
	}

	if err := h.db.WithContext(ctx).Create(&profile).Error; err != nil {
		Internal(c, "failed to create profile")
		return
	}

	if err := h.activateProfile(ctx, userID, profile.ID); err != nil {
		Internal(c, "failed to mark active profile")
		return
	}
	profile.IsActive = true

	c.JSON(http.StatusCreated, newProfileResponse(profile))
}

// ListProfiles 列出用户的全部命名页面。
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	if err := h.ensureMigrated(ctx, userID); err != nil {
		Internal(c, "failed to prepare account data")
		return
	}

	var profiles []database.Profile
	if err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&profiles).Error; err != nil {
		Internal(c, "failed to list profiles")
		return
	}

	items := make([]profileListItem, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, profileListItem{
			ID:          p.ID,
			Name:        p.Name,
			IsActive:    p.IsActive,
			SnapshotKey: p.SnapshotKey,
			CreatedAt:   p.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, items)
}

// GetActiveProfile 返回当前激活页面，没有任何页面时返回默认内容。
func (h *ProfileHandler) GetActiveProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	if err := h.ensureMigrated(ctx, userID); err != nil {
		Internal(c, "failed to prepare account data")
		return
	}

	profile, err := h.findActiveOrLatestProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			doc := content.Document{Background: content.DefaultBackground()}
			encoded, encErr := content.EncodeDocument(doc)
			if encErr != nil {
				Internal(c, "failed to build default page")
				return
			}
			c.JSON(http.StatusOK, profileResponse{
				Name:    migration.DefaultProfileName,
				Content: datatypes.JSON(encoded),
			})
			return
		}
		Internal(c, "failed to query active profile")
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(*profile))
}

// GetProfile 返回指定名称的页面并标记为当前激活。
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	if err := h.ensureMigrated(ctx, userID); err != nil {
		Internal(c, "failed to prepare account data")
		return
	}

	profile, err := h.getProfileForUser(ctx, c.Param("name"), userID)
	if err != nil {
		h.replyProfileError(c, err)
		return
	}

	if err := h.activateProfile(ctx, userID, profile.ID); err != nil {
		Internal(c, "failed to mark active profile")
		return
	}
	profile.IsActive = true

	c.JSON(http.StatusOK, newProfileResponse(*profile))
}

// UpdateProfile 覆盖指定页面内容，写入前做总体校验。
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	if err := h.ensureMigrated(ctx, userID); err != nil {
		Internal(c, "failed to prepare account data")
		return
	}

	profile, err := h.getProfileForUser(ctx, c.Param("name"), userID)
	if err != nil {
		h.replyProfileError(c, err)
		return
	}

	encoded, err := normalizeProfileContent(req.Content)
	if err != nil {
		BadRequest(c, "invalid page content")
		return
	}

	if err := h.db.WithContext(ctx).Model(profile).Update("content", encoded).Error; err != nil {
		Internal(c, "failed to update profile")
		return
	}

	if err := h.db.WithContext(ctx).First(profile, profile.ID).Error; err != nil {
		Internal(c, "failed to reload profile")
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(*profile))
}

// DeleteProfile 删除指定页面，并尝试回落激活最近一份。
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	profile, err := h.getProfileForUser(ctx, c.Param("name"), userID)
	if err != nil {
		h.replyProfileError(c, err)
		return
	}

	wasActive := profile.IsActive
	if err := h.db.WithContext(ctx).Delete(&database.Profile{}, profile.ID).Error; err != nil {
		Internal(c, "failed to delete profile")
		return
	}

	if wasActive {
		if err := h.assignLatestProfileAsActive(ctx, userID); err != nil {
			Internal(c, "failed to update active profile")
			return
		}
	}

	c.Status(http.StatusNoContent)
}

// ActivateProfile 把指定页面设为对外展示的激活页。
func (h *ProfileHandler) ActivateProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	profile, err := h.getProfileForUser(ctx, c.Param("name"), userID)
	if err != nil {
		h.replyProfileError(c, err)
		return
	}

	if err := h.activateProfile(ctx, userID, profile.ID); err != nil {
		Internal(c, "failed to mark active profile")
		return
	}

	c.Status(http.StatusOK)
}

// PreviewProfile 渲染提交的页面内容为编辑态 HTML，不落库。
func (h *ProfileHandler) PreviewProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if _, ok := userIDFromContext(c); !ok {
		AbortUnauthorized(c)
		return
	}

	doc, err := content.DecodeDocument(req.Content)
	if err != nil {
		BadRequest(c, "invalid page content")
		return
	}

	html, err := render.Render(doc, render.ModeEditable)
	if err != nil {
		Internal(c, "failed to render preview")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// RequestSnapshot 将页面快照任务入队并立即返回 202。
func (h *ProfileHandler) RequestSnapshot(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	profile, err := h.getProfileForUser(c.Request.Context(), c.Param("name"), userID)
	if err != nil {
		h.replyProfileError(c, err)
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewPageSnapshotTask(profile.ID, correlationID)
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(5))
	if err != nil {
		Internal(c, "failed to enqueue snapshot generation")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "snapshot request accepted",
		"task_id": info.ID,
	})
}

// GetSnapshotLink 生成页面快照的预签名下载链接。
func (h *ProfileHandler) GetSnapshotLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	profile, err := h.getProfileForUser(c.Request.Context(), c.Param("name"), userID)
	if err != nil {
		h.replyProfileError(c, err)
		return
	}

	if profile.SnapshotKey == "" {
		Conflict(c, "snapshot not ready")
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), profile.SnapshotKey, 5*time.Minute)
	if err != nil {
		Internal(c, "failed to generate snapshot link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *ProfileHandler) ensureMigrated(ctx context.Context, userID uint) error {
	if h.migrator == nil {
		return nil
	}
	needed, err := h.migrator.NeedsMigration(ctx, userID)
	if err != nil {
		return err
	}
	if !needed {
		return nil
	}
	_, err = h.migrator.Migrate(ctx, userID)
	return err
}

func (h *ProfileHandler) activateProfile(ctx context.Context, userID, profileID uint) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Profile{}).
			Where("user_id = ? AND id <> ?", userID, profileID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&database.Profile{}).
			Where("id = ? AND user_id = ?", profileID, userID).
			Update("is_active", true).Error
	})
}

func (h *ProfileHandler) assignLatestProfileAsActive(ctx context.Context, userID uint) error {
	var profile database.Profile
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		First(&profile).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return err
	default:
		return h.activateProfile(ctx, userID, profile.ID)
	}
}

func (h *ProfileHandler) findActiveOrLatestProfile(ctx context.Context, userID uint) (*database.Profile, error) {
	var profile database.Profile
	err := h.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var latest database.Profile
	if err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		First(&latest).Error; err != nil {
		return nil, err
	}

	if err := h.activateProfile(ctx, userID, latest.ID); err != nil {
		return nil, err
	}
	latest.IsActive = true
	return &latest, nil
}

func (h *ProfileHandler) getProfileForUser(ctx context.Context, nameParam string, userID uint) (*database.Profile, error) {
	name := strings.TrimSpace(nameParam)
	if !profileNamePattern.MatchString(name) {
		return nil, errInvalidProfileName
	}

	var profile database.Profile
	if err := h.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&profile).Error; err != nil {
		return nil, err
	}

	return &profile, nil
}

func (h *ProfileHandler) replyProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidProfileName):
		BadRequest(c, "invalid profile name")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "profile not found")
	default:
		Internal(c, "failed to query profile")
	}
}

// normalizeProfileContent 解析并总体校验页面内容，空内容回落为默认文档。
func normalizeProfileContent(raw datatypes.JSON) (datatypes.JSON, error) {
	if len(raw) == 0 {
		raw = datatypes.JSON([]byte("{}"))
	}
	doc, err := content.DecodeDocument(raw)
	if err != nil {
		return nil, err
	}
	doc = content.ValidateDocument(doc)
	encoded, err := content.EncodeDocument(doc)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(encoded), nil
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}

func newProfileResponse(profile database.Profile) profileResponse {
	return profileResponse{
		ID:        profile.ID,
		Name:      profile.Name,
		Content:   profile.Content,
		IsActive:  profile.IsActive,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
}
