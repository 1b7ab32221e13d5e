package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"blocpage/internal/content"
	"blocpage/internal/database"
	"blocpage/internal/migration"
	"blocpage/internal/session"
)

// EditorHandler 把编辑会话暴露为 HTTP 接口。
// 每个 (用户, 页面) 组合持有至多一个进程内会话，写入经防抖合并落库。
type EditorHandler struct {
	db          *gorm.DB
	migrator    *migration.Migrator
	redisClient redis.UniversalClient
	logger      *slog.Logger
	window      time.Duration

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewEditorHandler 构造 EditorHandler，redisClient 可以为 nil（不推送保存状态）。
func NewEditorHandler(db *gorm.DB, migrator *migration.Migrator, redisClient redis.UniversalClient, logger *slog.Logger, window time.Duration) *EditorHandler {
	if window <= 0 {
		window = session.DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EditorHandler{
		db:          db,
		migrator:    migrator,
		redisClient: redisClient,
		logger:      logger,
		window:      window,
		sessions:    make(map[string]*session.Session),
	}
}

// saveStateMessage 通过 Redis Pub/Sub 推送给前端的保存状态变化。
type saveStateMessage struct {
	Type        string `json:"type"`
	ProfileName string `json:"profile_name"`
	Status      string `json:"status"`
}

func (h *EditorHandler) publishSaveState(userID uint, profileName string, st session.Status) {
	if h.redisClient == nil {
		return
	}
	msg := saveStateMessage{
		Type:        "save_state",
		ProfileName: profileName,
		Status:      string(st),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		h.logger.Warn("publish save state failed", slog.Any("error", err))
	}
}

// profileWriter 把会话文档写回页面行，实现 session.DocumentWriter。
type profileWriter struct {
	db        *gorm.DB
	profileID uint
}

func (w *profileWriter) WriteDocument(ctx context.Context, doc content.Document) error {
	encoded, err := content.EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return w.db.WithContext(ctx).
		Model(&database.Profile{}).
		Where("id = ?", w.profileID).
		Update("content", datatypes.JSON(encoded)).Error
}

type editorStateResponse struct {
	Status   session.Status   `json:"status"`
	SavedAt  *time.Time       `json:"saved_at,omitempty"`
	InFlight bool             `json:"in_flight"`
	Document content.Document `json:"document"`
}

// OpenSession 打开（或复用）某个页面的编辑会话。
func (h *EditorHandler) OpenSession(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	if h.migrator != nil {
		if needed, err := h.migrator.NeedsMigration(ctx, userID); err == nil && needed {
			if _, err := h.migrator.Migrate(ctx, userID); err != nil {
				h.logger.Error("editor migration failed",
					slog.Uint64("user_id", uint64(userID)),
					slog.Any("error", err),
				)
				Internal(c, "failed to prepare account data")
				return
			}
		}
	}

	name := c.Param("name")
	var profile database.Profile
	if err := h.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "profile not found")
			return
		}
		Internal(c, "failed to query profile")
		return
	}

	sess, err := h.sessionFor(userID, &profile)
	if err != nil {
		Internal(c, "failed to open editor session")
		return
	}

	c.JSON(http.StatusOK, h.stateResponse(sess))
}

type addBlockRequest struct {
	Type string `json:"type" binding:"required"`
}

// AddBlock 向会话追加一个新内容块。
func (h *EditorHandler) AddBlock(c *gin.Context) {
	sess, ok := h.existingSession(c)
	if !ok {
		return
	}

	var req addBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	blockType := content.BlockType(req.Type)
	if !blockType.Persistable() {
		BadRequest(c, "unsupported block type")
		return
	}

	component, err := sess.Add(blockType)
	if err != nil {
		h.replySessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, component)
}

type updateBlockRequest struct {
	Content map[string]any `json:"content" binding:"required"`
}

// UpdateBlock 修改指定内容块，输入经过逐字段校验。
func (h *EditorHandler) UpdateBlock(c *gin.Context) {
	sess, ok := h.existingSession(c)
	if !ok {
		return
	}

	var req updateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := sess.Update(c.Param("blockID"), req.Content); err != nil {
		h.replySessionError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// DeleteBlock 移除指定内容块。
func (h *EditorHandler) DeleteBlock(c *gin.Context) {
	sess, ok := h.existingSession(c)
	if !ok {
		return
	}

	if err := sess.Delete(c.Param("blockID")); err != nil {
		h.replySessionError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ReorderBlocks 把内容块从一个位置移动到另一个位置。
func (h *EditorHandler) ReorderBlocks(c *gin.Context) {
	sess, ok := h.existingSession(c)
	if !ok {
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := sess.Reorder(req.From, req.To); err != nil {
		h.replySessionError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

type setBackgroundRequest struct {
	Background content.Background `json:"background" binding:"required"`
}

// SetBackground 更新会话中的页面背景。
func (h *EditorHandler) SetBackground(c *gin.Context) {
	sess, ok := h.existingSession(c)
	if !ok {
		return
	}

	var req setBackgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := sess.SetBackground(req.Background); err != nil {
		h.replySessionError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// SessionState 返回会话的保存状态与当前文档。
func (h *EditorHandler) SessionState(c *gin.Context) {
	sess, ok := h.existingSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.stateResponse(sess))
}

// RetrySave 在保存失败后触发一次立即重试。
func (h *EditorHandler) RetrySave(c *gin.Context) {
	sess, ok := h.existingSession(c)
	if !ok {
		return
	}

	sess.Retry()
	c.Status(http.StatusAccepted)
}

// FlushSession 同步落盘所有未保存的修改。
func (h *EditorHandler) FlushSession(c *gin.Context) {
	sess, ok := h.existingSession(c)
	if !ok {
		return
	}

	if err := sess.Flush(c.Request.Context()); err != nil {
		Internal(c, "failed to flush session")
		return
	}

	c.JSON(http.StatusOK, h.stateResponse(sess))
}

// CloseSession 落盘并关闭编辑会话。
func (h *EditorHandler) CloseSession(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	key := sessionKey(userID, c.Param("name"))
	h.mu.Lock()
	sess, exists := h.sessions[key]
	delete(h.sessions, key)
	h.mu.Unlock()

	if !exists {
		c.Status(http.StatusNoContent)
		return
	}

	if err := sess.Close(c.Request.Context()); err != nil {
		Internal(c, "failed to close session")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *EditorHandler) sessionFor(userID uint, profile *database.Profile) (*session.Session, error) {
	key := sessionKey(userID, profile.Name)

	h.mu.Lock()
	defer h.mu.Unlock()

	if sess, ok := h.sessions[key]; ok {
		return sess, nil
	}

	doc, err := content.DecodeDocument(profile.Content)
	if err != nil {
		return nil, fmt.Errorf("decode profile content: %w", err)
	}

	writer := &profileWriter{db: h.db, profileID: profile.ID}
	profileName := profile.Name
	sess := session.New(writer, doc,
		session.WithDebounceWindow(h.window),
		session.WithLogger(h.logger),
		session.WithStatusListener(func(st session.Status) {
			h.publishSaveState(userID, profileName, st)
		}),
	)
	h.sessions[key] = sess
	return sess, nil
}

func (h *EditorHandler) existingSession(c *gin.Context) (*session.Session, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}

	key := sessionKey(userID, c.Param("name"))
	h.mu.Lock()
	sess, exists := h.sessions[key]
	h.mu.Unlock()

	if !exists {
		Conflict(c, "editor session not open")
		return nil, false
	}
	return sess, true
}

func (h *EditorHandler) replySessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrClosed):
		Conflict(c, "editor session closed")
	case errors.Is(err, session.ErrComponentNotFound):
		NotFound(c, "block not found")
	case errors.Is(err, session.ErrIndexOutOfRange):
		BadRequest(c, "index out of range")
	default:
		BadRequest(c, err.Error())
	}
}

func (h *EditorHandler) stateResponse(sess *session.Session) editorStateResponse {
	resp := editorStateResponse{
		Status:   sess.Status(),
		InFlight: sess.InFlight(),
		Document: sess.Document(),
	}
	if savedAt := sess.SavedAt(); !savedAt.IsZero() {
		resp.SavedAt = &savedAt
	}
	return resp
}

func sessionKey(userID uint, name string) string {
	return fmt.Sprintf("%d:%s", userID, name)
}
