package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"blocpage/internal/content"
	"blocpage/internal/database"
	"blocpage/internal/errcode"
	"blocpage/internal/render"
	"blocpage/internal/snapshot"
	"blocpage/internal/storage"
	"blocpage/internal/tasks"
)

// SnapshotTaskHandler 负责消费页面快照任务：
// 渲染公开页 HTML，无头浏览器截图，上传对象存储，回写快照键并通知前端。
type SnapshotTaskHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	redisClient *redis.Client
	logger      *slog.Logger
	viewportW   int
	viewportH   int
}

// NewSnapshotTaskHandler 创建任务处理器。
func NewSnapshotTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	viewportW, viewportH int,
) *SnapshotTaskHandler {
	if viewportW <= 0 {
		viewportW = 1200
	}
	if viewportH <= 0 {
		viewportH = 1600
	}
	return &SnapshotTaskHandler{
		db:          db,
		storage:     storageClient,
		redisClient: redisClient,
		logger:      logger,
		viewportW:   viewportW,
		viewportH:   viewportH,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *SnapshotTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.PageSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("profile_id", int(payload.ProfileID)),
	)
	log.Info("starting page snapshot task")

	var profile database.Profile
	if err := h.db.WithContext(ctx).First(&profile, payload.ProfileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("profile not found, skipping task")
			return nil
		}
		log.Error("query profile failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(profile.UserID)))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := SnapshotNotifyMessage{
			Status:        "error",
			ProfileID:     profile.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishSnapshotNotify(ctx, profile.UserID, notify); err != nil {
			log.Error("publish snapshot error notification failed", slog.Any("error", err))
		}
	}()

	doc, err := content.DecodeDocument(profile.Content)
	if err != nil {
		log.Error("decode profile document failed", slog.Any("error", err))
		return err
	}

	html, err := render.Render(doc, render.ModePublic)
	if err != nil {
		log.Error("render public page failed", slog.Any("error", err))
		return err
	}

	png, err := snapshot.CaptureHTML(string(html), h.viewportW, h.viewportH)
	if err != nil {
		log.Error("capture page snapshot failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("snapshots/%d/%s.png", profile.UserID, uuid.NewString())
	reader := bytes.NewReader(png)
	if _, err := h.storage.UploadFile(ctx, objectName, reader, int64(len(png)), "image/png"); err != nil {
		log.Error("upload snapshot to minio failed", slog.Any("error", err))
		return err
	}

	previousKey := profile.SnapshotKey
	if err := h.db.WithContext(ctx).Model(&profile).Update("snapshot_key", objectName).Error; err != nil {
		log.Error("update profile snapshot key failed", slog.Any("error", err))
		return err
	}

	// 旧快照尽力清理，失败不影响任务结果。
	if previousKey != "" && previousKey != objectName {
		if err := h.storage.DeleteObject(ctx, previousKey); err != nil {
			log.Warn("delete previous snapshot failed", slog.Any("error", err))
		}
	}

	notify := SnapshotNotifyMessage{
		Status:        "completed",
		ProfileID:     profile.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.publishSnapshotNotify(ctx, profile.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("page snapshot task completed")
	return nil
}

func (h *SnapshotTaskHandler) publishSnapshotNotify(ctx context.Context, userID uint, notify SnapshotNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
