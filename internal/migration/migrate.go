// Package migration 把历史上共存的三种物理存储形态向前合并：
//
//	(a) 用户行上内嵌的 JSONB 子记录
//	(b) legacy_profiles 表中每用户一行的独立子文档
//	(c) profiles 表中可寻址的命名页面文档（规范形态）
//
// 迁移对每个用户最多生效一次（单调），未完成时可安全重试。
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blocpage/internal/content"
	"blocpage/internal/database"
	"blocpage/internal/legacy"
)

// DefaultProfileName 是迁移目标文档的固定标识。
// 目标 id 固定使得部分失败后的重跑变成覆盖而不是重复创建。
const DefaultProfileName = "default"

// Migrator 负责检测并执行单个用户的存储代际迁移。
type Migrator struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New 构造 Migrator。
func New(db *gorm.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, logger: logger}
}

// NeedsMigration 读取用户的代际标记。
func (m *Migrator) NeedsMigration(ctx context.Context, userID uint) (bool, error) {
	var user database.User
	if err := m.db.WithContext(ctx).
		Select("id", "migrated").
		First(&user, userID).Error; err != nil {
		return false, fmt.Errorf("load migration marker: %w", err)
	}
	return !user.Migrated, nil
}

// Migrate 把用户的旧版数据迁移到规范形态，返回 true 表示
// 现在已迁移或先前已迁移。
//
// 关键顺序约束：标记写入严格排在目标内容写入成功之后，且两者在
// 同一事务内。写阶段失败时整个事务回滚、标记保持未置位，下次
// 调用会从同一检测路径完整重试；绝不会出现"已标记完成但目标
// 内容缺失"的静默丢数据状态。
func (m *Migrator) Migrate(ctx context.Context, userID uint) (bool, error) {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user database.User
		if err := tx.First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user.Migrated {
			return nil
		}

		log := m.logger.With(slog.Uint64("user_id", uint64(userID)))

		contentRaw, backgroundRaw, found, err := legacyPayload(tx, &user)
		if err != nil {
			return err
		}
		if found {
			doc, discarded := decodeLegacyDocument(contentRaw, backgroundRaw)
			if discarded {
				// 非致命：旧数据无法解读，降级为安全空态继续迁移。
				log.Warn("legacy content unreadable, migrating as empty document")
			}

			data, err := content.EncodeDocument(doc)
			if err != nil {
				return err
			}

			// 固定目标名 + upsert：部分失败后的重跑安全覆盖。
			profile := database.Profile{
				UserID:   userID,
				Name:     DefaultProfileName,
				Content:  data,
				IsActive: true,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"content", "is_active", "updated_at"}),
			}).Create(&profile).Error; err != nil {
				return fmt.Errorf("upsert default profile: %w", err)
			}

			// 同一时刻至多一个命名页面处于激活态。
			if err := tx.Model(&database.Profile{}).
				Where("user_id = ? AND name <> ?", userID, DefaultProfileName).
				Update("is_active", false).Error; err != nil {
				return fmt.Errorf("deactivate other profiles: %w", err)
			}
		} else {
			log.Info("no legacy data found, marking migration complete")
		}

		now := time.Now()
		if err := tx.Model(&database.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"migrated":             true,
				"migration_date":       now,
				"default_profile_name": DefaultProfileName,
			}).Error; err != nil {
			return fmt.Errorf("set migration marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// MigrateAll 批量迁移全部尚未迁移的用户，返回成功数。
// 单个用户失败不中断整体流程。
func (m *Migrator) MigrateAll(ctx context.Context) (int, error) {
	var ids []uint
	if err := m.db.WithContext(ctx).
		Model(&database.User{}).
		Where("migrated = ?", false).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("list unmigrated users: %w", err)
	}

	migrated := 0
	var errs []error
	for _, id := range ids {
		if _, err := m.Migrate(ctx, id); err != nil {
			m.logger.Error("migrate user failed",
				slog.Uint64("user_id", uint64(id)),
				slog.Any("error", err),
			)
			errs = append(errs, err)
			continue
		}
		migrated++
	}
	if len(errs) > 0 {
		return migrated, fmt.Errorf("migrate all: %d of %d users failed", len(errs), len(ids))
	}
	return migrated, nil
}

// legacyPayload 按优先级取旧版数据：先查第二代独立子文档，
// 缺失时回落到第一代内嵌记录。
func legacyPayload(tx *gorm.DB, user *database.User) (contentRaw, backgroundRaw []byte, found bool, err error) {
	var row database.LegacyProfile
	err = tx.Where("user_id = ?", user.ID).First(&row).Error
	switch {
	case err == nil:
		return row.Content, row.Background, len(row.Content) > 0 || len(row.Background) > 0, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return user.LegacyContent, nil, len(user.LegacyContent) > 0, nil
	default:
		// 读失败不能当作"没有旧数据"，否则标记置位后内容就丢了。
		return nil, nil, false, fmt.Errorf("load legacy profile: %w", err)
	}
}

// decodeLegacyDocument 把旧版负载解读为规范文档。
// 两个独立解码器：先按扁平列表文档解析，失败或为空时再按
// 递归节点图解析；全都失败时降级为空文档并返回 discarded=true。
func decodeLegacyDocument(contentRaw, backgroundRaw []byte) (content.Document, bool) {
	doc := content.Document{Background: content.DefaultBackground()}
	discarded := false

	switch {
	case len(contentRaw) == 0:
		// 只有背景可迁移。
	case isFlatDocument(contentRaw):
		flat, err := content.DecodeDocument(contentRaw)
		if err != nil {
			discarded = true
		} else {
			doc = flat
		}
	default:
		tree := legacy.Normalize(contentRaw)
		if tree.Empty() {
			discarded = true
		} else {
			doc.Components = tree.Components()
		}
	}

	if len(backgroundRaw) > 0 {
		var bg content.Background
		if err := json.Unmarshal(backgroundRaw, &bg); err == nil {
			doc.Background = bg
		}
	}

	doc.UpdatedAt = time.Now()
	return content.ValidateDocument(doc), discarded
}

// isFlatDocument 报告负载是否是扁平列表形态（带 components 键）。
func isFlatDocument(raw []byte) bool {
	var probe struct {
		Components json.RawMessage `json:"components"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Components != nil
}
