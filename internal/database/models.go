package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
// Migrated/MigrationDate/DefaultProfileName 是存储代际标记：
// 只有在目标内容写入成功之后才会被置位（见 internal/migration）。
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:64"`
	PasswordHash string `gorm:"size:255"`
	DisplayName  string `gorm:"size:128"`

	// LegacyContent 是第一代存储形态：直接内嵌在用户行上的页面数据。
	LegacyContent datatypes.JSON `gorm:"type:jsonb"`

	Migrated           bool       `gorm:"default:false"`
	MigrationDate      *time.Time `gorm:""`
	DefaultProfileName string     `gorm:"size:64"`

	Profiles []Profile `gorm:"constraint:OnDelete:CASCADE"`
}

// LegacyProfile 是第二代存储形态：每个用户一行的独立子文档。
// 迁移完成后保留只读，不再被业务路径写入。
type LegacyProfile struct {
	gorm.Model
	UserID     uint           `gorm:"uniqueIndex"`
	Content    datatypes.JSON `gorm:"type:jsonb"`
	Background datatypes.JSON `gorm:"type:jsonb"`
	Theme      string         `gorm:"size:64"`
}

// Profile 是第三代（规范）存储形态：用户名下可寻址的命名页面文档。
// Content 存放完整的逻辑文档 {components, background, updated_at}。
type Profile struct {
	gorm.Model
	UserID      uint           `gorm:"index:idx_profiles_user_name,unique"`
	Name        string         `gorm:"size:64;index:idx_profiles_user_name,unique"`
	Content     datatypes.JSON `gorm:"type:jsonb"`
	IsActive    bool           `gorm:"default:false"`
	SnapshotKey string         `gorm:"size:512"`
	User        User           `gorm:"constraint:OnDelete:CASCADE"`
}

// Asset 记录用户上传到对象存储的图片。
type Asset struct {
	gorm.Model
	UserID    uint   `gorm:"index"`
	ObjectKey string `gorm:"size:512;uniqueIndex"`
	MIMEType  string `gorm:"size:128"`
	SizeBytes int64
}
