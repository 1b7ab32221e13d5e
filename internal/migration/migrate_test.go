package migration

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"blocpage/internal/content"
	"blocpage/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, legacyContent []byte) database.User {
	t.Helper()
	user := database.User{Username: "taro", LegacyContent: legacyContent}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func loadUser(t *testing.T, db *gorm.DB, id uint) database.User {
	t.Helper()
	var user database.User
	if err := db.First(&user, id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user
}

func loadDefaultProfile(t *testing.T, db *gorm.DB, userID uint) (database.Profile, content.Document) {
	t.Helper()
	var profile database.Profile
	if err := db.Where("user_id = ? AND name = ?", userID, DefaultProfileName).First(&profile).Error; err != nil {
		t.Fatalf("load default profile: %v", err)
	}
	doc, err := content.DecodeDocument(profile.Content)
	if err != nil {
		t.Fatalf("decode migrated document: %v", err)
	}
	return profile, doc
}

func TestMigrate_NoLegacyDataMarksComplete(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, nil)
	m := New(db, nil)

	needs, err := m.NeedsMigration(context.Background(), user.ID)
	if err != nil || !needs {
		t.Fatalf("fresh user must need migration: %v %v", needs, err)
	}

	ok, err := m.Migrate(context.Background(), user.ID)
	if err != nil || !ok {
		t.Fatalf("migrate: %v %v", ok, err)
	}

	got := loadUser(t, db, user.ID)
	if !got.Migrated || got.MigrationDate == nil || got.DefaultProfileName != DefaultProfileName {
		t.Fatalf("marker not fully set: %+v", got)
	}

	var count int64
	db.Model(&database.Profile{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 0 {
		t.Fatalf("nothing to carry forward, no profile expected, got %d", count)
	}
}

func TestMigrate_EmbeddedFlatDocument(t *testing.T) {
	db := newTestDB(t)
	raw := []byte(`{
		"components": [
			{"id": "t1", "type": "text", "order": 1, "content": {"text": "<b>hi</b>"}},
			{"id": "l1", "type": "link", "order": 0, "content": {"url": "https://example.com"}}
		],
		"background": {"type": "gradient", "from": "#000", "to": "#fff"}
	}`)
	user := seedUser(t, db, raw)
	m := New(db, nil)

	if _, err := m.Migrate(context.Background(), user.ID); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	profile, doc := loadDefaultProfile(t, db, user.ID)
	if !profile.IsActive {
		t.Fatalf("migrated profile must be marked active")
	}
	if len(doc.Components) != 2 {
		t.Fatalf("want 2 components, got %d", len(doc.Components))
	}
	// 校验边界生效：排序重排 + 标签剥离。
	if doc.Components[0].ID != "l1" || doc.Components[0].Order != 0 {
		t.Fatalf("order not normalized: %#v", doc.Components)
	}
	if doc.Components[1].Content["text"] != "hi" {
		t.Fatalf("markup survived migration: %#v", doc.Components[1].Content)
	}
	if doc.Background.Type != content.BackgroundGradient {
		t.Fatalf("background lost: %#v", doc.Background)
	}
}

func TestMigrate_LegacyGraphDocument(t *testing.T) {
	db := newTestDB(t)
	graph := []byte(`{
		"root": {"type": "page", "nodes": ["s1", "t1"]},
		"s1": {"type": "scaffold", "props": {}, "nodes": []},
		"t1": {"type": "text", "props": {"text": "from the graph"}, "nodes": []}
	}`)
	user := seedUser(t, db, graph)
	m := New(db, nil)

	if _, err := m.Migrate(context.Background(), user.ID); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, doc := loadDefaultProfile(t, db, user.ID)
	if len(doc.Components) != 1 {
		t.Fatalf("scaffold must not migrate as content: %#v", doc.Components)
	}
	if doc.Components[0].Content["text"] != "from the graph" {
		t.Fatalf("graph content lost: %#v", doc.Components[0])
	}
}

func TestMigrate_CorruptLegacyDegradesToEmpty(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, []byte(`this is not json`))
	m := New(db, nil)

	ok, err := m.Migrate(context.Background(), user.ID)
	if err != nil || !ok {
		t.Fatalf("corrupt legacy data must not fail migration: %v %v", ok, err)
	}

	_, doc := loadDefaultProfile(t, db, user.ID)
	if !doc.Empty() {
		t.Fatalf("corrupt input must degrade to empty document: %#v", doc)
	}
	if !loadUser(t, db, user.ID).Migrated {
		t.Fatalf("marker must still be set")
	}
}

func TestMigrate_SubDocumentTakesPrecedence(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, []byte(`{"components": [{"id": "old", "type": "text", "order": 0, "content": {"text": "embedded"}}]}`))
	row := database.LegacyProfile{
		UserID:     user.ID,
		Content:    []byte(`{"components": [{"id": "new", "type": "text", "order": 0, "content": {"text": "subdocument"}}]}`),
		Background: []byte(`{"type": "solid", "color": "#222222"}`),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed legacy profile: %v", err)
	}

	m := New(db, nil)
	if _, err := m.Migrate(context.Background(), user.ID); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, doc := loadDefaultProfile(t, db, user.ID)
	if len(doc.Components) != 1 || doc.Components[0].ID != "new" {
		t.Fatalf("generation (b) must win over (a): %#v", doc.Components)
	}
	if doc.Background.Color != "#222222" {
		t.Fatalf("background from sub-document lost: %#v", doc.Background)
	}
}

func TestMigrate_WriteFailureLeavesMarkerUnset(t *testing.T) {
	db := newTestDB(t)
	raw := []byte(`{"components": [{"id": "t1", "type": "text", "order": 0, "content": {"text": "keep me"}}]}`)
	user := seedUser(t, db, raw)
	m := New(db, nil)

	// 让内容写入阶段失败：目标表缺失时 upsert 必然报错。
	if err := db.Migrator().DropTable(&database.Profile{}); err != nil {
		t.Fatalf("drop profiles table: %v", err)
	}

	if _, err := m.Migrate(context.Background(), user.ID); err == nil {
		t.Fatalf("migrate must fail when the content write fails")
	}
	if loadUser(t, db, user.ID).Migrated {
		t.Fatalf("marker must stay unset after a failed content write")
	}

	// 恢复后从同一检测路径完整重试。
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("restore schema: %v", err)
	}
	ok, err := m.Migrate(context.Background(), user.ID)
	if err != nil || !ok {
		t.Fatalf("retry after failure: %v %v", ok, err)
	}
	_, doc := loadDefaultProfile(t, db, user.ID)
	if len(doc.Components) != 1 || doc.Components[0].Content["text"] != "keep me" {
		t.Fatalf("retry lost legacy content: %#v", doc.Components)
	}
	if !loadUser(t, db, user.ID).Migrated {
		t.Fatalf("marker must be set after successful retry")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	raw := []byte(`{"components": [{"id": "t1", "type": "text", "order": 0, "content": {"text": "once"}}]}`)
	user := seedUser(t, db, raw)
	m := New(db, nil)

	if _, err := m.Migrate(context.Background(), user.ID); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	first, firstDoc := loadDefaultProfile(t, db, user.ID)

	ok, err := m.Migrate(context.Background(), user.ID)
	if err != nil || !ok {
		t.Fatalf("second migrate: %v %v", ok, err)
	}
	second, secondDoc := loadDefaultProfile(t, db, user.ID)

	if first.ID != second.ID {
		t.Fatalf("re-run must not create a new profile")
	}
	if len(firstDoc.Components) != len(secondDoc.Components) {
		t.Fatalf("re-run changed the document")
	}

	var count int64
	db.Model(&database.Profile{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Fatalf("duplicate profiles after re-run: %d", count)
	}

	needs, err := m.NeedsMigration(context.Background(), user.ID)
	if err != nil || needs {
		t.Fatalf("migrated user must not need migration again: %v %v", needs, err)
	}
}

func TestMigrateAll(t *testing.T) {
	db := newTestDB(t)
	for _, name := range []string{"a", "b", "c"} {
		u := database.User{Username: name}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	m := New(db, nil)
	n, err := m.MigrateAll(context.Background())
	if err != nil {
		t.Fatalf("migrate all: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 migrated users, got %d", n)
	}

	var remaining int64
	db.Model(&database.User{}).Where("migrated = ?", false).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("%d users left unmigrated", remaining)
	}
}
