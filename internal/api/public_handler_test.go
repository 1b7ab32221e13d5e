package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"blocpage/internal/content"
	"blocpage/internal/migration"
)

func doPublicPage(t *testing.T, h *PublicHandler, username string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/p/"+username, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "username", Value: username}}
	h.GetPublicPage(c)
	return w
}

func TestGetPublicPage_RendersActiveProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	user := seedTestUser(t, db, "taro")
	profile := seedProfile(t, db, user.ID, "portfolio")

	doc := content.Document{
		Components: []content.Component{
			{ID: "a", Type: content.BlockText, Order: 0, Content: map[string]any{"text": "hello world"}},
		},
		Background: content.DefaultBackground(),
	}
	encoded, err := content.EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode document: %v", err)
	}
	if err := db.Model(&profile).Update("content", encoded).Error; err != nil {
		t.Fatalf("update profile: %v", err)
	}

	h := NewPublicHandler(db, migration.New(db, nil), nil)
	w := doPublicPage(t, h, "taro")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	html := w.Body.String()
	if !strings.Contains(html, "hello world") {
		t.Fatalf("content missing from page: %s", html)
	}
	if strings.Contains(html, "data-block-id") {
		t.Fatalf("public page leaked editor markup: %s", html)
	}
}

func TestGetPublicPage_UnknownUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	h := NewPublicHandler(db, migration.New(db, nil), nil)
	w := doPublicPage(t, h, "nobody")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetPublicPage_CorruptContentShowsPlaceholder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	user := seedTestUser(t, db, "taro")
	profile := seedProfile(t, db, user.ID, "portfolio")
	if err := db.Model(&profile).Update("content", []byte(`not json`)).Error; err != nil {
		t.Fatalf("corrupt profile: %v", err)
	}

	h := NewPublicHandler(db, migration.New(db, nil), nil)
	w := doPublicPage(t, h, "taro")

	if w.Code != http.StatusOK {
		t.Fatalf("corrupt content must not break the page, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "还没有内容") {
		t.Fatalf("placeholder missing: %s", w.Body.String())
	}
}

func TestGetPublicPage_EmptyShowsPlaceholder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	seedTestUser(t, db, "taro")

	h := NewPublicHandler(db, migration.New(db, nil), nil)
	w := doPublicPage(t, h, "taro")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "还没有内容") {
		t.Fatalf("placeholder missing: %s", w.Body.String())
	}
}
