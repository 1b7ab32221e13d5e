package content

import (
	"strings"
	"testing"
)

func TestValidateText_StripsMarkup(t *testing.T) {
	out := Validate(BlockText, map[string]any{
		"text": "<b>hi</b><script>x</script>",
	})

	got, ok := out["text"].(string)
	if !ok {
		t.Fatalf("text field missing: %#v", out)
	}
	if strings.ContainsAny(got, "<>") {
		t.Fatalf("sanitized text still contains tags: %q", got)
	}
	if !strings.Contains(got, "hi") {
		t.Fatalf("sanitized text lost content: %q", got)
	}
}

func TestValidateText_TruncatesAndDropsUnknownFields(t *testing.T) {
	long := strings.Repeat("a", MaxTextLen+100)
	out := Validate(BlockText, map[string]any{
		"text":    long,
		"unknown": "value",
	})

	if got := out["text"].(string); len([]rune(got)) != MaxTextLen {
		t.Fatalf("expected text capped at %d runes, got %d", MaxTextLen, len([]rune(got)))
	}
	if _, ok := out["unknown"]; ok {
		t.Fatalf("unknown field survived validation: %#v", out)
	}
}

func TestValidateLink_DropsMalformedURL(t *testing.T) {
	out := Validate(BlockLink, map[string]any{
		"url":   "not a url",
		"label": "my <i>site</i>",
	})

	if _, ok := out["url"]; ok {
		t.Fatalf("malformed url should be treated as absent: %#v", out)
	}
	if got := out["label"].(string); got != "my site" {
		t.Fatalf("label not sanitized: %q", got)
	}
}

func TestValidateImage_KeepsWellFormedURL(t *testing.T) {
	out := Validate(BlockImage, map[string]any{
		"src": "https://cdn.example.com/a.png",
		"alt": strings.Repeat("x", 500),
	})

	if got := out["src"]; got != "https://cdn.example.com/a.png" {
		t.Fatalf("src dropped: %#v", out)
	}
	if got := out["alt"].(string); len([]rune(got)) != MaxLabelLen {
		t.Fatalf("alt not capped: %d", len([]rune(got)))
	}
}

func TestValidateProfileCard_ResolvesAliases(t *testing.T) {
	out := Validate(BlockProfileCard, map[string]any{
		"name":   "山田 太郎",
		"mobile": "090-0000-0000",
		"zip":    "150-0001",
		"org":    "Example Inc.",
		"web":    "https://example.com",
		"email":  "taro@example.com",
	})

	if out["cellPhone"] != "090-0000-0000" {
		t.Fatalf("mobile alias not resolved: %#v", out)
	}
	if out["postalCode"] != "150-0001" {
		t.Fatalf("zip alias not resolved: %#v", out)
	}
	if out["company"] != "Example Inc." {
		t.Fatalf("org alias not resolved: %#v", out)
	}
	if out["website"] != "https://example.com" {
		t.Fatalf("web alias not resolved: %#v", out)
	}
	if _, ok := out["mobile"]; ok {
		t.Fatalf("alias key should not survive: %#v", out)
	}
}

func TestValidateProfileCard_InvalidEmailDropped(t *testing.T) {
	out := Validate(BlockProfileCard, map[string]any{
		"name":  "x",
		"email": "not-an-email",
	})
	if _, ok := out["email"]; ok {
		t.Fatalf("invalid email should be dropped: %#v", out)
	}
	if out["name"] != "x" {
		t.Fatalf("valid field lost: %#v", out)
	}
}

// 全函数性：任意输入形态都必须返回结果而不是 panic。
func TestValidate_Totality(t *testing.T) {
	inputs := []map[string]any{
		nil,
		{},
		{"text": 42},
		{"text": nil},
		{"src": []string{"a"}},
		{"url": strings.Repeat("https://", 2000)},
	}
	for _, raw := range inputs {
		for _, bt := range append(PersistableTypes, BlockScaffold, BlockType("mystery")) {
			if out := Validate(bt, raw); out == nil {
				t.Fatalf("Validate(%s, %#v) returned nil", bt, raw)
			}
		}
	}
}

func TestValidate_UnknownTypeSanitizesStrings(t *testing.T) {
	out := Validate(BlockType("widget"), map[string]any{
		"payload": "<script>alert(1)</script>ok",
		"count":   3,
	})
	if got := out["payload"].(string); strings.Contains(got, "<") {
		t.Fatalf("unknown type content not sanitized: %q", got)
	}
	if out["count"] != 3 {
		t.Fatalf("non-string value should be kept: %#v", out)
	}
}
