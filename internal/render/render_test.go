package render

import (
	"strings"
	"testing"

	"blocpage/internal/content"
)

func sampleDocument() content.Document {
	return content.Document{
		Components: []content.Component{
			{ID: "t1", Type: content.BlockText, Order: 0, Content: map[string]any{"text": "hello world"}},
			{ID: "l1", Type: content.BlockLink, Order: 1, Content: map[string]any{"url": "https://example.com", "label": "my site"}},
			{ID: "c1", Type: content.BlockProfileCard, Order: 2, Content: map[string]any{"name": "Taro", "email": "taro@example.com"}},
		},
		Background: content.Background{Type: content.BackgroundSolid, Color: "#fafafa"},
	}
}

func TestRender_PublicMode(t *testing.T) {
	out, err := Render(sampleDocument(), ModePublic)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)

	if !strings.Contains(html, "hello world") {
		t.Fatalf("text block missing from output")
	}
	if !strings.Contains(html, `target="_blank"`) || !strings.Contains(html, "noopener") {
		t.Fatalf("public links must open in a new context")
	}
	if strings.Contains(html, "contenteditable") || strings.Contains(html, "data-action") {
		t.Fatalf("public mode must not expose editor controls")
	}
	if !strings.Contains(html, "background-color: #fafafa") {
		t.Fatalf("background style missing: %s", html)
	}
}

func TestRender_EditableModeHasControls(t *testing.T) {
	out, err := Render(sampleDocument(), ModeEditable)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)

	if !strings.Contains(html, `data-block-id="t1"`) {
		t.Fatalf("editable mode must tag blocks with ids")
	}
	if !strings.Contains(html, "draggable") || !strings.Contains(html, `data-action="delete"`) {
		t.Fatalf("editable mode must offer drag and delete controls")
	}
	// 两种模式消费同一份内容。
	if !strings.Contains(html, "hello world") || !strings.Contains(html, "taro@example.com") {
		t.Fatalf("editable mode lost block content")
	}
}

func TestRender_EmptyDocumentPlaceholder(t *testing.T) {
	for _, mode := range []Mode{ModePublic, ModeEditable} {
		out, err := Render(content.Document{}, mode)
		if err != nil {
			t.Fatalf("render %s: %v", mode, err)
		}
		if !strings.Contains(string(out), "还没有内容") {
			t.Fatalf("%s: empty document must render the placeholder page", mode)
		}
	}
}

func TestRender_SkipsUnknownTypes(t *testing.T) {
	doc := content.Document{
		Components: []content.Component{
			{ID: "u1", Type: content.BlockType("widget"), Order: 0, Content: map[string]any{"x": "y"}},
			{ID: "t1", Type: content.BlockText, Order: 1, Content: map[string]any{"text": "kept"}},
		},
	}
	out, err := Render(doc, ModePublic)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)
	if strings.Contains(html, "widget") {
		t.Fatalf("unknown block type must be skipped silently")
	}
	if !strings.Contains(html, "kept") {
		t.Fatalf("known blocks must survive alongside unknown ones")
	}
}

func TestRender_SortsByOrder(t *testing.T) {
	doc := content.Document{
		Components: []content.Component{
			{ID: "second", Type: content.BlockText, Order: 5, Content: map[string]any{"text": "BBB"}},
			{ID: "first", Type: content.BlockText, Order: 1, Content: map[string]any{"text": "AAA"}},
		},
	}
	out, err := Render(doc, ModePublic)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)
	if strings.Index(html, "AAA") > strings.Index(html, "BBB") {
		t.Fatalf("blocks must render in ascending order")
	}
}

func TestRender_UnknownMode(t *testing.T) {
	if _, err := Render(sampleDocument(), Mode("pdf")); err == nil {
		t.Fatalf("unknown mode must fail")
	}
}
