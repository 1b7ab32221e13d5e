// Package render 把规范文档映射为页面 HTML。
// 编辑模式与公开模式各有一张独立的注册表，消费完全相同的内容。
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"blocpage/internal/background"
	"blocpage/internal/content"
)

// Mode 标识渲染的信任上下文。
type Mode string

const (
	// ModeEditable 带选择、拖拽与属性控件，仅限页面所有者。
	ModeEditable Mode = "editable"
	// ModePublic 严格只读，链接在新上下文中打开。
	ModePublic Mode = "public"
)

// 两张注册表都必须覆盖全部可持久化类型；scaffold 被刻意排除在外。
var (
	publicRegistry = map[content.BlockType]string{
		content.BlockText:        "public-text",
		content.BlockImage:       "public-image",
		content.BlockLink:        "public-link",
		content.BlockProfileCard: "public-card",
	}
	editableRegistry = map[content.BlockType]string{
		content.BlockText:        "edit-text",
		content.BlockImage:       "edit-image",
		content.BlockLink:        "edit-link",
		content.BlockProfileCard: "edit-card",
	}
)

var pageTemplate = template.Must(
	template.New("page").Funcs(template.FuncMap{
		"field": func(m map[string]any, key string) string {
			if m == nil {
				return ""
			}
			if s, ok := m[key].(string); ok {
				return s
			}
			return ""
		},
		"safeURL": func(s string) template.URL { return template.URL(s) },
		"safeCSS": func(s string) template.CSS { return template.CSS(s) },
	}).Parse(pageTemplateString),
)

type pageView struct {
	Editable      bool
	BackgroundCSS template.CSS
	Blocks        []template.HTML
}

// Render 把文档渲染为完整的页面 HTML。
//
// 文档先整体过一遍结构校验，空文档与校验后无可渲染内容的文档
// 都输出固定的"还没有内容"占位页，而不是残缺页面。
// 未知块类型在两种模式下都被静默跳过（前向兼容策略）。
func Render(doc content.Document, mode Mode) ([]byte, error) {
	registry, fallbackOpacity := registryFor(mode)
	if registry == nil {
		return nil, fmt.Errorf("unknown render mode %q", mode)
	}

	doc = content.ValidateDocument(doc)

	blocks := make([]template.HTML, 0, len(doc.Components))
	for _, comp := range doc.Components {
		name, ok := registry[comp.Type]
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := pageTemplate.ExecuteTemplate(&buf, name, comp); err != nil {
			return nil, fmt.Errorf("render block %s (%s): %w", comp.ID, comp.Type, err)
		}
		blocks = append(blocks, template.HTML(buf.String()))
	}

	style := background.ResolveWith(doc.Background, fallbackOpacity)

	var out bytes.Buffer
	err := pageTemplate.ExecuteTemplate(&out, "page", pageView{
		Editable:      mode == ModeEditable,
		BackgroundCSS: template.CSS(style.CSS()),
		Blocks:        blocks,
	})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return out.Bytes(), nil
}

func registryFor(mode Mode) (map[content.BlockType]string, float64) {
	switch mode {
	case ModePublic:
		return publicRegistry, background.PublicImageOpacity
	case ModeEditable:
		return editableRegistry, background.EditorImageOpacity
	default:
		return nil, 0
	}
}
