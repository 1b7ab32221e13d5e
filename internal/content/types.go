package content

import "time"

// BlockType 是内容块的封闭枚举。
// 新增块类型必须同时扩展校验与两套渲染注册表。
type BlockType string

const (
	BlockText        BlockType = "text"
	BlockImage       BlockType = "image"
	BlockLink        BlockType = "link"
	BlockProfileCard BlockType = "profile-card"

	// BlockScaffold 是旧版图文档中的"在此添加内容"占位标记。
	// 仅用于渲染期提示，永远不算真实内容，不可持久化。
	BlockScaffold BlockType = "scaffold"
)

// PersistableTypes 列出允许写入存储的全部块类型。
var PersistableTypes = []BlockType{BlockText, BlockImage, BlockLink, BlockProfileCard}

// Persistable 报告该类型是否允许出现在持久化文档中。
func (t BlockType) Persistable() bool {
	switch t {
	case BlockText, BlockImage, BlockLink, BlockProfileCard:
		return true
	default:
		return false
	}
}

// Component 表示页面中的单个内容块。
// Order 定义显示顺序；同序值按原插入位置稳定排序。
type Component struct {
	ID      string         `json:"id"`
	Type    BlockType      `json:"type"`
	Order   int            `json:"order"`
	Content map[string]any `json:"content"`
	Style   map[string]any `json:"style,omitempty"`
}

// 背景变体标签。同一时刻只有一个变体生效。
const (
	BackgroundSolid    = "solid"
	BackgroundGradient = "gradient"
	BackgroundImage    = "image"
	BackgroundPattern  = "pattern"
)

// Background 是背景样式的带标签联合。
// Opacity 用指针区分"未设置"与显式 0，缺省值由解析端补齐。
type Background struct {
	Type      string   `json:"type"`
	Color     string   `json:"color,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Direction string   `json:"direction,omitempty"`
	URL       string   `json:"url,omitempty"`
	Opacity   *float64 `json:"opacity,omitempty"`
	Size      string   `json:"size,omitempty"`
	PositionX string   `json:"position_x,omitempty"`
	PositionY string   `json:"position_y,omitempty"`
	PatternID string   `json:"pattern_id,omitempty"`
}

// Document 是一个用户可分享页面的完整逻辑内容。
type Document struct {
	Components []Component `json:"components"`
	Background Background  `json:"background"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Empty 报告文档是否没有任何内容块。
func (d Document) Empty() bool {
	return len(d.Components) == 0
}
