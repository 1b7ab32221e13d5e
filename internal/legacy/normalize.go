// Package legacy 解读旧版编辑器输出的递归节点图文档。
//
// 旧格式是一个按 id 取值的映射：保留的 root 键引用一串子节点 id，
// 每个子节点携带 {type, props, nodes}。scaffold 类型只是"在此添加
// 内容"的占位标记，永远不算真实内容。
package legacy

import (
	"encoding/json"
	"sort"

	"blocpage/internal/content"
)

// 图文档中的保留标签。
const (
	RootKey      = "root"
	RootType     = "page"
	ScaffoldType = string(content.BlockScaffold)
)

// Node 是图文档中的一个已解析节点。
type Node struct {
	ID    string
	Type  string
	Props map[string]any
}

// Tree 是规范化之后的可渲染序列。
type Tree struct {
	Nodes []Node
}

// EmptyDocument 是所有失败路径共享的安全空态。
var EmptyDocument = &Tree{}

// Empty 报告规范化结果是否没有任何真实内容。
func (t *Tree) Empty() bool {
	return t == nil || len(t.Nodes) == 0
}

type rawNode struct {
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
	Nodes []string       `json:"nodes"`
}

// Normalize 把序列化的图文档解读为可渲染树。
//
// 该函数从不失败：JSON 解析错误、非对象形态、缺失 root、
// 只有占位节点等情况一律退化为 EmptyDocument，由调用点决定
// 是否向用户提示非致命告警。
func Normalize(data []byte) *Tree {
	if len(data) == 0 {
		return EmptyDocument
	}

	var graph map[string]json.RawMessage
	if err := json.Unmarshal(data, &graph); err != nil {
		return EmptyDocument
	}

	nodes := make(map[string]rawNode, len(graph))
	for key, raw := range graph {
		var n rawNode
		if err := json.Unmarshal(raw, &n); err != nil {
			// 单个坏节点不拖垮整份文档。
			continue
		}
		nodes[key] = n
	}

	// root 的 nodes 列表决定显示顺序；没有 root 时走兜底排序。
	var ordered []string
	if root, ok := nodes[RootKey]; ok {
		ordered = root.Nodes
	}

	seen := make(map[string]bool, len(nodes))
	var out []Node

	appendReal := func(id string) {
		if id == RootKey || seen[id] {
			return
		}
		n, ok := nodes[id]
		if !ok {
			// 悬空引用，跳过。
			return
		}
		seen[id] = true
		if !isRealContent(n.Type) {
			return
		}
		out = append(out, Node{ID: id, Type: n.Type, Props: n.Props})
	}

	for _, id := range ordered {
		appendReal(id)
	}

	// root 未引用到的真实节点按键名排序补在尾部，保证确定性。
	rest := make([]string, 0, len(nodes))
	for id := range nodes {
		if id != RootKey && !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		appendReal(id)
	}

	if len(out) == 0 {
		return EmptyDocument
	}
	return &Tree{Nodes: out}
}

// isRealContent 报告类型标签是否代表真实内容：
// 既不是根容器也不是 scaffold 占位。
func isRealContent(typeTag string) bool {
	return typeTag != "" && typeTag != RootType && typeTag != ScaffoldType
}

// Components 把规范化树转成规范列表组件（未净化，调用方需再过校验）。
func (t *Tree) Components() []content.Component {
	if t.Empty() {
		return nil
	}
	components := make([]content.Component, 0, len(t.Nodes))
	for i, n := range t.Nodes {
		components = append(components, content.Component{
			ID:      n.ID,
			Type:    content.BlockType(n.Type),
			Order:   i,
			Content: n.Props,
		})
	}
	return components
}
