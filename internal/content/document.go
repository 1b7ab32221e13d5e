package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
)

// DecodeDocument 反序列化一份逻辑文档。
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// EncodeDocument 序列化一份逻辑文档。
func EncodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// ValidateDocument 对整份文档做结构校验与净化：
//   - 每个组件的内容经过 Validate；
//   - scaffold 组件被丢弃（不可持久化）；
//   - ID 唯一性强制成立，重复 ID 按出现位置确定性地改名；
//   - Order 按 (order, 原插入位置) 稳定排序后重排为 0..N-1。
//
// 与 Validate 一样，该函数从不失败。
func ValidateDocument(doc Document) Document {
	components := make([]Component, 0, len(doc.Components))
	seen := make(map[string]bool)

	for _, c := range doc.Components {
		if c.Type == BlockScaffold {
			continue
		}

		c.Content = Validate(c.Type, c.Content)

		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if seen[c.ID] {
			// 改名结果也可能撞上文档里已有的 ID，递增后缀直到唯一。
			base := c.ID
			for n := 2; ; n++ {
				renamed := fmt.Sprintf("%s-%d", base, n)
				if !seen[renamed] {
					c.ID = renamed
					break
				}
			}
		}
		seen[c.ID] = true

		if c.Order < 0 {
			c.Order = 0
		}

		components = append(components, c)
	}

	sort.SliceStable(components, func(i, j int) bool {
		return components[i].Order < components[j].Order
	})
	for i := range components {
		components[i].Order = i
	}

	doc.Components = components
	doc.Background = ValidateBackground(doc.Background)
	return doc
}

// DefaultBackground 是未设置背景时的缺省值。
func DefaultBackground() Background {
	return Background{Type: BackgroundSolid, Color: "#ffffff"}
}

// 背景里会拼进样式声明的自由串字段全部在这里约束格式，
// 非法值与坏 URL 一样按缺失处理，渲染时回落到各自的缺省值。
var (
	gradientDirectionPattern  = regexp.MustCompile(`^(to (top|bottom|left|right)( (left|right))?|-?\d{1,3}(\.\d+)?deg)$`)
	backgroundSizePattern     = regexp.MustCompile(`^(cover|contain|auto|\d{1,4}(\.\d+)?(px|%)( \d{1,4}(\.\d+)?(px|%))?)$`)
	backgroundPositionPattern = regexp.MustCompile(`^(left|center|right|top|bottom|\d{1,4}(\.\d+)?(px|%))$`)
)

// ValidateBackground 净化背景描述：未知变体回落到纯色白底，
// URL、颜色、方向、尺寸、定位字段格式非法时按缺失处理。
func ValidateBackground(bg Background) Background {
	switch bg.Type {
	case BackgroundSolid, BackgroundPattern:
		if bg.Color != "" && !ValidColor(bg.Color) {
			bg.Color = ""
		}
		return bg
	case BackgroundGradient:
		if bg.From != "" && !ValidColor(bg.From) {
			bg.From = ""
		}
		if bg.To != "" && !ValidColor(bg.To) {
			bg.To = ""
		}
		if bg.Direction != "" && !gradientDirectionPattern.MatchString(bg.Direction) {
			bg.Direction = ""
		}
		return bg
	case BackgroundImage:
		if !ValidURL(bg.URL) {
			return DefaultBackground()
		}
		if bg.Size != "" && !backgroundSizePattern.MatchString(bg.Size) {
			bg.Size = ""
		}
		if bg.PositionX != "" && !backgroundPositionPattern.MatchString(bg.PositionX) {
			bg.PositionX = ""
		}
		if bg.PositionY != "" && !backgroundPositionPattern.MatchString(bg.PositionY) {
			bg.PositionY = ""
		}
		return bg
	default:
		return DefaultBackground()
	}
}
