package content

import (
	"html"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// 各字段长度上限。超长内容按 rune 截断而不是拒绝。
const (
	MaxTextLen      = 5000
	MaxLabelLen     = 200
	MaxBioLen       = 1000
	MaxCardFieldLen = 200
)

var (
	// StrictPolicy 去掉一切标签与属性，只保留文本内容。
	sanitizer = bluemonday.StrictPolicy()

	fieldValidator = validator.New()
)

// SanitizeText 去除输入中的全部标签并截断到 max 个 rune。
// bluemonday 会把保留文本转成 HTML 实体，这里再还原成纯文本。
func SanitizeText(s string, max int) string {
	s = sanitizer.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.TrimSpace(s)
	if max > 0 {
		if runes := []rune(s); len(runes) > max {
			s = string(runes[:max])
		}
	}
	return s
}

// ValidURL 报告 s 是否为格式合法的 http(s) URL。
func ValidURL(s string) bool {
	return fieldValidator.Var(s, "required,http_url") == nil
}

// ValidEmail 报告 s 是否为格式合法的邮箱地址。
func ValidEmail(s string) bool {
	return fieldValidator.Var(s, "required,email") == nil
}

var colorKeywordPattern = regexp.MustCompile(`^[a-zA-Z]{3,25}$`)

// ValidColor 报告 s 是否为可安全嵌入样式声明的颜色值：
// hex（#rgb/#rgba/#rrggbb/#rrggbbaa）或纯字母的命名颜色。
func ValidColor(s string) bool {
	if fieldValidator.Var(s, "required,hexcolor") == nil {
		return true
	}
	return colorKeywordPattern.MatchString(s)
}

// profile-card 的纯文本字段（统一 200 上限，bio 除外）。
var cardTextFields = []string{
	"firstName", "lastName",
	"phoneticFirstName", "phoneticLastName",
	"name", "phone", "cellPhone",
	"company", "department", "position",
	"address", "city", "postalCode",
}

// 历史调用点使用过的别名字段，统一在校验边界折叠到规范字段名。
var cardFieldAliases = map[string]string{
	"mobile": "cellPhone",
	"zip":    "postalCode",
	"org":    "company",
	"web":    "website",
	"mail":   "email",
}

// Validate 把原始内容净化为符合类型契约的记录。
// 该函数是全函数：任何输入（nil、未知键、超长串、坏 URL）都返回
// 尽力而为的净化结果，不会失败。格式非法的可选字段被当作缺失丢弃。
func Validate(t BlockType, raw map[string]any) map[string]any {
	out := make(map[string]any)
	if raw == nil {
		raw = map[string]any{}
	}

	switch t {
	case BlockText:
		if s, ok := stringField(raw, "text"); ok {
			out["text"] = SanitizeText(s, MaxTextLen)
		} else {
			out["text"] = ""
		}

	case BlockImage:
		if s, ok := stringField(raw, "src"); ok && ValidURL(s) {
			out["src"] = s
		}
		if s, ok := stringField(raw, "alt"); ok {
			out["alt"] = SanitizeText(s, MaxLabelLen)
		}

	case BlockLink:
		if s, ok := stringField(raw, "url"); ok && ValidURL(s) {
			out["url"] = s
		}
		if s, ok := stringField(raw, "label"); ok {
			out["label"] = SanitizeText(s, MaxLabelLen)
		}

	case BlockProfileCard:
		resolved := resolveCardAliases(raw)
		for _, field := range cardTextFields {
			if s, ok := stringField(resolved, field); ok {
				out[field] = SanitizeText(s, MaxCardFieldLen)
			}
		}
		if s, ok := stringField(resolved, "bio"); ok {
			out["bio"] = SanitizeText(s, MaxBioLen)
		}
		if s, ok := stringField(resolved, "email"); ok && ValidEmail(s) {
			out["email"] = s
		}
		if s, ok := stringField(resolved, "website"); ok && ValidURL(s) {
			out["website"] = s
		}
		if s, ok := stringField(resolved, "photoURL"); ok && ValidURL(s) {
			out["photoURL"] = s
		}

	case BlockScaffold:
		// 占位节点没有内容契约。

	default:
		// 前向兼容：未知类型原样保留键，但所有字符串值都要净化，
		// 保证未净化的标记永远不会落库。
		for key, value := range raw {
			if s, ok := value.(string); ok {
				out[key] = SanitizeText(s, MaxTextLen)
			} else {
				out[key] = value
			}
		}
	}

	return out
}

func resolveCardAliases(raw map[string]any) map[string]any {
	resolved := make(map[string]any, len(raw))
	for key, value := range raw {
		resolved[key] = value
	}
	for alias, canonical := range cardFieldAliases {
		value, ok := resolved[alias]
		if !ok {
			continue
		}
		if _, exists := resolved[canonical]; !exists {
			resolved[canonical] = value
		}
		delete(resolved, alias)
	}
	return resolved
}

func stringField(raw map[string]any, key string) (string, bool) {
	value, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// DefaultContent 返回编辑器"添加"操作使用的类型缺省内容。
func DefaultContent(t BlockType) map[string]any {
	switch t {
	case BlockText:
		return map[string]any{"text": ""}
	case BlockLink:
		return map[string]any{"label": ""}
	default:
		return map[string]any{}
	}
}
