// Package background 把背景描述解析为渲染参数。
package background

import (
	"fmt"
	"strings"

	"blocpage/internal/content"
)

// 各调用点的图片背景不透明度缺省值。缺省必须显式补齐，
// 不允许静默落到 0（那会把图片完全盖白）。
const (
	DefaultImageOpacity      = 0.6
	EditorImageOpacity       = 0.7
	PublicImageOpacity       = 0.5
	DefaultGradientDirection = "to bottom"
	DefaultImageSize         = "cover"
	DefaultImagePosition     = "center"
	DefaultColor             = "#ffffff"
)

// 内置图案平铺素材，按 patternId 取值。
var patternTiles = map[string]string{
	"dots":     "/static/patterns/dots.svg",
	"grid":     "/static/patterns/grid.svg",
	"stripes":  "/static/patterns/stripes.svg",
	"confetti": "/static/patterns/confetti.svg",
}

const defaultPatternID = "dots"

// Style 是解析后的视觉参数集合。
type Style struct {
	Kind string

	// solid
	Color string

	// gradient
	GradientFrom string
	GradientTo   string
	Direction    string

	// image：OverlayAlpha 是叠加在图片上方的白色层透明度，
	// 等于 1-opacity，用来按可预期的方式压淡图片。
	ImageURL     string
	OverlayAlpha float64
	Size         string
	PositionX    string
	PositionY    string

	// pattern
	TileURL     string
	PatternTint string
}

// Resolve 用通用缺省不透明度解析背景描述。
func Resolve(spec content.Background) Style {
	return ResolveWith(spec, DefaultImageOpacity)
}

// ResolveWith 解析背景描述，fallbackOpacity 用于 image 变体
// 未显式设置 opacity 的场景。纯函数，不访问外部状态。
func ResolveWith(spec content.Background, fallbackOpacity float64) Style {
	switch spec.Type {
	case content.BackgroundSolid:
		return Style{
			Kind:  content.BackgroundSolid,
			Color: orDefault(spec.Color, DefaultColor),
		}

	case content.BackgroundGradient:
		return Style{
			Kind:         content.BackgroundGradient,
			GradientFrom: orDefault(spec.From, DefaultColor),
			GradientTo:   orDefault(spec.To, DefaultColor),
			Direction:    orDefault(spec.Direction, DefaultGradientDirection),
		}

	case content.BackgroundImage:
		opacity := fallbackOpacity
		if spec.Opacity != nil {
			opacity = clamp01(*spec.Opacity)
		}
		return Style{
			Kind:         content.BackgroundImage,
			ImageURL:     spec.URL,
			OverlayAlpha: 1 - opacity,
			Size:         orDefault(spec.Size, DefaultImageSize),
			PositionX:    orDefault(spec.PositionX, DefaultImagePosition),
			PositionY:    orDefault(spec.PositionY, DefaultImagePosition),
		}

	case content.BackgroundPattern:
		id := spec.PatternID
		if _, ok := patternTiles[id]; !ok {
			id = defaultPatternID
		}
		return Style{
			Kind:        content.BackgroundPattern,
			TileURL:     patternTiles[id],
			PatternTint: orDefault(spec.Color, DefaultColor),
		}

	default:
		return Style{Kind: content.BackgroundSolid, Color: DefaultColor}
	}
}

// CSS 把解析结果拼成容器的内联样式声明。
// 图片变体通过在图片上方合成一层 alpha=1-opacity 的白色渐变实现压淡，
// 而不是直接调低 img 的透明度。
func (s Style) CSS() string {
	switch s.Kind {
	case content.BackgroundSolid:
		return fmt.Sprintf("background-color: %s;", s.Color)

	case content.BackgroundGradient:
		return fmt.Sprintf("background: linear-gradient(%s, %s, %s);",
			s.Direction, s.GradientFrom, s.GradientTo)

	case content.BackgroundImage:
		var b strings.Builder
		fmt.Fprintf(&b,
			"background-image: linear-gradient(rgba(255,255,255,%.2f), rgba(255,255,255,%.2f)), url('%s');",
			s.OverlayAlpha, s.OverlayAlpha, s.ImageURL)
		fmt.Fprintf(&b, " background-size: %s;", s.Size)
		fmt.Fprintf(&b, " background-position: %s %s;", s.PositionX, s.PositionY)
		return b.String()

	case content.BackgroundPattern:
		return fmt.Sprintf("background-color: %s; background-image: url('%s'); background-repeat: repeat;",
			s.PatternTint, s.TileURL)

	default:
		return fmt.Sprintf("background-color: %s;", DefaultColor)
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
