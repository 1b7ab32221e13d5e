package background

import (
	"math"
	"strings"
	"testing"

	"blocpage/internal/content"
)

func TestResolve_ImageOverlayAlpha(t *testing.T) {
	opacity := 0.3
	style := Resolve(content.Background{
		Type:    content.BackgroundImage,
		URL:     "https://cdn.example.com/bg.jpg",
		Opacity: &opacity,
	})

	if style.Kind != content.BackgroundImage {
		t.Fatalf("wrong kind: %q", style.Kind)
	}
	if style.ImageURL != "https://cdn.example.com/bg.jpg" {
		t.Fatalf("image url lost: %q", style.ImageURL)
	}
	if math.Abs(style.OverlayAlpha-0.7) > 1e-9 {
		t.Fatalf("overlay alpha must be 1-opacity, got %v", style.OverlayAlpha)
	}
}

func TestResolve_ImageOpacityDefaultIsExplicit(t *testing.T) {
	style := ResolveWith(content.Background{
		Type: content.BackgroundImage,
		URL:  "https://cdn.example.com/bg.jpg",
	}, PublicImageOpacity)

	if math.Abs(style.OverlayAlpha-(1-PublicImageOpacity)) > 1e-9 {
		t.Fatalf("missing opacity must use the caller default, got %v", style.OverlayAlpha)
	}
	if style.Size != DefaultImageSize || style.PositionX != DefaultImagePosition {
		t.Fatalf("missing numeric/position fields must default: %#v", style)
	}
}

func TestResolve_SolidHasNoOverlay(t *testing.T) {
	style := Resolve(content.Background{Type: content.BackgroundSolid, Color: "#ffffff"})
	if style.Kind != content.BackgroundSolid || style.Color != "#ffffff" {
		t.Fatalf("unexpected style: %#v", style)
	}
	if strings.Contains(style.CSS(), "linear-gradient") {
		t.Fatalf("solid fill must not composite an overlay: %q", style.CSS())
	}
}

func TestResolve_GradientDefaults(t *testing.T) {
	style := Resolve(content.Background{Type: content.BackgroundGradient, From: "#000", To: "#fff"})
	if style.Direction != DefaultGradientDirection {
		t.Fatalf("direction must default, got %q", style.Direction)
	}
	css := style.CSS()
	if !strings.Contains(css, "#000") || !strings.Contains(css, "#fff") {
		t.Fatalf("gradient stops missing from css: %q", css)
	}
}

func TestResolve_PatternFallsBackToKnownTile(t *testing.T) {
	style := Resolve(content.Background{Type: content.BackgroundPattern, PatternID: "unknown-tile"})
	if style.TileURL == "" {
		t.Fatalf("unknown pattern id must fall back to a built-in tile")
	}
	if style.PatternTint != DefaultColor {
		t.Fatalf("pattern tint must default, got %q", style.PatternTint)
	}
}

func TestResolve_ClampsOpacity(t *testing.T) {
	over := 1.5
	style := Resolve(content.Background{Type: content.BackgroundImage, URL: "https://e.com/i.png", Opacity: &over})
	if style.OverlayAlpha != 0 {
		t.Fatalf("opacity above 1 must clamp, got overlay %v", style.OverlayAlpha)
	}
}
