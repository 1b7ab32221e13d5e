package content

import "testing"

func TestValidateDocument_ReindexesOrder(t *testing.T) {
	doc := Document{
		Components: []Component{
			{ID: "a", Type: BlockText, Order: 2, Content: map[string]any{"text": "a"}},
			{ID: "b", Type: BlockText, Order: 0, Content: map[string]any{"text": "b"}},
			{ID: "c", Type: BlockText, Order: 1, Content: map[string]any{"text": "c"}},
		},
	}

	out := ValidateDocument(doc)

	wantIDs := []string{"b", "c", "a"}
	for i, c := range out.Components {
		if c.ID != wantIDs[i] {
			t.Fatalf("position %d: want %s got %s", i, wantIDs[i], c.ID)
		}
		if c.Order != i {
			t.Fatalf("component %s: order not reindexed, got %d", c.ID, c.Order)
		}
	}
}

func TestValidateDocument_StableOnTies(t *testing.T) {
	doc := Document{
		Components: []Component{
			{ID: "first", Type: BlockText, Order: 1, Content: map[string]any{"text": "1"}},
			{ID: "second", Type: BlockText, Order: 1, Content: map[string]any{"text": "2"}},
		},
	}
	out := ValidateDocument(doc)
	if out.Components[0].ID != "first" || out.Components[1].ID != "second" {
		t.Fatalf("tie break must keep insertion order: %#v", out.Components)
	}
}

func TestValidateDocument_DeduplicatesIDs(t *testing.T) {
	doc := Document{
		Components: []Component{
			{ID: "dup", Type: BlockText, Order: 0, Content: map[string]any{"text": "x"}},
			{ID: "dup", Type: BlockText, Order: 1, Content: map[string]any{"text": "y"}},
		},
	}
	out := ValidateDocument(doc)
	if out.Components[0].ID == out.Components[1].ID {
		t.Fatalf("duplicate ids survived: %#v", out.Components)
	}
	if out.Components[1].ID != "dup-2" {
		t.Fatalf("dedupe must be deterministic by position, got %q", out.Components[1].ID)
	}
}

func TestValidateDocument_RenamedIDNeverCollides(t *testing.T) {
	// 合成的 "x-2" 会撞上文档里已有的同名 ID，必须继续递增。
	doc := Document{
		Components: []Component{
			{ID: "x", Type: BlockText, Order: 0, Content: map[string]any{"text": "a"}},
			{ID: "x-2", Type: BlockText, Order: 1, Content: map[string]any{"text": "b"}},
			{ID: "x", Type: BlockText, Order: 2, Content: map[string]any{"text": "c"}},
		},
	}
	out := ValidateDocument(doc)

	ids := make(map[string]bool)
	for _, c := range out.Components {
		if ids[c.ID] {
			t.Fatalf("duplicate id after validation: %q (%#v)", c.ID, out.Components)
		}
		ids[c.ID] = true
	}
	if out.Components[2].ID != "x-3" {
		t.Fatalf("rename must skip taken suffixes, got %q", out.Components[2].ID)
	}
}

func TestValidateDocument_DropsScaffoldAndFillsIDs(t *testing.T) {
	doc := Document{
		Components: []Component{
			{ID: "s", Type: BlockScaffold, Order: 0},
			{Type: BlockText, Order: 1, Content: map[string]any{"text": "keep"}},
		},
	}
	out := ValidateDocument(doc)
	if len(out.Components) != 1 {
		t.Fatalf("scaffold must be dropped: %#v", out.Components)
	}
	if out.Components[0].ID == "" {
		t.Fatalf("missing id must be generated")
	}
}

func TestValidateBackground_Fallbacks(t *testing.T) {
	if got := ValidateBackground(Background{Type: "nope"}); got.Type != BackgroundSolid {
		t.Fatalf("unknown variant must fall back to solid, got %q", got.Type)
	}
	if got := ValidateBackground(Background{Type: BackgroundImage, URL: "::"}); got.Type != BackgroundSolid {
		t.Fatalf("image background with bad url must fall back, got %#v", got)
	}
	keep := Background{Type: BackgroundGradient, From: "#000", To: "#fff", Direction: "to right"}
	if got := ValidateBackground(keep); got != keep {
		t.Fatalf("valid background mutated: %#v", got)
	}
}

func TestValidateBackground_ConstrainsStyleStrings(t *testing.T) {
	// 颜色、方向、尺寸、定位会拼进样式声明，格式非法时按缺失处理。
	injected := "red;background:url('javascript:alert(1)')"

	got := ValidateBackground(Background{Type: BackgroundSolid, Color: injected})
	if got.Color != "" {
		t.Fatalf("malformed solid color must be dropped: %q", got.Color)
	}
	if got := ValidateBackground(Background{Type: BackgroundSolid, Color: "tomato"}); got.Color != "tomato" {
		t.Fatalf("named color must pass: %q", got.Color)
	}

	got = ValidateBackground(Background{
		Type:      BackgroundGradient,
		From:      injected,
		To:        "#336699",
		Direction: "to right) url(x",
	})
	if got.From != "" || got.Direction != "" {
		t.Fatalf("malformed gradient fields must be dropped: %#v", got)
	}
	if got.To != "#336699" {
		t.Fatalf("valid gradient stop lost: %#v", got)
	}

	got = ValidateBackground(Background{
		Type:      BackgroundImage,
		URL:       "https://cdn.example.com/bg.jpg",
		Size:      "cover'); background:url(x",
		PositionX: "center",
		PositionY: "120%",
	})
	if got.Size != "" {
		t.Fatalf("malformed size must be dropped: %q", got.Size)
	}
	if got.PositionX != "center" || got.PositionY != "120%" {
		t.Fatalf("valid positions lost: %#v", got)
	}

	got = ValidateBackground(Background{Type: BackgroundPattern, PatternID: "dots", Color: injected})
	if got.Color != "" {
		t.Fatalf("malformed pattern tint must be dropped: %q", got.Color)
	}
}
