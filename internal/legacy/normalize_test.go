package legacy

import "testing"

func TestNormalize_ScaffoldOnlyIsEmpty(t *testing.T) {
	graph := []byte(`{
		"root": {"type": "page", "nodes": ["s1"]},
		"s1": {"type": "scaffold", "props": {}, "nodes": []}
	}`)

	tree := Normalize(graph)
	if !tree.Empty() {
		t.Fatalf("scaffold-only graph must normalize to empty, got %#v", tree.Nodes)
	}
	if tree != EmptyDocument {
		t.Fatalf("empty result must be the shared EmptyDocument value")
	}
}

func TestNormalize_KeepsRealContentOnly(t *testing.T) {
	graph := []byte(`{
		"root": {"type": "page", "nodes": ["s1", "t1"]},
		"s1": {"type": "scaffold", "props": {}, "nodes": []},
		"t1": {"type": "text", "props": {"text": "hello"}, "nodes": []}
	}`)

	tree := Normalize(graph)
	if len(tree.Nodes) != 1 {
		t.Fatalf("want exactly one real node, got %d", len(tree.Nodes))
	}
	if tree.Nodes[0].ID != "t1" || tree.Nodes[0].Type != "text" {
		t.Fatalf("unexpected node: %#v", tree.Nodes[0])
	}
	if tree.Nodes[0].Props["text"] != "hello" {
		t.Fatalf("props lost: %#v", tree.Nodes[0].Props)
	}
}

func TestNormalize_PreservesRootOrderAndSkipsDangling(t *testing.T) {
	graph := []byte(`{
		"root": {"type": "page", "nodes": ["b", "missing", "a"]},
		"a": {"type": "text", "props": {"text": "a"}, "nodes": []},
		"b": {"type": "link", "props": {"url": "https://example.com"}, "nodes": []}
	}`)

	tree := Normalize(graph)
	if len(tree.Nodes) != 2 {
		t.Fatalf("want 2 nodes, got %d", len(tree.Nodes))
	}
	if tree.Nodes[0].ID != "b" || tree.Nodes[1].ID != "a" {
		t.Fatalf("root order not preserved: %#v", tree.Nodes)
	}
}

func TestNormalize_NeverFails(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte(""),
		[]byte("not json"),
		[]byte(`[1,2,3]`),
		[]byte(`"a string"`),
		[]byte(`{"root": "not a node"}`),
		[]byte(`{}`),
		[]byte(`{"root": {"type": "page", "nodes": []}}`),
	}
	for _, in := range inputs {
		tree := Normalize(in)
		if tree == nil {
			t.Fatalf("Normalize(%q) returned nil", in)
		}
		if !tree.Empty() {
			t.Fatalf("corrupt input %q must degrade to empty", in)
		}
	}
}

func TestNormalize_UnreferencedNodesAppendedDeterministically(t *testing.T) {
	graph := []byte(`{
		"root": {"type": "page", "nodes": []},
		"z": {"type": "text", "props": {}, "nodes": []},
		"a": {"type": "text", "props": {}, "nodes": []}
	}`)

	tree := Normalize(graph)
	if len(tree.Nodes) != 2 {
		t.Fatalf("want 2 nodes, got %d", len(tree.Nodes))
	}
	if tree.Nodes[0].ID != "a" || tree.Nodes[1].ID != "z" {
		t.Fatalf("fallback order must be sorted by key: %#v", tree.Nodes)
	}
}

func TestTreeComponents(t *testing.T) {
	tree := &Tree{Nodes: []Node{
		{ID: "x", Type: "text", Props: map[string]any{"text": "hi"}},
		{ID: "y", Type: "image", Props: map[string]any{"src": "https://e.com/a.png"}},
	}}

	components := tree.Components()
	if len(components) != 2 {
		t.Fatalf("want 2 components, got %d", len(components))
	}
	if components[0].Order != 0 || components[1].Order != 1 {
		t.Fatalf("orders must follow tree position: %#v", components)
	}
	if EmptyDocument.Components() != nil {
		t.Fatalf("empty tree must yield nil components")
	}
}
