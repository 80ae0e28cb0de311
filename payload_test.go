package micropub

import "testing"

func TestNormalizePayloadFlatForm(t *testing.T) {
	props := normalizePayload(map[string]any{
		"h":            "entry",
		"content":      "hello world",
		"slug":         "my-post",
		"syndicate-to": "https://example.com/feed",
		"access_token": "secret-token-value",
	})

	if props.Has("access_token") {
		t.Fatal("access_token must not survive normalization")
	}
	if props.Has("slug") || props.String("mp-slug") != "my-post" {
		t.Errorf("slug not renamed: %v", props)
	}
	if props.Has("syndicate-to") || props.String("mp-syndicate-to") != "https://example.com/feed" {
		t.Errorf("syndicate-to not renamed: %v", props)
	}
	if props.String("content") != "hello world" {
		t.Errorf("content = %q, want %q", props.String("content"), "hello world")
	}
}

func TestNormalizePayloadJSONShape(t *testing.T) {
	props := normalizePayload(map[string]any{
		"type": []any{"h-entry"},
		"properties": map[string]any{
			"name":         []any{"A title"},
			"category":     []any{"go", "web"},
			"access_token": []any{"secret"},
		},
	})

	if got := props.String("h"); got != "entry" {
		t.Errorf("type tag = %q, want %q", got, "entry")
	}
	if got := props.String("name"); got != "A title" {
		t.Errorf("single-element list not unwrapped: %q", got)
	}
	if got, ok := props["category"].([]any); !ok || len(got) != 2 {
		t.Errorf("multi-element list should stay a list: %v", props["category"])
	}
	if props.Has("access_token") {
		t.Fatal("access_token must not survive normalization")
	}
}

func TestNormalizePayloadHTMLContent(t *testing.T) {
	props := normalizePayload(map[string]any{
		"type": []any{"h-entry"},
		"properties": map[string]any{
			"content": []any{map[string]any{"html": "<p>Hello <strong>there</strong></p>"}},
		},
	})

	if got := props.String("content"); got != "Hello **there**" {
		t.Errorf("html content = %q, want %q", got, "Hello **there**")
	}
}
