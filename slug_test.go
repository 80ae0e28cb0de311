package micropub

import (
	"strconv"
	"testing"
)

func TestUniqueSlugExplicitClientSlug(t *testing.T) {
	store := newFakeStore()
	rules := []SlugRule{{Field: "slug"}, {Field: "title"}}
	props := Properties{"mp-slug": "My Custom Slug"}

	slug, err := uniqueSlug(rules, Content{"title": "ignored"}, "notes", props, store, "", testNow)
	if err != nil {
		t.Fatalf("uniqueSlug failed: %v", err)
	}
	if slug != "my-custom-slug" {
		t.Errorf("slug = %q, want %q", slug, "my-custom-slug")
	}
}

func TestUniqueSlugFromRenderedField(t *testing.T) {
	store := newFakeStore()
	rules := []SlugRule{{Field: "slug"}, {Field: "text", Max: 20}}
	content := Content{"text": "a quick brown fox jumps over the lazy dog"}

	slug, err := uniqueSlug(rules, content, "notes", Properties{}, store, "", testNow)
	if err != nil {
		t.Fatalf("uniqueSlug failed: %v", err)
	}
	if slug != "a-quick-brown-fox" {
		t.Errorf("slug = %q, want %q", slug, "a-quick-brown-fox")
	}
}

func TestUniqueSlugTimestampFallback(t *testing.T) {
	store := newFakeStore()
	rules := []SlugRule{{Field: "slug"}, {Field: "title"}}

	slug, err := uniqueSlug(rules, Content{}, "notes", Properties{}, store, "", testNow)
	if err != nil {
		t.Fatalf("uniqueSlug failed: %v", err)
	}
	if want := strconv.FormatInt(testNow.Unix(), 10); slug != want {
		t.Errorf("slug = %q, want timestamp %q", slug, want)
	}
}

func TestUniqueSlugCollisionSuffix(t *testing.T) {
	store := newFakeStore()
	store.taken["notes/hello"] = true
	store.taken["notes/hello-2"] = true
	rules := []SlugRule{{Field: "title"}}

	slug, err := uniqueSlug(rules, Content{"title": "Hello"}, "notes", Properties{}, store, "", testNow)
	if err != nil {
		t.Fatalf("uniqueSlug failed: %v", err)
	}
	if slug != "hello-3" {
		t.Errorf("slug = %q, want %q", slug, "hello-3")
	}
}

func TestUniqueSlugPrefix(t *testing.T) {
	store := newFakeStore()
	store.taken["notes/note-hello"] = true
	rules := []SlugRule{{Field: "title"}}

	slug, err := uniqueSlug(rules, Content{"title": "Hello"}, "notes", Properties{}, store, "note-", testNow)
	if err != nil {
		t.Fatalf("uniqueSlug failed: %v", err)
	}
	if slug != "note-hello-2" {
		t.Errorf("slug = %q, want %q", slug, "note-hello-2")
	}
}
