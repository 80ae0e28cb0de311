package micropub

import (
	"os"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"), filepath.Join(dir, "content"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetPage(t *testing.T) {
	s := setupTestStore(t)

	page, err := s.CreatePage(NewPage{
		Parent:   "notes",
		Slug:     "hello",
		Template: "note",
		Status:   StatusListed,
		Fields:   Content{"title": "Hello", "date": "2026-03-14 15:09:26"},
	})
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if page.Path() != "notes/hello" {
		t.Errorf("path = %q, want %q", page.Path(), "notes/hello")
	}

	got, err := s.GetPage("notes/hello")
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if got.Fields["title"] != "Hello" {
		t.Errorf("title = %q, want %q", got.Fields["title"], "Hello")
	}
	if got.Created != "2026-03-14 15:09:26" {
		t.Errorf("created = %q, want the date field", got.Created)
	}
}

func TestPageExists(t *testing.T) {
	s := setupTestStore(t)

	if ok, _ := s.PageExists(""); !ok {
		t.Error("the site root always exists")
	}
	if ok, _ := s.PageExists("notes"); ok {
		t.Error("missing page should not exist")
	}

	if _, err := s.CreatePage(NewPage{Slug: "notes", Template: "default", Status: StatusListed, Fields: Content{}}); err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if ok, _ := s.PageExists("notes"); !ok {
		t.Error("created top-level page should exist")
	}
	if ok, _ := s.PageExists("/notes/"); !ok {
		t.Error("surrounding slashes should be ignored")
	}
}

func TestSlugTakenIncludesDrafts(t *testing.T) {
	s := setupTestStore(t)

	if _, err := s.CreatePage(NewPage{Parent: "notes", Slug: "draft-post", Template: "note", Status: StatusDraft, Fields: Content{}}); err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if taken, _ := s.SlugTaken("notes", "draft-post"); !taken {
		t.Error("draft slugs must count as taken")
	}
	if taken, _ := s.SlugTaken("notes", "free-slug"); taken {
		t.Error("unused slug reported as taken")
	}
}

func TestUpdateFieldsMerges(t *testing.T) {
	s := setupTestStore(t)

	page, err := s.CreatePage(NewPage{Parent: "notes", Slug: "p", Template: "note", Status: StatusListed, Fields: Content{"title": "A"}})
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if err := s.UpdateFields(page, Content{"cover": "img.jpg"}); err != nil {
		t.Fatalf("UpdateFields failed: %v", err)
	}

	got, err := s.GetPage("notes/p")
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if got.Fields["title"] != "A" || got.Fields["cover"] != "img.jpg" {
		t.Errorf("fields = %v, want title kept and cover added", got.Fields)
	}
}

func TestAttachFileCopiesIntoContentDir(t *testing.T) {
	s := setupTestStore(t)

	staged := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(staged, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	page, err := s.CreatePage(NewPage{Parent: "notes", Slug: "p", Template: "note", Status: StatusListed, Fields: Content{}})
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	att := Attachment{Filename: "photo.jpg", Source: staged, Category: "photo", Template: "photo", Alt: "a photo"}
	if err := s.AttachFile(page, att, "2026-03-14 15:09:26"); err != nil {
		t.Fatalf("AttachFile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.contentDir, "notes", "p", "photo.jpg"))
	if err != nil {
		t.Fatalf("attached file missing: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("attached content = %q", data)
	}

	files, err := s.ListFiles(page)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].Alt != "a photo" || files[0].Date != "2026-03-14 15:09:26" {
		t.Errorf("files = %+v", files)
	}
}

func TestCategories(t *testing.T) {
	s := setupTestStore(t)

	pages := []NewPage{
		{Parent: "home", Slug: "a", Template: "note", Status: StatusListed, Fields: Content{"tags": "go, web"}},
		{Parent: "home", Slug: "b", Template: "note", Status: StatusListed, Fields: Content{"tags": "web, indieweb"}},
		{Parent: "other", Slug: "c", Template: "note", Status: StatusListed, Fields: Content{"tags": "ignored"}},
	}
	for _, p := range pages {
		if _, err := s.CreatePage(p); err != nil {
			t.Fatalf("CreatePage failed: %v", err)
		}
	}

	got, err := s.Categories("home", "tags")
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	want := []string{"go", "indieweb", "web"}
	if len(got) != len(want) {
		t.Fatalf("categories = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("categories[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
