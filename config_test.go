package micropub

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const sampleConfig = `
site:
  name: Example
  url: https://example.org
  languages: [en, de]
auth:
  token-secret: a-long-enough-secret
slug-prefix: "note-"
syndicate-to:
  - uid: https://fed.example/
    name: Fediverse
post-types:
  - id: article
    name: Article
    identify:
      has: [name]
    render:
      name:
        field: title
      content:
        field: text
      published:
        field: date
        transform: datetime
    slug:
      - field: slug
      - field: title
        max: 40
    template: article
    parent: blog
    status: [listed, draft]
  - id: photo
    identify:
      unique: photo
    render:
      content:
        field: text
    files:
      photo:
        template: image
        multiple: false
        cover: coverimage
      video: false
    parent: photos
  - id: note
    default: true
    render:
      content:
        field: text
        default: No content
    status: unlisted
`

func TestConfigParsing(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(sampleConfig), &cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	cfg.SetDefaults()

	if len(cfg.Types) != 3 {
		t.Fatalf("got %d post types, want 3", len(cfg.Types))
	}

	article := cfg.Types[0]
	if article.Identify.Has[0] != "name" {
		t.Errorf("identify.has = %v", article.Identify.Has)
	}
	if len(article.Slug) != 2 {
		t.Fatalf("slug rules = %v", article.Slug)
	}
	if article.Slug[0].Field != "slug" || article.Slug[0].Max != 0 {
		t.Errorf("bare slug rule = %+v", article.Slug[0])
	}
	if article.Slug[1].Field != "title" || article.Slug[1].Max != 40 {
		t.Errorf("mapping slug rule = %+v", article.Slug[1])
	}
	if article.Status.Published != StatusListed || article.Status.Draft != StatusDraft {
		t.Errorf("status pair = %+v", article.Status)
	}

	photo := cfg.Types[1]
	if photo.Identify.Unique != "photo" {
		t.Errorf("identify.unique = %q", photo.Identify.Unique)
	}
	rule := photo.Files["photo"]
	if rule.Template != "image" || rule.Cover != "coverimage" || rule.AllowsMultiple() {
		t.Errorf("photo file rule = %+v", rule)
	}
	if !photo.Files["video"].Disabled {
		t.Error("video: false should disable the category")
	}

	note := cfg.Types[2]
	if !note.Default {
		t.Error("note should be the default type")
	}
	if got := note.Render["content"].Default.Join(); got != "No content" {
		t.Errorf("scalar default = %q", got)
	}
	if note.Status.Published != StatusUnlisted || note.Status.Draft != StatusUnlisted {
		t.Errorf("scalar status = %+v", note.Status)
	}

	if cfg.SlugPrefix != "note-" {
		t.Errorf("slug prefix = %q", cfg.SlugPrefix)
	}
	if cfg.Syndicate[0].UID != "https://fed.example/" {
		t.Errorf("syndicate-to = %+v", cfg.Syndicate)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Addr != ":3000" || cfg.Endpoint != "micropub" {
		t.Errorf("addr/endpoint = %q/%q", cfg.Addr, cfg.Endpoint)
	}
	if cfg.Staging.TTL != 24*time.Hour {
		t.Errorf("staging TTL = %v", cfg.Staging.TTL)
	}
	if cfg.Categories.Parent != "home" || cfg.Categories.Taxonomy != "tags" {
		t.Errorf("categories = %+v", cfg.Categories)
	}

	types := cfg.catalogue(testNow)
	if len(types) != 1 || types[0].ID != "default" {
		t.Fatalf("catalogue = %+v", types)
	}
	render := types[0].Render
	if render["published"].Default.Join() != testNow.Format(timeLayout) {
		t.Errorf("default publication date = %q", render["published"].Default.Join())
	}
}

func TestConfigBadStatusShapeRejectsLater(t *testing.T) {
	var cfg Config
	src := `
post-types:
  - id: broken
    default: true
    render:
      content:
        field: text
    status: [one, two, three]
`
	if err := yaml.Unmarshal([]byte(src), &cfg); err != nil {
		t.Fatalf("bad status shape must not break config loading: %v", err)
	}
	if validStatus(cfg.Types[0].Status.Published) {
		t.Errorf("three-element status should fail validation, got %+v", cfg.Types[0].Status)
	}
}
