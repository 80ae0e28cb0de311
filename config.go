package micropub

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a micropub server.
type Config struct {
	Site       SiteConfig          `yaml:"site"`
	Addr       string              `yaml:"addr"`
	Database   string              `yaml:"database"`
	Content    string              `yaml:"content"` // directory for attached files
	Endpoint   string              `yaml:"endpoint"`
	Auth       AuthConfig          `yaml:"auth"`
	Staging    StagingConfig       `yaml:"staging"`
	Admin      AdminConfig         `yaml:"admin"`
	Default    TypeDefaults        `yaml:"default"`
	Types      []PostType          `yaml:"post-types"`
	Syndicate  []SyndicationTarget `yaml:"syndicate-to"`
	Categories CategoryConfig      `yaml:"categories"`
	SlugPrefix string              `yaml:"slug-prefix"`
}

// SiteConfig identifies the site the endpoint publishes to.
type SiteConfig struct {
	Name      string   `yaml:"name"`
	URL       string   `yaml:"url"`
	Languages []string `yaml:"languages"`
}

// AuthConfig configures token issuance and verification.
// An empty TokenEndpoint verifies bearer tokens in-process; otherwise the
// gateway delegates to the given introspection URL. An empty
// AuthorizationEndpoint disables the discovery advertisement link.
type AuthConfig struct {
	TokenSecret           string `yaml:"token-secret"`
	TokenEndpoint         string `yaml:"token-endpoint"`
	AuthorizationEndpoint string `yaml:"authorization-endpoint"`
}

// StagingConfig configures temporary media storage.
type StagingConfig struct {
	Dir           string        `yaml:"dir"`
	TTL           time.Duration `yaml:"ttl"`
	MaxImageWidth int           `yaml:"max-image-width"`
}

// AdminConfig configures the admin dashboard. An empty password disables
// the dashboard routes.
type AdminConfig struct {
	Password      string `yaml:"password"`
	SessionSecret string `yaml:"session-secret"`
	CookieSecure  bool   `yaml:"cookie-secure"`
}

// TypeDefaults are the global fallbacks applied when a matched post type
// leaves a setting unset.
type TypeDefaults struct {
	Template string               `yaml:"template"`
	Parent   string               `yaml:"parent"`
	Render   map[string]FieldSpec `yaml:"render"`
	Slug     []SlugRule           `yaml:"slug"`
	Status   StatusPolicy         `yaml:"status"`
}

// SyndicationTarget is advertised to clients via q=syndicate-to.
type SyndicationTarget struct {
	UID  string `yaml:"uid" json:"uid"`
	Name string `yaml:"name" json:"name"`
}

// CategoryConfig names the page whose children carry the taxonomy field
// listed as categories in the q=config response.
type CategoryConfig struct {
	Parent   string `yaml:"parent"`
	Taxonomy string `yaml:"taxonomy"`
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("micropub: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("micropub: parse config: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// SetDefaults fills unset options. New calls it, so embedders only need it
// when bypassing New.
func (c *Config) SetDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = "Site"
	}
	if c.Site.URL == "" {
		c.Site.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Database == "" {
		c.Database = "data/micropub.db"
	}
	if c.Content == "" {
		c.Content = "data/content"
	}
	if c.Endpoint == "" {
		c.Endpoint = "micropub"
	}
	if c.Staging.Dir == "" {
		c.Staging.Dir = "data/staging"
	}
	if c.Staging.TTL == 0 {
		c.Staging.TTL = 24 * time.Hour
	}
	if c.Categories.Parent == "" {
		c.Categories.Parent = "home"
	}
	if c.Categories.Taxonomy == "" {
		c.Categories.Taxonomy = "tags"
	}
	if c.Default.Template == "" {
		c.Default.Template = "note"
	}
	if c.Default.Parent == "" {
		c.Default.Parent = "notes"
	}
	if len(c.Default.Slug) == 0 {
		c.Default.Slug = []SlugRule{{Field: "slug"}}
	}
	if c.Default.Status.IsZero() {
		c.Default.Status = StatusPolicy{Published: StatusListed, Draft: StatusDraft}
	}
}

// catalogue returns the configured post types, or the built-in default
// type when none are configured. now feeds the default publication date,
// which is evaluated per request.
func (c *Config) catalogue(now time.Time) []PostType {
	if len(c.Types) > 0 {
		return c.Types
	}
	return []PostType{c.builtinDefault(now)}
}

// builtinDefault is the post type used when no catalogue is configured: a
// plain note with title, text, tags and a publication date.
func (c *Config) builtinDefault(now time.Time) PostType {
	render := c.Default.Render
	if len(render) == 0 {
		render = map[string]FieldSpec{
			"name":      {Field: "title", Default: ValueList{"No title"}},
			"content":   {Field: "text"},
			"category":  {Field: "tags"},
			"published": {Field: "date", Default: ValueList{now.Format(timeLayout)}, Transform: TransformDateTime},
		}
	}
	return PostType{
		ID:       "default",
		Name:     "Default",
		Default:  true,
		Template: c.Default.Template,
		Parent:   c.Default.Parent,
		Render:   render,
	}
}

// timeLayout is the canonical timestamp format used in content fields.
const timeLayout = "2006-01-02 15:04:05"
