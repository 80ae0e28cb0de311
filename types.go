package micropub

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Publish statuses a post type may assign to new content.
const (
	StatusListed   = "listed"
	StatusUnlisted = "unlisted"
	StatusDraft    = "draft"
)

// Properties is the canonical, wire-format-independent representation of a
// publish request's content fields. Values are scalars, lists of scalars,
// or nested objects such as {"value": url, "alt": text}.
type Properties map[string]any

// Has reports whether the property is present, regardless of its value.
func (p Properties) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Empty reports whether the property is absent or holds an empty value.
func (p Properties) Empty(name string) bool {
	v, ok := p[name]
	if !ok {
		return true
	}
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// String returns the property as a string, joining list values with ", ".
func (p Properties) String(name string) string {
	return joinValue(p[name])
}

// List returns the property as a list, wrapping scalar values.
func (p Properties) List(name string) []any {
	switch v := p[name].(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// joinValue flattens a property value to a string: lists joined with ", ",
// objects reduced to their "value" entry.
func joinValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = joinValue(e)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if s, ok := t["value"].(string); ok {
			return s
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Content maps target content fields to their rendered string values.
// It is produced fresh per request and handed whole to the content store.
type Content map[string]string

// PostType describes how to recognize, render and store one category of
// incoming content.
type PostType struct {
	ID       string               `yaml:"id"`
	Name     string               `yaml:"name"`
	Default  bool                 `yaml:"default"`
	Identify Identify             `yaml:"identify"`
	Render   map[string]FieldSpec `yaml:"render"`
	Slug     []SlugRule           `yaml:"slug"`
	Template string               `yaml:"template"`
	Parent   string               `yaml:"parent"`
	Status   StatusPolicy         `yaml:"status"`
	Language string               `yaml:"language"`
	Files    map[string]FileRule  `yaml:"files"`
}

// Identify holds the matching constraints of a post type.
type Identify struct {
	Unique string   `yaml:"unique"`
	Has    []string `yaml:"has"`
	HasNot []string `yaml:"hasnot"`
}

// IsZero reports whether no constraints are configured, which makes the
// post type a catch-all.
func (id Identify) IsZero() bool {
	return id.Unique == "" && len(id.Has) == 0 && len(id.HasNot) == 0
}

// FieldSpec maps one incoming property to one target content field.
// Transform is empty for pass-through, "datetime" or "yaml" for the
// built-in presets, or the id of a transform registered with
// App.RegisterTransform.
type FieldSpec struct {
	Field     string    `yaml:"field"`
	Default   ValueList `yaml:"default"`
	Transform string    `yaml:"transform"`
}

// Built-in field transforms.
const (
	TransformDateTime = "datetime"
	TransformYAML     = "yaml"
)

// TransformFunc is a custom field transform registered by the embedding
// application. It receives the raw property value, the target field name
// and the configured default. Returning a map[string]string or
// map[string]any merges every entry into the content, with the entry
// keyed by the target field acting as the primary value; any other
// return value is flattened into the target field.
type TransformFunc func(value any, field, fallback string) any

// ValueList is a YAML scalar-or-sequence of strings.
type ValueList []string

// UnmarshalYAML accepts either a single scalar or a sequence.
func (v *ValueList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*v = ValueList{s}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*v = ValueList(list)
	return nil
}

// Join flattens the list with ", "; an unset list yields "".
func (v ValueList) Join() string {
	return strings.Join(v, ", ")
}

// SlugRule names a source for the slug: the protocol's explicit slug
// property ("slug" or "mp-slug") or a rendered content field, optionally
// truncated to Max characters at a word boundary.
type SlugRule struct {
	Field string `yaml:"field"`
	Max   int    `yaml:"max"`
}

// UnmarshalYAML accepts either a bare field name or a {field, max} mapping.
func (r *SlugRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*r = SlugRule{Field: s}
		return nil
	}
	type plain SlugRule
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = SlugRule(p)
	return nil
}

// StatusPolicy holds the statuses applied to published and draft requests.
// A scalar YAML value enforces one status unconditionally; a two-element
// sequence maps to {published, draft}.
type StatusPolicy struct {
	Published string
	Draft     string
}

// IsZero reports whether no policy was configured.
func (sp StatusPolicy) IsZero() bool {
	return sp.Published == "" && sp.Draft == ""
}

// UnmarshalYAML accepts a scalar or a [published, draft] pair. Any other
// shape leaves values that fail validation during post type resolution,
// so misconfigured types reject requests with invalid_request instead of
// breaking config loading.
func (sp *StatusPolicy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		sp.Published, sp.Draft = s, s
		return nil
	}
	var pair []string
	if err := node.Decode(&pair); err != nil || len(pair) != 2 {
		sp.Published, sp.Draft = "invalid", "invalid"
		return nil
	}
	sp.Published, sp.Draft = pair[0], pair[1]
	return nil
}

func validStatus(s string) bool {
	return s == StatusListed || s == StatusUnlisted || s == StatusDraft
}

// FileRule configures one attachment category (photo, audio, video) of a
// post type. In YAML, `false` disables the category entirely.
type FileRule struct {
	Disabled bool
	Template string
	Multiple *bool
	Cover    string
}

// AllowsMultiple reports whether more than one file may be attached for
// this category. The default is true.
func (r FileRule) AllowsMultiple() bool {
	if r.Multiple == nil {
		return true
	}
	return *r.Multiple
}

// UnmarshalYAML accepts `false` (category disabled) or a mapping with
// template, multiple and cover keys.
func (r *FileRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var b bool
		if err := node.Decode(&b); err == nil {
			r.Disabled = !b
			return nil
		}
	}
	var p struct {
		Template string `yaml:"template"`
		Multiple *bool  `yaml:"multiple"`
		Cover    string `yaml:"cover"`
	}
	if err := node.Decode(&p); err != nil {
		return err
	}
	r.Template, r.Multiple, r.Cover = p.Template, p.Multiple, p.Cover
	return nil
}

// ResolvedPostType is the outcome of matching a request against the post
// type catalogue: the selected type plus every setting with its fallback
// already applied.
type ResolvedPostType struct {
	Type      PostType
	Render    map[string]FieldSpec
	SlugRules []SlugRule
	Template  string
	Parent    string
	Status    string
	Language  string
}

// Attachment pairs one staged media file with its descriptor.
type Attachment struct {
	Filename string
	Source   string
	Category string
	Template string
	Alt      string
}
