package micropub

import (
	"time"

	"gopkg.in/yaml.v3"
)

// reservedProperties are handled by the slug generator and attachment
// resolver, never by render rules.
var reservedProperties = map[string]bool{
	"mp-slug":         true,
	"mp-syndicate-to": true,
	"files":           true,
	"photo":           true,
	"video":           true,
	"audio":           true,
}

// layouts tried when parsing client-supplied datetime values.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// renderFields maps canonical properties into target content fields using
// the resolved render rules. Absent or empty properties fall back to the
// rule's default; otherwise the rule's transform is applied.
func renderFields(rules map[string]FieldSpec, props Properties, transforms map[string]TransformFunc) Content {
	content := Content{}
	for name, spec := range rules {
		if reservedProperties[name] {
			continue
		}
		if props.Empty(name) {
			content[spec.Field] = spec.Default.Join()
			continue
		}
		raw := props[name]
		switch spec.Transform {
		case "":
			content[spec.Field] = joinValue(raw)
		case TransformDateTime:
			if t, ok := parseTime(joinValue(raw)); ok {
				content[spec.Field] = t.Format(timeLayout)
			} else {
				content[spec.Field] = spec.Default.Join()
			}
		case TransformYAML:
			// Only structured values are serialized; scalars leave the
			// field unset.
			if isStructured(raw) {
				if b, err := yaml.Marshal([]any{raw}); err == nil {
					content[spec.Field] = string(b)
				}
			}
		default:
			applyCustomTransform(content, spec, raw, transforms)
		}
	}
	return content
}

// applyCustomTransform runs a registered transform. A map result merges
// into the content, with the entry keyed by the rule's own target field
// as the primary value. An unregistered transform id degrades to the raw
// value so a missing registration does not fail every request.
func applyCustomTransform(content Content, spec FieldSpec, raw any, transforms map[string]TransformFunc) {
	fn := transforms[spec.Transform]
	if fn == nil {
		content[spec.Field] = joinValue(raw)
		return
	}
	out := fn(raw, spec.Field, spec.Default.Join())
	switch m := out.(type) {
	case map[string]string:
		for k, v := range m {
			content[k] = v
		}
	case map[string]any:
		for k, v := range m {
			content[k] = joinValue(v)
		}
	default:
		content[spec.Field] = joinValue(out)
	}
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isStructured(v any) bool {
	switch v.(type) {
	case []any, []string, map[string]any:
		return true
	}
	return false
}
