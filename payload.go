package micropub

import (
	"strings"

	"github.com/eringen/micropub/htmlmd"
)

// deprecated property names renamed during normalization.
var deprecatedProperties = map[string]string{
	"slug":         "mp-slug",
	"syndicate-to": "mp-syndicate-to",
}

// normalizePayload converts a raw request body into canonical properties.
// JSON microformat bodies ({"type": ["h-entry"], "properties": {...}}) are
// flattened: the bare type tag is stored under "h", single-element lists
// are unwrapped, and html-valued content objects are converted to
// markdown. Flat form bodies pass through. In both shapes the access
// token is wiped and deprecated property names are renamed.
func normalizePayload(body map[string]any) Properties {
	props := Properties{}

	if raw, ok := body["properties"].(map[string]any); ok {
		props["h"] = typeTag(body["type"])
		for name, v := range raw {
			props[name] = unwrapValue(v)
		}
	} else {
		for name, v := range body {
			props[name] = v
		}
	}

	// The access token must never survive normalization.
	delete(props, "access_token")

	for old, renamed := range deprecatedProperties {
		if v, ok := props[old]; ok {
			props[renamed] = v
			delete(props, old)
		}
	}
	return props
}

// typeTag extracts the bare microformat type ("entry" from "h-entry").
func typeTag(v any) string {
	s := ""
	switch t := v.(type) {
	case string:
		s = t
	case []any:
		if len(t) > 0 {
			s, _ = t[0].(string)
		}
	}
	return strings.TrimPrefix(s, "h-")
}

// unwrapValue reduces a single-element property list to its scalar. A
// scalar carrying an "html" field is converted to markdown.
func unwrapValue(v any) any {
	list, ok := v.([]any)
	if !ok || len(list) != 1 {
		return v
	}
	if obj, ok := list[0].(map[string]any); ok {
		if html, ok := obj["html"].(string); ok {
			return htmlmd.Convert(html)
		}
	}
	return list[0]
}
