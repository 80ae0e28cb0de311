package micropub

import (
	"fmt"
	"time"
)

// resolvePostType walks the catalogue in configured order and returns the
// first matching post type with all fallbacks applied. store is probed for
// the target parent page.
func resolvePostType(props Properties, cfg *Config, store ContentStore, now time.Time) (*ResolvedPostType, *Error) {
	for _, pt := range cfg.catalogue(now) {
		if !matchPostType(pt, props) {
			continue
		}
		return applyDefaults(pt, props, cfg, store)
	}
	return nil, errInvalidRequest("No matching post type found in setup")
}

// matchPostType decides whether a post type claims the request. A type
// with no identify constraints (or flagged default) matches anything; a
// present unique property is an instant match; otherwise every has
// condition must hold and every hasnot condition must not be violated.
func matchPostType(pt PostType, props Properties) bool {
	id := pt.Identify
	if pt.Default || id.IsZero() {
		return true
	}
	if id.Unique != "" && props.Has(id.Unique) {
		return true
	}
	match, nomatch := false, false
	for _, name := range id.Has {
		if props.Has(name) {
			match = true
		} else {
			nomatch = true
		}
	}
	for _, name := range id.HasNot {
		if props.Has(name) {
			nomatch = true
		} else {
			match = true
		}
	}
	return match && !nomatch
}

func applyDefaults(pt PostType, props Properties, cfg *Config, store ContentStore) (*ResolvedPostType, *Error) {
	rt := &ResolvedPostType{Type: pt}

	// At least one render rule must be defined, on the type or globally.
	rt.Render = pt.Render
	if len(rt.Render) == 0 {
		rt.Render = cfg.Default.Render
	}
	if len(rt.Render) == 0 {
		return nil, errPublish("Matching post type lacks rendering definitions; at least one required")
	}

	rt.SlugRules = pt.Slug
	if len(rt.SlugRules) == 0 {
		rt.SlugRules = cfg.Default.Slug
	}
	if len(rt.SlugRules) == 0 {
		rt.SlugRules = []SlugRule{{Field: "mp-slug"}}
	}

	rt.Template = pt.Template
	if rt.Template == "" {
		rt.Template = cfg.Default.Template
	}
	if rt.Template == "" {
		rt.Template = "default"
	}

	status, err := effectiveStatus(pt, props, cfg)
	if err != nil {
		return nil, err
	}
	rt.Status = status

	rt.Parent = pt.Parent
	if rt.Parent == "" {
		rt.Parent = cfg.Default.Parent
	}
	exists, serr := store.PageExists(rt.Parent)
	if serr != nil {
		return nil, errPublish(fmt.Sprintf("Parent page lookup failed: %v", serr))
	}
	if !exists {
		return nil, errPublish("Configured parent page does not exist")
	}

	// A per-type language is honored only if the site recognizes it.
	if pt.Language != "" {
		for _, lang := range cfg.Site.Languages {
			if lang == pt.Language {
				rt.Language = pt.Language
				break
			}
		}
	}
	return rt, nil
}

// effectiveStatus validates the type's status policy and picks the value
// for this request: the draft status when the client asked for a draft,
// the published status otherwise.
func effectiveStatus(pt PostType, props Properties, cfg *Config) (string, *Error) {
	policy := pt.Status
	if policy.IsZero() {
		policy = cfg.Default.Status
	}
	if policy.IsZero() {
		policy = StatusPolicy{Published: StatusListed, Draft: StatusDraft}
	}
	if !validStatus(policy.Published) || !validStatus(policy.Draft) {
		return "", errInvalidRequest("Invalid status setting for post type " + pt.ID)
	}
	if props.String("post-status") == StatusDraft {
		return policy.Draft, nil
	}
	return policy.Published, nil
}
