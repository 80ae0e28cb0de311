package micropub

import (
	"fmt"
	"strconv"
	"time"
)

// uniqueSlug derives the content identifier for a new page. Rules are
// tried in order: an explicit client slug, then rendered fields (with an
// optional excerpt length), falling back to the current Unix timestamp.
// The candidate is prefixed and probed against existing and draft pages
// under the parent; collisions get an increasing numeric suffix.
func uniqueSlug(rules []SlugRule, content Content, parent string, props Properties, store ContentStore, prefix string, now time.Time) (string, error) {
	base := ""
	for _, rule := range rules {
		if rule.Field == "slug" || rule.Field == "mp-slug" {
			if !props.Empty("mp-slug") {
				base = Slugify(props.String("mp-slug"))
				break
			}
			continue
		}
		if v := content[rule.Field]; v != "" {
			if rule.Max > 0 {
				v = Excerpt(v, rule.Max)
			}
			base = Slugify(v)
			break
		}
	}
	if base == "" {
		base = strconv.FormatInt(now.Unix(), 10)
	}

	candidate := prefix + base
	for i := 2; ; i++ {
		taken, err := store.SlugTaken(parent, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%s-%d", prefix, base, i)
	}
}
