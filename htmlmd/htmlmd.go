// Package htmlmd converts a constrained subset of HTML into Markdown. It
// covers the element shapes Micropub clients emit for html-valued content
// properties: headings, paragraphs, line breaks, emphasis, links, images,
// inline and fenced code, block quotes and flat lists. Unknown tags are
// stripped, entities unescaped.
package htmlmd

import (
	"html"
	"regexp"
	"strings"
)

var (
	reComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	reHeading  = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	rePre      = regexp.MustCompile(`(?is)<pre[^>]*>(?:<code[^>]*>)?(.*?)(?:</code>)?</pre>`)
	reCode     = regexp.MustCompile(`(?is)<code[^>]*>(.*?)</code>`)
	reStrong   = regexp.MustCompile(`(?is)<(?:strong|b)[^>]*>(.*?)</(?:strong|b)>`)
	reEm       = regexp.MustCompile(`(?is)<(?:em|i)[^>]*>(.*?)</(?:em|i)>`)
	reAnchor   = regexp.MustCompile(`(?is)<a[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	reImage    = regexp.MustCompile(`(?is)<img[^>]*src="([^"]*)"[^>]*/?>`)
	reImageAlt = regexp.MustCompile(`(?i)alt="([^"]*)"`)
	reItem     = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	reQuote    = regexp.MustCompile(`(?is)<blockquote[^>]*>(.*?)</blockquote>`)
	reBreak    = regexp.MustCompile(`(?i)<br\s*/?>`)
	reParaEnd  = regexp.MustCompile(`(?i)</(?:p|div)>`)
	reBlockEnd = regexp.MustCompile(`(?i)</(?:ul|ol)>`)
	reTag      = regexp.MustCompile(`(?s)<[^>]*>`)
	reBlank    = regexp.MustCompile(`\n{3,}`)
)

// Convert renders the HTML fragment as Markdown.
func Convert(src string) string {
	s := reComment.ReplaceAllString(src, "")

	s = rePre.ReplaceAllStringFunc(s, func(m string) string {
		body := rePre.FindStringSubmatch(m)[1]
		return "\n\n```\n" + strings.TrimRight(html.UnescapeString(body), "\n") + "\n```\n\n"
	})

	s = reHeading.ReplaceAllStringFunc(s, func(m string) string {
		match := reHeading.FindStringSubmatch(m)
		level := int(match[1][0] - '0')
		return "\n\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(match[2]) + "\n\n"
	})

	s = reImage.ReplaceAllStringFunc(s, func(m string) string {
		u := reImage.FindStringSubmatch(m)[1]
		alt := ""
		if am := reImageAlt.FindStringSubmatch(m); am != nil {
			alt = am[1]
		}
		return "![" + alt + "](" + u + ")"
	})

	s = reAnchor.ReplaceAllString(s, "[$2]($1)")
	s = reStrong.ReplaceAllString(s, "**$1**")
	s = reEm.ReplaceAllString(s, "*$1*")
	s = reCode.ReplaceAllString(s, "`$1`")
	s = reQuote.ReplaceAllStringFunc(s, func(m string) string {
		body := strings.TrimSpace(reTag.ReplaceAllString(reQuote.FindStringSubmatch(m)[1], ""))
		lines := strings.Split(body, "\n")
		for i, line := range lines {
			lines[i] = "> " + strings.TrimSpace(line)
		}
		return "\n\n" + strings.Join(lines, "\n") + "\n\n"
	})
	s = reItem.ReplaceAllString(s, "- $1\n")
	s = reBlockEnd.ReplaceAllString(s, "\n")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reParaEnd.ReplaceAllString(s, "\n\n")

	s = reTag.ReplaceAllString(s, "")
	s = unescapeOutsideFences(s)
	s = reBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// unescapeOutsideFences unescapes HTML entities, skipping fenced code
// blocks whose content was already unescaped when the fence was built.
func unescapeOutsideFences(s string) string {
	parts := strings.Split(s, "```")
	for i := 0; i < len(parts); i += 2 {
		parts[i] = html.UnescapeString(parts[i])
	}
	return strings.Join(parts, "```")
}
