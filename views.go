package micropub

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// render writes a templ component with the given HTTP status code.
func render(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// HeadLinks returns the discovery link tags for the site's HTML head:
// the publish endpoint, the token endpoint, and (when configured) the
// authorization endpoint. Embedders include it in their own layouts so
// Micropub clients can find the endpoints from the site URL.
func HeadLinks(cfg *Config) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, "<link rel=\"micropub\" href=\"%s\">\n", html.EscapeString(BuildURL(cfg.Site.URL, cfg.Endpoint)))
		fmt.Fprintf(&b, "<link rel=\"token_endpoint\" href=\"%s\">\n", html.EscapeString(BuildURL(cfg.Site.URL, "tokens")))
		if cfg.Auth.AuthorizationEndpoint != "" {
			fmt.Fprintf(&b, "<link rel=\"authorization_endpoint\" href=\"%s\">\n", html.EscapeString(cfg.Auth.AuthorizationEndpoint))
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// landingPage is the minimal HTML page served at the site root and for
// non-discovery GET requests on the publish endpoint.
func landingPage(cfg *Config) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
		fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(cfg.Site.Name))
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := HeadLinks(cfg).Render(ctx, w); err != nil {
			return err
		}
		b.Reset()
		b.WriteString("</head>\n<body>\n")
		fmt.Fprintf(&b, "<h1>%s</h1>\n<p>This site accepts posts from Micropub clients.</p>\n", html.EscapeString(cfg.Site.Name))
		b.WriteString("</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func adminLogin(showError bool, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head><meta charset=\"utf-8\"><title>Admin</title></head>\n<body>\n<h1>Admin</h1>\n")
		if showError {
			b.WriteString("<p>Login failed.</p>\n")
		}
		b.WriteString("<form method=\"post\" action=\"/admin/login\">\n")
		fmt.Fprintf(&b, "<input type=\"hidden\" name=\"_csrf\" value=\"%s\">\n", html.EscapeString(csrfToken))
		b.WriteString("<input type=\"password\" name=\"password\" autofocus>\n<button type=\"submit\">Log in</button>\n</form>\n</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func adminDashboard(pages []Page, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head><meta charset=\"utf-8\"><title>Admin</title></head>\n<body>\n<h1>Content</h1>\n")
		b.WriteString("<form method=\"post\" action=\"/admin/logout\">\n")
		fmt.Fprintf(&b, "<input type=\"hidden\" name=\"_csrf\" value=\"%s\">\n", html.EscapeString(csrfToken))
		b.WriteString("<button type=\"submit\">Log out</button>\n</form>\n<ul>\n")
		for _, p := range pages {
			fmt.Fprintf(&b, "<li><a href=\"/admin/page/%s\">%s</a> <small>%s, %s</small></li>\n",
				html.EscapeString(p.Path()), html.EscapeString(p.Path()),
				html.EscapeString(p.Status), html.EscapeString(p.Created))
		}
		b.WriteString("</ul>\n</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func adminPageView(page *Page, files []PageFile) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head><meta charset=\"utf-8\"><title>Admin</title></head>\n<body>\n")
		fmt.Fprintf(&b, "<h1>%s</h1>\n<p>template %s, status %s</p>\n<dl>\n",
			html.EscapeString(page.Path()), html.EscapeString(page.Template), html.EscapeString(page.Status))
		for k, v := range page.Fields {
			fmt.Fprintf(&b, "<dt>%s</dt><dd>%s</dd>\n", html.EscapeString(k), html.EscapeString(v))
		}
		b.WriteString("</dl>\n")
		if len(files) > 0 {
			b.WriteString("<h2>Files</h2>\n<ul>\n")
			for _, f := range files {
				fmt.Fprintf(&b, "<li>%s <small>%s</small></li>\n", html.EscapeString(f.Filename), html.EscapeString(f.Template))
			}
			b.WriteString("</ul>\n")
		}
		b.WriteString("<p><a href=\"/admin\">Back</a></p>\n</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}
