package micropub

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// handleLanding serves the minimal HTML page at the site root.
func (a *App) handleLanding(c echo.Context) error {
	return render(c, http.StatusOK, landingPage(a.Config))
}

// handleEndpointGet serves discovery queries on the publish endpoint.
// Discovery answers are for authenticated clients only; a plain GET
// without a query gets the public landing page.
func (a *App) handleEndpointGet(c echo.Context) error {
	switch c.QueryParam("q") {
	case "config":
		if _, err := a.gateway.Authenticate(c.Request()); err != nil {
			return err
		}
		return a.handleConfigQuery(c)
	case "syndicate-to":
		if _, err := a.gateway.Authenticate(c.Request()); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"syndicate-to": a.syndicationTargets(),
		})
	default:
		return render(c, http.StatusOK, landingPage(a.Config))
	}
}

func (a *App) handleConfigQuery(c echo.Context) error {
	categories, err := a.categories.List()
	if err != nil {
		c.Logger().Errorf("category listing failed: %v", err)
		categories = []string{}
	}

	types := []map[string]string{}
	for _, pt := range a.Config.catalogue(a.now()) {
		name := pt.Name
		if name == "" {
			name = pt.ID
		}
		types = append(types, map[string]string{"type": pt.ID, "name": name})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"media-endpoint": BuildURL(a.Config.Site.URL, a.Config.Endpoint),
		"syndicate-to":   a.syndicationTargets(),
		"post-types":     types,
		"categories":     categories,
	})
}

func (a *App) syndicationTargets() []SyndicationTarget {
	if a.Config.Syndicate == nil {
		return []SyndicationTarget{}
	}
	return a.Config.Syndicate
}

// handleEndpointPost runs the publish pipeline: authentication, scope
// check, then either a direct media upload or a full publish request.
func (a *App) handleEndpointPost(c echo.Context) error {
	claims, aerr := a.gateway.Authenticate(c.Request())
	if aerr != nil {
		return aerr
	}
	if !hasScope(claims.Scope, "create") && claims.Scope != "post" {
		return errInsufficientScope("Access token lacks the create scope")
	}

	cleanupStaging(a.Config.Staging.Dir, a.Config.Staging.TTL, a.now())

	if fh, err := c.FormFile("file"); err == nil {
		return a.handleMediaUpload(c, fh)
	}

	body, form, perr := parseBody(c)
	if perr != nil {
		return perr
	}
	props := normalizePayload(body)
	return a.publish(c, props, form)
}

// handleMediaUpload stages a direct media-endpoint upload and answers
// with the staged file's URL.
func (a *App) handleMediaUpload(c echo.Context, fh *multipart.FileHeader) error {
	dir, err := newStagingDir(a.Config.Staging.Dir)
	if err != nil {
		return errPublish("Staging directory could not be created: " + err.Error())
	}
	name, err := stageUpload(fh, dir)
	if err != nil {
		return errPublish("Uploaded file could not be staged: " + err.Error())
	}
	if err := downscaleImage(filepath.Join(dir, name), a.Config.Staging.MaxImageWidth); err != nil {
		c.Logger().Errorf("image downscale failed: %v", err)
	}

	location := BuildURL(a.Config.Site.URL, "media/uploads", filepath.Base(dir), name)
	c.Response().Header().Set("Location", location)
	return c.NoContent(http.StatusCreated)
}

// publish resolves the post type, renders fields, generates the slug,
// stages attachments and creates the page.
func (a *App) publish(c echo.Context, props Properties, form *multipart.Form) error {
	now := a.now()

	rt, perr := resolvePostType(props, a.Config, a.Store, now)
	if perr != nil {
		return perr
	}

	content := renderFields(rt.Render, props, a.transforms)

	slug, err := uniqueSlug(rt.SlugRules, content, rt.Parent, props, a.Store, a.Config.SlugPrefix, now)
	if err != nil {
		return errPublish("Slug generation failed: " + err.Error())
	}

	atts, perr := resolveAttachments(c.Request().Context(), rt.Type, props, form, a.Config.Staging.Dir, a.httpClient)
	if perr != nil {
		return perr
	}

	page, err := a.Store.CreatePage(NewPage{
		Parent:   rt.Parent,
		Slug:     slug,
		Template: rt.Template,
		Status:   rt.Status,
		Language: rt.Language,
		Fields:   content,
	})
	if err != nil {
		return errPublish("Content could not be created: " + err.Error())
	}

	date := content["date"]
	if date == "" {
		date = now.Format(timeLayout)
	}
	for _, att := range atts {
		if err := a.Store.AttachFile(page, att, date); err != nil {
			return errPublish("File could not be attached: " + err.Error())
		}
	}

	// The first attached photo may be promoted into a cover field.
	if cover := rt.Type.Files["photo"].Cover; cover != "" {
		for _, att := range atts {
			if att.Category == "photo" {
				if err := a.Store.UpdateFields(page, Content{cover: att.Filename}); err != nil {
					return errPublish("Cover field could not be written: " + err.Error())
				}
				break
			}
		}
	}

	a.categories.Invalidate()

	location := BuildURL(a.Config.Site.URL, page.Path())
	if rt.Status == StatusDraft && a.Config.Admin.Password != "" {
		// Drafts have no public URL yet; point the client at the editor.
		// Without a dashboard the public path is the best available name.
		location = BuildURL(a.Config.Site.URL, "admin/page", page.Path())
	}
	c.Response().Header().Set("Location", location)
	return c.NoContent(http.StatusCreated)
}

// handleToken serves the token endpoint: verification when a request
// carries an Authorization header, auth-code exchange otherwise.
func (a *App) handleToken(c echo.Context) error {
	r := c.Request()

	if r.Header.Get("Authorization") != "" {
		claims, err := a.tokens.Verify(extractToken(r))
		if err != nil {
			return err
		}
		body := url.Values{"scope": {claims.Scope}, "me": {claims.Me}}
		return c.Blob(http.StatusOK, "application/x-www-form-urlencoded", []byte(body.Encode()))
	}

	if r.Method != http.MethodPost {
		return errInvalidRequest("Token verification requires an Authorization header")
	}

	code := c.FormValue("code")
	me := c.FormValue("me")
	if code == "" || me == "" {
		return errInvalidRequest("Auth code exchange requires code and me")
	}
	token, scope, err := a.tokens.Issue(r.Context(), code, me, c.FormValue("redirect_uri"), c.FormValue("client_id"))
	if err != nil {
		return err
	}
	body := url.Values{"access_token": {token}, "scope": {scope}, "me": {me}}
	return c.Blob(http.StatusOK, "application/x-www-form-urlencoded", []byte(body.Encode()))
}

// parseBody decodes a publish request body into a raw property map. JSON
// microformat bodies decode as-is; form and multipart bodies collect
// their values, with a "[]" name suffix (or repeated names) forming
// lists. The multipart form, when present, is returned for the
// attachment resolver.
func parseBody(c echo.Context) (map[string]any, *multipart.Form, *Error) {
	r := c.Request()
	ct := r.Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, nil, errInvalidRequest("Request body is not valid JSON: " + err.Error())
		}
		return body, nil, nil
	}

	if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
			return nil, nil, errInvalidRequest("Multipart body could not be parsed: " + err.Error())
		}
		return formToMap(url.Values(r.MultipartForm.Value)), r.MultipartForm, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, nil, errInvalidRequest("Form body could not be parsed: " + err.Error())
	}
	return formToMap(r.PostForm), nil, nil
}

func formToMap(values url.Values) map[string]any {
	body := make(map[string]any, len(values))
	for name, list := range values {
		isList := strings.HasSuffix(name, "[]")
		name = strings.TrimSuffix(name, "[]")
		if isList || len(list) > 1 {
			entries := make([]any, len(list))
			for i, v := range list {
				entries[i] = v
			}
			body[name] = entries
		} else if len(list) == 1 {
			body[name] = list[0]
		}
	}
	return body
}

func hasScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}
