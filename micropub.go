// Package micropub is a Micropub server built with Go, Echo, and templ.
// It accepts publish requests from any Micropub client, resolves them
// against a configurable post type catalogue, and writes pages and media
// into its content store. Token issuance and verification, media staging,
// and a small admin dashboard are included out of the box.
package micropub

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const sessionName = "admin_session"

// App is the central micropub application. It wires together the config,
// store, token service, auth gateway, and HTTP surface.
type App struct {
	Config *Config
	Echo   *echo.Echo
	Store  ContentStore

	tokens       *TokenService
	gateway      *AuthGateway
	categories   *categoryCache
	loginLimiter *LoginLimiter
	transforms   map[string]TransformFunc
	httpClient   *http.Client
	now          func() time.Time
}

// Option customizes an App at construction time.
type Option func(*App)

// WithStore substitutes a custom content store for the built-in SQLite
// implementation.
func WithStore(s ContentStore) Option {
	return func(a *App) { a.Store = s }
}

// WithHTTPClient replaces the client used for token discovery, remote
// introspection, and attachment fetching.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.httpClient = c }
}

// New creates a micropub App with the given configuration.
func New(cfg *Config, opts ...Option) *App {
	cfg.SetDefaults()

	a := &App{
		Config:     cfg,
		Echo:       echo.New(),
		transforms: make(map[string]TransformFunc),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterTransform registers a custom field transform under the given id.
// Post type render rules refer to transforms by id; registration must
// happen before Start.
func (a *App) RegisterTransform(id string, fn TransformFunc) {
	a.transforms[id] = fn
}

// Setup validates the configuration and initializes the store, caches,
// middleware and routes without starting the server. Start calls it;
// tests drive a.Echo directly afterwards.
func (a *App) Setup() error {
	if a.Config.Site.URL == "" {
		return fmt.Errorf("micropub: site URL is required")
	}
	if a.Config.Admin.Password != "" && a.Config.Admin.SessionSecret == "" {
		return fmt.Errorf("micropub: admin session secret is required when the dashboard is enabled")
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.Database, a.Config.Content)
		if err != nil {
			return fmt.Errorf("micropub: init store: %w", err)
		}
		a.Store = store
	}
	if err := os.MkdirAll(a.Config.Staging.Dir, 0o755); err != nil {
		return fmt.Errorf("micropub: init staging dir: %w", err)
	}

	a.tokens = NewTokenService(a.Config.Auth.TokenSecret)
	a.tokens.Client = a.httpClient
	a.tokens.Now = a.now
	a.gateway = &AuthGateway{
		SiteURL:       a.Config.Site.URL,
		Tokens:        a.tokens,
		IntrospectURL: a.Config.Auth.TokenEndpoint,
		Client:        a.httpClient,
	}
	a.categories = newCategoryCache(a.Store, a.Config.Categories, 5*time.Minute)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	return nil
}

// Start initializes the application and serves HTTP on the configured
// address, blocking until the server stops.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if s, ok := a.Store.(*Store); ok && s != nil {
		return s.Close()
	}
	return nil
}

// endpointPath is the publish endpoint's route path.
func (a *App) endpointPath() string {
	return "/" + strings.Trim(a.Config.Endpoint, "/")
}

func (a *App) setupMiddleware() {
	e := a.Echo
	e.HideBanner = true

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	if a.Config.Admin.Password != "" {
		e.Use(session.Middleware(a.newSessionStore()))
		e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "header:X-CSRF-Token,form:_csrf",
			CookieName:     "_csrf",
			CookiePath:     "/",
			CookieSameSite: http.SameSiteLaxMode,
			CookieSecure:   a.Config.Admin.CookieSecure,
			// Micropub clients talk to the protocol endpoints without a
			// browser session; only the admin forms need CSRF.
			Skipper: func(c echo.Context) bool {
				return !strings.HasPrefix(c.Request().URL.Path, "/admin")
			},
			ErrorHandler: func(err error, c echo.Context) error {
				return c.String(http.StatusForbidden, "Forbidden")
			},
		}))
	}
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET(a.endpointPath(), a.handleEndpointGet)
	e.POST(a.endpointPath(), a.handleEndpointPost)

	e.GET("/tokens", a.handleToken)
	e.POST("/tokens", a.handleToken)

	// Staged media is served directly so media-endpoint uploads have a
	// reachable URL before they are attached to a page.
	e.Static("/media/uploads", a.Config.Staging.Dir)

	e.GET("/", a.handleLanding)

	if a.Config.Admin.Password != "" {
		e.GET("/admin", a.handleAdmin)
		e.POST("/admin/login", a.handleAdminLogin)
		e.POST("/admin/logout", handleAdminLogout)
		e.GET("/admin/page/*", a.handleAdminPage)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.Admin.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.Admin.CookieSecure,
	}
	return store
}

// IsAdmin checks if the current session is authenticated.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

func setAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

// httpErrorHandler renders protocol errors as the JSON body Micropub
// clients expect.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var body map[string]string
	status := http.StatusInternalServerError
	switch e := err.(type) {
	case *Error:
		status = e.Status
		body = map[string]string{"error": e.Kind, "error_description": e.Description}
	case *echo.HTTPError:
		status = e.Code
		body = map[string]string{"error": KindError, "error_description": fmt.Sprintf("%v", e.Message)}
	default:
		body = map[string]string{"error": KindInternalError, "error_description": err.Error()}
	}

	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	if werr := c.JSON(status, body); werr != nil {
		c.Logger().Error(werr)
	}
}
