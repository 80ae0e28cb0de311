package micropub

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// PageBrowser is the optional store capability backing the admin
// dashboard. The built-in Store implements it; custom stores that do not
// get a dashboard without content listings.
type PageBrowser interface {
	ListPages() ([]Page, error)
	GetPage(path string) (*Page, error)
	ListFiles(page *Page) ([]PageFile, error)
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return render(c, http.StatusOK, adminLogin(false, CsrfToken(c)))
	}

	var pages []Page
	if browser, ok := a.Store.(PageBrowser); ok {
		var err error
		if pages, err = browser.ListPages(); err != nil {
			return errInternal("Content listing failed: " + err.Error())
		}
	}
	return render(c, http.StatusOK, adminDashboard(pages, CsrfToken(c)))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many attempts, try again later")
	}

	password := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.Config.Admin.Password)) != 1 {
		a.loginLimiter.Record(ip)
		return render(c, http.StatusUnauthorized, adminLogin(true, CsrfToken(c)))
	}

	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin")
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin")
}

// handleAdminPage shows one page with its fields and attached files.
// Draft publishes point their Location header here.
func (a *App) handleAdminPage(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
	browser, ok := a.Store.(PageBrowser)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "content browsing not supported by this store")
	}

	page, err := browser.GetPage(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "page not found")
	}
	files, err := browser.ListFiles(page)
	if err != nil {
		return errInternal("File listing failed: " + err.Error())
	}
	return render(c, http.StatusOK, adminPageView(page, files))
}
