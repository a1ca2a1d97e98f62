package httphandler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/blogify/internal/middleware"
)

// setSessionCookie sets the session cookie with the access token.
func setSessionCookie(c echo.Context, token string, expiresIn int, secure bool) {
	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   expiresIn,
		HttpOnly: true,
		Secure:   secure || c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	}
	c.SetCookie(cookie)
}

// getSessionCookie retrieves the session cookie value.
func getSessionCookie(c echo.Context) string {
	cookie, err := c.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// clearSessionCookie clears the session cookie.
func clearSessionCookie(c echo.Context) {
	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
	c.SetCookie(cookie)
}
