package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// corsMaxAgeSeconds is how long browsers may cache preflight responses.
const corsMaxAgeSeconds = 3600

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowOrigins is the list of allowed origins.
	AllowOrigins []string

	// AllowCredentials enables cookies on cross-origin requests.
	AllowCredentials bool
}

// DefaultCORSConfig returns a CORSConfig suitable for local development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:8080"},
		AllowCredentials: true,
	}
}

// CORS returns the cross-origin middleware. The session rides in a
// cookie, so credentials must be allowed and origins must be explicit.
func CORS(config CORSConfig) echo.MiddlewareFunc {
	if len(config.AllowOrigins) == 0 {
		config = DefaultCORSConfig()
	}

	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: config.AllowOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			RequestIDHeader,
		},
		AllowCredentials: config.AllowCredentials,
		MaxAge:           corsMaxAgeSeconds,
	})
}
