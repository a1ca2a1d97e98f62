package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
)

// stackBufferSize is the buffer size for stack trace capture.
const stackBufferSize = 4096

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	Logger *slog.Logger

	// StackSize is the max stack trace size to capture.
	StackSize int

	// DisableStackAll disables capturing stacks of all goroutines.
	DisableStackAll bool
}

// DefaultRecoveryConfig returns a RecoveryConfig with sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:          slog.Default(),
		StackSize:       stackBufferSize,
		DisableStackAll: true,
	}
}

// Recovery returns a middleware that recovers from panics and converts
// them into 500 responses.
func Recovery(config RecoveryConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.StackSize <= 0 {
		config.StackSize = stackBufferSize
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if r == http.ErrAbortHandler {
						panic(r)
					}

					recoveredErr, ok := r.(error)
					if !ok {
						recoveredErr = fmt.Errorf("panic: %v", r)
					}

					stack := make([]byte, config.StackSize)
					length := runtime.Stack(stack, !config.DisableStackAll)

					config.Logger.Error("panic recovered",
						slog.String("request_id", GetRequestID(c)),
						slog.String("method", c.Request().Method),
						slog.String("path", c.Request().URL.Path),
						slog.String("error", recoveredErr.Error()),
						slog.String("stack", string(stack[:length])),
					)

					err = c.JSON(http.StatusInternalServerError, map[string]any{
						"success": false,
						"error": map[string]string{
							"code":    "INTERNAL_ERROR",
							"message": "Internal server error",
						},
					})
				}
			}()

			return next(c)
		}
	}
}
