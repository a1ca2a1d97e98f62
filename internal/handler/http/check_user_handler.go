package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/blogify/internal/directory"
	"github.com/lllypuk/blogify/internal/infrastructure/httpserver"
)

// ExistenceChecker resolves whether an email belongs to a registered
// account. Declared on the consumer side.
type ExistenceChecker interface {
	// Resolve reports registration and confirmation status for email.
	Resolve(ctx context.Context, email string) (directory.Result, error)
}

// CheckUserRequest represents the existence check request body.
type CheckUserRequest struct {
	Email string `json:"email"`
}

// CheckUserHandler handles the account existence check endpoint.
//
// The endpoint keeps its original wire contract: a bare
// {"exists","confirmed"} object on success and {"error": "..."} on
// failure, without the standard response envelope. The signup page's
// client script depends on these exact shapes.
type CheckUserHandler struct {
	checker ExistenceChecker
	logger  *slog.Logger
}

// NewCheckUserHandler creates a new CheckUserHandler.
func NewCheckUserHandler(checker ExistenceChecker, logger *slog.Logger) *CheckUserHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &CheckUserHandler{
		checker: checker,
		logger:  logger,
	}
}

// RegisterRoutes registers the check-user route with the router.
func (h *CheckUserHandler) RegisterRoutes(r *httpserver.Router) {
	r.API().POST("/check-user", h.CheckUser)
}

// CheckUser handles POST /api/check-user.
func (h *CheckUserHandler) CheckUser(c echo.Context) error {
	var req CheckUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Email is required",
		})
	}

	result, err := h.checker.Resolve(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, directory.ErrEmptyEmail) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Email is required",
			})
		}

		h.logger.Error("existence check failed",
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, result)
}
