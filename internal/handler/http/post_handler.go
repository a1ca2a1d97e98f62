package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/blogify/internal/domain/errs"
	"github.com/lllypuk/blogify/internal/infrastructure/httpserver"
	"github.com/lllypuk/blogify/internal/infrastructure/provider"
	"github.com/lllypuk/blogify/internal/middleware"
)

// PostStore is the slice of the row-store API the posts endpoints need.
// Declared on the consumer side.
type PostStore interface {
	ListPosts(ctx context.Context, accessToken, userID string) ([]provider.Post, error)
	GetPost(ctx context.Context, accessToken, userID, postID string) (*provider.Post, error)
	CreatePost(ctx context.Context, accessToken string, post provider.Post) (*provider.Post, error)
	UpdatePost(ctx context.Context, accessToken, userID, postID, title, content string) (*provider.Post, error)
	DeletePost(ctx context.Context, accessToken, userID, postID string) error
}

// PostRequest represents the create/update post request body.
type PostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// PostHandler handles blog post HTTP requests. It is a thin
// pass-through: ownership filtering and row-level authorization stay
// with the provider, keyed by the caller's own access token.
type PostHandler struct {
	store  PostStore
	logger *slog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(store PostStore, logger *slog.Logger) *PostHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostHandler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers post routes with the router.
func (h *PostHandler) RegisterRoutes(r *httpserver.Router) {
	r.API().GET("/posts", h.List)
	r.API().POST("/posts", h.Create)
	r.API().GET("/posts/:id", h.Get)
	r.API().PUT("/posts/:id", h.Update)
	r.API().DELETE("/posts/:id", h.Delete)
}

// List handles GET /api/posts.
func (h *PostHandler) List(c echo.Context) error {
	userID, accessToken, err := callerIdentity(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	posts, err := h.store.ListPosts(c.Request().Context(), accessToken, userID)
	if err != nil {
		return h.respondStoreError(c, "list posts", err)
	}

	if posts == nil {
		posts = []provider.Post{}
	}

	return httpserver.RespondOK(c, posts)
}

// Get handles GET /api/posts/:id.
func (h *PostHandler) Get(c echo.Context) error {
	userID, accessToken, err := callerIdentity(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	post, err := h.store.GetPost(c.Request().Context(), accessToken, userID, c.Param("id"))
	if err != nil {
		return h.respondStoreError(c, "get post", err)
	}

	return httpserver.RespondOK(c, post)
}

// Create handles POST /api/posts.
func (h *PostHandler) Create(c echo.Context) error {
	userID, accessToken, err := callerIdentity(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	var req PostRequest
	if err := c.Bind(&req); err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	if req.Title == "" {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Title is required",
		)
	}

	post, err := h.store.CreatePost(c.Request().Context(), accessToken, provider.Post{
		Title:   req.Title,
		Content: req.Content,
		UserID:  userID,
	})
	if err != nil {
		return h.respondStoreError(c, "create post", err)
	}

	return httpserver.RespondCreated(c, post)
}

// Update handles PUT /api/posts/:id.
func (h *PostHandler) Update(c echo.Context) error {
	userID, accessToken, err := callerIdentity(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	var req PostRequest
	if err := c.Bind(&req); err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	if req.Title == "" {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Title is required",
		)
	}

	post, err := h.store.UpdatePost(
		c.Request().Context(),
		accessToken,
		userID,
		c.Param("id"),
		req.Title,
		req.Content,
	)
	if err != nil {
		return h.respondStoreError(c, "update post", err)
	}

	return httpserver.RespondOK(c, post)
}

// Delete handles DELETE /api/posts/:id.
func (h *PostHandler) Delete(c echo.Context) error {
	userID, accessToken, err := callerIdentity(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	if err := h.store.DeletePost(c.Request().Context(), accessToken, userID, c.Param("id")); err != nil {
		return h.respondStoreError(c, "delete post", err)
	}

	return httpserver.RespondNoContent(c)
}

// respondStoreError maps row-store errors to API responses.
func (h *PostHandler) respondStoreError(c echo.Context, op string, err error) error {
	if errors.Is(err, provider.ErrRowNotFound) {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusNotFound,
			"NOT_FOUND",
			"Post not found",
		)
	}

	h.logger.Error("row store request failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)

	return httpserver.RespondErrorWithCode(
		c,
		http.StatusBadGateway,
		"PROVIDER_UNAVAILABLE",
		"Post storage is temporarily unavailable",
	)
}

// callerIdentity extracts the authenticated caller's ID and access
// token from the request context.
func callerIdentity(c echo.Context) (userID, accessToken string, err error) {
	userID = middleware.GetUserID(c)
	accessToken = middleware.GetAccessToken(c)
	if userID == "" || accessToken == "" {
		return "", "", errs.ErrUnauthorized
	}
	return userID, accessToken, nil
}
