package httphandler

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/blogify/internal/infrastructure/httpserver"
	"github.com/lllypuk/blogify/web"
)

// TemplateRenderer renders embedded HTML templates through echo.
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses the embedded templates.
func NewTemplateRenderer() (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(web.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &TemplateRenderer{templates: tmpl}, nil
}

// Render implements echo.Renderer.
func (r *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// PageHandler serves the rendered dashboard pages. The dashboard routes
// sit behind the session guard; login, signup, and home are public.
type PageHandler struct{}

// NewPageHandler creates a new PageHandler.
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// RegisterRoutes registers page routes with the router.
func (h *PageHandler) RegisterRoutes(r *httpserver.Router) {
	pages := r.Pages()

	pages.GET("/", h.Home)
	pages.GET("/login", h.Login)
	pages.GET("/signup", h.SignUp)
	pages.GET("/dashboard", h.Dashboard)
	pages.GET("/dashboard/new", h.NewPost)
	pages.GET("/dashboard/edit/:id", h.EditPost)

	registerStatic(r.Echo())
}

// Home handles GET /.
func (h *PageHandler) Home(c echo.Context) error {
	return c.Render(http.StatusOK, "home.html", nil)
}

// Login handles GET /login.
func (h *PageHandler) Login(c echo.Context) error {
	return c.Render(http.StatusOK, "login.html", nil)
}

// SignUp handles GET /signup.
func (h *PageHandler) SignUp(c echo.Context) error {
	return c.Render(http.StatusOK, "signup.html", nil)
}

// Dashboard handles GET /dashboard.
func (h *PageHandler) Dashboard(c echo.Context) error {
	return c.Render(http.StatusOK, "dashboard.html", nil)
}

// NewPost handles GET /dashboard/new.
func (h *PageHandler) NewPost(c echo.Context) error {
	return c.Render(http.StatusOK, "post_form.html", map[string]any{
		"PostID": "",
	})
}

// EditPost handles GET /dashboard/edit/:id.
func (h *PageHandler) EditPost(c echo.Context) error {
	return c.Render(http.StatusOK, "post_form.html", map[string]any{
		"PostID": c.Param("id"),
	})
}

// registerStatic serves the embedded static assets.
func registerStatic(e *echo.Echo) {
	staticFS, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		return
	}
	e.StaticFS("/static", staticFS)
}
