// Package web provides embedded templates and static assets for the
// rendered dashboard pages.
package web

import "embed"

// TemplatesFS embeds all HTML templates from the templates directory.
// Use this for server-side rendering with html/template.
//
//go:embed templates
var TemplatesFS embed.FS

// StaticFS embeds all static assets from the static directory.
//
//go:embed static
var StaticFS embed.FS
