// Package web holds the caregiver pages: server-rendered templates and the
// browser scripts they load. Everything is embedded into the binary.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses every page template with Funcs.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
}

// MustTemplates is Templates that panics on a parse error.
func MustTemplates() *template.Template {
	t, err := Templates()
	if err != nil {
		panic(err)
	}
	return t
}

// Static serves the files under static/ (autocomplete.js, app.js, app.css).
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Funcs are the helpers available to templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"rfc3339": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		"hhmm":    func(t time.Time) string { return t.UTC().Format("15:04") },
		"when":    func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
		"datetime": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.UTC().Format("2006-01-02 15:04")
		},
		"percent": func(p *float64) string {
			if p == nil {
				return "n/a"
			}
			return fmt.Sprintf("%.1f%%", *p)
		},
		"hour": func(h int) string { return fmt.Sprintf("%02d:00", h) },
	}
}
