// Пакет ui — HTML-шаблоны страниц каталога: список товаров с формой
// создания и страница товара, на которую ведёт QR-код.
package ui

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.UTC().Format("02.01.2006 15:04 MST")
	},
	"isoTime": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
}

// Templates — разобранные шаблоны страниц: list.html, detail.html, error.html.
var Templates = template.Must(
	template.New("ui").Funcs(funcs).ParseFS(templatesFS, "templates/*.html"),
)
