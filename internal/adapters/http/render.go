package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"dojo/internal/adapters/http/middleware"
	"dojo/internal/application/orchestrators"
	accountDomain "dojo/internal/domain/account"
	"dojo/internal/domain/payment"
)

//go:embed templates/*.html templates/partials/*.html templates/docs/*.md
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Linkify),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// baseFuncs are shared by every page. Request-bound funcs are replaced per render.
var baseFuncs = template.FuncMap{
	"csrfField":  func() template.HTML { return "" },
	"session":    func() *middleware.Session { return nil },
	"markdown":   renderMarkdown,
	"rands":      payment.FormatAmount,
	"add":        func(a, b int) int { return a + b },
	"school":     func() any { return options.School },
	"date":       formatDate,
	"isoDate":    isoDate,
	"homePath":   accountDomain.HomePath,
	"checked":    func(b bool) template.HTMLAttr { return boolAttr(b, "checked") },
	"selected":   func(a, b string) template.HTMLAttr { return boolAttr(a == b, "selected") },
	"paymentFor": func(t payment.Type) string { return t.Label() },
}

// formatDate renders a day for display; the zero time renders empty.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2 Jan 2006")
}

// isoDate fills a date input; the zero time renders empty.
func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func boolAttr(on bool, attr string) template.HTMLAttr {
	if on {
		return template.HTMLAttr(attr)
	}
	return ""
}

var (
	pagesOnce sync.Once
	pages     map[string]*template.Template
	pagesErr  error
)

// loadPages parses layout.html and the shared partials together with each page once.
func loadPages() (map[string]*template.Template, error) {
	pagesOnce.Do(func() {
		names, err := fs.Glob(templateFS, "templates/*.html")
		if err != nil {
			pagesErr = err
			return
		}
		pages = make(map[string]*template.Template, len(names))
		for _, name := range names {
			page := strings.TrimPrefix(name, "templates/")
			if page == "layout.html" {
				continue
			}
			tpl, err := template.New("layout.html").Funcs(baseFuncs).ParseFS(templateFS, "templates/layout.html", "templates/partials/*.html", name)
			if err != nil {
				pagesErr = err
				return
			}
			pages[page] = tpl
		}
	})
	return pages, pagesErr
}

// consentDocument returns an embedded markdown document such as the indemnity.
func consentDocument(name string) template.HTML {
	data, err := templateFS.ReadFile("templates/docs/" + name + ".md")
	if err != nil {
		slog.Error("document_missing", "name", name, "error", err)
		return ""
	}
	return renderMarkdown(string(data))
}

func renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	all, err := loadPages()
	if err != nil {
		internalError(w, err)
		return
	}
	tpl, ok := all[name]
	if !ok {
		internalError(w, errors.New("unknown template "+name))
		return
	}
	sess, hasSession := middleware.GetSessionFromContext(r.Context())
	tpl, err = tpl.Clone()
	if err != nil {
		internalError(w, err)
		return
	}
	tpl.Funcs(template.FuncMap{
		"csrfField": func() template.HTML { return csrf.TemplateField(r) },
		"session": func() *middleware.Session {
			if !hasSession {
				return nil
			}
			return &sess
		},
	})

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// failed renders a page again with err as its message when err is the visitor's to fix.
// It reports false when err is nil.
func failed(w http.ResponseWriter, r *http.Request, err error, page string, data map[string]any) bool {
	if err == nil {
		return false
	}
	if !orchestrators.IsInputError(err) {
		internalError(w, err)
		return true
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return true
	}
	data["Error"] = err.Error()
	renderTemplate(w, r, http.StatusUnprocessableEntity, page, data)
	return true
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
