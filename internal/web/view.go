package web

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"defect-detective-web/internal/detective"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page is the view model handed to every template. Result and Error are
// mutually exclusive: setResult and setError each clear the other.
type Page struct {
	ActiveTab string
	Error     string
	Flash     string
	Result    *detective.AnalysisResult
	History   []detective.AnalysisResult
	Detail    *detective.AnalysisResult
}

func newPage(tab string) *Page {
	return &Page{ActiveTab: tab}
}

func (p *Page) setError(msg string) *Page {
	p.Error = msg
	p.Result = nil
	return p
}

func (p *Page) setResult(result *detective.AnalysisResult, flash string) *Page {
	p.Result = result
	p.Flash = flash
	p.Error = ""
	return p
}

var iconGlyphs = map[string]string{
	"x":       "✕",
	"warning": "⚠",
	"eye":     "👁",
	"check":   "✓",
}

// Templates parses the embedded template set with the view funcs bound.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"severityClass": detective.SeverityClass,
		"severityIcon":  detective.SeverityIcon,
		"iconGlyph": func(icon string) string {
			if glyph, ok := iconGlyphs[icon]; ok {
				return glyph
			}
			return iconGlyphs["check"]
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "—"
			}
			return t.Format("Jan 2, 2006 15:04")
		},
		"confidence": func(v float64) string {
			return fmt.Sprintf("%.0f%%", v)
		},
		// html/template filters data: URIs in src attributes, so the
		// preview URL is built here and marked safe.
		"dataImage": func(b64 string) template.URL {
			return template.URL("data:image/png;base64," + b64)
		},
	}).ParseFS(templateFS, "templates/*.tmpl"))
}
