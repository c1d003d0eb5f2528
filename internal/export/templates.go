package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var pathTemplate = template.Must(template.New("path.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"paragraphs": paragraphs,
}).ParseFS(templateFS, "templates/path.html"))

// TemplateData feeds templates/path.html.
type TemplateData struct {
	Title       string
	BookTitle   string
	GeneratedAt time.Time
	Chapters    []Chapter
}

// RenderPathHTML renders a reading path. All text is escaped.
func RenderPathHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := pathTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// paragraphs splits body text on blank lines.
func paragraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(content, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}
