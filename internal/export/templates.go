package export

import (
	"bytes"
	"embed"
	"html/template"

	"inkwell/api/internal/page"
)

//go:embed templates/*.html
var templateFS embed.FS

var manuscriptTemplate *template.Template

func init() {
	templateContent, err := templateFS.ReadFile("templates/manuscript.html")
	if err != nil {
		// Fallback to built-in template if file not found
		manuscriptTemplate = template.Must(template.New("manuscript").Parse(fallbackTemplate))
		return
	}
	manuscriptTemplate = template.Must(template.New("manuscript").Parse(string(templateContent)))
}

// TemplateData holds data for manuscript template rendering
type TemplateData struct {
	Title       string
	Author      string
	FontFamily  string
	StyleCSS    template.CSS
	Geometry    page.Geometry
	ContentHTML template.HTML
}

// RenderManuscriptHTML renders the manuscript template with provided data
func RenderManuscriptHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := manuscriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: {{if .FontFamily}}{{.FontFamily}}{{else}}Georgia, serif{{end}}; margin: 0; }
    .editor-content { width: {{.Geometry.ContentWidth}}px; margin: 0 auto; }
    h1 { text-align: center; }
    .chapter-break { page-break-after: always; }
    {{.StyleCSS}}
  </style>
</head>
<body>
  <div class="editor-content">{{.ContentHTML}}</div>
</body>
</html>`
