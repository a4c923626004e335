package server

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
)

//go:embed template/*.html
var templateFs embed.FS

//go:embed static
var staticFs embed.FS

//go:embed content/about.md
var aboutMarkdown []byte

func MustParseTemplates(extra template.FuncMap) *template.Template {
	funcMap := template.FuncMap{
		"join": strings.Join,
		"sub": func(a, b int) int {
			return a - b
		},
	}
	for k, v := range extra {
		funcMap[k] = v
	}

	return template.Must(template.New("").Funcs(funcMap).ParseFS(templateFs, "template/*.html"))
}

// RenderAbout converts the embedded about page to HTML.
func RenderAbout() (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(aboutMarkdown, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
