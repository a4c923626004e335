package server

import (
	"bytes"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/fmpsc/spa/app/config"
)

type TemplateRenderer struct {
	tmpl *template.Template
	conf *config.DashboardConfig
}

// Render draws a full page: name selects the body inside layout.html.
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	wrappedData := map[string]any{
		"Page": name,
		"Data": data,
		"Conf": t.conf,
	}
	err := t.tmpl.ExecuteTemplate(w, "layout.html", wrappedData)
	if err != nil {
		c.Logger().Error(err)
		return err
	}
	return nil
}

// Fragment renders a single named template without the page layout.
func (t *TemplateRenderer) Fragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func NewTemplateRenderer(conf *config.DashboardConfig, assets *AssetFS) *TemplateRenderer {
	return &TemplateRenderer{
		tmpl: MustParseTemplates(template.FuncMap{
			"static": assets.URL,
		}),
		conf: conf,
	}
}
