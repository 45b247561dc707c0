package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

// HTML writes the dashboard page.
func HTML(w io.Writer, p Page) error {
	if err := dashboardTemplate.ExecuteTemplate(w, "dashboard.html", p); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}
