package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/rohzyy/govai/internal/lifecycle"
)

//go:embed templates/*.html
var templateFS embed.FS

var ist = time.FixedZone("IST", 5*3600+1800)

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.In(ist).Format("02 Jan 2006 15:04 IST")
	},
	"formatDatePtr": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.In(ist).Format("02 Jan 2006 15:04 IST")
	},
	"statusLabel": func(s lifecycle.Status) string {
		return lifecycle.Label(s)
	},
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).ParseFS(templateFS, "templates/report.html"))

// RenderReportHTML renders the RTI report template with provided data
func RenderReportHTML(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
