package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TFMV/kirby/metrics"
)

// -----------------------------
// Report Generator Interfaces
// -----------------------------

// ReportGenerator defines the methods for generating reports.
type ReportGenerator interface {
	GenerateMigrationReport(run metrics.MigrationReport) ([]byte, error)
	GenerateAlertNotification(run metrics.MigrationReport) ([]byte, error)
	SaveReportToFile(run metrics.MigrationReport, filePath string) error
}

// ForPath picks a generator from the file extension: .html/.htm or JSON otherwise.
func ForPath(path string) ReportGenerator {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return &HTMLReportGenerator{}
	default:
		return &JSONReportGenerator{}
	}
}

// -----------------------------
// JSON Report Generator
// -----------------------------

// JSONReportGenerator generates JSON reports.
type JSONReportGenerator struct{}

// GenerateMigrationReport serializes the MigrationReport to JSON.
func (j *JSONReportGenerator) GenerateMigrationReport(run metrics.MigrationReport) ([]byte, error) {
	return json.MarshalIndent(run, "", "  ")
}

// GenerateAlertNotification generates an alert message in JSON format.
func (j *JSONReportGenerator) GenerateAlertNotification(run metrics.MigrationReport) ([]byte, error) {
	return json.MarshalIndent(alertFor(run), "", "  ")
}

// SaveReportToFile saves the JSON report to a file.
func (j *JSONReportGenerator) SaveReportToFile(run metrics.MigrationReport, filePath string) error {
	data, err := j.GenerateMigrationReport(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// ReportFromFilePath loads a JSON report from a file.
func ReportFromFilePath(path string) (metrics.MigrationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return metrics.MigrationReport{}, err
	}

	var report metrics.MigrationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return metrics.MigrationReport{}, err
	}
	return report, nil
}

func alertFor(run metrics.MigrationReport) map[string]interface{} {
	message := "Migration completed."
	switch {
	case run.DestinationAhead:
		message = "Migration failed after the destination committed; rows exist in both databases."
	case !run.Status:
		message = "Migration failed; no rows were changed."
	}
	return map[string]interface{}{
		"alert":     run.ErrorKind,
		"run_id":    run.Metadata.RunID,
		"table":     run.Metadata.Table,
		"database":  run.Metadata.SourceDBName,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// -----------------------------
// HTML Report Generator
// -----------------------------

// HTMLReportGenerator generates HTML reports.
type HTMLReportGenerator struct{}

// HTML template for the report.
const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Kirby Migration Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f4f4f4; }
        .status-pass { color: green; }
        .status-fail { color: red; }
    </style>
</head>
<body>
    <h1>Migration Report</h1>
    <p><strong>Run:</strong> {{.Metadata.RunID}}</p>
    <p><strong>Source Database:</strong> {{.Metadata.SourceDBName}}</p>
    <p><strong>Destination Database:</strong> {{.Metadata.DestinationDBName}}</p>
    <p><strong>Table:</strong> {{.Metadata.Table}} (key {{.Metadata.KeyColumn}})</p>
    <p><strong>Started:</strong> {{.Metadata.StartTime}}</p>

    <table>
        <tr>
            <th>Mode</th>
            <th>Safe</th>
            <th>Requested</th>
            <th>Moved</th>
            <th>Status</th>
        </tr>
        <tr>
            <td>{{.Metadata.Mode}}</td>
            <td>{{.Metadata.Safe}}</td>
            <td>{{.Requested}}</td>
            <td>{{.Moved}}</td>
            <td class="{{if .Status}}status-pass{{else}}status-fail{{end}}">
                {{if .Status}}PASS{{else}}FAIL{{end}}
            </td>
        </tr>
    </table>

    <h2>Skipped Identifiers</h2>
    <ul>
        {{range .Skipped}}<li>{{.}}</li>{{else}}<li>None</li>{{end}}
    </ul>
    {{if .ArchivePath}}<p><strong>Archive:</strong> {{.ArchivePath}}</p>{{end}}
    {{if not .Status}}
    <h2>Error</h2>
    <p class="status-fail">{{.ErrorKind}}: {{.Message}}</p>
    {{if .DestinationAhead}}<p class="status-fail">Rows exist in both databases.</p>{{end}}
    {{end}}
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

// GenerateMigrationReport renders the report as HTML.
func (h *HTMLReportGenerator) GenerateMigrationReport(run metrics.MigrationReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, run); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateAlertNotification renders a one-paragraph HTML alert.
func (h *HTMLReportGenerator) GenerateAlertNotification(run metrics.MigrationReport) ([]byte, error) {
	alert := alertFor(run)
	return []byte(fmt.Sprintf("<p><strong>%s</strong> %s (table %s)</p>",
		template.HTMLEscapeString(fmt.Sprint(alert["alert"])),
		template.HTMLEscapeString(fmt.Sprint(alert["message"])),
		template.HTMLEscapeString(run.Metadata.Table))), nil
}

// SaveReportToFile saves the HTML report to a file.
func (h *HTMLReportGenerator) SaveReportToFile(run metrics.MigrationReport, filePath string) error {
	data, err := h.GenerateMigrationReport(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// SaveReports writes the report in both JSON and HTML form.
func SaveReports(run metrics.MigrationReport, jsonPath, htmlPath string) error {
	if err := (&JSONReportGenerator{}).SaveReportToFile(run, jsonPath); err != nil {
		return fmt.Errorf("failed to save JSON report: %w", err)
	}
	if err := (&HTMLReportGenerator{}).SaveReportToFile(run, htmlPath); err != nil {
		return fmt.Errorf("failed to save HTML report: %w", err)
	}
	return nil
}

// FileStore saves every run to Path, formatted by its extension.
type FileStore struct {
	Path string
}

// Save implements metrics.MetricsStore.
func (f *FileStore) Save(run metrics.MigrationReport) error {
	return ForPath(f.Path).SaveReportToFile(run, f.Path)
}

// SaveWithContext implements metrics.MetricsStore.
func (f *FileStore) SaveWithContext(ctx context.Context, run metrics.MigrationReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.Save(run)
}
