package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TFMV/kirby/metrics"
)

func TestJSONReportGenerator_GenerateMigrationReport(t *testing.T) {
	report := createTestReport()
	generator := &JSONReportGenerator{}

	data, err := generator.GenerateMigrationReport(report)
	if err != nil {
		t.Fatalf("Failed to generate report: %v", err)
	}

	var decoded metrics.MigrationReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Generated invalid JSON: %v", err)
	}

	if decoded.Metadata.SourceDBName != "master" {
		t.Errorf("Expected source DB name 'master', got %s", decoded.Metadata.SourceDBName)
	}
	if decoded.Moved != 2 {
		t.Errorf("Expected 2 moved rows, got %d", decoded.Moved)
	}
}

func TestJSONReportGenerator_GenerateAlertNotification(t *testing.T) {
	report := createTestReport()
	report.Status = false
	report.ErrorKind = "MoveError"
	report.DestinationAhead = true

	data, err := (&JSONReportGenerator{}).GenerateAlertNotification(report)
	if err != nil {
		t.Fatalf("Failed to generate alert: %v", err)
	}
	if !strings.Contains(string(data), "rows exist in both databases") {
		t.Errorf("Alert should mention duplicated rows, got %s", data)
	}
}

func TestHTMLReportGenerator_GenerateMigrationReport(t *testing.T) {
	report := createTestReport()
	generator := &HTMLReportGenerator{}

	data, err := generator.GenerateMigrationReport(report)
	if err != nil {
		t.Fatalf("Failed to generate HTML report: %v", err)
	}

	html := string(data)
	expectedElements := []string{
		"<!DOCTYPE html>",
		"<title>Kirby Migration Report</title>",
		"master",
		"orders",
		"PASS",
		"<li>B</li>",
	}

	for _, expected := range expectedElements {
		if !contains(html, expected) {
			t.Errorf("HTML report missing expected content: %s", expected)
		}
	}
}

func TestSaveReports(t *testing.T) {
	report := createTestReport()
	tmpDir := t.TempDir()
	jsonPath := filepath.Join(tmpDir, "report.json")
	htmlPath := filepath.Join(tmpDir, "report.html")

	err := SaveReports(report, jsonPath, htmlPath)
	if err != nil {
		t.Fatalf("Failed to save reports: %v", err)
	}

	if _, err := os.Stat(jsonPath); os.IsNotExist(err) {
		t.Error("JSON report file was not created")
	}
	if _, err := os.Stat(htmlPath); os.IsNotExist(err) {
		t.Error("HTML report file was not created")
	}
}

func TestReportFromFilePath(t *testing.T) {
	report := createTestReport()
	filePath := filepath.Join(t.TempDir(), "test_report.json")

	if err := (&JSONReportGenerator{}).SaveReportToFile(report, filePath); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := ReportFromFilePath(filePath)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}

	if loaded.Metadata.RunID != report.Metadata.RunID {
		t.Errorf("Loaded report data mismatch: expected %s, got %s",
			report.Metadata.RunID, loaded.Metadata.RunID)
	}
}

func TestForPath(t *testing.T) {
	if _, ok := ForPath("out/report.HTML").(*HTMLReportGenerator); !ok {
		t.Error("Expected HTML generator for .HTML extension")
	}
	if _, ok := ForPath("out/report.json").(*JSONReportGenerator); !ok {
		t.Error("Expected JSON generator for .json extension")
	}
}

// Helper function to create test report data
func createTestReport() metrics.MigrationReport {
	now := time.Now()
	return metrics.MigrationReport{
		Metadata: metrics.MigrationMetadata{
			RunID:             "9f1c",
			SourceDBName:      "master",
			DestinationDBName: "slave",
			Table:             "orders",
			KeyColumn:         "id",
			Mode:              metrics.Clone,
			StartTime:         now,
			EndTime:           now.Add(time.Second),
		},
		Requested:  3,
		Moved:      2,
		Skipped:    []string{"B"},
		Status:     true,
		FinalState: "Closed",
	}
}

// Helper function to check if string contains substring
func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	run := createTestReport()

	jsonStore := &FileStore{Path: filepath.Join(dir, "run.json")}
	if err := jsonStore.Save(run); err != nil {
		t.Fatalf("Failed to save JSON report: %v", err)
	}
	loaded, err := ReportFromFilePath(jsonStore.Path)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}
	if loaded.Metadata.RunID != run.Metadata.RunID {
		t.Errorf("Expected run id %s, got %s", run.Metadata.RunID, loaded.Metadata.RunID)
	}

	htmlStore := &FileStore{Path: filepath.Join(dir, "run.html")}
	if err := htmlStore.SaveWithContext(context.Background(), run); err != nil {
		t.Fatalf("Failed to save HTML report: %v", err)
	}
	data, err := os.ReadFile(htmlStore.Path)
	if err != nil {
		t.Fatalf("Failed to read HTML report: %v", err)
	}
	if !strings.Contains(string(data), "Kirby Migration Report") {
		t.Error("HTML report is missing its title")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := htmlStore.SaveWithContext(ctx, run); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
