package cli

import (
	"errors"
	"testing"

	"github.com/tonk-labs/tonk/internal/core/entities"
)

func TestProgressReporterMethodsDoNotPanic(t *testing.T) {
	r := NewProgressReporter()
	r.Start("packing")
	r.Step("writing manifest")
	r.Success("done")
	r.Warning("large bundle")
	r.Error("failed", errors.New("boom"))
	r.Error("failed without cause", nil)
}

func TestReportFormatterPrintValidationResult(t *testing.T) {
	f := NewReportFormatter()
	result := &entities.ValidationResult{
		Valid: false,
		Errors: []entities.ValidationMessage{
			{Severity: entities.SeverityError, Code: "SIZE_EXCEEDED", Message: "bundle too large", FilePath: "/big.bin"},
		},
		Warnings: []entities.ValidationMessage{
			{Severity: entities.SeverityWarning, Code: "SIZE_BLOAT", Message: "archive is bloated"},
		},
	}
	f.PrintValidationResult(result)
}

func TestReportFormatterPrintManifest(t *testing.T) {
	f := NewReportFormatter()
	m := &entities.Manifest{
		Version:     1,
		Name:        "demo",
		Entrypoints: map[string]string{"main": "/index.html"},
		Files: []entities.FileDescriptor{
			{Path: "/index.html", ContentType: "text/html", Length: 42},
		},
	}
	f.PrintManifest(m)
}
