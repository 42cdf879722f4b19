package cli

import (
	"fmt"

	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
	"github.com/tonk-labs/tonk/internal/ui"
)

// Compile-time interface check
var _ usecases.ReportFormatter = (*ReportFormatter)(nil)

// ReportFormatter implements usecases.ReportFormatter, printing
// ValidationResults and Manifests with the styled console output used
// throughout the CLI.
type ReportFormatter struct {
	out *ui.Output
}

// NewReportFormatter creates a new ReportFormatter instance.
func NewReportFormatter() *ReportFormatter {
	return &ReportFormatter{out: ui.NewOutput()}
}

// PrintValidationResult prints a bundle ValidationResult's messages
// grouped by severity, matching the builder's insertion order (§4.1,
// §4.7).
func (f *ReportFormatter) PrintValidationResult(result *entities.ValidationResult) {
	if result == nil {
		return
	}
	if result.Valid {
		f.out.Success("bundle is valid")
	} else {
		f.out.Error("bundle failed validation")
	}

	for _, m := range result.Errors {
		f.printMessage(m)
	}
	for _, m := range result.Warnings {
		f.printMessage(m)
	}
	for _, m := range result.Info {
		f.out.Info(fmt.Sprintf("[%s] %s", m.Code, m.Message))
	}

	f.out.Newline()
	f.out.KeyValue("errors", fmt.Sprintf("%d", len(result.Errors)))
	f.out.KeyValue("warnings", fmt.Sprintf("%d", len(result.Warnings)))
}

func (f *ReportFormatter) printMessage(m entities.ValidationMessage) {
	line := fmt.Sprintf("[%s] %s", m.Code, m.Message)
	if m.FilePath != "" {
		line = fmt.Sprintf("[%s] %s — %s", m.Code, m.FilePath, m.Message)
	}
	switch m.Severity {
	case entities.SeverityError:
		f.out.Error(line)
	case entities.SeverityWarning:
		f.out.Warning(line)
	default:
		f.out.Info(line)
	}
	if m.Suggestion != "" {
		f.out.KeyValue("suggestion", m.Suggestion)
	}
}

// PrintManifest prints a bundle manifest's entrypoints and file table
// (§6.2).
func (f *ReportFormatter) PrintManifest(m *entities.Manifest) {
	if m == nil {
		return
	}
	f.out.Title(fmt.Sprintf("%s (version %d)", manifestName(m), m.Version))
	if m.Description != "" {
		f.out.Subtitle(m.Description)
	}

	if len(m.Entrypoints) > 0 {
		f.out.Newline()
		f.out.Subtitle("entrypoints")
		for name, path := range m.Entrypoints {
			f.out.KeyValue(name, path)
		}
	}

	f.out.Newline()
	rows := make([][]string, 0, len(m.Files))
	for _, file := range m.Files {
		rows = append(rows, []string{file.Path, file.ContentType, fmt.Sprintf("%d", file.Length)})
	}
	f.out.Table([]string{"path", "content-type", "bytes"}, rows)
}

func manifestName(m *entities.Manifest) string {
	if m.Name != "" {
		return m.Name
	}
	return "bundle"
}
