package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestOutput_Success(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput().WithWriter(&buf)

	out.Success("Operation completed")

	output := buf.String()
	if !strings.Contains(output, "✓") {
		t.Error("Expected success checkmark")
	}
	if !strings.Contains(output, "Operation completed") {
		t.Error("Expected message in output")
	}
}

func TestOutput_Error(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput().WithErrWriter(&buf)

	out.Error("Something went wrong")

	output := buf.String()
	if !strings.Contains(output, "✗") {
		t.Error("Expected error X mark")
	}
	if !strings.Contains(output, "Something went wrong") {
		t.Error("Expected message in output")
	}
}

func TestOutput_Warning(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput().WithErrWriter(&buf)

	out.Warning("This is a warning")

	output := buf.String()
	if !strings.Contains(output, "⚠") {
		t.Error("Expected warning symbol")
	}
}

func TestOutput_Info(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput().WithWriter(&buf)

	out.Info("Just so you know")

	output := buf.String()
	if !strings.Contains(output, "Just so you know") {
		t.Error("Expected message in output")
	}
}

func TestOutput_Title_Subtitle(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput().WithWriter(&buf)

	out.Title("Bundle Report")
	out.Subtitle("generated from manifest")

	output := buf.String()
	if !strings.Contains(output, "Bundle Report") {
		t.Error("Expected title in output")
	}
	if !strings.Contains(output, "generated from manifest") {
		t.Error("Expected subtitle in output")
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput().WithWriter(&buf)

	headers := []string{"Name", "Status"}
	rows := [][]string{
		{"System A", "Active"},
		{"System B", "Inactive"},
	}

	out.Table(headers, rows)

	output := buf.String()
	if !strings.Contains(output, "Name") {
		t.Error("Expected header Name")
	}
	if !strings.Contains(output, "Status") {
		t.Error("Expected header Status")
	}
	if !strings.Contains(output, "System A") {
		t.Error("Expected System A in output")
	}
	if !strings.Contains(output, "Active") {
		t.Error("Expected Active in output")
	}
}

func TestOutput_KeyValue(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput().WithWriter(&buf)

	out.KeyValue("Version", "1.0.0")

	output := buf.String()
	if !strings.Contains(output, "Version") {
		t.Error("Expected key in output")
	}
	if !strings.Contains(output, "1.0.0") {
		t.Error("Expected value in output")
	}
}

func TestOutput_Newline(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput().WithWriter(&buf)

	out.Success("first")
	out.Newline()
	out.Success("second")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 || lines[1] != "" {
		t.Errorf("expected a blank line between messages, got %q", lines)
	}
}
