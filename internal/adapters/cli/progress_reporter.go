package cli

import (
	"fmt"

	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// Compile-time interface check
var _ usecases.ProgressReporter = (*ProgressReporter)(nil)

// ProgressReporter implements usecases.ProgressReporter for console
// output during pack/watch operations.
type ProgressReporter struct{}

// NewProgressReporter creates a new ProgressReporter.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{}
}

// Start announces the beginning of a long-running operation.
func (r *ProgressReporter) Start(msg string) {
	fmt.Printf("  %s\n", msg)
}

// Step reports one increment of progress.
func (r *ProgressReporter) Step(msg string) {
	fmt.Printf("  … %s\n", msg)
}

// Success reports a successful completion.
func (r *ProgressReporter) Success(msg string) {
	fmt.Printf("  ✓ %s\n", msg)
}

// Warning reports a non-fatal concern.
func (r *ProgressReporter) Warning(msg string) {
	fmt.Printf("  ⚠ %s\n", msg)
}

// Error reports a fatal failure.
func (r *ProgressReporter) Error(msg string, err error) {
	if err != nil {
		fmt.Printf("  ✗ %s: %v\n", msg, err)
		return
	}
	fmt.Printf("  ✗ %s\n", msg)
}
