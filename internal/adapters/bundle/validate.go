package bundle

import (
	"fmt"

	"github.com/tonk-labs/tonk/internal/core/entities"
)

// CustomRule inspects a bundle and appends any findings to the
// builder. A rule that panics is caught and surfaced as a
// custom-rule-error without aborting the remaining rules, unless
// ValidateOptions.FailFast is set.
type CustomRule func(b *Bundle, add func(entities.ValidationMessage))

// ValidateOptions configures Bundle.Validate (§4.1 validation
// pipeline).
type ValidateOptions struct {
	MaxBundleSize   int64
	MaxFileCount    int
	StrictMimeTypes bool
	CustomRules     []CustomRule
	FailFast        bool
	// ArchiveSize and ArchiveEntries describe the physical ZIP this
	// bundle was parsed from, enabling the archive-consistency and
	// size-bloat checks. Zero values skip those checks (e.g. for a
	// bundle built with createEmpty/fromFiles that has not yet been
	// serialized).
	ArchiveSize    int64
	ArchiveEntries []string
}

// Validate runs the full validation pipeline of §4.1 and returns the
// collected result.
func (b *Bundle) Validate(opts ValidateOptions) *entities.ValidationResult {
	vb := entities.NewValidationBuilder()

	// 1-4: manifest schema, path uniqueness, entrypoint existence,
	// entrypoint cycles.
	b.manifest.ValidateSchema(vb)

	// 5: archive <-> manifest consistency.
	if opts.ArchiveEntries != nil {
		archiveSet := make(map[string]bool, len(opts.ArchiveEntries))
		for _, e := range opts.ArchiveEntries {
			archiveSet[e] = true
		}
		manifestSet := make(map[string]bool, len(b.manifest.Files))
		for _, f := range b.manifest.Files {
			manifestSet[f.Path] = true
			if !archiveSet[f.Path] {
				vb.Errorf("ARCHIVE_MISMATCH", fmt.Sprintf("manifest references %s but the archive has no corresponding entry", f.Path), map[string]any{"path": f.Path})
			}
		}
		for e := range archiveSet {
			if !manifestSet[e] {
				vb.Warnf("ARCHIVE_MISMATCH", fmt.Sprintf("archive entry %s is not described in the manifest", e), map[string]any{"path": e})
			}
		}
	}

	// 6: size limit + bloat warning.
	if opts.MaxBundleSize > 0 && opts.ArchiveSize > opts.MaxBundleSize {
		vb.Errorf("SIZE_EXCEEDED", fmt.Sprintf("archive size %d exceeds limit %d", opts.ArchiveSize, opts.MaxBundleSize), nil)
	}
	if opts.ArchiveSize > 0 {
		var totalPayload int64
		for _, f := range b.manifest.Files {
			totalPayload += f.Length
		}
		if totalPayload > 0 && opts.ArchiveSize > 2*totalPayload {
			vb.Warnf("SIZE_BLOAT", fmt.Sprintf("archive size %d is more than double the declared payload total %d", opts.ArchiveSize, totalPayload), nil)
		}
	}

	// 7: file count limit.
	if opts.MaxFileCount > 0 && len(b.manifest.Files) > opts.MaxFileCount {
		vb.Errorf("FILE_COUNT_EXCEEDED", fmt.Sprintf("file count %d exceeds limit %d", len(b.manifest.Files), opts.MaxFileCount), nil)
	}

	// 8: strict MIME types.
	if opts.StrictMimeTypes {
		for _, f := range b.manifest.Files {
			if !entities.IsValidMimeType(f.ContentType) {
				vb.Errorf("STRICT_MIME", fmt.Sprintf("file %s has non-conforming contentType %q", f.Path, f.ContentType), map[string]any{"path": f.Path})
			}
		}
	}

	// 9: custom rules. A panicking rule is caught and surfaced as a
	// CUSTOM_RULE_ERROR; FailFast controls whether that panic aborts
	// the remaining rules or the pipeline just moves on to the next
	// one.
	for i, rule := range opts.CustomRules {
		panicked := func() (panicked bool) {
			defer func() {
				if r := recover(); r != nil {
					vb.Errorf("CUSTOM_RULE_ERROR", fmt.Sprintf("custom rule %d panicked: %v", i, r), nil)
					panicked = true
				}
			}()
			rule(b, vb.Add)
			return false
		}()
		if panicked && opts.FailFast {
			break
		}
	}

	return vb.Build()
}
