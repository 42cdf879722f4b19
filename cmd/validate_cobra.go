package cmd

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonk-labs/tonk/internal/adapters/bundle"
	"github.com/tonk-labs/tonk/internal/adapters/cli"
	"github.com/tonk-labs/tonk/internal/adapters/encoding"
)

var (
	validateStrict         bool
	validateMaxBundleSize  int64
	validateMaxFileCount   int
	validateStrictMimeType bool
	validateFormat         string
)

var validateCmd = &cobra.Command{
	Use:     "validate <bundle>",
	Aliases: []string{"val"},
	Short:   "Validate a Tonk bundle",
	Long: `Parse a .tonk archive and check it against the manifest schema,
archive-consistency rules, and optional size/count limits (§4.1, §6.2).

Flags:
  --strict             Treat warnings as errors
  --max-size           Maximum total bundle size in bytes (0 = no limit)
  --max-files          Maximum file count (0 = no limit)
  --strict-mime-types  Reject manifest contentTypes that are not well-formed type/subtype strings
  --format             Output format: "text" (default), "json", or "toon"`,
	GroupID: "packaging",
	Args:    cobra.ExactArgs(1),
	Example: `  tonk validate app.tonk
  tonk validate app.tonk --strict
  tonk validate app.tonk --max-size 10485760 --max-files 500`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "treat warnings as errors")
	validateCmd.Flags().Int64Var(&validateMaxBundleSize, "max-size", 0, "maximum total bundle size in bytes")
	validateCmd.Flags().IntVar(&validateMaxFileCount, "max-files", 0, "maximum file count")
	validateCmd.Flags().BoolVar(&validateStrictMimeType, "strict-mime-types", false, "reject manifest contentTypes that are not well-formed type/subtype strings")
	validateCmd.Flags().StringVar(&validateFormat, "format", "text", `output format: "text", "json", or "toon"`)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	b, err := bundle.Parse(data, validateMaxBundleSize)
	if err != nil {
		return fmt.Errorf("failed to parse bundle: %w", err)
	}

	// The archive's own payload entries, for the manifest consistency check.
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to read archive entries: %w", err)
	}
	entries := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if f.Name != "manifest.json" && !strings.HasSuffix(f.Name, "/") {
			entries = append(entries, "/"+f.Name)
		}
	}

	result := b.Validate(bundle.ValidateOptions{
		MaxBundleSize:   validateMaxBundleSize,
		MaxFileCount:    validateMaxFileCount,
		StrictMimeTypes: validateStrictMimeType,
		ArchiveSize:     int64(len(data)),
		ArchiveEntries:  entries,
	})

	switch validateFormat {
	case "json", "toon":
		enc := encoding.NewEncoder()
		var encoded []byte
		var encodeErr error
		if validateFormat == "json" {
			encoded, encodeErr = enc.EncodeJSON(result)
		} else {
			encoded, encodeErr = enc.EncodeTOON(result)
		}
		if encodeErr != nil {
			return fmt.Errorf("failed to encode result as %s: %w", validateFormat, encodeErr)
		}
		fmt.Println(string(encoded))
	default:
		cli.NewReportFormatter().PrintValidationResult(result)
	}

	if !result.Valid {
		return fmt.Errorf("bundle failed validation with %d error(s)", len(result.Errors))
	}
	if validateStrict && len(result.Warnings) > 0 {
		return fmt.Errorf("bundle has %d warning(s) (failing due to --strict)", len(result.Warnings))
	}
	return nil
}
