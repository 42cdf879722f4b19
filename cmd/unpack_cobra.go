package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonk-labs/tonk/internal/adapters/bundle"
	"github.com/tonk-labs/tonk/internal/adapters/cli"
)

var unpackOutputDir string

var unpackCmd = &cobra.Command{
	Use:     "unpack <bundle>",
	Aliases: []string{"u"},
	Short:   "Extract a Tonk bundle's files to a directory",
	Long: `unpack parses a .tonk archive and writes every payload file to disk
under --output, preserving the manifest's virtual paths as relative
filesystem paths (the inverse of "tonk pack").`,
	GroupID: "packaging",
	Args:    cobra.ExactArgs(1),
	Example: `  tonk unpack app.tonk
  tonk unpack app.tonk --output ./extracted`,
	RunE: runUnpack,
}

func init() {
	rootCmd.AddCommand(unpackCmd)
	unpackCmd.Flags().StringVarP(&unpackOutputDir, "output", "o", "./unpacked", "directory to extract files into")
}

func runUnpack(cmd *cobra.Command, args []string) error {
	reporter := cli.NewProgressReporter()
	reporter.Start(fmt.Sprintf("unpacking %s", args[0]))

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	b, err := bundle.Parse(data, 0)
	if err != nil {
		return fmt.Errorf("failed to parse bundle: %w", err)
	}

	for _, path := range b.ListFiles() {
		content, ok := b.GetFileData(path)
		if !ok {
			continue
		}
		dest := filepath.Join(unpackOutputDir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
	}

	reporter.Success(fmt.Sprintf("extracted %d files to %s", b.GetFileCount(), unpackOutputDir))
	return nil
}
