package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonk-labs/tonk/internal/adapters/bundle"
	"github.com/tonk-labs/tonk/internal/adapters/cli"
	"github.com/tonk-labs/tonk/internal/adapters/filesystem"
	"github.com/tonk-labs/tonk/internal/core/entities"
)

var (
	packOutput      string
	packWatch       bool
	packDebounce    time.Duration
	packIgnore      []string
	packEntrypoints []string
	packYes         bool
)

var packCmd = &cobra.Command{
	Use:     "pack [source]",
	Aliases: []string{"p"},
	Short:   "Pack a directory into a Tonk bundle",
	Long: `Pack walks a source directory, builds a manifest from its files, and
writes a .tonk bundle archive (§4.1, §6.1).

Paths matching any --ignore glob are skipped. Use --entrypoint
name=path (repeatable) to register named entrypoints in the manifest.`,
	GroupID: "packaging",
	Args:    cobra.MaximumNArgs(1),
	Example: `  tonk pack ./dist
  tonk pack . --output app.tonk --entrypoint main=/index.html
  tonk pack . --watch --debounce 300ms`,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "bundle output path (default: pack.output from config)")
	packCmd.Flags().BoolVarP(&packWatch, "watch", "w", false, "repack on every source change")
	packCmd.Flags().DurationVar(&packDebounce, "debounce", 0, "watch debounce interval (default: pack.debounce from config)")
	packCmd.Flags().StringSliceVar(&packIgnore, "ignore", nil, "glob pattern to exclude (repeatable)")
	packCmd.Flags().StringSliceVar(&packEntrypoints, "entrypoint", nil, "name=path entrypoint to register (repeatable)")
	packCmd.Flags().BoolVarP(&packYes, "yes", "y", false, "overwrite an existing output file without prompting")

	_ = cfgLoader.Viper().BindPFlag("pack.output", packCmd.Flags().Lookup("output"))
	_ = cfgLoader.Viper().BindPFlag("pack.watch", packCmd.Flags().Lookup("watch"))
	_ = cfgLoader.Viper().BindPFlag("pack.debounce", packCmd.Flags().Lookup("debounce"))
	_ = cfgLoader.Viper().BindPFlag("pack.ignore", packCmd.Flags().Lookup("ignore"))
}

func runPack(cmd *cobra.Command, args []string) error {
	source := ProjectRoot
	if len(args) == 1 {
		source = args[0]
	}
	source = filepath.Clean(source)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	output := packOutput
	if output == "" {
		output = cfg.Pack.Output
	}

	ignore := packIgnore
	if len(ignore) == 0 {
		ignore = cfg.Pack.Ignore
	}

	entrypoints, err := parseEntrypoints(packEntrypoints)
	if err != nil {
		return err
	}

	reporter := cli.NewProgressReporter()

	if !packYes {
		ok, err := confirmOverwrite(output)
		if err != nil {
			return err
		}
		if !ok {
			reporter.Warning(fmt.Sprintf("skipped packing, %s already exists", output))
			return nil
		}
	}

	if err := packOnce(source, output, ignore, entrypoints, reporter); err != nil {
		return err
	}

	if !packWatch {
		return nil
	}

	debounce := packDebounce
	if debounce == 0 {
		debounce = cfg.Pack.Debounce
	}

	return watchAndRepack(cmd, source, output, ignore, entrypoints, debounce, reporter)
}

// confirmOverwrite prompts before clobbering an existing bundle at
// output, skipped entirely with --yes. A missing output path needs no
// confirmation.
func confirmOverwrite(output string) (bool, error) {
	if _, err := os.Stat(output); err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to stat output path: %w", err)
	}
	prompts := cli.NewPrompts(bufio.NewReader(os.Stdin))
	return prompts.PromptYesNo(fmt.Sprintf("%s already exists, overwrite it?", output), false), nil
}

func parseEntrypoints(raw []string) (map[string]string, error) {
	result := make(map[string]string, len(raw))
	for _, e := range raw {
		name, path, ok := strings.Cut(e, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid --entrypoint %q, expected name=path", e)
		}
		result[name] = path
	}
	return result, nil
}

func packOnce(source, output string, ignore []string, entrypoints map[string]string, reporter *cli.ProgressReporter) error {
	reporter.Start(fmt.Sprintf("packing %s", source))

	files, err := collectFiles(source, ignore)
	if err != nil {
		return fmt.Errorf("failed to walk source directory: %w", err)
	}
	reporter.Step(fmt.Sprintf("collected %d files", len(files)))

	b, err := bundle.FromFiles(files, bundle.CreateOptions{Name: filepath.Base(source)})
	if err != nil {
		return fmt.Errorf("failed to build bundle: %w", err)
	}

	for name, path := range entrypoints {
		if err := b.SetEntrypoint(name, path); err != nil {
			return fmt.Errorf("failed to set entrypoint %s=%s: %w", name, path, err)
		}
	}

	result := b.Validate(bundle.ValidateOptions{})
	if !result.Valid {
		for _, m := range result.Errors {
			reporter.Warning(m.Message)
		}
		return fmt.Errorf("bundle validation failed with %d error(s)", len(result.Errors))
	}

	data, err := b.ToBytes(bundle.ToBytesOptions{})
	if err != nil {
		return fmt.Errorf("failed to serialize bundle: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	reporter.Success(fmt.Sprintf("wrote %s (%d bytes, %d files)", output, len(data), b.GetFileCount()))
	return nil
}

func collectFiles(source string, ignore []string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	return files, filepath.WalkDir(source, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		virtual := "/" + filepath.ToSlash(rel)

		if d.IsDir() {
			if entities.MatchAny(virtual+"/", ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if entities.MatchAny(virtual, ignore) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[virtual] = data
		return nil
	})
}

func watchAndRepack(cmd *cobra.Command, source, output string, ignore []string, entrypoints map[string]string, debounce time.Duration, reporter *cli.ProgressReporter) error {
	watcher, err := filesystem.NewFileWatcher(debounce)
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Stop()

	ctx := cmd.Context()
	events, err := watcher.Watch(ctx, source, ignore)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", source, err)
	}

	reporter.Step(fmt.Sprintf("watching %s for changes (debounce %s)", source, debounce))

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			reporter.Step(fmt.Sprintf("%s changed, repacking", evt.Path))
			if err := packOnce(source, output, ignore, entrypoints, reporter); err != nil {
				reporter.Error("repack failed", err)
			}
		}
	}
}
