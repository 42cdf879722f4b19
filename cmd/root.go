// Package cmd implements the tonk CLI commands using Cobra. The CLI is
// a thin wrapper delegating to Bundle.Parse, tonkcore.FromBytes, and
// tonkcore.ToBytes (§6.5) — it owns no bundle or VFS semantics of its
// own, only argument parsing, progress reporting, and process
// lifecycle (signals, file watching).
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonk-labs/tonk/internal/adapters/config"
	"github.com/tonk-labs/tonk/internal/adapters/logging"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// cfgLoader is shared by every subcommand's init() to bind its flags
// into the same viper instance tonk.toml/TONK_* env vars resolve
// against, so `--output` overrides tonk.toml which overrides the
// global XDG config which overrides compiled-in defaults.
var cfgLoader = config.NewLoader(config.NewXDGPathResolver())

// Build-time version information, set via SetVersionInfo from main.go.
var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
	appBuiltBy = "unknown"
)

// Persistent flag values accessible to all subcommands.
var (
	cfgFile     string
	ProjectRoot string
	Verbose     bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tonk",
	Short: "Pack, validate, and serve portable Tonk application bundles",
	Long: `tonk packages a web application's code together with a live,
synchronizable document store into a single portable bundle file.

A bundle can be packed from a directory, validated against the manifest
schema and archive-consistency rules, and served locally through the
same VFS-over-HTTP bridge a browser host uses.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd.Root())
	},
	SilenceUsage: true,
}

func init() {
	// Persistent flags available to all subcommands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (env: TONK_CONFIG_HOME)")
	rootCmd.PersistentFlags().StringVarP(&ProjectRoot, "project", "p", ".", "project root directory")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "enable verbose output")

	// Command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "packaging", Title: "Packaging"},
		&cobra.Group{ID: "serving", Title: "Serving"},
	)
}

// Execute runs the root command. This is the main entry point called from main.go.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets build-time version information from ldflags.
// Call this from main.go before Execute().
func SetVersionInfo(version, commit, date, builtBy string) {
	appVersion = version
	appCommit = commit
	appDate = date
	appBuiltBy = builtBy

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(
		fmt.Sprintf("tonk %s (commit: %s, built: %s by %s)\n", version, commit, date, builtBy),
	)
}

// newLogger builds the structured logger subcommands use, honoring
// --verbose (§7 ambient logging).
func newLogger() usecases.Logger {
	level := logging.LevelInfo
	if Verbose {
		level = logging.LevelDebug
	}
	return logging.New(level)
}

// initConfig resolves the config file cfgLoader reads from. With
// --config set, it points the loader's viper instance directly at
// that file instead of the project/XDG search path.
func initConfig(root *cobra.Command) error {
	if cfgFile != "" {
		cfgLoader.Viper().SetConfigFile(cfgFile)
	}
	return nil
}

// loadConfig resolves the layered TonkConfig (CLI flags bound via
// cfgLoader.Viper() > TONK_* env vars > project tonk.toml > global
// XDG tonk.toml > defaults). Subcommands call this after their own
// flags are parsed so bound flags take precedence.
func loadConfig() (*usecases.TonkConfig, error) {
	return cfgLoader.Load()
}
