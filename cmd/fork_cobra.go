package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonk-labs/tonk/internal/adapters/cli"
	"github.com/tonk-labs/tonk/internal/adapters/tonkcore"
)

var forkOutput string

var forkCmd = &cobra.Command{
	Use:   "fork <bundle>",
	Short: "Fork a Tonk bundle with a fresh document identity",
	Long: `fork loads a .tonk bundle, mints fresh document ids for its entire
tree via TonkCore.forkToBytes, and writes the result to --output. A
forked bundle shares no CRDT lineage with its source, so the two can
never merge (§4.4, §9 glossary: Fork).`,
	GroupID: "packaging",
	Args:    cobra.ExactArgs(1),
	Example: `  tonk fork app.tonk --output app-fork.tonk`,
	RunE:    runFork,
}

func init() {
	rootCmd.AddCommand(forkCmd)
	forkCmd.Flags().StringVarP(&forkOutput, "output", "o", "", "forked bundle output path (default: <bundle>.fork.tonk)")
}

func runFork(cmd *cobra.Command, args []string) error {
	source := args[0]
	output := forkOutput
	if output == "" {
		output = source + ".fork.tonk"
	}

	reporter := cli.NewProgressReporter()
	reporter.Start(fmt.Sprintf("forking %s", source))

	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	ctx := cmd.Context()
	tc, err := tonkcore.FromBytes(ctx, data, tonkcore.Options{Logger: newLogger()})
	if err != nil {
		return fmt.Errorf("failed to load bundle: %w", err)
	}

	forked, rootID, err := tc.ForkToBytes(ctx)
	if err != nil {
		return fmt.Errorf("failed to fork bundle: %w", err)
	}

	if err := os.WriteFile(output, forked, 0o644); err != nil {
		return fmt.Errorf("failed to write forked bundle: %w", err)
	}

	reporter.Success(fmt.Sprintf("wrote %s (rootId %s)", output, rootID))
	return nil
}
