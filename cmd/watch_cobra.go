package cmd

import "github.com/spf13/cobra"

var watchCmd = &cobra.Command{
	Use:     "watch [source]",
	Aliases: []string{"w"},
	Short:   "Watch a directory and repack on change",
	Long: `watch is shorthand for "tonk pack --watch": it packs [source] once
and then repacks every time a watched file changes, debounced per
--debounce (§6.5).`,
	GroupID: "packaging",
	Args:    cobra.MaximumNArgs(1),
	Example: `  tonk watch
  tonk watch . --debounce 500ms --output ./dist/bundle.tonk`,
	RunE: func(cmd *cobra.Command, args []string) error {
		packWatch = true
		return runPack(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&packOutput, "output", "o", "", "bundle output path (default: pack.output from config)")
	watchCmd.Flags().DurationVar(&packDebounce, "debounce", 0, "watch debounce interval (default: pack.debounce from config)")
	watchCmd.Flags().StringSliceVar(&packIgnore, "ignore", nil, "glob pattern to exclude (repeatable)")
}
