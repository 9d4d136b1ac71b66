// Package cli implements the cobra-based commands of segconvert.
//
// Each subcommand (assemble, split, import, overlap) lives in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands.
package cli

import (
	"github.com/spf13/cobra"
)

// tablesPath is the optional organ-tables YAML file shared by the
// subcommands that consult the mapping tables. Empty means the built-in
// defaults.
var tablesPath string

// NewRootCommand creates and configures the root cobra command. The root
// command itself performs no action; functionality lives in the
// subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "segconvert",
		Short: "Convert and reassemble medical image segmentation masks",
		Long: `segconvert merges per-organ binary mask volumes into one labeled volume,
splits a labeled volume back into per-organ masks, imports 2D slice image
exports as mask volumes, and reports mask overlaps for manual curation.

Overlaps between organ masks are resolved deterministically: masks are
painted in the order declared by the organ table, and organs declared later
overwrite organs declared earlier wherever they overlap.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&tablesPath, "tables", "",
		"organ tables YAML file (default: built-in tables)")

	rootCmd.AddCommand(newAssembleCommand())
	rootCmd.AddCommand(newSplitCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newOverlapCommand())

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
