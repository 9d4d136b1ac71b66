package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/segment"
)

// newOverlapCommand creates the advisory overlap report command.
func newOverlapCommand() *cobra.Command {
	var (
		organDir string
		exclude  []string
	)

	cmd := &cobra.Command{
		Use:   "overlap",
		Short: "Report overlapping organ mask pairs for manual review",
		Long: `Overlap compares every pair of organ masks in a directory and prints the
pairs whose intersection is at least 1% of either organ's volume. It is
purely advisory and writes no files; use it to decide the paint order
before assembling.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := segment.AnalyzeOverlap(&segment.AnalyzeParams{
				OrganDir: organDir,
				Exclude:  exclude,
				Out:      os.Stdout,
			})
			if err != nil {
				return err
			}

			if len(report) == 0 {
				fmt.Println("No significant overlaps found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&organDir, "organs", "", "directory of per-organ mask files")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "organ names to leave out of the comparison")
	cmd.MarkFlagRequired("organs")

	return cmd
}
