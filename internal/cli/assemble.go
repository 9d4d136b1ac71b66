package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/segment"
)

// newAssembleCommand creates the command that merges per-organ masks into
// one labeled volume.
func newAssembleCommand() *cobra.Command {
	var (
		refPath  string
		organDir string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Merge per-organ binary masks into one labeled volume",
		Long: `Assemble reads one binary mask file per organ from a directory (filename
stem = organ name) and paints them into a single labeled volume in the
order declared by the organ table. Later table entries overwrite earlier
ones wherever masks overlap. Every file in the directory must have a table
entry; a missing entry aborts the run before anything is painted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := segment.LoadTables(tablesPath)
			if err != nil {
				return err
			}

			ref, err := loadReference(refPath)
			if err != nil {
				return err
			}

			fmt.Println("Assembling labeled volume...")
			assembler := segment.NewAssembler(ref, &segment.AssembleParams{
				OrganDir:   organDir,
				OutputPath: outPath,
				Tables:     tables,
				Progress:   os.Stdout,
			})
			if _, err := assembler.Execute(); err != nil {
				return err
			}

			fmt.Printf("Labeled volume saved to: %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&refPath, "ref", "", "reference volume (NIfTI file or DICOM series directory)")
	cmd.Flags().StringVar(&organDir, "organs", "", "directory of per-organ mask files")
	cmd.Flags().StringVar(&outPath, "out", "", "output path for the labeled volume")
	cmd.MarkFlagRequired("ref")
	cmd.MarkFlagRequired("organs")
	cmd.MarkFlagRequired("out")

	return cmd
}
