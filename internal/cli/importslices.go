package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/segment"
)

// newImportCommand creates the command that builds a mask volume from a
// directory of 2D slice images.
func newImportCommand() *cobra.Command {
	var (
		refPath   string
		sliceDir  string
		outPath   string
		threshold uint8
		fileType  string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a directory of 2D slice images as a binary mask volume",
		Long: `Import assembles single-channel slice images into one binary mask volume
shaped like the reference. The target plane of each file is the four-digit
numeric suffix of its name. Every file is content-sniffed against the
expected image type before any slice is processed; a single wrong file
aborts the whole import.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := loadReference(refPath)
			if err != nil {
				return err
			}

			fmt.Println("Importing slice images...")
			importer := segment.NewImporter(ref, &segment.ImportParams{
				SliceDir:     sliceDir,
				OutputPath:   outPath,
				Threshold:    threshold,
				ExpectedType: fileType,
				Progress:     os.Stdout,
			})
			if _, err := importer.Execute(); err != nil {
				return err
			}

			fmt.Printf("Mask volume saved to: %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&refPath, "ref", "", "reference volume (NIfTI file or DICOM series directory)")
	cmd.Flags().StringVar(&sliceDir, "slices", "", "directory of 2D slice images")
	cmd.Flags().StringVar(&outPath, "out", "", "output path for the mask volume")
	cmd.Flags().Uint8Var(&threshold, "threshold", 128, "binarization threshold (gray values above become foreground)")
	cmd.Flags().StringVar(&fileType, "type", "jpg", "expected slice image type (content sniffed)")
	cmd.MarkFlagRequired("ref")
	cmd.MarkFlagRequired("slices")
	cmd.MarkFlagRequired("out")

	return cmd
}
