package cli

import (
	"fmt"
	"os"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/dicomvol"
	"github.com/Haoran-Jia/LearnSimpleITK/pkg/nifti"
	"github.com/Haoran-Jia/LearnSimpleITK/pkg/volume"
)

// loadReference loads the reference volume that supplies shape and spatial
// metadata. A directory is read as a DICOM series, a file as a NIfTI
// volume.
func loadReference(path string) (*volume.Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access reference %s: %v", path, err)
	}
	if info.IsDir() {
		return dicomvol.ReadSeries(path)
	}
	return nifti.Read(path)
}
