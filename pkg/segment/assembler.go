package segment

import (
	"fmt"
	"io"
	"strings"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/nifti"
	"github.com/Haoran-Jia/LearnSimpleITK/pkg/volume"
)

// AssembleParams configures an assembly run.
type AssembleParams struct {
	// OrganDir is the directory holding one binary mask file per organ,
	// named by organ (e.g. Liver.nii).
	OrganDir string

	// OutputPath is where the labeled volume is written.
	OutputPath string

	// Tables provides the paint order. Nil means the built-in defaults.
	Tables *Tables

	// Progress receives the sequential iteration indicator. Nil discards
	// it.
	Progress io.Writer
}

// Assembler merges a directory of per-organ binary masks into a single
// labeled volume. Masks are painted in the order declared by the paint
// table; wherever two masks overlap, the organ declared later in the table
// wins, so the table doubles as the overlap-resolution rule.
type Assembler struct {
	params *AssembleParams
	ref    *volume.Volume
}

// NewAssembler creates an assembler using ref for the output shape and
// spatial metadata.
func NewAssembler(ref *volume.Volume, params *AssembleParams) *Assembler {
	if params.Tables == nil {
		params.Tables = DefaultTables()
	}
	return &Assembler{params: params, ref: ref}
}

// Execute runs the assembly and writes the labeled volume to disk.
//
// The run is fail-fast: the output path and the completeness of the paint
// table are checked before any voxel is painted, so a misconfigured input
// set can never produce a partially labeled output file.
func (a *Assembler) Execute() (*volume.Volume, error) {
	if a.params.OutputPath == "" {
		return nil, &PathError{What: "save path"}
	}

	files, stems, err := listMaskFiles(a.params.OrganDir)
	if err != nil {
		return nil, err
	}

	// Every mask file must have a paint table entry. A missing entry is a
	// configuration error for the whole run, not a per-file skip.
	var missing []string
	for _, s := range stems {
		if _, ok := a.params.Tables.IDByName(s); !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("organs missing from the paint table: %s", strings.Join(missing, ", ")),
		}
	}

	label := volume.NewLike(a.ref)

	// Count the paintable entries up front for the progress indicator.
	total := 0
	for _, entry := range a.params.Tables.PaintOrder {
		if _, ok := files[entry.Name]; ok {
			total++
		}
	}

	painted := 0
	for _, entry := range a.params.Tables.PaintOrder {
		path, ok := files[entry.Name]
		if !ok {
			// Aliases sharing this ID may still match their own file on a
			// later iteration.
			continue
		}
		painted++
		if a.params.Progress != nil {
			fmt.Fprintf(a.params.Progress, "[%d/%d] %s\n", painted, total, entry.Name)
		}

		organ, err := nifti.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load organ mask %s: %v", entry.Name, err)
		}
		if !organ.SameShape(a.ref) {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("mask %s has shape %dx%dx%d, reference is %dx%dx%d",
					entry.Name, organ.Nx, organ.Ny, organ.Nz, a.ref.Nx, a.ref.Ny, a.ref.Nz),
			}
		}

		// Wherever the new mask is foreground the voxel is overwritten
		// with this organ's ID; everywhere else the existing label
		// survives (occupied XOR (occupied AND new) of the previously
		// claimed set).
		id := float64(entry.ID)
		for i, v := range organ.Data {
			if v != 0 {
				label.Data[i] = id
			}
		}
	}

	label.CopyInformation(a.ref)
	if err := nifti.WriteUint8(a.params.OutputPath, label); err != nil {
		return nil, fmt.Errorf("failed to write labeled volume: %v", err)
	}
	return label, nil
}
