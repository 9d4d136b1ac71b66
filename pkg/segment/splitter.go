package segment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/nifti"
	"github.com/Haoran-Jia/LearnSimpleITK/pkg/volume"
)

// SplitParams configures a split run.
type SplitParams struct {
	// InputPath is the labeled volume to decompose.
	InputPath string

	// OutputDir receives one mask file per label, created if absent.
	OutputDir string

	// Tables provides the label names and combined organs. Nil means the
	// built-in defaults.
	Tables *Tables

	// Progress receives the sequential iteration indicator. Nil discards
	// it.
	Progress io.Writer
}

// Splitter decomposes a labeled volume into one binary mask per label.
// It is the inverse of the Assembler for plain labels; combined organs
// (e.g. Bone) are reconstructed as the union of their component labels.
type Splitter struct {
	params *SplitParams
}

// NewSplitter creates a splitter.
func NewSplitter(params *SplitParams) *Splitter {
	if params.Tables == nil {
		params.Tables = DefaultTables()
	}
	return &Splitter{params: params}
}

// Execute reads the labeled volume and writes one mask file per label that
// occurs in it, returning the written paths. Labels absent from the volume
// produce no file.
func (s *Splitter) Execute() ([]string, error) {
	if s.params.OutputDir == "" {
		return nil, &PathError{What: "folder to save"}
	}
	if err := os.MkdirAll(s.params.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %v", err)
	}

	seg, err := nifti.Read(s.params.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load labeled volume: %v", err)
	}

	// One pass over the volume to find which labels occur at all, so absent
	// labels are skipped without scanning the volume per table entry.
	present := make(map[int]bool)
	for _, v := range seg.Data {
		if v != 0 {
			present[int(v)] = true
		}
	}

	var written []string
	names := s.params.Tables.StandardNames
	for i, entry := range names {
		if !present[entry.ID] {
			continue
		}
		if s.params.Progress != nil {
			fmt.Fprintf(s.params.Progress, "[%d/%d] %s\n", i+1, len(names), entry.Name)
		}

		mask := extractLabels(seg, s.componentLabels(entry.ID))
		mask.CopyInformation(seg)

		path := filepath.Join(s.params.OutputDir, fmt.Sprintf("%d_%s.nii", entry.ID, entry.Name))
		if err := nifti.WriteUint8(path, mask); err != nil {
			return nil, fmt.Errorf("failed to write mask for %s: %v", entry.Name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// componentLabels returns the labels that make up the output mask for id:
// the combined-organ components when id is combined, otherwise id alone.
func (s *Splitter) componentLabels(id int) []int {
	if comps := s.params.Tables.ComponentsFor(id); comps != nil {
		return comps
	}
	return []int{id}
}

// extractLabels builds a binary mask that is foreground (255) exactly where
// the volume holds one of the given labels. Labels in an assembled volume
// are mutually exclusive, so summing the per-label extractions is the same
// as their union.
func extractLabels(seg *volume.Volume, labels []int) *volume.Volume {
	mask := volume.NewLike(seg)
	for _, id := range labels {
		want := float64(id)
		for i, v := range seg.Data {
			if v == want {
				mask.Data[i] += 255
			}
		}
	}
	return mask
}
