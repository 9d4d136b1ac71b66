package segment

import (
	"fmt"
	"io"
	"math"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/nifti"
)

// Overlap describes the intersection of one unordered pair of organ masks.
type Overlap struct {
	// OrganA and OrganB are the organ names (filename stems).
	OrganA, OrganB string

	// VoxelsA and VoxelsB are the foreground voxel counts of each mask.
	VoxelsA, VoxelsB int

	// Intersection is the number of voxels foreground in both masks.
	Intersection int

	// PercentA and PercentB express the intersection as a percentage of
	// each organ's own volume, rounded to one decimal.
	PercentA, PercentB float64

	// Ratio is VoxelsA/VoxelsB rounded to two decimals.
	Ratio float64
}

// AnalyzeParams configures an overlap analysis run.
type AnalyzeParams struct {
	// OrganDir is the directory of per-organ mask files.
	OrganDir string

	// Exclude lists organ names to leave out of the comparison.
	Exclude []string

	// Out receives the advisory report lines. Nil discards them.
	Out io.Writer
}

// reportThreshold is the minimum intersection percentage (of either organ's
// own volume) for a pair to be reported. It suppresses incidental
// single-voxel touches while surfacing real anatomical overlap that needs
// manual review.
const reportThreshold = 1.0

// AnalyzeOverlap compares every unordered pair of organ masks in a
// directory and returns the pairs whose intersection is non-zero and at
// least reportThreshold percent of either organ's volume. It is purely
// advisory: nothing is written to disk.
func AnalyzeOverlap(params *AnalyzeParams) ([]Overlap, error) {
	files, stems, err := listMaskFiles(params.OrganDir)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(params.Exclude))
	for _, name := range params.Exclude {
		excluded[name] = true
	}

	var organs []string
	for _, s := range stems {
		if !excluded[s] {
			organs = append(organs, s)
		}
	}

	// Load each mask once as a boolean array; the pair loop below touches
	// every mask n-1 times.
	masks := make(map[string][]bool, len(organs))
	counts := make(map[string]int, len(organs))
	for _, name := range organs {
		vol, err := nifti.Read(files[name])
		if err != nil {
			return nil, fmt.Errorf("failed to load organ mask %s: %v", name, err)
		}
		mask := make([]bool, len(vol.Data))
		n := 0
		for i, v := range vol.Data {
			if v != 0 {
				mask[i] = true
				n++
			}
		}
		masks[name] = mask
		counts[name] = n
	}

	var report []Overlap
	for i := 0; i < len(organs); i++ {
		for j := i + 1; j < len(organs); j++ {
			a, b := organs[i], organs[j]
			maskA, maskB := masks[a], masks[b]
			if len(maskA) != len(maskB) {
				return nil, &ConfigurationError{
					Reason: fmt.Sprintf("masks %s and %s have different sizes", a, b),
				}
			}

			inter := 0
			for k := range maskA {
				if maskA[k] && maskB[k] {
					inter++
				}
			}
			if inter == 0 {
				continue
			}

			nA, nB := counts[a], counts[b]
			o := Overlap{
				OrganA:       a,
				OrganB:       b,
				VoxelsA:      nA,
				VoxelsB:      nB,
				Intersection: inter,
				PercentA:     round1(float64(inter) / float64(nA) * 100),
				PercentB:     round1(float64(inter) / float64(nB) * 100),
				Ratio:        round2(float64(nA) / float64(nB)),
			}
			if o.PercentA < reportThreshold && o.PercentB < reportThreshold {
				continue
			}
			report = append(report, o)
			if params.Out != nil {
				fmt.Fprintf(params.Out, "Overlap Points: %d (%.1f%%, %.1f%%)\t\t\t%s: %d;\t%s: %d;\t%.2f\n",
					o.Intersection, o.PercentA, o.PercentB, o.OrganA, o.VoxelsA, o.OrganB, o.VoxelsB, o.Ratio)
			}
		}
	}
	return report, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
