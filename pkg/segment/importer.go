package segment

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/h2non/filetype"

	// Register decoders for the slice image formats we accept. JPEG and
	// PNG come from the standard library, BMP and TIFF from x/image.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/nifti"
	"github.com/Haoran-Jia/LearnSimpleITK/pkg/volume"
)

// SliceIndexFunc derives the target z index of a slice from its filename.
type SliceIndexFunc func(filename string) (int, error)

// DefaultSliceIndex parses the fixed-width four-digit numeric suffix of the
// filename stem, the convention used by the slice exports this tool was
// built for ("Liver0042.jpg" is plane 42).
func DefaultSliceIndex(filename string) (int, error) {
	s := stem(filename)
	if len(s) < 4 {
		return 0, fmt.Errorf("name %q is too short for a 4-digit slice suffix", filename)
	}
	z, err := strconv.Atoi(s[len(s)-4:])
	if err != nil {
		return 0, fmt.Errorf("name %q has no 4-digit slice suffix", filename)
	}
	return z, nil
}

// ImportParams configures a slice import run.
type ImportParams struct {
	// SliceDir is the directory of 2D grayscale slice images.
	SliceDir string

	// OutputPath is where the assembled mask volume is written. Its parent
	// directory is created if absent.
	OutputPath string

	// Threshold binarizes the slices: gray values strictly greater than
	// Threshold become foreground (255), everything else background.
	Threshold uint8

	// ExpectedType is the content-sniffed file kind every slice must have
	// (filetype extension, e.g. "jpg"). Empty means "jpg".
	ExpectedType string

	// SliceIndex maps filenames to z indices. Nil means DefaultSliceIndex.
	SliceIndex SliceIndexFunc

	// Progress receives the sequential iteration indicator. Nil discards
	// it.
	Progress io.Writer
}

// Importer builds a binary organ mask volume from a directory of 2D slice
// images, using a reference volume for the output shape and spatial
// metadata.
type Importer struct {
	params *ImportParams
	ref    *volume.Volume
}

// NewImporter creates an importer. The reference volume supplies the
// output dimensions and the metadata copied onto the result.
func NewImporter(ref *volume.Volume, params *ImportParams) *Importer {
	if params.ExpectedType == "" {
		params.ExpectedType = "jpg"
	}
	if params.SliceIndex == nil {
		params.SliceIndex = DefaultSliceIndex
	}
	return &Importer{params: params, ref: ref}
}

// sliceFile is one validated input slice awaiting decoding.
type sliceFile struct {
	path string
	z    int
}

// Execute validates the whole slice directory, assembles the mask volume
// and writes it to disk.
//
// Validation runs over the complete file set before a single voxel is
// written: content type, parseable slice index and index bounds are all
// checked up front, so a bad file late in the directory cannot leave a
// half-assembled array behind.
func (imp *Importer) Execute() (*volume.Volume, error) {
	if imp.params.OutputPath == "" {
		return nil, &PathError{What: "save path"}
	}

	slices, err := imp.validateSlices()
	if err != nil {
		return nil, err
	}

	seg := volume.NewLike(imp.ref)
	planeSize := imp.ref.Nx * imp.ref.Ny
	for i, sf := range slices {
		if imp.params.Progress != nil {
			fmt.Fprintf(imp.params.Progress, "[%d/%d] %s\n", i+1, len(slices), filepath.Base(sf.path))
		}
		plane := seg.Data[sf.z*planeSize : (sf.z+1)*planeSize]
		if err := imp.decodeSlice(sf.path, plane); err != nil {
			return nil, err
		}
	}

	// Slice exports number their planes opposite to the acquisition order
	// of the reference series; flip the stacking axis so the copied
	// metadata describes the array correctly.
	seg.FlipZ()
	seg.CopyInformation(imp.ref)

	if dir := filepath.Dir(imp.params.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %v", err)
		}
	}
	if err := nifti.WriteUint8(imp.params.OutputPath, seg); err != nil {
		return nil, fmt.Errorf("failed to write mask volume: %v", err)
	}
	return seg, nil
}

// validateSlices checks every file in the slice directory and returns the
// validated set sorted by filename. Any failure aborts the whole import.
func (imp *Importer) validateSlices() ([]sliceFile, error) {
	entries, err := os.ReadDir(imp.params.SliceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read slice directory: %v", err)
	}

	var slices []sliceFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(imp.params.SliceDir, e.Name())

		if err := imp.checkType(path); err != nil {
			return nil, err
		}

		z, err := imp.params.SliceIndex(e.Name())
		if err != nil {
			return nil, &InputValidationError{Path: path, Reason: err.Error()}
		}
		if z < 0 || z >= imp.ref.Nz {
			return nil, &InputValidationError{
				Path:   path,
				Reason: fmt.Sprintf("slice index %d outside reference depth %d", z, imp.ref.Nz),
			}
		}
		slices = append(slices, sliceFile{path: path, z: z})
	}

	sort.Slice(slices, func(i, j int) bool { return slices[i].path < slices[j].path })
	return slices, nil
}

// checkType sniffs the file content and rejects anything that is not the
// expected image kind. The check is content based; the file extension is
// ignored.
func (imp *Importer) checkType(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open slice: %v", err)
	}
	defer f.Close()

	// filetype needs at most the first 262 bytes to classify a file.
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read slice header: %v", err)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown || kind.Extension != imp.params.ExpectedType {
		got := "unknown"
		if err == nil && kind != filetype.Unknown {
			got = kind.Extension
		}
		return &InputValidationError{
			Path:   path,
			Reason: fmt.Sprintf("wrong file type %s, expected %s", got, imp.params.ExpectedType),
		}
	}
	return nil
}

// decodeSlice reads one image, converts it to grayscale and binarizes it
// into the given plane of the output array.
func (imp *Importer) decodeSlice(path string, plane []float64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open slice: %v", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode slice %s: %v", path, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != imp.ref.Nx || bounds.Dy() != imp.ref.Ny {
		return &InputValidationError{
			Path:   path,
			Reason: fmt.Sprintf("slice is %dx%d, reference plane is %dx%d", bounds.Dx(), bounds.Dy(), imp.ref.Nx, imp.ref.Ny),
		}
	}

	threshold := imp.params.Threshold
	for y := 0; y < imp.ref.Ny; y++ {
		for x := 0; x < imp.ref.Nx; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			if g.Y > threshold {
				plane[y*imp.ref.Nx+x] = 255
			} else {
				plane[y*imp.ref.Nx+x] = 0
			}
		}
	}
	return nil
}
