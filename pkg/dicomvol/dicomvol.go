// Package dicomvol reads the geometry of a DICOM series so it can serve as
// the reference volume for mask assembly and slice import. Only the
// per-slice headers are parsed; pixel data is skipped because the reference
// contributes shape and spatial metadata, never intensities.
package dicomvol

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/segment"
	"github.com/Haoran-Jia/LearnSimpleITK/pkg/volume"
)

// sliceInfo is the geometry of one slice of the series.
type sliceInfo struct {
	seriesUID    string
	instance     int
	rows, cols   int
	position     [3]float64 // ImagePositionPatient
	orientation  [6]float64 // ImageOrientationPatient: row then column cosines
	pixelSpacing [2]float64
	thickness    float64
}

// ReadSeries reads the directory as a single DICOM series and returns a
// blank reference volume carrying its shape and spatial metadata. A
// directory holding zero or more than one series is a configuration error,
// matching the strictness of the assembly pipeline.
func ReadSeries(dir string) (*volume.Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read series directory: %v", err)
	}

	var slices []sliceInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := readSliceInfo(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", path, err)
		}
		slices = append(slices, *info)
	}
	if len(slices) == 0 {
		return nil, &segment.ConfigurationError{Reason: "no series in specified folder"}
	}

	uids := make(map[string]bool)
	for _, s := range slices {
		uids[s.seriesUID] = true
	}
	if len(uids) != 1 {
		return nil, &segment.ConfigurationError{
			Reason: fmt.Sprintf("expected exactly one series in folder, found %d", len(uids)),
		}
	}

	sortSlices(slices)
	return buildReference(slices)
}

// readSliceInfo parses one DICOM file header.
func readSliceInfo(path string) (*sliceInfo, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}

	info := &sliceInfo{}
	if info.seriesUID, err = stringValue(ds, tag.SeriesInstanceUID); err != nil {
		return nil, err
	}
	if info.rows, err = intValue(ds, tag.Rows); err != nil {
		return nil, err
	}
	if info.cols, err = intValue(ds, tag.Columns); err != nil {
		return nil, err
	}
	// InstanceNumber can be absent on some exports; position sorting below
	// still orders the stack.
	info.instance, _ = intValue(ds, tag.InstanceNumber)

	pos, err := floatValues(ds, tag.ImagePositionPatient, 3)
	if err != nil {
		return nil, err
	}
	copy(info.position[:], pos)

	orient, err := floatValues(ds, tag.ImageOrientationPatient, 6)
	if err != nil {
		return nil, err
	}
	copy(info.orientation[:], orient)

	spacing, err := floatValues(ds, tag.PixelSpacing, 2)
	if err != nil {
		return nil, err
	}
	// PixelSpacing is row spacing then column spacing.
	info.pixelSpacing[0] = spacing[1]
	info.pixelSpacing[1] = spacing[0]

	if th, err := floatValues(ds, tag.SliceThickness, 1); err == nil {
		info.thickness = th[0]
	}
	return info, nil
}

// sortSlices orders the stack by instance number, falling back to the slice
// position projected on the stack normal when instance numbers are missing
// or tied.
func sortSlices(slices []sliceInfo) {
	normal := sliceNormal(slices[0].orientation)
	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].instance != slices[j].instance {
			return slices[i].instance < slices[j].instance
		}
		pi := project(slices[i].position, normal)
		pj := project(slices[j].position, normal)
		return pi < pj
	})
}

// buildReference assembles the volume geometry from the ordered slices.
func buildReference(slices []sliceInfo) (*volume.Volume, error) {
	first := slices[0]
	for _, s := range slices[1:] {
		if s.rows != first.rows || s.cols != first.cols {
			return nil, &segment.ConfigurationError{
				Reason: "series slices have inconsistent dimensions",
			}
		}
	}

	meta := volume.Identity()
	meta.Origin = first.position
	meta.Spacing[0] = first.pixelSpacing[0]
	meta.Spacing[1] = first.pixelSpacing[1]
	meta.Spacing[2] = zSpacing(slices)

	// Direction columns: increasing column index, increasing row index,
	// then the stack normal from their cross product.
	normal := sliceNormal(first.orientation)
	for r := 0; r < 3; r++ {
		meta.Direction[r*3+0] = first.orientation[r]
		meta.Direction[r*3+1] = first.orientation[3+r]
	}
	meta.Direction[2] = normal.X
	meta.Direction[5] = normal.Y
	meta.Direction[8] = normal.Z

	return volume.New(first.cols, first.rows, len(slices), meta), nil
}

// zSpacing derives the inter-slice spacing from consecutive positions,
// falling back to the declared slice thickness, then to 1mm.
func zSpacing(slices []sliceInfo) float64 {
	if len(slices) > 1 {
		normal := sliceNormal(slices[0].orientation)
		d := math.Abs(project(slices[1].position, normal) - project(slices[0].position, normal))
		if d > 0 {
			return d
		}
	}
	if slices[0].thickness > 0 {
		return slices[0].thickness
	}
	return 1
}

// sliceNormal is the cross product of the row and column cosines.
func sliceNormal(orientation [6]float64) r3.Vec {
	row := r3.Vec{X: orientation[0], Y: orientation[1], Z: orientation[2]}
	col := r3.Vec{X: orientation[3], Y: orientation[4], Z: orientation[5]}
	return r3.Cross(row, col)
}

// project returns the component of a position along a direction.
func project(pos [3]float64, dir r3.Vec) float64 {
	return pos[0]*dir.X + pos[1]*dir.Y + pos[2]*dir.Z
}

// stringValue extracts a single string element from the dataset.
func stringValue(ds dicom.Dataset, t tag.Tag) (string, error) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return "", fmt.Errorf("missing tag %v", t)
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return "", fmt.Errorf("tag %v is not a string", t)
	}
	return strings.TrimSpace(vals[0]), nil
}

// intValue extracts a single integer element, accepting both binary integer
// and integer-string representations.
func intValue(ds dicom.Dataset, t tag.Tag) (int, error) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, fmt.Errorf("missing tag %v", t)
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], nil
		}
	case []string:
		if len(v) > 0 {
			return strconv.Atoi(strings.TrimSpace(v[0]))
		}
	}
	return 0, fmt.Errorf("tag %v is not an integer", t)
}

// floatValues extracts exactly n decimal values from a decimal-string
// element.
func floatValues(ds dicom.Dataset, t tag.Tag, n int) ([]float64, error) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, fmt.Errorf("missing tag %v", t)
	}
	strs, ok := el.Value.GetValue().([]string)
	if !ok || len(strs) < n {
		return nil, fmt.Errorf("tag %v does not hold %d decimal values", t, n)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i], err = strconv.ParseFloat(strings.TrimSpace(strs[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("tag %v value %q is not a decimal", t, strs[i])
		}
	}
	return out, nil
}
