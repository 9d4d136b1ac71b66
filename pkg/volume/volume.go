// Package volume provides the in-memory representation of a 3D medical image
// volume together with its spatial metadata (origin, spacing, direction).
// All segmentation operations in this repository consume and produce Volume
// values; the invariant maintained throughout is that any volume derived from
// another carries an exact copy of the source's metadata, so every output
// file stays spatially aligned with its reference image.
package volume

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Metadata describes how voxel indices map to physical space.
// It mirrors the origin/spacing/direction triple carried by volumetric
// file formats such as NIfTI and DICOM.
type Metadata struct {
	// Origin is the physical position (in mm) of the voxel at index (0,0,0).
	Origin [3]float64

	// Spacing is the physical size of one voxel along each axis in mm.
	Spacing [3]float64

	// Direction is the row-major 3x3 matrix of direction cosines mapping
	// voxel axes to physical axes. Identity means the voxel grid is axis
	// aligned with the physical coordinate frame.
	Direction [9]float64
}

// Identity returns metadata with unit spacing, zero origin and an
// axis-aligned direction matrix. Used as the default for volumes that have
// no reference image.
func Identity() Metadata {
	return Metadata{
		Spacing:   [3]float64{1, 1, 1},
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
}

// DirectionMatrix returns the direction cosines as a dense 3x3 matrix for
// use with gonum operations.
func (m Metadata) DirectionMatrix() *mat.Dense {
	return mat.NewDense(3, 3, append([]float64(nil), m.Direction[:]...))
}

// SetDirectionMatrix stores a 3x3 matrix as the direction cosines.
func (m *Metadata) SetDirectionMatrix(d mat.Matrix) {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Direction[r*3+c] = d.At(r, c)
		}
	}
}

// Volume is a 3D image: voxel data in a flat slice plus dimensions and
// spatial metadata. Data is stored x-fastest, i.e. the voxel at (x, y, z)
// lives at index (z*Ny+y)*Nx+x. Intensities and labels are both kept as
// float64 in memory; narrowing to the on-disk pixel type happens at write
// time.
type Volume struct {
	// Data holds the voxel values in x-fastest order.
	Data []float64

	// Nx, Ny, Nz are the voxel counts along each axis.
	Nx, Ny, Nz int

	// Meta is the spatial metadata copied from the reference image.
	Meta Metadata
}

// New allocates a zero-filled volume with the given dimensions and metadata.
func New(nx, ny, nz int, meta Metadata) *Volume {
	return &Volume{
		Data: make([]float64, nx*ny*nz),
		Nx:   nx,
		Ny:   ny,
		Nz:   nz,
		Meta: meta,
	}
}

// NewLike allocates a zero-filled volume with the same shape and metadata as
// the reference volume. This is the standard way to derive a blank canvas
// that stays aligned with its source.
func NewLike(ref *Volume) *Volume {
	return New(ref.Nx, ref.Ny, ref.Nz, ref.Meta)
}

// Len returns the total number of voxels.
func (v *Volume) Len() int {
	return v.Nx * v.Ny * v.Nz
}

// Index converts (x, y, z) voxel coordinates to the flat Data index.
func (v *Volume) Index(x, y, z int) int {
	return (z*v.Ny+y)*v.Nx + x
}

// At returns the voxel value at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a voxel value at (x, y, z).
func (v *Volume) Set(x, y, z int, val float64) {
	v.Data[v.Index(x, y, z)] = val
}

// CopyInformation copies the spatial metadata from src, leaving the voxel
// data untouched. Named after the equivalent ITK operation.
func (v *Volume) CopyInformation(src *Volume) {
	v.Meta = src.Meta
}

// SameShape reports whether the two volumes have identical dimensions.
func (v *Volume) SameShape(o *Volume) bool {
	return v.Nx == o.Nx && v.Ny == o.Ny && v.Nz == o.Nz
}

// CountNonzero returns the number of foreground (non-zero) voxels.
func (v *Volume) CountNonzero() int {
	n := 0
	for _, val := range v.Data {
		if val != 0 {
			n++
		}
	}
	return n
}

// FlipZ reverses the order of the z planes in place. Slice stacks exported
// as 2D images are numbered opposite to the acquisition order of the
// reference series, so imported volumes need this single-axis correction
// before their metadata is meaningful.
func (v *Volume) FlipZ() {
	planeSize := v.Nx * v.Ny
	tmp := make([]float64, planeSize)
	for z := 0; z < v.Nz/2; z++ {
		lo := v.Data[z*planeSize : (z+1)*planeSize]
		hi := v.Data[(v.Nz-1-z)*planeSize : (v.Nz-z)*planeSize]
		copy(tmp, lo)
		copy(lo, hi)
		copy(hi, tmp)
	}
}

// Validate checks that the data length matches the declared dimensions.
func (v *Volume) Validate() error {
	if len(v.Data) != v.Nx*v.Ny*v.Nz {
		return fmt.Errorf("volume data length %d does not match dimensions %dx%dx%d",
			len(v.Data), v.Nx, v.Ny, v.Nz)
	}
	return nil
}
