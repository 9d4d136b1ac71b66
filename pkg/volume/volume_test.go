package volume

import (
	"testing"
)

// TestIndexing verifies the x-fastest flat layout.
func TestIndexing(t *testing.T) {
	v := New(3, 4, 5, Identity())

	if got := v.Len(); got != 60 {
		t.Fatalf("Len: expected 60, got %d", got)
	}

	testCases := []struct {
		x, y, z int
		idx     int
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{0, 1, 0, 3},
		{0, 0, 1, 12},
		{2, 3, 4, 59},
	}
	for _, tc := range testCases {
		if got := v.Index(tc.x, tc.y, tc.z); got != tc.idx {
			t.Errorf("Index(%d,%d,%d): expected %d, got %d", tc.x, tc.y, tc.z, tc.idx, got)
		}
	}

	v.Set(2, 3, 4, 7)
	if got := v.At(2, 3, 4); got != 7 {
		t.Errorf("At(2,3,4): expected 7, got %f", got)
	}
	if v.Data[59] != 7 {
		t.Errorf("expected flat index 59 to hold 7, got %f", v.Data[59])
	}
}

// TestNewLike verifies that derived volumes copy shape and metadata.
func TestNewLike(t *testing.T) {
	meta := Metadata{
		Origin:    [3]float64{-100.5, -80.25, 42},
		Spacing:   [3]float64{0.97, 0.97, 3},
		Direction: [9]float64{-1, 0, 0, 0, -1, 0, 0, 0, 1},
	}
	ref := New(10, 12, 8, meta)
	ref.Data[0] = 99

	derived := NewLike(ref)
	if !derived.SameShape(ref) {
		t.Fatalf("expected derived volume to have shape %dx%dx%d, got %dx%dx%d",
			ref.Nx, ref.Ny, ref.Nz, derived.Nx, derived.Ny, derived.Nz)
	}
	if derived.Meta != meta {
		t.Errorf("expected derived volume to carry the reference metadata")
	}
	if derived.Data[0] != 0 {
		t.Errorf("expected derived volume to be zero-filled")
	}
}

// TestCopyInformation verifies the metadata copy leaves voxels untouched.
func TestCopyInformation(t *testing.T) {
	src := New(2, 2, 2, Metadata{
		Origin:    [3]float64{1, 2, 3},
		Spacing:   [3]float64{2, 2, 2},
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	})
	dst := New(2, 2, 2, Identity())
	dst.Data[3] = 5

	dst.CopyInformation(src)
	if dst.Meta != src.Meta {
		t.Errorf("expected metadata to be copied")
	}
	if dst.Data[3] != 5 {
		t.Errorf("expected voxel data to survive CopyInformation")
	}
}

// TestFlipZ verifies the plane order reversal, including the odd-depth case
// where the middle plane stays in place.
func TestFlipZ(t *testing.T) {
	v := New(2, 2, 3, Identity())
	for z := 0; z < 3; z++ {
		for i := 0; i < 4; i++ {
			v.Data[z*4+i] = float64(z)
		}
	}
	// Mark one corner to check that x/y positions are untouched.
	v.Set(1, 0, 0, 10)

	v.FlipZ()

	if got := v.At(0, 0, 0); got != 2 {
		t.Errorf("plane 0: expected value 2 after flip, got %f", got)
	}
	if got := v.At(0, 0, 1); got != 1 {
		t.Errorf("plane 1: expected value 1 after flip, got %f", got)
	}
	if got := v.At(1, 0, 2); got != 10 {
		t.Errorf("expected marked corner to move to plane 2 at the same x/y, got %f", got)
	}
}

// TestCountNonzero verifies the foreground voxel count.
func TestCountNonzero(t *testing.T) {
	v := New(2, 2, 1, Identity())
	if got := v.CountNonzero(); got != 0 {
		t.Fatalf("expected 0 foreground voxels, got %d", got)
	}
	v.Data[0] = 255
	v.Data[3] = 1
	if got := v.CountNonzero(); got != 2 {
		t.Errorf("expected 2 foreground voxels, got %d", got)
	}
}

// TestValidate verifies the data length check.
func TestValidate(t *testing.T) {
	v := New(2, 2, 2, Identity())
	if err := v.Validate(); err != nil {
		t.Fatalf("expected valid volume, got %v", err)
	}
	v.Data = v.Data[:5]
	if err := v.Validate(); err == nil {
		t.Errorf("expected validation error for truncated data")
	}
}

// TestDirectionMatrix verifies the gonum round trip of the direction
// cosines.
func TestDirectionMatrix(t *testing.T) {
	meta := Identity()
	meta.Direction = [9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1}

	d := meta.DirectionMatrix()
	if got := d.At(0, 1); got != -1 {
		t.Fatalf("expected element (0,1) to be -1, got %f", got)
	}

	var back Metadata
	back.SetDirectionMatrix(d)
	if back.Direction != meta.Direction {
		t.Errorf("expected direction to round-trip through mat.Dense")
	}
}
