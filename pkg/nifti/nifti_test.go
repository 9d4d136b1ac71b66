package nifti

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/volume"
)

// testVolume builds a small labeled volume with non-trivial metadata.
func testVolume() *volume.Volume {
	v := volume.New(4, 3, 2, volume.Metadata{
		Origin:    [3]float64{-120.5, -95.25, 33},
		Spacing:   [3]float64{0.97, 0.97, 3},
		Direction: [9]float64{-1, 0, 0, 0, -1, 0, 0, 0, 1},
	})
	for i := range v.Data {
		v.Data[i] = float64(i % 256)
	}
	return v
}

// metaClose compares metadata with a tolerance for the float32 narrowing
// the header imposes.
func metaClose(a, b volume.Metadata, tol float64) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(a.Origin[i]-b.Origin[i]) > tol || math.Abs(a.Spacing[i]-b.Spacing[i]) > tol {
			return false
		}
	}
	for i := 0; i < 9; i++ {
		if math.Abs(a.Direction[i]-b.Direction[i]) > tol {
			return false
		}
	}
	return true
}

// TestRoundTrip verifies that writing and reading preserves voxel data and
// spatial metadata, for both plain and gzipped files.
func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"volume.nii", "volume.nii.gz"} {
		t.Run(name, func(t *testing.T) {
			want := testVolume()
			path := filepath.Join(dir, name)

			if err := WriteUint8(path, want); err != nil {
				t.Fatalf("Failed to write volume: %v", err)
			}
			got, err := Read(path)
			if err != nil {
				t.Fatalf("Failed to read volume: %v", err)
			}

			if !got.SameShape(want) {
				t.Fatalf("expected shape %dx%dx%d, got %dx%dx%d",
					want.Nx, want.Ny, want.Nz, got.Nx, got.Ny, got.Nz)
			}
			for i := range want.Data {
				if got.Data[i] != want.Data[i] {
					t.Fatalf("voxel %d: expected %f, got %f", i, want.Data[i], got.Data[i])
				}
			}
			if !metaClose(got.Meta, want.Meta, 1e-5) {
				t.Errorf("metadata mismatch: got %+v, want %+v", got.Meta, want.Meta)
			}
		})
	}
}

// TestWriteClamping verifies the uint8 narrowing clamps out-of-range
// values instead of wrapping.
func TestWriteClamping(t *testing.T) {
	v := volume.New(2, 1, 1, volume.Identity())
	v.Data[0] = -10
	v.Data[1] = 300

	path := filepath.Join(t.TempDir(), "clamp.nii")
	if err := WriteUint8(path, v); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Failed to read volume: %v", err)
	}
	if got.Data[0] != 0 || got.Data[1] != 255 {
		t.Errorf("expected clamped values [0 255], got %v", got.Data)
	}
}

// rawFile encodes a NIfTI stream by hand so the reader can be exercised
// with datatypes and transforms the writer never produces.
func rawFile(hdr header, voxels interface{}) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	buf.Write([]byte{0, 0, 0, 0})
	binary.Write(&buf, binary.LittleEndian, voxels)
	return buf.Bytes()
}

// baseHeader fills the fields every synthetic test file shares.
func baseHeader(datatype, bitpix int16, nx, ny, nz int16) header {
	hdr := header{
		SizeofHdr: 348,
		Datatype:  datatype,
		Bitpix:    bitpix,
		VoxOffset: 352,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = nx
	hdr.Dim[2] = ny
	hdr.Dim[3] = nz
	hdr.Pixdim[0] = 1
	hdr.Pixdim[1] = 1
	hdr.Pixdim[2] = 1
	hdr.Pixdim[3] = 1
	return hdr
}

// TestReadInt16Scaled verifies reading a signed 16-bit volume with scale
// slope and intercept applied.
func TestReadInt16Scaled(t *testing.T) {
	hdr := baseHeader(typeInt16, 16, 2, 1, 1)
	hdr.SclSlope = 2
	hdr.SclInter = 10

	got, err := decode(bytes.NewReader(rawFile(hdr, []int16{-100, 40})))
	if err != nil {
		t.Fatalf("Failed to decode int16 volume: %v", err)
	}
	if got.Data[0] != -190 || got.Data[1] != 90 {
		t.Errorf("expected scaled values [-190 90], got %v", got.Data)
	}
}

// TestReadFloat32 verifies reading a float volume without scaling.
func TestReadFloat32(t *testing.T) {
	hdr := baseHeader(typeFloat32, 32, 2, 1, 1)

	got, err := decode(bytes.NewReader(rawFile(hdr, []float32{0.5, -2})))
	if err != nil {
		t.Fatalf("Failed to decode float32 volume: %v", err)
	}
	if got.Data[0] != 0.5 || got.Data[1] != -2 {
		t.Errorf("expected values [0.5 -2], got %v", got.Data)
	}
}

// TestReadQformIdentity verifies metadata recovery from a qform-only header
// with a unit quaternion.
func TestReadQformIdentity(t *testing.T) {
	hdr := baseHeader(typeUint8, 8, 2, 2, 2)
	hdr.QformCode = 1
	hdr.QoffsetX = 5
	hdr.QoffsetY = -7
	hdr.QoffsetZ = 9
	hdr.Pixdim[1] = 2
	hdr.Pixdim[2] = 2
	hdr.Pixdim[3] = 4

	got, err := decode(bytes.NewReader(rawFile(hdr, make([]byte, 8))))
	if err != nil {
		t.Fatalf("Failed to decode qform volume: %v", err)
	}
	want := volume.Metadata{
		Origin:    [3]float64{5, -7, 9},
		Spacing:   [3]float64{2, 2, 4},
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
	if !metaClose(got.Meta, want, 1e-6) {
		t.Errorf("metadata mismatch: got %+v, want %+v", got.Meta, want)
	}
}

// TestReadPixdimFallback verifies spacing recovery when neither transform
// is present.
func TestReadPixdimFallback(t *testing.T) {
	hdr := baseHeader(typeUint8, 8, 2, 2, 1)
	hdr.Pixdim[1] = 0.5
	hdr.Pixdim[2] = 0.5
	hdr.Pixdim[3] = 3

	got, err := decode(bytes.NewReader(rawFile(hdr, make([]byte, 4))))
	if err != nil {
		t.Fatalf("Failed to decode volume: %v", err)
	}
	want := [3]float64{0.5, 0.5, 3}
	if got.Meta.Spacing != want {
		t.Errorf("expected spacing %v, got %v", want, got.Meta.Spacing)
	}
}

// TestRejectBadFiles verifies that non-NIfTI input is rejected.
func TestRejectBadFiles(t *testing.T) {
	t.Run("WrongHeaderSize", func(t *testing.T) {
		hdr := baseHeader(typeUint8, 8, 1, 1, 1)
		hdr.SizeofHdr = 347
		if _, err := decode(bytes.NewReader(rawFile(hdr, []byte{0}))); err == nil {
			t.Errorf("expected error for wrong header size")
		}
	})

	t.Run("WrongMagic", func(t *testing.T) {
		hdr := baseHeader(typeUint8, 8, 1, 1, 1)
		hdr.Magic = [4]byte{'n', 'i', '1', 0}
		if _, err := decode(bytes.NewReader(rawFile(hdr, []byte{0}))); err == nil {
			t.Errorf("expected error for two-file magic")
		}
	})

	t.Run("UnsupportedDatatype", func(t *testing.T) {
		hdr := baseHeader(128, 24, 1, 1, 1) // DT_RGB24
		if _, err := decode(bytes.NewReader(rawFile(hdr, []byte{0, 0, 0}))); err == nil {
			t.Errorf("expected error for unsupported datatype")
		}
	})

	t.Run("NotAFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.nii")
		if err := os.WriteFile(path, []byte("not a volume"), 0644); err != nil {
			t.Fatalf("Failed to write junk file: %v", err)
		}
		if _, err := Read(path); err == nil {
			t.Errorf("expected error for junk file")
		}
	})
}

// TestHeaderSize guards the encoding/binary layout of the fixed header.
func TestHeaderSize(t *testing.T) {
	if size := binary.Size(&header{}); size != 348 {
		t.Fatalf("header size is %d bytes, NIfTI-1 requires 348", size)
	}
}
