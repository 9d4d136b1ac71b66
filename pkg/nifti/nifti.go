// Package nifti implements reading and writing of NIfTI-1 single-file
// volumes (.nii and .nii.gz). It covers the subset of the format this
// repository needs: scalar 3D volumes with their spatial metadata. The
// segmentation tools only ever write 8-bit unsigned label and mask volumes,
// but the reader accepts the common scalar pixel types so arbitrary
// reference images can be loaded.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/Haoran-Jia/LearnSimpleITK/pkg/volume"
)

// NIfTI-1 scalar datatype codes.
const (
	typeUint8   = 2
	typeInt16   = 4
	typeInt32   = 8
	typeFloat32 = 16
	typeFloat64 = 64
	typeUint16  = 512
)

// header is the fixed 348-byte NIfTI-1 header, laid out for
// encoding/binary. Field names follow the format specification.
type header struct {
	SizeofHdr    int32
	DataType     [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte
	Dim          [8]int16
	IntentP1     float32
	IntentP2     float32
	IntentP3     float32
	IntentCode   int16
	Datatype     int16
	Bitpix       int16
	SliceStart   int16
	Pixdim       [8]float32
	VoxOffset    float32
	SclSlope     float32
	SclInter     float32
	SliceEnd     int16
	SliceCode    byte
	XyztUnits    byte
	CalMax       float32
	CalMin       float32
	SliceDur     float32
	Toffset      float32
	Glmax        int32
	Glmin        int32
	Descrip      [80]byte
	AuxFile      [24]byte
	QformCode    int16
	SformCode    int16
	QuaternB     float32
	QuaternC     float32
	QuaternD     float32
	QoffsetX     float32
	QoffsetY     float32
	QoffsetZ     float32
	SrowX        [4]float32
	SrowY        [4]float32
	SrowZ        [4]float32
	IntentName   [16]byte
	Magic        [4]byte
}

// Read loads a NIfTI-1 volume from disk. Gzip compression is detected from
// the file content, not the extension. Voxel values are widened to float64
// with the header's scale slope/intercept applied.
func Read(path string) (*volume.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume: %v", err)
	}
	defer f.Close()

	var r io.Reader = f

	// Sniff for the gzip magic before committing to a reader.
	head := make([]byte, 2)
	if _, err := io.ReadFull(f, head); err != nil {
		return nil, fmt.Errorf("failed to read volume header: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind volume file: %v", err)
	}
	if head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %v", err)
		}
		defer gz.Close()
		r = gz
	}

	return decode(r)
}

// decode parses a raw (already decompressed) NIfTI-1 stream.
func decode(r io.Reader) (*volume.Volume, error) {
	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to parse header: %v", err)
	}
	if hdr.SizeofHdr != 348 {
		return nil, fmt.Errorf("not a NIfTI-1 file: header size %d", hdr.SizeofHdr)
	}
	if hdr.Magic[0] != 'n' || hdr.Magic[1] != '+' || hdr.Magic[2] != '1' {
		return nil, fmt.Errorf("unsupported magic %q (only single-file n+1 is supported)", hdr.Magic[:3])
	}
	ndim := int(hdr.Dim[0])
	if ndim < 3 || ndim > 7 {
		return nil, fmt.Errorf("unsupported dimensionality %d", ndim)
	}
	nx, ny, nz := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", nx, ny, nz)
	}
	for d := 4; d <= ndim; d++ {
		if hdr.Dim[d] > 1 {
			return nil, fmt.Errorf("volume has %d samples along dim %d; only scalar 3D volumes are supported", hdr.Dim[d], d)
		}
	}

	// Skip from the end of the header to the start of the voxel data.
	skip := int64(hdr.VoxOffset) - 348
	if skip < 0 {
		return nil, fmt.Errorf("invalid vox_offset %f", hdr.VoxOffset)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, fmt.Errorf("failed to seek to voxel data: %v", err)
	}

	n := nx * ny * nz
	data, err := readVoxels(r, hdr.Datatype, n)
	if err != nil {
		return nil, err
	}

	// scl_slope == 0 means "no scaling" per the specification.
	if hdr.SclSlope != 0 && (hdr.SclSlope != 1 || hdr.SclInter != 0) {
		slope, inter := float64(hdr.SclSlope), float64(hdr.SclInter)
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	vol := &volume.Volume{
		Data: data,
		Nx:   nx,
		Ny:   ny,
		Nz:   nz,
		Meta: metadataFromHeader(&hdr),
	}
	return vol, nil
}

// readVoxels reads n voxels of the given NIfTI datatype and widens them to
// float64.
func readVoxels(r io.Reader, datatype int16, n int) ([]float64, error) {
	data := make([]float64, n)
	switch datatype {
	case typeUint8:
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %v", err)
		}
		for i, b := range buf {
			data[i] = float64(b)
		}
	case typeInt16:
		buf := make([]int16, n)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %v", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case typeUint16:
		buf := make([]uint16, n)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %v", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case typeInt32:
		buf := make([]int32, n)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %v", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case typeFloat32:
		buf := make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %v", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case typeFloat64:
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %v", err)
		}
	default:
		return nil, fmt.Errorf("unsupported NIfTI datatype %d", datatype)
	}
	return data, nil
}

// metadataFromHeader recovers origin/spacing/direction. The sform is
// preferred when present, then the qform quaternion, then bare pixdim
// spacing with an identity orientation.
func metadataFromHeader(hdr *header) volume.Metadata {
	if hdr.SformCode > 0 {
		return metadataFromSform(hdr)
	}
	if hdr.QformCode > 0 {
		return metadataFromQform(hdr)
	}
	meta := volume.Identity()
	for i := 0; i < 3; i++ {
		if hdr.Pixdim[i+1] != 0 {
			meta.Spacing[i] = float64(hdr.Pixdim[i+1])
		}
	}
	return meta
}

// metadataFromSform decomposes the affine srow matrix into
// direction * diag(spacing) + origin.
func metadataFromSform(hdr *header) volume.Metadata {
	var meta volume.Metadata
	rows := [3][4]float32{hdr.SrowX, hdr.SrowY, hdr.SrowZ}
	affine := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		meta.Origin[r] = float64(rows[r][3])
		for c := 0; c < 3; c++ {
			affine.Set(r, c, float64(rows[r][c]))
		}
	}
	// Column norms are the voxel spacings; the normalized columns are the
	// direction cosines.
	for c := 0; c < 3; c++ {
		col := mat.Col(nil, c, affine)
		norm := math.Sqrt(col[0]*col[0] + col[1]*col[1] + col[2]*col[2])
		if norm == 0 {
			norm = 1
		}
		meta.Spacing[c] = norm
		for r := 0; r < 3; r++ {
			meta.Direction[r*3+c] = col[r] / norm
		}
	}
	return meta
}

// metadataFromQform reconstructs the rotation from the stored quaternion.
// pixdim[0] carries the qfac sign applied to the third column.
func metadataFromQform(hdr *header) volume.Metadata {
	var meta volume.Metadata
	b := float64(hdr.QuaternB)
	c := float64(hdr.QuaternC)
	d := float64(hdr.QuaternD)
	a := 1.0 - (b*b + c*c + d*d)
	if a < 0 {
		a = 0
	}
	a = math.Sqrt(a)

	qfac := 1.0
	if hdr.Pixdim[0] < 0 {
		qfac = -1.0
	}

	meta.Direction = [9]float64{
		a*a + b*b - c*c - d*d, 2*b*c - 2*a*d, qfac * (2*b*d + 2*a*c),
		2*b*c + 2*a*d, a*a + c*c - b*b - d*d, qfac * (2*c*d - 2*a*b),
		2*b*d - 2*a*c, 2*c*d + 2*a*b, qfac * (a*a + d*d - c*c - b*b),
	}
	meta.Origin = [3]float64{
		float64(hdr.QoffsetX), float64(hdr.QoffsetY), float64(hdr.QoffsetZ),
	}
	for i := 0; i < 3; i++ {
		meta.Spacing[i] = 1
		if hdr.Pixdim[i+1] != 0 {
			meta.Spacing[i] = float64(hdr.Pixdim[i+1])
		}
	}
	return meta
}

// WriteUint8 saves a volume as an 8-bit unsigned NIfTI-1 file. Voxel values
// are clamped to [0, 255] before narrowing, matching the uint8 cast the
// segmentation pipeline performs on its label and mask outputs. A path
// ending in .gz produces a gzip-compressed file.
func WriteUint8(path string, vol *volume.Volume) error {
	if err := vol.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %v", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := encodeUint8(w, vol); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %v", err)
		}
	}
	return nil
}

// encodeUint8 writes the header, the 4-byte extension flag and the voxel
// data to w.
func encodeUint8(w io.Writer, vol *volume.Volume) error {
	hdr := header{
		SizeofHdr: 348,
		Regular:   'r',
		Datatype:  typeUint8,
		Bitpix:    8,
		VoxOffset: 352,
		SclSlope:  1,
		XyztUnits: 2, // NIFTI_UNITS_MM
		SformCode: 1, // NIFTI_XFORM_SCANNER_ANAT
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = int16(vol.Nx)
	hdr.Dim[2] = int16(vol.Ny)
	hdr.Dim[3] = int16(vol.Nz)
	for d := 4; d < 8; d++ {
		hdr.Dim[d] = 1
	}
	hdr.Pixdim[0] = 1
	for i := 0; i < 3; i++ {
		hdr.Pixdim[i+1] = float32(vol.Meta.Spacing[i])
	}

	// Compose the affine as direction * diag(spacing) with the origin in
	// the fourth column.
	affine := mat.NewDense(3, 3, nil)
	spacing := mat.NewDiagDense(3, vol.Meta.Spacing[:])
	affine.Mul(vol.Meta.DirectionMatrix(), spacing)
	rows := []*[4]float32{&hdr.SrowX, &hdr.SrowY, &hdr.SrowZ}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rows[r][c] = float32(affine.At(r, c))
		}
		rows[r][3] = float32(vol.Meta.Origin[r])
	}
	copy(hdr.Descrip[:], "LearnSimpleITK segconvert")

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("failed to encode header: %v", err)
	}
	// Four zero bytes: no header extensions.
	buf.Write([]byte{0, 0, 0, 0})
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write header: %v", err)
	}

	voxels := make([]byte, vol.Len())
	for i, v := range vol.Data {
		switch {
		case v <= 0:
			voxels[i] = 0
		case v >= 255:
			voxels[i] = 255
		default:
			voxels[i] = uint8(v)
		}
	}
	if _, err := w.Write(voxels); err != nil {
		return fmt.Errorf("failed to write voxel data: %v", err)
	}
	return nil
}
