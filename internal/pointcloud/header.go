// Package pointcloud wraps the external point-cloud collaborators: a LAS/LAZ
// header reader and the PDAL-based tile splitter.
package pointcloud

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotLAS is returned when a file does not start with the LAS signature.
var ErrNotLAS = errors.New("not a LAS file")

// Header is the subset of the LAS public header block lcpipe needs.
type Header struct {
	VersionMajor uint8
	VersionMinor uint8
	PointFormat  uint8
	PointCount   uint64
	Min          [3]float64
	Max          [3]float64
	Scale        [3]float64
	Offset       [3]float64
}

// Centroid returns the midpoint of the header's x/y extent.
func (h Header) Centroid() (float64, float64) {
	cx := h.Min[0] + (h.Max[0]-h.Min[0])/2
	cy := h.Min[1] + (h.Max[1]-h.Min[1])/2
	return cx, cy
}

// HeaderReader reads point-cloud metadata.
type HeaderReader interface {
	ReadHeader(path string) (Header, error)
}

// lasPublicHeader is the LAS 1.0-1.3 public header block, 227 bytes,
// little endian, no padding.
type lasPublicHeader struct {
	Signature            [4]byte
	FileSourceID         uint16
	GlobalEncoding       uint16
	GUID                 [16]byte
	VersionMajor         uint8
	VersionMinor         uint8
	SystemIdentifier     [32]byte
	GeneratingSoftware   [32]byte
	CreationDay          uint16
	CreationYear         uint16
	HeaderSize           uint16
	OffsetToPointData    uint32
	NumberOfVLRs         uint32
	PointDataFormat      uint8
	PointDataRecordLen   uint16
	LegacyPointCount     uint32
	LegacyPointsByReturn [5]uint32
	ScaleX               float64
	ScaleY               float64
	ScaleZ               float64
	OffsetX              float64
	OffsetY              float64
	OffsetZ              float64
	MaxX                 float64
	MinX                 float64
	MaxY                 float64
	MinY                 float64
	MaxZ                 float64
	MinZ                 float64
}

// las14Extension follows the public header in LAS 1.4 files.
type las14Extension struct {
	WaveformStart  uint64
	EVLRStart      uint64
	EVLRCount      uint32
	PointCount     uint64
	PointsByReturn [15]uint64
}

const (
	lasPublicHeaderSize = 227
	las14HeaderSize     = 375
)

// LASReader reads headers of LAS and LAZ files from disk.
type LASReader struct{}

// NewLASReader returns a header reader for LAS/LAZ files.
func NewLASReader() *LASReader { return &LASReader{} }

// ReadHeader opens path and decodes its public header block.
func (LASReader) ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("open point cloud: %w", err)
	}
	defer f.Close()

	h, err := DecodeHeader(bufio.NewReader(f))
	if err != nil {
		return Header{}, fmt.Errorf("read header of %s: %w", path, err)
	}
	return h, nil
}

// DecodeHeader decodes a LAS public header from r.
func DecodeHeader(r io.Reader) (Header, error) {
	var ph lasPublicHeader
	if err := binary.Read(r, binary.LittleEndian, &ph); err != nil {
		return Header{}, fmt.Errorf("decode public header: %w", err)
	}
	if string(ph.Signature[:]) != "LASF" {
		return Header{}, ErrNotLAS
	}

	h := Header{
		VersionMajor: ph.VersionMajor,
		VersionMinor: ph.VersionMinor,
		// LAZ sets the two high bits of the format byte.
		PointFormat: ph.PointDataFormat & 0x3f,
		PointCount:  uint64(ph.LegacyPointCount),
		Min:         [3]float64{ph.MinX, ph.MinY, ph.MinZ},
		Max:         [3]float64{ph.MaxX, ph.MaxY, ph.MaxZ},
		Scale:       [3]float64{ph.ScaleX, ph.ScaleY, ph.ScaleZ},
		Offset:      [3]float64{ph.OffsetX, ph.OffsetY, ph.OffsetZ},
	}

	if ph.VersionMajor == 1 && ph.VersionMinor >= 4 && ph.HeaderSize >= las14HeaderSize {
		// Skip the 1.3 waveform field as part of the extension struct.
		var ext las14Extension
		if err := binary.Read(r, binary.LittleEndian, &ext); err != nil {
			return Header{}, fmt.Errorf("decode 1.4 header extension: %w", err)
		}
		if ext.PointCount != 0 {
			h.PointCount = ext.PointCount
		}
	}

	return h, nil
}

var _ HeaderReader = (*LASReader)(nil)
