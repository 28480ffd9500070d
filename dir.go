package raf

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Format identifies the binary encoding of a directory tag payload.
// All formats are big-endian, regardless of any byte order flag
// elsewhere in the file.
type Format uint8

const (
	FormatOpaque Format = iota // raw bytes
	FormatByte                 // unsigned 8-bit
	FormatUShort               // unsigned 16-bit
	FormatULong                // unsigned 32-bit
	FormatString               // text, trailing NUL stripped
)

func (f Format) size() int {
	switch f {
	case FormatByte, FormatString:
		return 1
	case FormatUShort:
		return 2
	case FormatULong:
		return 4
	}
	return 0
}

// SubFormat selects a nested decoder for a directory tag payload.
type SubFormat uint8

const (
	SubNone        SubFormat = iota
	SubFaceRecords           // face recognition index table
	SubRawData               // binary width/height sub-block
)

// TagInfo describes how a known directory tag payload is encoded.
type TagInfo struct {
	Format Format
	Count  int // expected element count
	Sub    SubFormat
}

// Catalog resolves directory tag ids to their payload encoding.
// Semantic tag dictionaries (names, units, print conversions) live
// outside this package and implement Catalog to drive the decoder.
type Catalog interface {
	Lookup(tag uint16) (TagInfo, bool)
}

// Structural directory tags this package interprets itself.
const (
	// TagSensorDimensions holds the raw sensor height and width as
	// two unsigned 16-bit values, in that order.
	TagSensorDimensions = 0x0100

	// TagRawLayout is a single byte describing the sensor readout;
	// its top bit selects the packed 2-row layout.
	TagRawLayout = 0x0130

	// TagRawData points at the binary width/height sub-block keyed
	// at fixed byte offsets 0, 4 and 8.
	TagRawData = 0xc000

	// TagFaceRecInfo holds the face recognition index table.
	TagFaceRecInfo = 0x4282
)

type mapCatalog map[uint16]TagInfo

func (m mapCatalog) Lookup(tag uint16) (TagInfo, bool) {
	ti, ok := m[tag]
	return ti, ok
}

// DefaultCatalog covers the structural tags above. Dictionaries with
// semantic tables can wrap it and add their own entries.
var DefaultCatalog Catalog = mapCatalog{
	TagSensorDimensions: {Format: FormatUShort, Count: 2},
	TagRawLayout:        {Format: FormatByte, Count: 1},
	TagRawData:          {Sub: SubRawData},
	TagFaceRecInfo:      {Sub: SubFaceRecords},
}

// Entry is one tag/length/value record of a RAF directory. Repeated
// tags are legal and each occurrence is reported independently, in
// file order.
type Entry struct {
	Tag uint16

	// Offset is the file position of the first payload byte.
	Offset int64

	// Data is the raw payload.
	Data []byte

	// Value is the payload decoded according to the catalog, or the
	// conventional unsigned 32-bit reading of a 4-byte payload of an
	// unknown tag. Nil when the payload is opaque.
	Value interface{}
}

// Dir is a decoded RAF directory.
type Dir struct {
	Offset  uint32
	Entries []Entry
	Faces   []FaceRecord
}

// maxDirEntries is a sanity bound on the directory entry count,
// guarding against misaligned reads.
const maxDirEntries = 256

// decodeDir decodes one tag/length/value directory starting at pos.
// Entries whose payload cannot be decoded in the catalog's declared
// format are skipped; unknown tags are kept as raw blobs. Any short
// read aborts the whole directory with ErrTruncated. The layout
// context lay accumulates sensor dimension state across entries.
func decodeDir(rs io.ReadSeeker, pos uint32, cat Catalog, lay *Layout) (*Dir, error) {
	if _, err := rs.Seek(int64(pos), io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "directory at %#x", pos)
	}
	var buf [4]byte
	if _, err := io.ReadFull(rs, buf[:]); err != nil {
		return nil, errors.Wrapf(ErrTruncated, "directory at %#x: %v", pos, err)
	}
	n := binary.BigEndian.Uint32(buf[:])
	if n >= maxDirEntries {
		return nil, errors.Wrapf(ErrCorrupt, "directory at %#x: implausible entry count %d", pos, n)
	}

	d := &Dir{Offset: pos}
	off := int64(pos) + 4
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(rs, buf[:]); err != nil {
			return nil, errors.Wrapf(ErrTruncated, "directory at %#x entry %d: %v", pos, i, err)
		}
		tag := binary.BigEndian.Uint16(buf[:2])
		length := binary.BigEndian.Uint16(buf[2:])
		data := make([]byte, length)
		if _, err := io.ReadFull(rs, data); err != nil {
			return nil, errors.Wrapf(ErrTruncated, "directory at %#x entry %d: %v", pos, i, err)
		}
		e := Entry{Tag: tag, Offset: off + 4, Data: data}
		off += 4 + int64(length)

		ti, known := cat.Lookup(tag)
		switch {
		case known && ti.Sub == SubFaceRecords:
			d.Faces = append(d.Faces, decodeFaceRecords(data)...)
		case known && ti.Sub == SubRawData:
			lay.readRawData(data)
		case known && ti.Format != FormatOpaque:
			v, ok := decodeValue(data, ti)
			if !ok {
				// payload too short for the declared format
				continue
			}
			e.Value = v
			lay.observe(tag, v)
		default:
			// unknown tags and catalog entries declared opaque
			if len(data) == 4 {
				e.Value = binary.BigEndian.Uint32(data)
			}
		}
		d.Entries = append(d.Entries, e)
	}
	return d, nil
}

func decodeValue(p []byte, ti TagInfo) (interface{}, bool) {
	if ti.Format.size() == 0 {
		return nil, false
	}
	n := ti.Count
	if n <= 0 {
		n = len(p) / ti.Format.size()
	}
	if len(p) < n*ti.Format.size() {
		return nil, false
	}
	switch ti.Format {
	case FormatString:
		s := p[:n]
		if len(s) > 0 && s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		return string(s), true
	case FormatByte:
		if n == 1 {
			return p[0], true
		}
		v := make([]byte, n)
		copy(v, p)
		return v, true
	case FormatUShort:
		if n == 1 {
			return binary.BigEndian.Uint16(p), true
		}
		v := make([]uint16, n)
		for i := range v {
			v[i] = binary.BigEndian.Uint16(p[2*i:])
		}
		return v, true
	case FormatULong:
		if n == 1 {
			return binary.BigEndian.Uint32(p), true
		}
		v := make([]uint32, n)
		for i := range v {
			v[i] = binary.BigEndian.Uint32(p[4*i:])
		}
		return v, true
	}
	return nil, false
}
