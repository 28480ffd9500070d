package raf

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Header byte layout. All multi-byte integers in the header are
// big-endian.
const (
	// HeaderSize is the full fixed header with all pointer slots.
	HeaderSize = 0x94

	// HeaderSizeMin is the shortest layout still holding the
	// version, the JPEG offset and length.
	HeaderSizeMin = 0x5c

	// JPEGOffsetMin is the lowest offset the embedded JPEG may
	// start at; anything smaller would overlap the mandatory
	// header fields.
	JPEGOffsetMin = 0x68

	versionOffset    = 0x10
	jpegOffsetOffset = 0x54
	jpegLengthOffset = 0x58
)

const magic = "FUJIFILM"

// slotOffsets are the header positions of the pointer slots, in
// ascending order. The slot at 0x5c doubles as the next-block pointer
// that bounds the JPEG padding on the write path.
var slotOffsets = [4]uint32{0x5c, 0x64, 0x78, 0x80}

// Header is the decoded fixed-layout RAF file header. It is the sole
// source of truth for all offsets used while decoding or rewriting a
// file; nothing mutates it after ParseHeader.
type Header struct {
	// Version is the four ASCII digit format version token.
	Version string

	// JPEGOffset and JPEGLength locate the embedded preview JPEG.
	JPEGOffset uint32
	JPEGLength uint32

	// Slots holds the raw pointer slot values in header order
	// (0x5c, 0x64, 0x78, 0x80). Zero means not present. Slots
	// located at or after JPEGOffset do not exist in the shorter
	// header layouts; see SlotValid.
	Slots [4]uint32
}

// ParseHeader decodes the leading header bytes. It needs at least
// HeaderSizeMin bytes; pointer slots beyond len(p) read as zero.
// ParseHeader checks only the signature and the version token.
// Pointer bound checks are the caller's job, since they differ
// between the read and write paths.
func ParseHeader(p []byte) (*Header, error) {
	if len(p) < len(magic) || string(p[:len(magic)]) != magic {
		return nil, ErrUnknownFormat
	}
	if len(p) < HeaderSizeMin {
		return nil, errors.Wrapf(ErrTruncated, "header: %d bytes, need %d", len(p), HeaderSizeMin)
	}
	v := p[versionOffset : versionOffset+4]
	for _, c := range v {
		if c < '0' || c > '9' {
			return nil, errors.Wrapf(ErrCorrupt, "header: version %q", v)
		}
	}
	h := &Header{
		Version:    string(v),
		JPEGOffset: binary.BigEndian.Uint32(p[jpegOffsetOffset:]),
		JPEGLength: binary.BigEndian.Uint32(p[jpegLengthOffset:]),
	}
	for i, off := range slotOffsets {
		if int(off)+4 <= len(p) {
			h.Slots[i] = binary.BigEndian.Uint32(p[off:])
		}
	}
	return h, nil
}

// SlotValid reports whether pointer slot i exists in this header
// layout. On short-header models the later slot positions are already
// part of the JPEG region, so a slot participates only when its
// header position lies strictly before the JPEG offset.
func (h *Header) SlotValid(i int) bool {
	return slotOffsets[i] < h.JPEGOffset
}

// ValidateWrite applies the stricter write-path header checks: the
// JPEG offset must be 4-byte aligned and within [JPEGOffsetMin,
// HeaderSize]. The read path tolerates violations; the write path
// must not, as the rewrite plan depends on these bounds.
func (h *Header) ValidateWrite() error {
	if h.JPEGOffset < JPEGOffsetMin || h.JPEGOffset > HeaderSize || h.JPEGOffset%4 != 0 {
		return errors.Wrapf(ErrCorrupt, "header: bad JPEG offset %#x", h.JPEGOffset)
	}
	return nil
}
