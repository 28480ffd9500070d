package raf

import "encoding/binary"

// Face record relationship category bits.
const (
	FacePartner = 1 << 0
	FaceFamily  = 1 << 1
	FaceFriend  = 1 << 2
)

// FaceRecord is one named face from the camera's face recognition
// database, stored in the payload of a single directory entry.
type FaceRecord struct {
	// Index is the 1-based position in the index table.
	Index int

	Name string

	// Birthday is a colon-separated date ("1999:12:31").
	Birthday string

	// Category is a bitmask of FacePartner, FaceFamily and
	// FaceFriend.
	Category byte
}

const (
	maxFaceRecords = 100

	// minFaceBlockLen is the smallest descriptor block that can
	// hold all the fixed sub-offsets below.
	minFaceBlockLen = 62

	faceNameLenOff  = 30
	faceNameOff     = 34
	faceCategoryOff = 46
	faceBdayLenOff  = 54
	faceBdayOff     = 58
)

// decodeFaceRecords decodes the face index table in p: consecutive
// 8-byte records holding a descriptor block offset and length, both
// relative to the start of p. An index record that does not fit, a
// zero or implausibly small block length, or a block or text span
// reaching outside p terminates the scan without error; malformed
// trailing entries are the normal way the list ends in the wild.
func decodeFaceRecords(p []byte) []FaceRecord {
	var recs []FaceRecord
	for i := 0; i < maxFaceRecords; i++ {
		ix := i * 8
		if ix+8 > len(p) {
			break
		}
		off := binary.BigEndian.Uint32(p[ix:])
		length := binary.BigEndian.Uint32(p[ix+4:])
		if length < minFaceBlockLen {
			break
		}
		if uint64(off)+uint64(length) > uint64(len(p)) {
			break
		}
		block := p[off : off+length]
		name, ok := faceText(p, off, block, faceNameLenOff, faceNameOff)
		if !ok {
			break
		}
		bday, ok := faceText(p, off, block, faceBdayLenOff, faceBdayOff)
		if !ok {
			break
		}
		recs = append(recs, FaceRecord{
			Index:    i + 1,
			Name:     name,
			Birthday: faceDate(bday),
			Category: block[faceCategoryOff],
		})
	}
	return recs
}

// faceText extracts a text field through the length/offset pair at
// lenOff/offOff inside the descriptor block. The offset is relative
// to the start of p and must not point before the block or past the
// end of p.
func faceText(p []byte, blockStart uint32, block []byte, lenOff, offOff int) (string, bool) {
	n := binary.BigEndian.Uint32(block[lenOff:])
	off := binary.BigEndian.Uint32(block[offOff:])
	if off < blockStart || uint64(off)+uint64(n) > uint64(len(p)) {
		return "", false
	}
	return string(p[off : off+n]), true
}

// faceDate reformats an 8-digit date by inserting separators between
// the year, month and day groups.
func faceDate(s string) string {
	if len(s) != 8 {
		return s
	}
	return s[:4] + ":" + s[4:6] + ":" + s[6:]
}
