package raf

import (
	"encoding/binary"
	"io"

	tiff "github.com/garyhouston/tiff66"
	"github.com/pkg/errors"
)

// TagFujiSubIFD marks an entry whose value is the offset of a nested
// sub-IFD, relative to the enclosing directory's base.
const TagFujiSubIFD = 0xf000

// IFDDir is a decoded TIFF-style Fuji sub-directory. Entry decoding
// is delegated to the tiff66 engine; this package only supplies the
// format quirks: the forced big-endian byte order and the nested
// sub-IFD pointer tag.
type IFDDir struct {
	// Base is the absolute file offset of the directory.
	Base uint32

	Fields []tiff.Field

	// Sub holds nested directories reached through TagFujiSubIFD.
	Sub []IFDDir

	// Next is the chained directory, if any.
	Next *IFDDir
}

const (
	// ifdWindow bounds the bytes read for one sub-IFD family.
	ifdWindow = 1 << 20

	maxIFDDepth = 4
)

// walkFujiIFD decodes the TIFF-style directory chain at base. These
// directories are big-endian regardless of byte order markers
// elsewhere in the file. Several camera models store non-TIFF data at
// these pointers, so callers treat any error as a warning rather than
// a failure of the whole parse.
func walkFujiIFD(rs io.ReadSeeker, base uint32) (*IFDDir, error) {
	if _, err := rs.Seek(int64(base), io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "sub-IFD at %#x", base)
	}
	buf := make([]byte, ifdWindow)
	n, err := io.ReadFull(rs, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrapf(err, "sub-IFD at %#x", base)
	}
	if n < 2 {
		return nil, errors.Wrapf(ErrTruncated, "sub-IFD at %#x", base)
	}
	return decodeFujiIFD(buf[:n], base, 0, 0)
}

func decodeFujiIFD(buf []byte, base, pos uint32, depth int) (*IFDDir, error) {
	if depth > maxIFDDepth {
		return nil, errors.Wrapf(ErrCorrupt, "sub-IFD at %#x: nesting too deep", base+pos)
	}
	if uint64(pos)+2 > uint64(len(buf)) {
		return nil, errors.Wrapf(ErrTruncated, "sub-IFD at %#x", base+pos)
	}
	ifd, next, err := tiff.GetIFD(buf, binary.BigEndian, pos, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "sub-IFD at %#x", base+pos)
	}
	d := &IFDDir{Base: base + pos, Fields: ifd.Fields}
	for _, f := range ifd.Fields {
		if uint16(f.Tag) != TagFujiSubIFD || f.Type != tiff.LONG || f.Count == 0 {
			continue
		}
		sub, err := decodeFujiIFD(buf, base, f.Long(0, binary.BigEndian), depth+1)
		if err != nil {
			return nil, err
		}
		d.Sub = append(d.Sub, *sub)
	}
	if next != 0 && next != pos {
		nd, err := decodeFujiIFD(buf, base, next, depth+1)
		if err != nil {
			return nil, err
		}
		d.Next = nd
	}
	return d, nil
}
