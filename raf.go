// Package raf reads and rewrites Fujifilm RAF raw image containers.
//
// A RAF file wraps an embedded JPEG preview and several independent
// metadata directories behind a fixed-layout header. The package
// decodes the header, the proprietary tag/length/value directories,
// the nested face recognition records and the TIFF-style Fuji
// sub-directories, and can replace the embedded preview in place
// while leaving every other byte of the container untouched.
//
// Sensor pixel data is not decoded.
package raf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Info records the metadata decoded from a RAF container.
type Info struct {
	Header Header

	// Dirs holds the proprietary directories, in pointer slot
	// order, so repeated tags are reported in a stable order
	// across runs.
	Dirs []Dir

	// IFDs holds the TIFF-style sub-directories.
	IFDs []IFDDir

	// Faces holds face recognition records from all directories.
	Faces []FaceRecord

	// Layout holds the derived sensor layout and pixel dimensions.
	Layout Layout

	// Warnings lists non-fatal problems encountered while
	// decoding, such as directories that could not be read.
	Warnings []string
}

func (i *Info) warnf(format string, args ...interface{}) {
	i.Warnings = append(i.Warnings, fmt.Sprintf(format, args...))
}

// Parse parses a RAF container from r.
//
// Decoding is best effort: directories that fail to decode are
// reported in Info.Warnings, and valid parts are always returned.
// Input that does not start with the RAF signature yields
// ErrUnknownFormat.
//
// If r is an io.ReadSeeker it is used to seek within r; otherwise the
// remaining input is buffered in memory.
func Parse(r io.Reader) (*Info, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return parse(rs)
	}
	p, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parse(bytes.NewReader(p))
}

// ParseAt parses a RAF container from r.
func ParseAt(r io.ReaderAt) (*Info, error) {
	return parse(&atReadSeeker{0, r})
}

func parse(rs io.ReadSeeker) (*Info, error) {
	h, err := readHeader(rs)
	if err != nil {
		return nil, err
	}

	info := &Info{Header: *h}
	if h.JPEGOffset < JPEGOffsetMin || h.JPEGOffset%4 != 0 {
		// tolerated on the read path, fatal on the write path
		info.warnf("irregular JPEG offset %#x", h.JPEGOffset)
	}

	var lay Layout

	// Proprietary directories first, then the TIFF-style ones,
	// each in ascending header slot order.
	for _, i := range []int{0, 1} {
		if !info.slotUsable(i) {
			continue
		}
		d, err := decodeDir(rs, h.Slots[i], DefaultCatalog, &lay)
		if err != nil {
			info.warnf("directory at %#x: %v", h.Slots[i], err)
			continue
		}
		info.Dirs = append(info.Dirs, *d)
		info.Faces = append(info.Faces, d.Faces...)
	}
	for _, i := range []int{2, 3} {
		if !info.slotUsable(i) {
			continue
		}
		d, err := walkFujiIFD(rs, h.Slots[i])
		if err != nil {
			// expected on models that store non-TIFF data here
			info.warnf("sub-IFD at %#x: %v", h.Slots[i], err)
			continue
		}
		info.IFDs = append(info.IFDs, *d)
	}

	info.Layout = lay
	return info, nil
}

func (i *Info) slotUsable(slot int) bool {
	return i.Header.SlotValid(slot) && i.Header.Slots[slot] != 0
}

// readHeader reads and decodes the leading header, tolerating files
// shorter than the full header layout.
func readHeader(rs io.ReadSeeker) (*Header, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	p := make([]byte, HeaderSize)
	n, err := io.ReadFull(rs, p)
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
		// short files are ParseHeader's problem
	default:
		return nil, err
	}
	return ParseHeader(p[:n])
}

// JPEG returns the embedded preview JPEG bytes.
func JPEG(rs io.ReadSeeker) ([]byte, error) {
	h, err := readHeader(rs)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(int64(h.JPEGOffset), io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "embedded JPEG")
	}
	p := make([]byte, h.JPEGLength)
	if _, err := io.ReadFull(rs, p); err != nil {
		return nil, errors.Wrap(err, "embedded JPEG")
	}
	return p, nil
}
