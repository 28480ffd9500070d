package raf

import (
	"errors"
	"io"
)

// atReadSeeker adapts an io.ReaderAt to the io.ReadSeeker used by the
// decode and rewrite paths.
type atReadSeeker struct {
	off int64
	io.ReaderAt
}

func (a *atReadSeeker) Read(p []byte) (n int, err error) {
	n, err = a.ReadAt(p, a.off)
	a.off += int64(n)
	return
}

var errWhence = errors.New("Seek: invalid whence")
var errSeekEnd = errors.New("Seek: atReadSeeker doesn't support seeking from end")
var errSeekOffset = errors.New("Seek: invalid offset")

func (a *atReadSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		// pass
	case io.SeekCurrent:
		offset += a.off
	case io.SeekEnd:
		s, ok := a.ReaderAt.(sizer)
		if !ok {
			return a.off, errSeekEnd
		}
		offset += s.Size()
	default:
		return a.off, errWhence
	}
	if offset < 0 {
		return a.off, errSeekOffset
	}
	a.off = offset
	return a.off, nil
}

type sizer interface {
	Size() int64
}
