// Package preview reads and rewrites the metadata of the JPEG preview
// embedded in a RAF container.
//
// The preview carries its own Exif block in an APP1 segment. Rewriter
// produces a raf.JPEGRewriteFunc that applies a set of pending edits
// to that block and passes every other segment and the entropy-coded
// image data through byte-exact.
package preview

import (
	"bytes"
	"encoding/binary"
	"sort"

	jseg "github.com/garyhouston/jpegsegs"
	tiff "github.com/garyhouston/tiff66"
	"github.com/pkg/errors"

	"github.com/tajtiattila/raf"
)

// ErrNoExif is returned by Exif when the preview has no Exif segment.
var ErrNoExif = errors.New("preview: no Exif segment")

var exifHeader = []byte("Exif\x00\x00")

// app1 is the marker of the Exif segment.
const app1 = jseg.APP0 + 1

// maxSegmentLen is the largest APP1 payload that fits the 16-bit
// segment length field.
const maxSegmentLen = 0xffff - 2

// Exif locates and decodes the preview's Exif block. The returned
// tree does not alias the input.
func Exif(jpeg []byte) (*tiff.IFDNode, binary.ByteOrder, error) {
	scanner, err := jseg.NewScanner(bytes.NewReader(jpeg))
	if err != nil {
		return nil, nil, errors.Wrap(err, "preview")
	}
	for {
		marker, buf, err := scanner.Scan()
		if err != nil {
			return nil, nil, errors.Wrap(err, "preview")
		}
		if marker == jseg.SOS {
			return nil, nil, ErrNoExif
		}
		if marker != app1 || !bytes.HasPrefix(buf, exifHeader) {
			continue
		}
		// decode from a copy: the scanner reuses its buffer and
		// tiff66 fields alias the decoded slice
		p := make([]byte, len(buf)-len(exifHeader))
		copy(p, buf[len(exifHeader):])
		valid, order, pos := tiff.GetHeader(p)
		if !valid {
			return nil, nil, errors.Wrap(raf.ErrCorrupt, "preview: bad Exif TIFF header")
		}
		node, err := tiff.GetIFDTree(p, order, pos, tiff.TIFFSpace)
		if err != nil {
			return nil, nil, errors.Wrap(err, "preview")
		}
		return node, order, nil
	}
}

// Edits are pending metadata edits applied to the preview Exif.
// Zero-valued fields are left unchanged.
type Edits struct {
	// DateTime in Exif format ("2006:01:02 15:04:05").
	DateTime string

	Artist   string
	Software string

	// Orientation 1..8; zero leaves it unchanged.
	Orientation int
}

func (e *Edits) empty() bool {
	return e.DateTime == "" && e.Artist == "" && e.Software == "" && e.Orientation == 0
}

// Rewriter returns a rewrite callback for raf.Rewrite applying e to
// the preview's Exif block.
func Rewriter(e Edits) raf.JPEGRewriteFunc {
	return func(jpeg []byte) ([]byte, error) {
		return rewrite(jpeg, e)
	}
}

// rewrite streams the preview's segments, replacing the Exif APP1
// with the edited one. A preview whose Exif cannot be decoded or no
// longer fits its segment after editing yields (nil, nil), the soft
// failure raf.Rewrite reports as StatusCorrupt.
func rewrite(jpeg []byte, e Edits) ([]byte, error) {
	r := bytes.NewReader(jpeg)
	scanner, err := jseg.NewScanner(r)
	if err != nil {
		return nil, errors.Wrap(err, "preview")
	}
	out := new(bytes.Buffer)
	dumper, err := jseg.NewDumper(out)
	if err != nil {
		return nil, errors.Wrap(err, "preview")
	}
	edited := false
	for {
		marker, buf, err := scanner.Scan()
		if err != nil {
			return nil, errors.Wrap(err, "preview")
		}
		if !edited && !e.empty() && marker == app1 && bytes.HasPrefix(buf, exifHeader) {
			nb, ok := applyEdits(buf, e)
			if !ok {
				return nil, nil
			}
			buf = nb
			edited = true
		}
		if err := dumper.Dump(marker, buf); err != nil {
			return nil, errors.Wrap(err, "preview")
		}
		if marker == jseg.SOS {
			break
		}
	}
	// entropy-coded data and trailing markers pass through unchanged
	out.Write(jpeg[len(jpeg)-r.Len():])
	return out.Bytes(), nil
}

// applyEdits decodes the Exif TIFF tree from the APP1 payload seg,
// applies e to IFD0 and re-encodes the segment.
func applyEdits(seg []byte, e Edits) ([]byte, bool) {
	p := make([]byte, len(seg)-len(exifHeader))
	copy(p, seg[len(exifHeader):])
	valid, order, pos := tiff.GetHeader(p)
	if !valid {
		return nil, false
	}
	node, err := tiff.GetIFDTree(p, order, pos, tiff.TIFFSpace)
	if err != nil {
		return nil, false
	}

	ifd0 := &node.IFD
	if e.Artist != "" {
		putASCII(ifd0, tiff.Artist, e.Artist)
	}
	if e.Software != "" {
		putASCII(ifd0, tiff.Software, e.Software)
	}
	if e.DateTime != "" {
		putASCII(ifd0, tiff.DateTime, e.DateTime)
	}
	if e.Orientation != 0 {
		putShort(ifd0, tiff.Orientation, uint16(e.Orientation), order)
	}

	buf := make([]byte, 8+node.TreeSize(order))
	tiff.PutHeader(buf, order, 8)
	if _, err := node.PutIFDTree(buf, 8, order); err != nil {
		return nil, false
	}
	res := make([]byte, 0, len(exifHeader)+len(buf))
	res = append(res, exifHeader...)
	res = append(res, buf...)
	if len(res) > maxSegmentLen {
		return nil, false
	}
	return res, true
}

func putASCII(ifd *tiff.IFD_T, tag tiff.Tag, val string) {
	f := ensureField(ifd, tag)
	f.Type = tiff.ASCII
	f.PutASCII(val)
	f.Count = uint32(len(f.Data))
}

func putShort(ifd *tiff.IFD_T, tag tiff.Tag, val uint16, order binary.ByteOrder) {
	f := ensureField(ifd, tag)
	f.Type = tiff.SHORT
	f.Count = 1
	f.Data = make([]byte, 2)
	f.PutShort(val, 0, order)
}

// ensureField returns the field with the given tag, inserting an
// empty one in tag order if missing. PutIFDTree requires ascending
// tags.
func ensureField(ifd *tiff.IFD_T, tag tiff.Tag) *tiff.Field {
	i := sort.Search(len(ifd.Fields), func(i int) bool {
		return ifd.Fields[i].Tag >= tag
	})
	if i < len(ifd.Fields) && ifd.Fields[i].Tag == tag {
		return &ifd.Fields[i]
	}
	ifd.Fields = append(ifd.Fields, tiff.Field{})
	copy(ifd.Fields[i+1:], ifd.Fields[i:])
	ifd.Fields[i] = tiff.Field{Tag: tag}
	return &ifd.Fields[i]
}
