package raf

import "encoding/binary"

// widthPlausible is the empirical bound separating pixel widths from
// other values stored first in the raw data sub-block. Firmware
// variants disagree about which slot holds the width; the first
// plausible value wins.
const widthPlausible = 10000

// Layout carries the per-pass decode state for sensor dimensions.
// Packed sensors store rows twice as long and half as many of them,
// so a raw width is halved and a raw height doubled to obtain the
// displayed size. A Layout is scoped to a single file's decode pass
// and must not be shared between files.
type Layout struct {
	// Packed is set from the top bit of the raw layout byte and
	// applies to all width/height values read after it.
	Packed bool

	// Width and Height are the displayed raw dimensions, zero if
	// the file carries none.
	Width, Height uint32
}

// observe updates the layout context from a decoded directory entry.
func (l *Layout) observe(tag uint16, v interface{}) {
	switch tag {
	case TagRawLayout:
		if b, ok := v.(byte); ok {
			l.Packed = b&0x80 != 0
		}
	case TagSensorDimensions:
		if d, ok := v.([]uint16); ok && len(d) == 2 {
			// stored height first
			l.setDims(uint32(d[1]), uint32(d[0]))
		}
	}
}

// readRawData decodes the binary width/height sub-block: big-endian
// 32-bit values at fixed offsets 0, 4 and 8. When the first value is
// a plausible pixel width it is the width and the alternate slot at
// offset 4 is not authoritative for this camera; otherwise offset 4
// supplies the width. Offset 8 is always the height.
func (l *Layout) readRawData(p []byte) {
	if len(p) < 12 {
		return
	}
	v0 := binary.BigEndian.Uint32(p)
	w := binary.BigEndian.Uint32(p[4:])
	h := binary.BigEndian.Uint32(p[8:])
	if v0 < widthPlausible {
		w = v0
	}
	l.setDims(w, h)
}

func (l *Layout) setDims(w, h uint32) {
	if l.Packed {
		w, h = w/2, h*2
	}
	l.Width, l.Height = w, h
}
