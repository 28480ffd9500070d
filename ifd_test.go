package raf

import (
	"bytes"
	"encoding/binary"
	"testing"

	tiff "github.com/garyhouston/tiff66"
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value uint32 // inline value word
}

// putIFD encodes a big-endian IFD with inline values at pos in buf.
func putIFD(buf []byte, pos uint32, next uint32, entries ...ifdEntry) {
	binary.BigEndian.PutUint16(buf[pos:], uint16(len(entries)))
	pos += 2
	for _, e := range entries {
		binary.BigEndian.PutUint16(buf[pos:], e.tag)
		binary.BigEndian.PutUint16(buf[pos+2:], e.typ)
		binary.BigEndian.PutUint32(buf[pos+4:], e.count)
		binary.BigEndian.PutUint32(buf[pos+8:], e.value)
		pos += 12
	}
	binary.BigEndian.PutUint32(buf[pos:], next)
}

func TestWalkFujiIFD(t *testing.T) {
	const base = 16
	buf := make([]byte, base+128)
	// parent at 0: a LONG scalar and a sub-IFD pointer
	putIFD(buf, base, 0,
		ifdEntry{0x1000, uint16(tiff.LONG), 1, 42},
		ifdEntry{TagFujiSubIFD, uint16(tiff.LONG), 1, 64},
	)
	// child at 64, relative to base
	putIFD(buf, base+64, 0,
		ifdEntry{0x2000, uint16(tiff.SHORT), 1, 7 << 16},
	)

	d, err := walkFujiIFD(bytes.NewReader(buf), base)
	if err != nil {
		t.Fatal("walkFujiIFD:", err)
	}
	if d.Base != base {
		t.Errorf("base = %#x, want %#x", d.Base, base)
	}
	if len(d.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(d.Fields))
	}
	if v := d.Fields[0].Long(0, binary.BigEndian); v != 42 {
		t.Errorf("field 0x1000 = %d, want 42", v)
	}
	if len(d.Sub) != 1 {
		t.Fatalf("got %d sub-IFDs, want 1", len(d.Sub))
	}
	sub := d.Sub[0]
	if sub.Base != base+64 {
		t.Errorf("sub base = %#x, want %#x", sub.Base, base+64)
	}
	if len(sub.Fields) != 1 || sub.Fields[0].Short(0, binary.BigEndian) != 7 {
		t.Errorf("sub fields = %+v", sub.Fields)
	}
}

func TestWalkFujiIFDChain(t *testing.T) {
	buf := make([]byte, 128)
	putIFD(buf, 0, 40, ifdEntry{0x1000, uint16(tiff.LONG), 1, 1})
	putIFD(buf, 40, 0, ifdEntry{0x1001, uint16(tiff.LONG), 1, 2})

	d, err := walkFujiIFD(bytes.NewReader(buf), 0)
	if err != nil {
		t.Fatal("walkFujiIFD:", err)
	}
	if d.Next == nil {
		t.Fatal("chained directory missing")
	}
	if v := d.Next.Fields[0].Long(0, binary.BigEndian); v != 2 {
		t.Errorf("chained field = %d, want 2", v)
	}
	if d.Next.Next != nil {
		t.Error("chain should end after the second directory")
	}
}

func TestWalkFujiIFDGarbage(t *testing.T) {
	// non-TIFF data at a sub-IFD pointer must come back as an
	// error, not a panic
	buf := bytes.Repeat([]byte{0xff}, 64)
	if _, err := walkFujiIFD(bytes.NewReader(buf), 0); err == nil {
		t.Error("garbage decoded without error")
	}

	if _, err := walkFujiIFD(bytes.NewReader([]byte{0}), 0); err == nil {
		t.Error("single byte decoded without error")
	}
}

func TestWalkFujiIFDSelfReference(t *testing.T) {
	// a sub-IFD pointing at itself must hit the depth limit, not
	// recurse forever
	buf := make([]byte, 64)
	putIFD(buf, 0, 0, ifdEntry{TagFujiSubIFD, uint16(tiff.LONG), 1, 0})
	if _, err := walkFujiIFD(bytes.NewReader(buf), 0); err == nil {
		t.Error("self-referencing sub-IFD decoded without error")
	}
}
