package raf

import "testing"

func rawDataBlock(v0, v1, v2 uint32) []byte {
	return append(append(be32(v0), be32(v1)...), be32(v2)...)
}

func TestReadRawData(t *testing.T) {
	tests := []struct {
		name         string
		p            []byte
		wantW, wantH uint32
	}{
		{"width first", rawDataBlock(3000, 9, 2000), 3000, 2000},
		{"width in alternate slot", rawDataBlock(12000, 4000, 3000), 4000, 3000},
		{"boundary is not plausible", rawDataBlock(widthPlausible, 6000, 4000), 6000, 4000},
		{"short block ignored", rawDataBlock(1, 2, 3)[:11], 0, 0},
	}
	for _, tt := range tests {
		var l Layout
		l.readRawData(tt.p)
		if l.Width != tt.wantW || l.Height != tt.wantH {
			t.Errorf("%s: dims = %dx%d, want %dx%d", tt.name, l.Width, l.Height, tt.wantW, tt.wantH)
		}
	}
}

func TestReadRawDataPacked(t *testing.T) {
	l := Layout{Packed: true}
	l.readRawData(rawDataBlock(3000, 9, 2000))
	if l.Width != 1500 || l.Height != 4000 {
		t.Errorf("dims = %dx%d, want 1500x4000", l.Width, l.Height)
	}
}

func TestObserve(t *testing.T) {
	var l Layout
	l.observe(TagRawLayout, byte(0x81))
	if !l.Packed {
		t.Error("top bit should set packed")
	}
	l.observe(TagRawLayout, byte(0x01))
	if l.Packed {
		t.Error("clear top bit should reset packed")
	}
	l.observe(TagSensorDimensions, []uint16{2000, 3000})
	if l.Width != 3000 || l.Height != 2000 {
		t.Errorf("dims = %dx%d, want 3000x2000", l.Width, l.Height)
	}
}
