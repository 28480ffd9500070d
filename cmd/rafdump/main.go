// Command rafdump prints the structure of RAF containers.
package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"

	jseg "github.com/garyhouston/jpegsegs"
	tiff "github.com/garyhouston/tiff66"

	"github.com/tajtiattila/raf"
)

var (
	showFaces = flag.Bool("faces", false, "print face recognition records")
	showIFD   = flag.Bool("ifd", false, "print TIFF-style sub-IFD fields")
	showJPEG  = flag.Bool("jpeg", false, "list embedded preview segments")
)

func main() {
	log.SetFlags(0)
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatal("usage: rafdump [flags] file...")
	}
	for _, fn := range flag.Args() {
		dump(fn)
	}
}

func dump(fn string) {
	f, err := os.Open(fn)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	info, err := raf.Parse(f)
	if err != nil {
		log.Fatalf("%s: %v", fn, err)
	}

	h := info.Header
	fmt.Printf("%s: RAF version %s\n", fn, h.Version)
	fmt.Printf("  JPEG preview at %#x, %d bytes\n", h.JPEGOffset, h.JPEGLength)
	for i, v := range h.Slots {
		if h.SlotValid(i) && v != 0 {
			fmt.Printf("  pointer slot %d -> %#x\n", i, v)
		}
	}
	if info.Layout.Width != 0 {
		fmt.Printf("  raw size %dx%d\n", info.Layout.Width, info.Layout.Height)
	}

	for _, d := range info.Dirs {
		fmt.Printf("  directory at %#x, %d entries\n", d.Offset, len(d.Entries))
		for _, e := range d.Entries {
			if e.Value != nil {
				fmt.Printf("    %#04x %v\n", e.Tag, e.Value)
			} else {
				fmt.Printf("    %#04x [%d bytes]\n", e.Tag, len(e.Data))
			}
		}
	}

	if *showIFD {
		for _, d := range info.IFDs {
			dumpIFD(&d, "  ")
		}
	}

	if *showFaces {
		for _, fc := range info.Faces {
			fmt.Printf("  face %d: %s born %s category %#x\n",
				fc.Index, fc.Name, fc.Birthday, fc.Category)
		}
	}

	if *showJPEG {
		dumpJPEG(f, fn)
	}

	for _, w := range info.Warnings {
		log.Printf("%s: warning: %s", fn, w)
	}
}

func dumpIFD(d *raf.IFDDir, indent string) {
	fmt.Printf("%ssub-IFD at %#x, %d fields\n", indent, d.Base, len(d.Fields))
	for _, f := range d.Fields {
		fmt.Print(indent, "  ")
		f.Print(binary.BigEndian, tiff.TagNames, 8)
	}
	for i := range d.Sub {
		dumpIFD(&d.Sub[i], indent+"  ")
	}
	if d.Next != nil {
		dumpIFD(d.Next, indent)
	}
}

func dumpJPEG(f *os.File, fn string) {
	p, err := raf.JPEG(f)
	if err != nil {
		log.Printf("%s: %v", fn, err)
		return
	}
	scanner, err := jseg.NewScanner(bytes.NewReader(p))
	if err != nil {
		log.Printf("%s: preview: %v", fn, err)
		return
	}
	for {
		marker, buf, err := scanner.Scan()
		if err != nil {
			log.Printf("%s: preview: %v", fn, err)
			return
		}
		fmt.Printf("  preview %s, %d bytes\n", marker.Name(), len(buf))
		if marker == jseg.SOS {
			return
		}
	}
}
