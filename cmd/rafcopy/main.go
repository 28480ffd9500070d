// Command rafcopy copies a RAF container, optionally editing the
// metadata of the embedded JPEG preview.
//
// Exit status is 0 on success, 2 when the input is not a RAF file
// (so wrappers can fall back to other tools) and 1 on failure.
// Advisory warnings go to standard error.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tajtiattila/raf"
	"github.com/tajtiattila/raf/preview"
)

var (
	artist   = flag.String("artist", "", "set preview Exif artist")
	software = flag.String("software", "", "set preview Exif software")
	datetime = flag.String("datetime", "", "set preview Exif date/time (2006:01:02 15:04:05)")
	orient   = flag.Int("orient", 0, "set preview Exif orientation (1..8)")
	strict   = flag.Bool("strict", false, "treat non-zero JPEG padding as an error")
)

func main() {
	log.SetFlags(0)
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: rafcopy [flags] input output\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	os.Exit(run(flag.Arg(0), flag.Arg(1)))
}

func run(in, out string) int {
	f, err := os.Open(in)
	if err != nil {
		log.Print(err)
		return 1
	}
	defer f.Close()

	g, err := os.Create(out)
	if err != nil {
		log.Print(err)
		return 1
	}

	cfg := &raf.RewriteConfig{StrictPadding: *strict}
	e := preview.Edits{
		DateTime:    *datetime,
		Artist:      *artist,
		Software:    *software,
		Orientation: *orient,
	}
	if e != (preview.Edits{}) {
		cfg.Rewriter = preview.Rewriter(e)
	}

	res, rerr := raf.Rewrite(g, f, cfg)
	for _, w := range res.Warnings {
		log.Printf("%s: warning: %s", in, w)
	}
	cerr := g.Close()

	if rerr == nil && cerr != nil {
		rerr = cerr
		res.Status = raf.StatusFatal
	}
	if rerr != nil {
		log.Printf("%s: %v", in, rerr)
		// partial output is invalid
		os.Remove(out)
		if res.Status == raf.StatusNotRAF {
			return 2
		}
		return 1
	}
	return 0
}
