package raf

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// JPEGRewriteFunc produces the replacement bytes for the embedded
// preview JPEG. Returning a non-nil error is fatal and aborts the
// rewrite with no output written. Returning empty bytes with a nil
// error means the preview could not be rewritten; the rewrite is
// abandoned with StatusCorrupt, which callers may treat as "no
// changes possible" rather than a hard failure.
type JPEGRewriteFunc func(jpeg []byte) ([]byte, error)

// RewriteConfig controls Rewrite.
type RewriteConfig struct {
	// Rewriter produces the replacement preview. Nil keeps the
	// preview unchanged; the padding is still normalized.
	Rewriter JPEGRewriteFunc

	// StrictPadding escalates non-zero JPEG padding bytes from a
	// warning to a fatal ErrCorrupt. Non-zero padding can be
	// vendor trailer data on some firmware, which a rewrite would
	// silently replace with zeros.
	StrictPadding bool
}

// Status classifies the outcome of a rewrite attempt.
type Status int

const (
	StatusOK Status = iota

	// StatusNotRAF means the input is not a RAF container; the
	// caller should try its other format handlers.
	StatusNotRAF

	// StatusCorrupt means the container or its preview failed a
	// sanity check; no output was produced.
	StatusCorrupt

	// StatusFatal means reading the input or emitting the output
	// failed. Partial output may exist and must be discarded.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotRAF:
		return "not a RAF file"
	case StatusCorrupt:
		return "corrupt"
	case StatusFatal:
		return "write failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// RewriteResult reports the outcome of a rewrite pass. Warnings may
// accompany a successful rewrite.
type RewriteResult struct {
	Status   Status
	Warnings []string
}

func (r *RewriteResult) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Format versions the rewrite path has been verified against. Other
// versions are still written, with an advisory warning.
var testedWriteVersions = map[string]bool{
	"0100": true,
	"0159": true,
	"0200": true,
	"0201": true,
	"0212": true,
	"0213": true,
}

// maxPadLen bounds the zero padding between the embedded JPEG and the
// next block; anything larger means the next-block pointer is bogus.
const maxPadLen = 1000000

// pointerPatch is one header pointer adjustment of a rewrite plan.
type pointerPatch struct {
	headerOff uint32
	oldPtr    uint32
	newPtr    uint32
}

// rewritePlan holds the offset arithmetic for one rewrite pass. It is
// built once from the header and consumed immediately.
type rewritePlan struct {
	oldPadLen int64
	newPadLen uint32
	delta     int64
	patches   []pointerPatch
}

// planRewrite computes padding and pointer deltas for replacing the
// embedded JPEG with newJPEGLen bytes. The new JPEG region is padded
// to the next 4-byte boundary with a minimal non-zero pad, so padding
// is always present in the output.
func planRewrite(h *Header, newJPEGLen int) (*rewritePlan, error) {
	next := h.Slots[0]
	oldPad := int64(next) - int64(h.JPEGOffset) - int64(h.JPEGLength)
	if oldPad < 0 || oldPad > maxPadLen {
		return nil, errors.Wrapf(ErrCorrupt, "implausible JPEG padding %d", oldPad)
	}
	newPad := 4 - uint32(newJPEGLen)%4
	p := &rewritePlan{
		oldPadLen: oldPad,
		newPadLen: newPad,
		delta:     int64(newJPEGLen) + int64(newPad) - int64(h.JPEGLength) - oldPad,
	}
	for i, off := range slotOffsets {
		if !h.SlotValid(i) || h.Slots[i] == 0 {
			// zero slots denote "not present" and stay zero
			continue
		}
		p.patches = append(p.patches, pointerPatch{
			headerOff: off,
			oldPtr:    h.Slots[i],
			newPtr:    uint32(int64(h.Slots[i]) + p.delta),
		})
	}
	return p, nil
}

// Rewrite writes a copy of the RAF container rs to w with the
// embedded preview JPEG replaced by cfg.Rewriter's output and the
// header pointers re-derived. Every byte outside the JPEG region and
// the patched pointer fields is copied verbatim.
//
// The returned result always carries the outcome status and any
// advisory warnings; the error, when non-nil, explains the non-OK
// status. A write failure during the emit phase does not stop the
// streaming of the remaining blocks, but the pass is reported failed.
func Rewrite(w io.Writer, rs io.ReadSeeker, cfg *RewriteConfig) (*RewriteResult, error) {
	if cfg == nil {
		cfg = &RewriteConfig{}
	}
	res := &RewriteResult{}

	h, err := readHeader(rs)
	if err != nil {
		if errors.Cause(err) == ErrUnknownFormat {
			res.Status = StatusNotRAF
		} else {
			res.Status = StatusCorrupt
		}
		return res, err
	}
	if err := h.ValidateWrite(); err != nil {
		res.Status = StatusCorrupt
		return res, err
	}
	if !testedWriteVersions[h.Version] {
		res.warnf("format version %s is untested for writing", h.Version)
	}

	jpeg := make([]byte, h.JPEGLength)
	if _, err := rs.Seek(int64(h.JPEGOffset), io.SeekStart); err != nil {
		res.Status = StatusFatal
		return res, errors.Wrap(err, "read embedded JPEG")
	}
	if _, err := io.ReadFull(rs, jpeg); err != nil {
		res.Status = StatusFatal
		return res, errors.Wrap(err, "read embedded JPEG")
	}

	newJPEG := jpeg
	if cfg.Rewriter != nil {
		p, err := cfg.Rewriter(jpeg)
		if err != nil {
			res.Status = StatusFatal
			return res, errors.Wrap(err, "preview rewrite")
		}
		if len(p) == 0 {
			res.Status = StatusCorrupt
			return res, errors.Wrap(ErrCorrupt, "preview rewrite produced no output")
		}
		newJPEG = p
	}

	plan, err := planRewrite(h, len(newJPEG))
	if err != nil {
		res.Status = StatusCorrupt
		return res, err
	}

	// The reader sits right after the old JPEG; validate its padding.
	pad := make([]byte, plan.oldPadLen)
	if _, err := io.ReadFull(rs, pad); err != nil {
		res.Status = StatusFatal
		return res, errors.Wrap(err, "read JPEG padding")
	}
	for i, b := range pad {
		if b == 0 {
			continue
		}
		if cfg.StrictPadding {
			res.Status = StatusCorrupt
			return res, errors.Wrapf(ErrCorrupt, "non-zero JPEG padding byte %#x at +%d", b, i)
		}
		res.warnf("non-zero JPEG padding replaced with zeros (byte %#x at +%d)", b, i)
		break
	}

	// Patch the pointer slots in an in-memory copy of the original
	// bytes up to the JPEG region.
	prefix := make([]byte, h.JPEGOffset)
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		res.Status = StatusFatal
		return res, errors.Wrap(err, "reread header")
	}
	if _, err := io.ReadFull(rs, prefix); err != nil {
		res.Status = StatusFatal
		return res, errors.Wrap(err, "reread header")
	}
	binary.BigEndian.PutUint32(prefix[jpegLengthOffset:], uint32(len(newJPEG)))
	for _, pt := range plan.patches {
		binary.BigEndian.PutUint32(prefix[pt.headerOff:], pt.newPtr)
	}

	// Emit. A failed write is recorded but does not stop the
	// remaining blocks, so the most complete output possible is
	// available for diagnosis.
	ew := &errWriter{w: w}
	ew.Write(prefix)
	ew.Write(newJPEG)
	ew.Write(make([]byte, plan.newPadLen))
	if _, err := rs.Seek(int64(h.Slots[0]), io.SeekStart); err != nil {
		res.Status = StatusFatal
		return res, errors.Wrap(err, "seek next block")
	}
	if _, err := io.Copy(ew, rs); err != nil && ew.err == nil {
		ew.err = err
	}
	if ew.err != nil {
		res.Status = StatusFatal
		return res, errors.Wrap(ew.err, "emit")
	}

	res.Status = StatusOK
	return res, nil
}

// errWriter keeps attempting writes after a failure, recording only
// the first error, so the emit loop runs to completion and the sink
// receives the most complete output possible before the pass is
// reported failed.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if _, err := e.w.Write(p); err != nil && e.err == nil {
		e.err = err
	}
	return len(p), nil
}
