package raf

import "errors"

// ErrUnknownFormat is returned by Parse, ParseAt and Rewrite when the
// input does not start with the RAF signature. Callers handling
// multiple container formats should try their other handlers.
var ErrUnknownFormat = errors.New("raf: unknown content format")

// ErrTruncated is returned when a directory or header needs more bytes
// than the input provides. It aborts the directory being decoded, not
// the whole parse.
var ErrTruncated = errors.New("raf: truncated structure")

// ErrCorrupt is returned when a header pointer or length fails a
// sanity check. It aborts the current operation.
var ErrCorrupt = errors.New("raf: corrupt structure")
