// Package format defines the contract every file-format decoder implements
// and the registry the reader dispatches through. Decoders are symmetric: the
// reader never depends on which format produced a row.
package format

import (
	"context"
	"errors"
	"fmt"

	"github.com/vinceanalytics/floe/blob"
	"github.com/vinceanalytics/floe/filters"
	"github.com/vinceanalytics/floe/schema"
)

var ErrUnsupportedFormat = errors.New("format: unsupported format")

type Tag string

const (
	TagAvro    Tag = "avro"
	TagParquet Tag = "parquet"
	TagArrow   Tag = "arrow"
)

func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case TagAvro, TagParquet, TagArrow:
		return Tag(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Row is one decoded record in physical column order. Values use the
// canonical Go representation of their physical type. A Row is only valid
// until the handle's next call.
type Row []any

// Options tune a single open call.
type Options struct {
	// Path of the file being opened, for error attribution.
	Path string
	// Pushdown holds the compiled scan filters. Decoders may use them to
	// skip whole regions of a file when statistics prove no row can match.
	// Skipping is best effort only; the reader re-evaluates every filter on
	// every surviving row.
	Pushdown []*filters.Compiled
}

// Handle is a lazy, single-pass cursor over one open file. Next returns
// io.EOF after the last row. Close is safe between any two Next calls and
// releases everything the decoder holds; the blob source itself belongs to
// the caller.
type Handle interface {
	Schema() schema.Physical
	Next() (Row, error)
	Close() error
}

type Decoder interface {
	Open(ctx context.Context, src blob.Source, opts *Options) (Handle, error)
}

var registry = map[Tag]Decoder{}

// Register installs a decoder for a tag. Called from decoder package inits.
func Register(t Tag, d Decoder) {
	if _, ok := registry[t]; ok {
		panic(fmt.Sprintf("format: decoder for %q registered twice", t))
	}
	registry[t] = d
}

func Lookup(t Tag) (Decoder, error) {
	d, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, t)
	}
	return d, nil
}

// CorruptError distinguishes malformed file content from plain I/O failure.
// It is fatal for the split it came from.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("format: corrupt data in %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func Corrupt(path string, err error) error {
	return &CorruptError{Path: path, Err: err}
}

// IsCorrupt reports whether err carries a CorruptError anywhere in its chain.
func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}
