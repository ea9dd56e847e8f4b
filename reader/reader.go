// Package reader turns one file split into a lazy stream of output records.
// It resolves the field mapping once per split, dispatches to the decoder the
// split's format tag names, evaluates residual filters, and converts
// surviving rows into projection-shaped records. One Rows instance reads one
// split, sequentially, end to end.
package reader

import (
	"context"
	"io"
	"log/slog"

	"github.com/vinceanalytics/floe/blob"
	"github.com/vinceanalytics/floe/filters"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/schema"
)

// Split is the unit of work handed down by the split planner. The reader
// borrows it for the duration of one read and trusts both the format tag and
// the partition constants.
type Split struct {
	Path   string
	Format format.Tag
	// Partition maps field ids to constant values that are not physically
	// stored in the file.
	Partition map[int]any
}

// Read opens one split for reading. Filters must be compiled against the same
// read schema. The returned Rows owns the underlying source and decoder until
// Close.
func Read(
	ctx context.Context,
	src blob.Reader,
	split Split,
	read *schema.Schema,
	fs []*filters.Compiled,
) (*Rows, error) {
	dec, err := format.Lookup(split.Format)
	if err != nil {
		return nil, err
	}
	source, err := src.Open(ctx, split.Path)
	if err != nil {
		return nil, err
	}
	handle, err := dec.Open(ctx, source, &format.Options{
		Path:     split.Path,
		Pushdown: fs,
	})
	if err != nil {
		source.Close()
		return nil, err
	}
	mapping, err := schema.MapPhysical(read, handle.Schema(), split.Partition)
	if err != nil {
		handle.Close()
		source.Close()
		return nil, err
	}
	conv, err := NewConverter(read, mapping)
	if err != nil {
		handle.Close()
		source.Close()
		return nil, err
	}
	return &Rows{
		split:  split,
		src:    source,
		handle: handle,
		conv:   conv,
		fs:     fs,
		log: slog.Default().With(
			slog.String("component", "reader"),
			slog.String("path", split.Path),
		),
	}, nil
}

// Rows is a finite, non-restartable cursor over one split. A fresh Read is
// required to traverse the split again.
type Rows struct {
	split  Split
	src    blob.Source
	handle format.Handle
	conv   *Converter
	fs     []*filters.Compiled

	err    error
	done   bool
	closed bool
	log    *slog.Logger
}

// Next returns the next output record, io.EOF at end of split, or the first
// error the decoder or converter hit. A release failure at end of split is
// reported in place of io.EOF. Errors are sticky: a failed Rows stays failed
// and its resources are already released.
func (r *Rows) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	if r.done {
		return Record{}, io.EOF
	}
	for {
		row, err := r.handle.Next()
		if err == io.EOF {
			r.done = true
			if cerr := r.Close(); cerr != nil {
				r.err = cerr
				return Record{}, cerr
			}
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, r.fail(err)
		}
		values, err := r.conv.Convert(row)
		if err != nil {
			return Record{}, r.fail(err)
		}
		if !r.match(values) {
			continue
		}
		return r.conv.Record(values), nil
	}
}

func (r *Rows) match(values []any) bool {
	for _, f := range r.fs {
		if !f.Match(values[f.Pos]) {
			return false
		}
	}
	return true
}

// fail surfaces err immediately, closes the decoder and marks the cursor
// terminal. Partially read splits are never silently completed.
func (r *Rows) fail(err error) error {
	r.err = err
	r.log.Error("read failed", "err", err)
	r.Close()
	return err
}

// Close releases the decoder and the underlying source. Safe to call at any
// point between Next calls, any number of times.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.handle.Close()
	if cerr := r.src.Close(); err == nil {
		err = cerr
	}
	return err
}

// Err returns the terminal error, if any.
func (r *Rows) Err() error { return r.err }
