// Package scan drives a bounded read over every split of a table: plan the
// manifest (pruning partitions the filters exclude), read each split through
// the format-agnostic reader, and concatenate the results into one ordered
// stream that ends when the last split is exhausted.
package scan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"

	"github.com/vinceanalytics/floe/blob"
	"github.com/vinceanalytics/floe/catalog"
	"github.com/vinceanalytics/floe/filters"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/reader"
	"github.com/vinceanalytics/floe/schema"
)

// Scan opens a bounded scan of table. projection is a set of field ids; empty
// selects the full schema. Filters on identity-partitioned fields prune
// splits; filters on projected fields are evaluated per row; a filter on
// anything else is rejected before any file is opened.
func Scan(
	ctx context.Context,
	src blob.Reader,
	table *catalog.Table,
	projection []int,
	fs filters.List,
) (*Stream, error) {
	read, err := schema.Select(table.Schema(), projection)
	if err != nil {
		return nil, err
	}
	residual, err := residual(fs, read, table.Spec)
	if err != nil {
		return nil, err
	}
	compiled, err := filters.Compile(residual, read)
	if err != nil {
		return nil, err
	}
	files, err := table.Plan(fs)
	if err != nil {
		return nil, err
	}
	var size int64
	for _, f := range files {
		size += f.Size
	}
	log := slog.Default().With(
		slog.String("component", "scan"),
		slog.String("table", table.Name),
	)
	log.Debug("planned scan",
		"splits", len(files),
		"size", units.BytesSize(float64(size)),
	)
	return &Stream{
		ctx:    ctx,
		src:    src,
		read:   read,
		fs:     compiled,
		splits: splits(files),
		start:  time.Now(),
		log:    log,
	}, nil
}

func splits(files []catalog.DataFile) []reader.Split {
	out := make([]reader.Split, len(files))
	for i, f := range files {
		out[i] = reader.Split{
			Path:      f.Path,
			Format:    format.Tag(f.Format),
			Partition: f.Partition,
		}
	}
	return out
}

// residual keeps the filters the reader must evaluate per row. Filters that
// only name partition fields outside the projection are satisfied by split
// pruning alone.
func residual(fs filters.List, read *schema.Schema, spec catalog.Spec) (filters.List, error) {
	out := make(filters.List, 0, len(fs))
	for _, f := range fs {
		if read.Pos(f.Field) >= 0 {
			out = append(out, f)
			continue
		}
		if !spec.Partitioned(f.Field) {
			return nil, fmt.Errorf("%w: filter on id %d is neither projected nor a partition field",
				schema.ErrUnresolvedField, f.Field)
		}
	}
	return out, nil
}

// Stream concatenates the output of every planned split, in manifest order.
// It is finite and non-restartable.
type Stream struct {
	ctx    context.Context
	src    blob.Reader
	read   *schema.Schema
	fs     []*filters.Compiled
	splits []reader.Split
	next   int
	cur    *reader.Rows
	rows   int64
	err    error
	start  time.Time
	log    *slog.Logger
}

// Schema returns the projection-shaped read schema every emitted record
// carries.
func (s *Stream) Schema() *schema.Schema { return s.read }

// Next returns the next output record or io.EOF once every split is drained.
// A failed split fails the stream; sibling splits already read are not
// retracted and none after it are opened.
func (s *Stream) Next() (reader.Record, error) {
	if s.err != nil {
		return reader.Record{}, s.err
	}
	for {
		if s.cur == nil {
			if s.next >= len(s.splits) {
				s.log.Debug("scan complete",
					"rows", s.rows,
					"elapsed", time.Since(s.start).String(),
				)
				return reader.Record{}, io.EOF
			}
			cur, err := reader.Read(s.ctx, s.src, s.splits[s.next], s.read, s.fs)
			if err != nil {
				s.err = err
				return reader.Record{}, err
			}
			s.cur = cur
			s.next++
		}
		rec, err := s.cur.Next()
		if err == io.EOF {
			s.cur = nil
			continue
		}
		if err != nil {
			s.err = err
			s.cur = nil
			return reader.Record{}, err
		}
		s.rows++
		return rec, nil
	}
}

// Close releases the split currently open, if any.
func (s *Stream) Close() error {
	if s.cur != nil {
		err := s.cur.Close()
		s.cur = nil
		return err
	}
	return nil
}

// Records drains the stream into memory.
func (s *Stream) Records() ([]reader.Record, error) {
	defer s.Close()
	var out []reader.Record
	for {
		rec, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Parallel reads disjoint splits concurrently, at most workers at a time, and
// returns the concatenated records in manifest order. Each split is still
// read sequentially end to end by its own reader; there is no shared state
// between them.
func Parallel(
	ctx context.Context,
	src blob.Reader,
	table *catalog.Table,
	projection []int,
	fs filters.List,
	workers int,
) ([]reader.Record, error) {
	read, err := schema.Select(table.Schema(), projection)
	if err != nil {
		return nil, err
	}
	residual, err := residual(fs, read, table.Spec)
	if err != nil {
		return nil, err
	}
	compiled, err := filters.Compile(residual, read)
	if err != nil {
		return nil, err
	}
	files, err := table.Plan(fs)
	if err != nil {
		return nil, err
	}
	sp := splits(files)
	results := make([][]reader.Record, len(sp))
	g, ctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := range sp {
		i := i
		g.Go(func() error {
			rows, err := reader.Read(ctx, src, sp[i], read, compiled)
			if err != nil {
				return err
			}
			defer rows.Close()
			for {
				rec, err := rows.Next()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				results[i] = append(results[i], rec)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []reader.Record
	for _, rs := range results {
		out = append(out, rs...)
	}
	return out, nil
}
