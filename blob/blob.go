package blob

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
)

// Source is one open data file. Decoders read through it at arbitrary offsets
// and never outlive it; the reader that opened it closes it.
type Source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Reader resolves split paths to readable sources.
type Reader interface {
	Open(ctx context.Context, path string) (Source, error)
}

// Bucket reads data files from object storage, optionally staging them in a
// local cache directory so column seeks hit the filesystem instead of the
// store.
type Bucket struct {
	bucket objstore.Bucket
	dir    string
	log    *slog.Logger
}

var _ Reader = (*Bucket)(nil)

func New(bucket objstore.Bucket, cacheDir string) *Bucket {
	return &Bucket{
		bucket: bucket,
		dir:    cacheDir,
		log: slog.Default().With(
			slog.String("component", "blob"),
		),
	}
}

// Open returns a bucket over a local directory. Useful for tests and for
// tables that live entirely on local disk.
func Open(dir string) (*Bucket, error) {
	b, err := filesystem.NewBucket(dir)
	if err != nil {
		return nil, err
	}
	return New(b, ""), nil
}

func (b *Bucket) Open(ctx context.Context, path string) (Source, error) {
	if b.dir != "" {
		return b.cached(ctx, path)
	}
	attrs, err := b.bucket.Attributes(ctx, path)
	if err != nil {
		return nil, err
	}
	r, err := b.bucket.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buf := grab(attrs.Size)
	if _, err := io.Copy(buf, r); err != nil {
		release(buf)
		return nil, err
	}
	return &memSource{
		ReaderAt: bytes.NewReader(buf.Bytes()),
		size:     int64(buf.Len()),
		buf:      buf,
	}, nil
}

// readPool recycles whole-object buffers between opens. grab presizes the
// buffer so a data file lands in one allocation.
var readPool = &sync.Pool{New: func() any { return new(bytes.Buffer) }}

func grab(size int64) *bytes.Buffer {
	buf := readPool.Get().(*bytes.Buffer)
	if size > 0 {
		buf.Grow(int(size))
	}
	return buf
}

func release(buf *bytes.Buffer) {
	buf.Reset()
	readPool.Put(buf)
}

func (b *Bucket) cached(ctx context.Context, path string) (Source, error) {
	local := filepath.Join(b.dir, filepath.FromSlash(path))
	if _, err := os.Stat(local); os.IsNotExist(err) {
		if err := b.download(ctx, path, local); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(local)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{File: f, size: stat.Size()}, nil
}

func (b *Bucket) download(ctx context.Context, path, local string) error {
	r, err := b.bucket.Get(ctx, path)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	f, err := os.Create(local)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(local)
		return err
	}
	b.log.Debug("staged data file", "path", path, "bytes", n)
	return nil
}

type fileSource struct {
	*os.File
	size int64
}

func (f *fileSource) Size() int64 { return f.size }

type memSource struct {
	io.ReaderAt
	size int64
	buf  *bytes.Buffer
}

func (m *memSource) Size() int64 { return m.size }

func (m *memSource) Close() error {
	if m.buf != nil {
		release(m.buf)
		m.buf = nil
	}
	return nil
}
