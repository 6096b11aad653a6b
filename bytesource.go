package tdms

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// byteSource is a random-access provider of raw file bytes. Segment
// parsing and lazy channel reads both go through this interface so that a
// file opened from a path, a byte slice, or an arbitrary io.ReaderAt are
// handled identically.
type byteSource interface {
	// ReadAt reads len(p) bytes starting at offset off, as io.ReaderAt.
	ReadAt(p []byte, off int64) (int, error)
	// Size returns the total number of bytes available.
	Size() int64
	// Close releases any resources (open file descriptors, mappings) held
	// by the source.
	Close() error
}

// bufferSource serves reads out of an in-memory byte slice.
type bufferSource struct {
	data []byte
}

func newBufferSource(data []byte) *bufferSource {
	return &bufferSource{data: data}
}

func (b *bufferSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b.data)) {
		return 0, fmt.Errorf("%w: offset %d out of range", ErrReadFailed, off)
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *bufferSource) Size() int64 { return int64(len(b.data)) }

func (b *bufferSource) Close() error { return nil }

// readerAtSource adapts an io.ReaderAt of known size.
type readerAtSource struct {
	r    io.ReaderAt
	size int64
	c    io.Closer
}

func newReaderAtSource(r io.ReaderAt, size int64) *readerAtSource {
	c, _ := r.(io.Closer)
	return &readerAtSource{r: r, size: size, c: c}
}

func (r *readerAtSource) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

func (r *readerAtSource) Size() int64 { return r.size }

func (r *readerAtSource) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

// pathSource serves reads from an open file on disk, optionally backed by
// a read-only memory mapping instead of repeated pread syscalls.
type pathSource struct {
	f    *os.File
	size int64
	mm   mmap.MMap // nil unless mapped
}

// newPathSource opens path for reading. When useMmap is true the whole
// file is mapped read-only and reads are served as slice copies out of the
// mapping; otherwise reads go through f.ReadAt.
func newPathSource(path string, useMmap bool) (*pathSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	src := &pathSource{f: f, size: info.Size()}
	if useMmap && info.Size() > 0 {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: mmap %s: %w", ErrReadFailed, path, err)
		}
		src.mm = m
	}
	return src, nil
}

func (p *pathSource) ReadAt(dst []byte, off int64) (int, error) {
	if p.mm != nil {
		if off < 0 || off > int64(len(p.mm)) {
			return 0, fmt.Errorf("%w: offset %d out of range", ErrReadFailed, off)
		}
		n := copy(dst, p.mm[off:])
		if n < len(dst) {
			return n, io.EOF
		}
		return n, nil
	}
	return p.f.ReadAt(dst, off)
}

func (p *pathSource) Size() int64 { return p.size }

func (p *pathSource) Close() error {
	var err error
	if p.mm != nil {
		err = p.mm.Unmap()
	}
	return errors.Join(err, p.f.Close())
}

// readSeekerAtSource adapts an io.ReadSeeker that doesn't natively
// implement io.ReaderAt by seeking before each read. The engine is
// single-threaded (spec §5), so this is safe as long as the handle isn't
// shared with other readers.
type readSeekerAtSource struct {
	rs   io.ReadSeeker
	size int64
}

func newReadSeekerAtSource(rs io.ReadSeeker) (*readSeekerAtSource, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: seeking to determine size: %w", ErrReadFailed, err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seeking to start: %w", ErrReadFailed, err)
	}
	return &readSeekerAtSource{rs: rs, size: size}, nil
}

func (r *readSeekerAtSource) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(r.rs, p)
}

func (r *readSeekerAtSource) Size() int64 { return r.size }

func (r *readSeekerAtSource) Close() error {
	if c, ok := r.rs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// readFull reads exactly len(p) bytes at off from src, translating a short
// read into ErrMalformedFile since every caller in this package is pulling
// a fixed-size structure whose presence the lead-in or metadata already
// promised.
func readFull(src byteSource, p []byte, off int64) error {
	n, err := src.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: reading %d bytes at offset %d: %w", ErrMalformedFile, len(p), off, err)
}
