package tdms

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
)

// mmapFloat64Array is a fixed-length float64 array backed by a memory
// mapping over an unlinked temporary file, used as the optional eager-read
// backing store for numeric channels (spec: "present it as a policy on
// construction, not as a separate code path in the reader"). String,
// boolean, and timestamp channels always use heap storage regardless of
// this option: their element sizes vary or don't benefit from mmap's
// fixed-stride layout.
type mmapFloat64Array struct {
	f  *os.File
	mm mmap.MMap
	n  int
}

// newMmapFloat64Array creates a temporary file of n*8 bytes under dir,
// memory-maps it read/write, and unlinks it immediately; the mapping and
// open file descriptor keep the storage alive until Close.
func newMmapFloat64Array(dir string, n int) (*mmapFloat64Array, error) {
	f, err := os.CreateTemp(dir, "tdms-eager-*.bin")
	if err != nil {
		return nil, fmt.Errorf("%w: creating memmap backing file: %w", ErrReadFailed, err)
	}
	name := f.Name()

	if n > 0 {
		if err := f.Truncate(int64(n) * 8); err != nil {
			f.Close()
			os.Remove(name)
			return nil, fmt.Errorf("%w: sizing memmap backing file: %w", ErrReadFailed, err)
		}
	}

	var m mmap.MMap
	if n > 0 {
		m, err = mmap.Map(f, mmap.RDWR, 0)
		if err != nil {
			f.Close()
			os.Remove(name)
			return nil, fmt.Errorf("%w: mapping backing file: %w", ErrReadFailed, err)
		}
	}

	os.Remove(name) // safe to unlink once open; space is reclaimed on Close

	return &mmapFloat64Array{f: f, mm: m, n: n}, nil
}

func (a *mmapFloat64Array) set(i int, v float64) {
	binary.LittleEndian.PutUint64(a.mm[i*8:i*8+8], math.Float64bits(v))
}

func (a *mmapFloat64Array) get(i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(a.mm[i*8 : i*8+8]))
}

func (a *mmapFloat64Array) len() int { return a.n }

func (a *mmapFloat64Array) close() error {
	var err error
	if a.mm != nil {
		err = a.mm.Unmap()
	}
	return errors.Join(err, a.f.Close())
}
