package tdms

import (
	"fmt"
	"iter"
)

// readWindow decodes catalog's raw values in [offset, offset+length),
// clipped to the channel's total sample count, by walking forward through
// the segments the binary search lands on.
func readWindow(src byteSource, ix *index, cat *channelCatalog, offset, length uint64) ([]any, error) {
	if offset >= cat.totalSamples || length == 0 {
		return nil, nil
	}
	end := offset + length
	if end > cat.totalSamples {
		end = cat.totalSamples
	}

	startRef, _, ok := cat.locate(offset)
	if !ok {
		return nil, nil
	}

	out := make([]any, 0, end-offset)
	for refIdx := startRef; refIdx < len(cat.refs) && cat.refs[refIdx].cumulativeBefore < end; refIdx++ {
		ref := cat.refs[refIdx]
		segEnd := ref.cumulativeBefore + ref.samples
		lo := maxU64(offset, ref.cumulativeBefore) - ref.cumulativeBefore
		hi := minU64(end, segEnd) - ref.cumulativeBefore
		if lo >= hi {
			continue
		}

		seg := ix.segments[ref.segmentIndex]
		vals, err := readSegmentLocalRange(src, seg, ref.channel, lo, hi)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}

	return out, nil
}

// readSegmentLocalRange decodes channel-local sample indices [lo, hi) of
// ch within seg, splitting the range across chunk boundaries as needed.
func readSegmentLocalRange(src byteSource, seg *indexSegment, ch *channelInSegment, lo, hi uint64) ([]any, error) {
	out := make([]any, 0, hi-lo)

	chunkStart := uint64(0)
	fullChunks := uint64(seg.fullChunkCount())
	for c := uint64(0); c < uint64(seg.numChunks); c++ {
		count := ch.samplesPerChunk
		if c >= fullChunks {
			count = seg.lastChunkSamples(ch)
		}
		chunkEnd := chunkStart + count

		isectLo := maxU64(lo, chunkStart)
		isectHi := minU64(hi, chunkEnd)
		if isectLo < isectHi && count > 0 {
			vals, err := readChunkRange(src, seg, ch, int64(c), isectLo-chunkStart, isectHi-isectLo)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}

		chunkStart = chunkEnd
		if chunkStart >= hi {
			break
		}
	}

	return out, nil
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// sliceIndices implements Python's slice.indices(length) normalization:
// given possibly-nil start/stop and a non-zero step, returns the first
// index to yield, the step, and the number of elements the slice
// produces.
func sliceIndices(length int, start, stop *int, step int) (first, stepOut, count int) {
	var s, e int
	if step < 0 {
		s, e = length-1, -1
	} else {
		s, e = 0, length
	}

	if start != nil {
		s = *start
		if s < 0 {
			s += length
			if s < 0 {
				if step < 0 {
					s = -1
				} else {
					s = 0
				}
			}
		} else if s >= length {
			if step < 0 {
				s = length - 1
			} else {
				s = length
			}
		}
	}

	if stop != nil {
		e = *stop
		if e < 0 {
			e += length
			if e < 0 {
				if step < 0 {
					e = -1
				} else {
					e = 0
				}
			}
		} else if e >= length {
			if step < 0 {
				e = length - 1
			} else {
				e = length
			}
		}
	}

	diff := e - s
	if step > 0 {
		if diff > 0 {
			count = (diff + step - 1) / step
		}
	} else {
		if diff < 0 {
			negStep := -step
			negDiff := -diff
			count = (negDiff + negStep - 1) / negStep
		}
	}

	return s, step, count
}

// DataChunk is one (segment, chunk) pair's decoded contribution, carrying
// every channel present in that chunk along with each channel's
// cumulative-sample offset at the chunk's start.
type DataChunk struct {
	SegmentIndex int
	ChunkIndex   int64
	Channels     map[string]ChunkChannel
}

// ChunkChannel is one channel's slice of a DataChunk.
type ChunkChannel struct {
	Path   string
	Offset uint64
	Values []any
}

// streamChunks walks every segment and chunk of ix in file order, decoding
// every channel present (or, if onlyPath is non-empty, just that channel).
func streamChunks(src byteSource, ix *index, onlyPath string) iter.Seq2[DataChunk, error] {
	return func(yield func(DataChunk, error) bool) {
		cumulative := make(map[string]uint64, len(ix.channelOrd))

		for segIdx, seg := range ix.segments {
			for c := int64(0); c < seg.numChunks; c++ {
				count := func(ch *channelInSegment) uint64 {
					if c < int64(seg.fullChunkCount()) {
						return ch.samplesPerChunk
					}
					return seg.lastChunkSamples(ch)
				}

				chunk := DataChunk{SegmentIndex: segIdx, ChunkIndex: c, Channels: make(map[string]ChunkChannel)}
				for i := range seg.channels {
					ch := &seg.channels[i]
					if onlyPath != "" && ch.path != onlyPath {
						continue
					}
					n := count(ch)
					vals, err := readChunkRange(src, seg, ch, c, 0, n)
					if err != nil {
						if !yield(DataChunk{}, fmt.Errorf("segment %d chunk %d channel %q: %w", segIdx, c, ch.path, err)) {
							return
						}
						return
					}
					chunk.Channels[ch.path] = ChunkChannel{Path: ch.path, Offset: cumulative[ch.path], Values: vals}
					cumulative[ch.path] += n
				}
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}
