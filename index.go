package tdms

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// channelInSegment describes one channel's raw-data layout within a
// single segment: how many samples it contributes per chunk and where its
// data starts within a chunk (within a row, for interleaved segments). The
// stride between successive interleaved samples is the segment's
// rowStrideBytes.
type channelInSegment struct {
	path              string
	dataType          DataType
	samplesPerChunk   uint64
	byteOffsetInChunk int64
	bytesPerSample    int // 0 for strings
	isString          bool
	stringBytesPerChunk uint64 // total string payload bytes per chunk, strings only
}

func (c *channelInSegment) isVariableWidth() bool { return c.isString }

// indexSegment is one segment's resolved raw-data layout, ready for
// sample-range lookups. Distinct from parsedSegment, which is the raw
// parse output before ObjectTable inheritance is resolved.
type indexSegment struct {
	fileOffset      int64
	rawDataOffset   int64
	rawByteLength   int64
	interleaved     bool
	order           binary.ByteOrder
	chunkSizeBytes  int64
	rowStrideBytes  int64 // interleaved only
	numChunks       int64
	truncatedLast   bool
	lastChunkBytes  int64
	channels        []channelInSegment
	channelByPath   map[string]*channelInSegment
}

func (s *indexSegment) channel(path string) (*channelInSegment, bool) {
	c, ok := s.channelByPath[path]
	return c, ok
}

// fullChunkCount returns the number of complete (non-truncated) chunks.
func (s *indexSegment) fullChunkCount() int64 {
	if s.truncatedLast {
		return s.numChunks - 1
	}
	return s.numChunks
}

// lastChunkSamples returns how many samples of ch fall within the final,
// possibly truncated, chunk.
func (s *indexSegment) lastChunkSamples(ch *channelInSegment) uint64 {
	if !s.truncatedLast {
		return ch.samplesPerChunk
	}
	if s.interleaved {
		rows := s.lastChunkBytes / s.rowStrideBytes
		if rows < 0 {
			rows = 0
		}
		return uint64(rows)
	}
	if ch.isString {
		// Partial string payloads can't be sized without decoding the
		// offset table, which may itself be truncated; treat a
		// truncated chunk as contributing no string samples.
		return 0
	}
	available := s.lastChunkBytes - ch.byteOffsetInChunk
	if available <= 0 {
		return 0
	}
	samples := available / int64(ch.bytesPerSample)
	if uint64(samples) > ch.samplesPerChunk {
		samples = int64(ch.samplesPerChunk)
	}
	return uint64(samples)
}

// totalSamples returns the total number of ch's samples across every
// chunk of this segment.
func (s *indexSegment) totalSamples(ch *channelInSegment) uint64 {
	if s.numChunks == 0 {
		return 0
	}
	full := uint64(s.fullChunkCount()) * ch.samplesPerChunk
	return full + s.lastChunkSamples(ch)
}

// chunkByteOffset returns the absolute file offset of the start of chunk
// number chunkIdx (0-based) within this segment.
func (s *indexSegment) chunkByteOffset(chunkIdx int64) int64 {
	return s.rawDataOffset + chunkIdx*s.chunkSizeBytes
}

// buildIndexSegment resolves one segment's channel layout from its
// lead-in fields and its ObjectTable-resolved object list.
func buildIndexSegment(seg *parsedSegment, resolved []resolvedObject) (*indexSegment, error) {
	interleaved := seg.toc.has(tocInterleaved)

	idx := &indexSegment{
		fileOffset:    seg.fileOffset,
		rawDataOffset: seg.rawDataOffset,
		rawByteLength: seg.rawByteLength,
		interleaved:   interleaved,
		order:         seg.toc.order(),
		channelByPath: make(map[string]*channelInSegment, len(resolved)),
	}

	if len(resolved) == 0 {
		return idx, nil
	}

	channels := make([]channelInSegment, 0, len(resolved))
	var offset int64
	var rowStride int64
	var commonSamples uint64
	for i, ro := range resolved {
		if interleaved && ro.layout.dataType == DataTypeString {
			return nil, fmt.Errorf("%w: segment at %d: interleaved raw data with string channel %q", ErrMalformedFile, seg.fileOffset, ro.path)
		}

		ch := channelInSegment{
			path:            ro.path,
			dataType:        ro.layout.dataType,
			samplesPerChunk: ro.layout.numValues,
			isString:        ro.layout.dataType == DataTypeString,
		}

		if ch.isString {
			ch.stringBytesPerChunk = ro.layout.totalBytes
			ch.byteOffsetInChunk = offset
			offset += int64(ch.samplesPerChunk)*4 + int64(ro.layout.totalBytes)
		} else {
			ch.bytesPerSample = ro.layout.bytesPerSample()
			if ch.bytesPerSample == 0 {
				return nil, fmt.Errorf("%w: segment at %d: channel %q has unsupported data type %s", ErrUnsupportedFeature, seg.fileOffset, ro.path, ro.layout.dataType)
			}
			if interleaved {
				// Interleaved rows pack one sample from every channel back
				// to back; a channel's offset within the row is the sum of
				// the bytes already claimed by preceding channels, not the
				// whole-chunk contiguous-block offset.
				ch.byteOffsetInChunk = rowStride
				rowStride += int64(ch.bytesPerSample)
			} else {
				ch.byteOffsetInChunk = offset
				offset += int64(ch.samplesPerChunk) * int64(ch.bytesPerSample)
			}
		}

		if interleaved {
			if i == 0 {
				commonSamples = ch.samplesPerChunk
			} else if ch.samplesPerChunk != commonSamples {
				return nil, fmt.Errorf("%w: segment at %d: interleaved channels disagree on samples per chunk", ErrMalformedFile, seg.fileOffset)
			}
		}

		channels = append(channels, ch)
	}

	idx.channels = channels
	for i := range idx.channels {
		idx.channelByPath[idx.channels[i].path] = &idx.channels[i]
	}
	idx.rowStrideBytes = rowStride
	if interleaved {
		idx.chunkSizeBytes = rowStride * int64(commonSamples)
	} else {
		idx.chunkSizeBytes = offset
	}

	if idx.chunkSizeBytes == 0 {
		return idx, nil
	}

	full := idx.rawByteLength / idx.chunkSizeBytes
	remainder := idx.rawByteLength % idx.chunkSizeBytes
	if remainder == 0 {
		idx.numChunks = full
	} else {
		if !seg.unfinished {
			return nil, fmt.Errorf("%w: segment at %d: raw data length %d does not divide chunk size %d evenly", ErrMalformedFile, seg.fileOffset, idx.rawByteLength, idx.chunkSizeBytes)
		}
		idx.numChunks = full + 1
		idx.truncatedLast = true
		idx.lastChunkBytes = remainder
	}

	return idx, nil
}

// channelSegmentRef records one segment's contribution to a channel's
// overall sample stream.
type channelSegmentRef struct {
	segmentIndex     int
	channel          *channelInSegment
	cumulativeBefore uint64
	samples          uint64
}

// channelCatalog is the per-channel entry of the file-wide index: every
// segment the channel appears in, in file order, with running totals.
type channelCatalog struct {
	path         string
	dataType     DataType
	refs         []channelSegmentRef
	totalSamples uint64
}

// locate finds the catalog entry containing sample offset, returning its
// index into refs and the sample's position within that segment. ok is
// false if offset >= totalSamples.
func (c *channelCatalog) locate(offset uint64) (refIdx int, withinSegment uint64, ok bool) {
	if offset >= c.totalSamples {
		return 0, 0, false
	}
	i := sort.Search(len(c.refs), func(i int) bool {
		return c.refs[i].cumulativeBefore+c.refs[i].samples > offset
	})
	if i == len(c.refs) {
		return 0, 0, false
	}
	return i, offset - c.refs[i].cumulativeBefore, true
}

// index is the fully built, immutable file-wide index: every segment plus
// a per-channel catalog of where its samples live.
type index struct {
	segments   []*indexSegment
	channels   map[string]*channelCatalog
	channelOrd []string // first-seen order, for deterministic iteration
}

func newIndex() *index {
	return &index{channels: make(map[string]*channelCatalog)}
}

// addSegment appends a resolved indexSegment to the index, updating every
// channel's catalog.
func (ix *index) addSegment(seg *indexSegment) {
	segIdx := len(ix.segments)
	ix.segments = append(ix.segments, seg)

	for i := range seg.channels {
		ch := &seg.channels[i]
		samples := seg.totalSamples(ch)

		cat, ok := ix.channels[ch.path]
		if !ok {
			cat = &channelCatalog{path: ch.path, dataType: ch.dataType}
			ix.channels[ch.path] = cat
			ix.channelOrd = append(ix.channelOrd, ch.path)
		}
		cat.refs = append(cat.refs, channelSegmentRef{
			segmentIndex:     segIdx,
			channel:          ch,
			cumulativeBefore: cat.totalSamples,
			samples:          samples,
		})
		cat.totalSamples += samples
	}
}

func (ix *index) catalog(path string) (*channelCatalog, bool) {
	c, ok := ix.channels[path]
	return c, ok
}
