package tdms

import "encoding/binary"

// readChunkRange decodes samples [startInChunk, startInChunk+count) of ch
// from chunk number chunkIdx of seg, returning them as a slice of decoded
// Go values in sample order.
func readChunkRange(src byteSource, seg *indexSegment, ch *channelInSegment, chunkIdx int64, startInChunk, count uint64) ([]any, error) {
	if count == 0 {
		return nil, nil
	}
	chunkBase := seg.chunkByteOffset(chunkIdx)

	if ch.isString {
		return readStringChunkRange(src, seg, ch, chunkBase, startInChunk, count)
	}

	width := ch.bytesPerSample
	out := make([]any, count)

	if seg.interleaved {
		for i := uint64(0); i < count; i++ {
			sampleIdx := startInChunk + i
			off := chunkBase + ch.byteOffsetInChunk + int64(sampleIdx)*seg.rowStrideBytes
			buf := make([]byte, width)
			if err := readFull(src, buf, off); err != nil {
				return nil, err
			}
			v, err := decodeScalar(ch.dataType, buf, seg.order)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	base := chunkBase + ch.byteOffsetInChunk + int64(startInChunk)*int64(width)
	buf := make([]byte, int64(count)*int64(width))
	if err := readFull(src, buf, base); err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		v, err := decodeScalar(ch.dataType, buf[i*uint64(width):(i+1)*uint64(width)], seg.order)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// readStringChunkRange decodes a range of a string channel's values out of
// one chunk. Per the format, a string channel's chunk data begins with
// samplesPerChunk little-endian u32 end-offsets (relative to the end of
// the offset table itself), followed by the concatenated UTF-8 payload;
// string i spans [offsets[i-1], offsets[i]) with offsets[-1] == 0.
func readStringChunkRange(src byteSource, seg *indexSegment, ch *channelInSegment, chunkBase int64, startInChunk, count uint64) ([]any, error) {
	order := binary.LittleEndian

	tableOff := chunkBase + ch.byteOffsetInChunk
	tableBytes := make([]byte, ch.samplesPerChunk*4)
	if err := readFull(src, tableBytes, tableOff); err != nil {
		return nil, err
	}

	offsets := make([]uint32, ch.samplesPerChunk)
	for i := range offsets {
		offsets[i] = order.Uint32(tableBytes[i*4 : i*4+4])
	}

	payloadOff := tableOff + int64(len(tableBytes))

	var rangeStart uint32
	if startInChunk > 0 {
		rangeStart = offsets[startInChunk-1]
	}
	rangeEnd := offsets[startInChunk+count-1]

	payload := make([]byte, rangeEnd-rangeStart)
	if len(payload) > 0 {
		if err := readFull(src, payload, payloadOff+int64(rangeStart)); err != nil {
			return nil, err
		}
	}

	out := make([]any, count)
	prev := rangeStart
	for i := uint64(0); i < count; i++ {
		end := offsets[startInChunk+i]
		out[i] = string(payload[prev-rangeStart : end-rangeStart])
		prev = end
	}
	return out, nil
}

// decodeAllChunkRanges decodes every sample of ch across the full range of
// chunks in seg, used by the eager reader.
func decodeAllChunkRanges(src byteSource, seg *indexSegment, ch *channelInSegment) ([]any, error) {
	total := seg.totalSamples(ch)
	out := make([]any, 0, total)
	full := seg.fullChunkCount()
	for i := int64(0); i < full; i++ {
		vals, err := readChunkRange(src, seg, ch, i, 0, ch.samplesPerChunk)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	if seg.truncatedLast {
		n := seg.lastChunkSamples(ch)
		if n > 0 {
			vals, err := readChunkRange(src, seg, ch, full, 0, n)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}
	}
	return out, nil
}


