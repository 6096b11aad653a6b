package tdms

import (
	"encoding/binary"
	"fmt"
)

// toc is the little-endian Table-of-Contents bitmask carried in every
// segment lead-in. The bitmask itself is always little-endian regardless
// of tocBigEndian.
type toc uint32

const (
	tocMetaData      toc = 1 << 1
	tocRawData       toc = 1 << 3
	tocDAQmxRawData  toc = 1 << 7
	tocInterleaved   toc = 1 << 5
	tocBigEndian     toc = 1 << 6
	tocNewObjectList toc = 1 << 2
)

func (t toc) has(flag toc) bool { return t&flag != 0 }

func (t toc) order() binary.ByteOrder {
	if t.has(tocBigEndian) {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

const leadInSize = 28

const unfinishedSegmentMarker = ^uint64(0)

// rawDataIndexHeader is the 4-byte value preceding an object's layout in a
// segment's metadata block.
type rawDataIndexHeader uint32

const (
	rawIndexNoData       rawDataIndexHeader = 0xFFFFFFFF
	rawIndexSameAsPrev   rawDataIndexHeader = 0x00000000
	rawIndexDAQmxFormat  rawDataIndexHeader = 0x00001269
	rawIndexDAQmxDigital rawDataIndexHeader = 0x0000126A
)

func (h rawDataIndexHeader) isDAQmx() bool {
	return h == rawIndexDAQmxFormat || h == rawIndexDAQmxDigital
}

// objectLayout is the per-object, per-segment raw data description parsed
// from a full layout block (i.e. when the raw-data-index header is neither
// "no data" nor "same as previous").
type objectLayout struct {
	dataType   DataType
	dimension  uint32
	numValues  uint64
	totalBytes uint64 // strings only
}

// bytesPerSample returns the fixed per-sample byte width for fixed-width
// types, or 0 for strings.
func (l objectLayout) bytesPerSample() int {
	return l.dataType.Size()
}

// segmentObject is one object's parsed metadata entry within a segment.
type segmentObject struct {
	path       string
	hasRawData bool
	sameAsPrev bool
	layout     objectLayout
	properties []Property
}

// parsedSegment is the output of parsing one segment's lead-in + metadata
// block, before ObjectTable/Index resolve cross-segment inheritance.
type parsedSegment struct {
	fileOffset      int64 // offset of the lead-in itself
	toc             toc
	version         uint32
	rawDataOffset   int64 // absolute file offset where raw data starts
	nextSegOffset   int64 // absolute file offset of the next segment, or -1 if unfinished/EOF
	unfinished      bool
	rawByteLength   int64
	hasMetadata     bool
	newObjectList   bool
	objects         []segmentObject // empty if !hasMetadata
}

// readLeadIn reads and validates the 28-byte lead-in at fileOffset.
func readLeadIn(src byteSource, fileOffset int64) (toc, uint32, int64, int64, error) {
	buf := make([]byte, leadInSize)
	if err := readFull(src, buf, fileOffset); err != nil {
		return 0, 0, 0, 0, err
	}
	tag := string(buf[0:4])
	if tag != "TDSm" {
		return 0, 0, 0, 0, fmt.Errorf("%w: at offset %d: bad lead-in tag %q", ErrMalformedFile, fileOffset, tag)
	}
	t := toc(binary.LittleEndian.Uint32(buf[4:8]))
	version := binary.LittleEndian.Uint32(buf[8:12])
	nextOffset := binary.LittleEndian.Uint64(buf[12:20])
	rawOffset := binary.LittleEndian.Uint64(buf[20:28])
	return t, version, int64(nextOffset), int64(rawOffset), nil
}

// readSegmentPositions reads and validates the lead-in at fileOffset and
// computes the segment's absolute byte extents, without parsing its
// metadata block.
func readSegmentPositions(src byteSource, fileOffset int64) (*parsedSegment, error) {
	t, version, nextRel, rawRel, err := readLeadIn(src, fileOffset)
	if err != nil {
		return nil, err
	}

	endOfLeadIn := fileOffset + leadInSize
	seg := &parsedSegment{
		fileOffset:  fileOffset,
		toc:         t,
		version:     version,
		hasMetadata: t.has(tocMetaData),
	}

	if uint64(nextRel) == unfinishedSegmentMarker {
		seg.unfinished = true
		seg.nextSegOffset = -1
		seg.rawDataOffset = endOfLeadIn + rawRel
		size := src.Size()
		seg.rawByteLength = size - seg.rawDataOffset
		if seg.rawByteLength < 0 {
			return nil, fmt.Errorf("%w: segment at %d: unfinished segment raw offset past EOF", ErrMalformedFile, fileOffset)
		}
	} else {
		seg.nextSegOffset = endOfLeadIn + nextRel
		seg.rawDataOffset = endOfLeadIn + rawRel
		if seg.rawDataOffset > seg.nextSegOffset {
			return nil, fmt.Errorf("%w: segment at %d: raw-data offset %d exceeds next-segment offset %d", ErrMalformedFile, fileOffset, seg.rawDataOffset, seg.nextSegOffset)
		}
		seg.rawByteLength = seg.nextSegOffset - seg.rawDataOffset
	}

	return seg, nil
}

// readSegment parses one full segment (lead-in plus metadata, if present)
// starting at fileOffset. It does not read raw data.
func readSegment(src byteSource, fileOffset int64) (*parsedSegment, error) {
	seg, err := readSegmentPositions(src, fileOffset)
	if err != nil {
		return nil, err
	}

	if seg.hasMetadata {
		endOfLeadIn := fileOffset + leadInSize
		objects, newList, err := readMetadataBlock(src, endOfLeadIn, seg.toc)
		if err != nil {
			return nil, err
		}
		seg.objects = objects
		seg.newObjectList = newList
	}

	return seg, nil
}

// readMetadataBlock parses the metadata block starting immediately after
// the lead-in, returning the parsed per-object entries in file order and
// whether the NewObjList flag was set (callers combine this with ToC
// directly, but it is returned here for convenience at the call site).
func readMetadataBlock(src byteSource, offset int64, t toc) ([]segmentObject, bool, error) {
	order := binary.LittleEndian // metadata ints are always little-endian

	var hdr [4]byte
	if err := readFull(src, hdr[:], offset); err != nil {
		return nil, false, err
	}
	numObjects := order.Uint32(hdr[:])
	offset += 4

	objects := make([]segmentObject, 0, numObjects)
	for i := uint32(0); i < numObjects; i++ {
		obj, n, err := readSegmentObject(src, offset, order)
		if err != nil {
			return nil, false, fmt.Errorf("object %d: %w", i, err)
		}
		objects = append(objects, obj)
		offset += n
	}

	return objects, t.has(tocNewObjectList), nil
}

// readSegmentObject reads one object entry (path, raw-data-index header,
// optional layout, properties) at offset, returning the entry and the
// number of bytes consumed.
func readSegmentObject(src byteSource, offset int64, order binary.ByteOrder) (segmentObject, int64, error) {
	start := offset

	var lenBuf [4]byte
	if err := readFull(src, lenBuf[:], offset); err != nil {
		return segmentObject{}, 0, err
	}
	pathLen := order.Uint32(lenBuf[:])
	offset += 4

	pathBuf := make([]byte, pathLen)
	if err := readFull(src, pathBuf, offset); err != nil {
		return segmentObject{}, 0, err
	}
	offset += int64(pathLen)

	var hdrBuf [4]byte
	if err := readFull(src, hdrBuf[:], offset); err != nil {
		return segmentObject{}, 0, err
	}
	header := rawDataIndexHeader(order.Uint32(hdrBuf[:]))
	offset += 4

	obj := segmentObject{path: string(pathBuf)}

	switch {
	case header == rawIndexNoData:
		// no raw data for this object in this segment
	case header == rawIndexSameAsPrev:
		obj.hasRawData = true
		obj.sameAsPrev = true
	case header.isDAQmx():
		// The DAQmx scaler metadata block's shape depends on a
		// per-segment raw-buffer-width table that follows every
		// object's scaler list, not a fixed per-object size; there is
		// no safe way to skip past it without risking desync of the
		// rest of this segment's metadata. Fail the whole file read
		// rather than silently misparse later objects.
		return segmentObject{}, 0, fmt.Errorf("%w: object %q uses DAQmx raw data", ErrUnsupportedFeature, string(pathBuf))
	default:
		obj.hasRawData = true
		layout, n, err := readObjectLayout(src, offset, order, header)
		if err != nil {
			return segmentObject{}, 0, err
		}
		obj.layout = layout
		offset += n
	}

	props, n, err := readProperties(src, offset, order)
	if err != nil {
		return segmentObject{}, 0, err
	}
	obj.properties = props
	offset += n

	return obj, offset - start, nil
}

// readObjectLayout parses the { data_type, dimension, num_values, [total_bytes] }
// layout block. header is the raw-data-index header value already read;
// callers use it to choose this branch, and it is not used here.
func readObjectLayout(src byteSource, offset int64, order binary.ByteOrder, _ rawDataIndexHeader) (objectLayout, int64, error) {
	start := offset
	buf := make([]byte, 16)
	if err := readFull(src, buf, offset); err != nil {
		return objectLayout{}, 0, err
	}
	dt := DataType(order.Uint32(buf[0:4]))
	dim := order.Uint32(buf[4:8])
	if dim != 1 {
		return objectLayout{}, 0, fmt.Errorf("%w: at offset %d: dimension %d != 1", ErrMalformedFile, offset, dim)
	}
	numValues := order.Uint64(buf[8:16])
	offset += 16

	layout := objectLayout{dataType: dt, dimension: dim, numValues: numValues}

	if dt == DataTypeString {
		var tb [8]byte
		if err := readFull(src, tb[:], offset); err != nil {
			return objectLayout{}, 0, err
		}
		layout.totalBytes = order.Uint64(tb[:])
		offset += 8
	}

	return layout, offset - start, nil
}

// readProperties parses num_properties followed by that many
// (name, type, value) triples.
func readProperties(src byteSource, offset int64, order binary.ByteOrder) ([]Property, int64, error) {
	start := offset

	var countBuf [4]byte
	if err := readFull(src, countBuf[:], offset); err != nil {
		return nil, 0, err
	}
	count := order.Uint32(countBuf[:])
	offset += 4

	props := make([]Property, 0, count)
	for i := uint32(0); i < count; i++ {
		p, n, err := readProperty(src, offset, order)
		if err != nil {
			return nil, 0, fmt.Errorf("property %d: %w", i, err)
		}
		props = append(props, p)
		offset += n
	}

	return props, offset - start, nil
}

func readProperty(src byteSource, offset int64, order binary.ByteOrder) (Property, int64, error) {
	start := offset

	name, n, err := readLengthPrefixedString(src, offset, order)
	if err != nil {
		return Property{}, 0, err
	}
	offset += n

	var typeBuf [4]byte
	if err := readFull(src, typeBuf[:], offset); err != nil {
		return Property{}, 0, err
	}
	dt := DataType(order.Uint32(typeBuf[:]))
	offset += 4

	if dt == DataTypeString {
		val, n, err := readLengthPrefixedString(src, offset, order)
		if err != nil {
			return Property{}, 0, err
		}
		offset += n
		return Property{Name: name, Type: dt, Value: val}, offset - start, nil
	}

	size := dt.Size()
	if size == 0 {
		return Property{}, 0, fmt.Errorf("%w: property %q: unsupported property type %s", ErrUnsupportedFeature, name, dt)
	}
	buf := make([]byte, size)
	if err := readFull(src, buf, offset); err != nil {
		return Property{}, 0, err
	}
	offset += int64(size)

	val, err := decodeScalar(dt, buf, order)
	if err != nil {
		return Property{}, 0, err
	}

	return Property{Name: name, Type: dt, Value: val}, offset - start, nil
}

// readLengthPrefixedString reads a u32 length prefix followed by that many
// UTF-8 bytes, returning the string and total bytes consumed.
func readLengthPrefixedString(src byteSource, offset int64, order binary.ByteOrder) (string, int64, error) {
	var lenBuf [4]byte
	if err := readFull(src, lenBuf[:], offset); err != nil {
		return "", 0, err
	}
	n := order.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if err := readFull(src, buf, offset+4); err != nil {
		return "", 0, err
	}
	return string(buf), int64(4 + n), nil
}
