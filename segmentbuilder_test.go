package tdms

import (
	"encoding/binary"
	"math"
)

// This file hand-assembles TDMS segment bytes for table-driven tests. There
// are no real .tdms fixtures on disk, so every scenario in tdms_test.go
// builds its input from these helpers instead.

type objSpec struct {
	path       string
	noData     bool
	sameAsPrev bool
	dataType   DataType
	numValues  uint64
	stringVals []string // only when dataType == DataTypeString
	properties []Property
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendLenString(b []byte, s string) []byte {
	b = appendU32(b, uint32(len(s)))
	return append(b, s...)
}

func stringTotalBytes(vals []string) uint64 {
	var total int
	for _, s := range vals {
		total += len(s)
	}
	return uint64(total)
}

func appendProperty(b []byte, p Property) []byte {
	b = appendLenString(b, p.Name)
	b = appendU32(b, uint32(p.Type))
	switch p.Type {
	case DataTypeString:
		b = appendLenString(b, p.Value.(string))
	case DataTypeInt8:
		b = append(b, byte(p.Value.(int8)))
	case DataTypeInt16:
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(p.Value.(int16)))
		b = append(b, tmp[:]...)
	case DataTypeInt32:
		b = appendU32(b, uint32(p.Value.(int32)))
	case DataTypeInt64:
		b = appendU64(b, uint64(p.Value.(int64)))
	case DataTypeUint32:
		b = appendU32(b, p.Value.(uint32))
	case DataTypeFloat32:
		b = appendU32(b, math.Float32bits(p.Value.(float32)))
	case DataTypeFloat64:
		b = appendU64(b, math.Float64bits(p.Value.(float64)))
	case DataTypeBool:
		v := byte(0)
		if p.Value.(bool) {
			v = 1
		}
		b = append(b, v)
	default:
		panic("appendProperty: unsupported property type in test builder")
	}
	return b
}

func buildMetadata(objs []objSpec) []byte {
	var b []byte
	b = appendU32(b, uint32(len(objs)))
	for _, o := range objs {
		b = appendLenString(b, o.path)
		switch {
		case o.noData:
			b = appendU32(b, uint32(rawIndexNoData))
		case o.sameAsPrev:
			b = appendU32(b, uint32(rawIndexSameAsPrev))
		default:
			headerLen := uint32(16)
			if o.dataType == DataTypeString {
				headerLen = 28
			}
			b = appendU32(b, headerLen)
			b = appendU32(b, uint32(o.dataType))
			b = appendU32(b, 1) // dimension, always 1
			b = appendU64(b, o.numValues)
			if o.dataType == DataTypeString {
				b = appendU64(b, stringTotalBytes(o.stringVals))
			}
		}
		b = appendU32(b, uint32(len(o.properties)))
		for _, p := range o.properties {
			b = appendProperty(b, p)
		}
	}
	return b
}

// int32RawData serializes vals as little-endian contiguous Int32 samples.
func int32RawData(vals []int32) []byte {
	b := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		b = appendU32(b, uint32(v))
	}
	return b
}

// float64RawData serializes vals as little-endian contiguous Float64 samples.
func float64RawData(vals []float64) []byte {
	b := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		b = appendU64(b, math.Float64bits(v))
	}
	return b
}

// stringRawData serializes vals as a string channel chunk: numValues
// little-endian u32 cumulative end-offsets, followed by the concatenated
// UTF-8 payload.
func stringRawData(vals []string) []byte {
	var offsets []byte
	var payload []byte
	var cum uint32
	for _, s := range vals {
		cum += uint32(len(s))
		offsets = appendU32(offsets, cum)
		payload = append(payload, s...)
	}
	return append(offsets, payload...)
}

// interleaveInt32RawData serializes channels in interleaved row order: one
// sample from every channel in turn, repeated per row. Every channel in
// channels must have the same length.
func interleaveInt32RawData(channels [][]int32) []byte {
	if len(channels) == 0 {
		return nil
	}
	rows := len(channels[0])
	var b []byte
	for r := 0; r < rows; r++ {
		for _, ch := range channels {
			b = appendU32(b, uint32(ch[r]))
		}
	}
	return b
}

// segmentSpec describes one segment to assemble with buildSegment.
type segmentSpec struct {
	noMetadata  bool // ToC MetaData bit unset: pure raw-data continuation
	newObjList  bool
	interleaved bool
	bigEndian   bool
	objects     []objSpec
	rawData     []byte
	unfinished  bool
}

// buildSegment assembles one segment's lead-in, metadata block (if any),
// and raw data into a contiguous byte slice, computing the lead-in's
// relative offsets the way a real TDMS writer would.
func buildSegment(spec segmentSpec) []byte {
	var t toc
	if !spec.noMetadata {
		t |= tocMetaData
	}
	if len(spec.rawData) > 0 {
		t |= tocRawData
	}
	if spec.newObjList {
		t |= tocNewObjectList
	}
	if spec.interleaved {
		t |= tocInterleaved
	}
	if spec.bigEndian {
		t |= tocBigEndian
	}

	var metadata []byte
	if !spec.noMetadata {
		metadata = buildMetadata(spec.objects)
	}

	rawDataOffset := uint64(len(metadata))
	var nextSegOffset uint64
	if spec.unfinished {
		nextSegOffset = unfinishedSegmentMarker
	} else {
		nextSegOffset = uint64(len(metadata) + len(spec.rawData))
	}

	lead := make([]byte, 0, leadInSize)
	lead = append(lead, 'T', 'D', 'S', 'm')
	lead = appendU32(lead, uint32(t))
	lead = appendU32(lead, 4713) // format version, matches real TDMS files
	lead = appendU64(lead, nextSegOffset)
	lead = appendU64(lead, rawDataOffset)

	out := append(lead, metadata...)
	out = append(out, spec.rawData...)
	return out
}

// buildFile concatenates multiple already-built segments into one file.
func buildFile(segments ...[]byte) []byte {
	var out []byte
	for _, s := range segments {
		out = append(out, s...)
	}
	return out
}
